// Package pic drives the pair of chained 8259 programmable interrupt
// controllers found on PC compatible machines.
package pic

import (
	"beeos/kernel/sync"
)

// Default vector offsets. The power-on mapping overlaps the CPU exception
// vectors 0-31, so the controllers are moved right above them.
const (
	PrimaryOffset   = 32
	SecondaryOffset = PrimaryOffset + linesPerController
)

const (
	primaryCommandPort   = 0x20
	primaryDataPort      = 0x21
	secondaryCommandPort = 0xa0
	secondaryDataPort    = 0xa1

	// Writes to this unused port take long enough for the controllers
	// to process the previous command word.
	ioWaitPort = 0x80

	cmdInit           = 0x11
	cmdEndOfInterrupt = 0x20
	mode8086          = 0x01

	// cascadeLine is the primary line the secondary controller is wired
	// to.
	cascadeLine        = 2
	linesPerController = 8
)

// PortIO is the subset of the I/O port space used by the controllers.
type PortIO interface {
	Out(port uint16, val uint8)
	In(port uint16) uint8
}

// Controller describes one 8259 chip.
type Controller struct {
	offset  uint8
	command uint16
	data    uint16
}

// HandlesInterrupt returns true if vector is in the range of vectors this
// controller raises.
func (c *Controller) HandlesInterrupt(vector uint8) bool {
	return vector >= c.offset && vector < c.offset+linesPerController
}

// Chained is a primary controller with a secondary controller cascaded on
// its line 2. All register access is serialized by an IRQSpinlock.
type Chained struct {
	primary   Controller
	secondary Controller
	ports     PortIO
	lock      sync.IRQSpinlock
}

// New returns a Chained controller pair that raises vectors starting at
// primaryOffset and secondaryOffset once Init is called.
func New(ports PortIO, primaryOffset, secondaryOffset uint8) *Chained {
	return &Chained{
		primary:   Controller{offset: primaryOffset, command: primaryCommandPort, data: primaryDataPort},
		secondary: Controller{offset: secondaryOffset, command: secondaryCommandPort, data: secondaryDataPort},
		ports:     ports,
	}
}

// Offsets returns the configured vector offsets.
func (p *Chained) Offsets() (primary, secondary uint8) {
	return p.primary.offset, p.secondary.offset
}

// Init runs the ICW1-ICW4 initialization sequence on both controllers,
// programming their vector offsets and cascade wiring. The interrupt masks
// in effect before the call are restored afterwards.
func (p *Chained) Init() {
	p.lock.Acquire()
	defer p.lock.Release()

	m1, m2 := p.readMasks()

	// ICW1: start initialization, ICW4 follows.
	p.out(p.primary.command, cmdInit)
	p.out(p.secondary.command, cmdInit)

	// ICW2: vector offsets.
	p.out(p.primary.data, p.primary.offset)
	p.out(p.secondary.data, p.secondary.offset)

	// ICW3: the primary gets a bitmask of the line the secondary is wired
	// to while the secondary gets its cascade identity.
	p.out(p.primary.data, 1<<cascadeLine)
	p.out(p.secondary.data, cascadeLine)

	// ICW4: 8086 mode.
	p.out(p.primary.data, mode8086)
	p.out(p.secondary.data, mode8086)

	p.writeMasks(m1, m2)
}

// ReadMasks returns the interrupt mask registers of both controllers. A set
// bit means that the line is masked.
func (p *Chained) ReadMasks() (primary, secondary uint8) {
	p.lock.Acquire()
	defer p.lock.Release()
	return p.readMasks()
}

// WriteMasks updates the interrupt mask registers of both controllers.
func (p *Chained) WriteMasks(primary, secondary uint8) {
	p.lock.Acquire()
	p.writeMasks(primary, secondary)
	p.lock.Release()
}

// HandlesInterrupt returns true if vector is raised by either controller.
func (p *Chained) HandlesInterrupt(vector uint8) bool {
	return p.primary.HandlesInterrupt(vector) || p.secondary.HandlesInterrupt(vector)
}

// NotifyEndOfInterrupt acknowledges vector. Interrupts raised by the
// secondary controller travel through the primary so both need an EOI.
// Vectors that do not belong to either controller are ignored.
func (p *Chained) NotifyEndOfInterrupt(vector uint8) {
	if !p.HandlesInterrupt(vector) {
		return
	}

	p.lock.Acquire()
	if p.secondary.HandlesInterrupt(vector) {
		p.ports.Out(p.secondary.command, cmdEndOfInterrupt)
	}
	p.ports.Out(p.primary.command, cmdEndOfInterrupt)
	p.lock.Release()
}

// MaskFor returns the mask register values that unmask exactly the listed
// IRQ lines (0-15). Unmasking a secondary line also unmasks the cascade line
// on the primary. Lines outside the valid range are ignored.
func MaskFor(lines ...uint8) (primary, secondary uint8) {
	primary, secondary = 0xff, 0xff
	for _, line := range lines {
		switch {
		case line < linesPerController:
			primary &^= 1 << line
		case line < 2*linesPerController:
			secondary &^= 1 << (line - linesPerController)
			primary &^= 1 << cascadeLine
		}
	}
	return primary, secondary
}

func (p *Chained) readMasks() (uint8, uint8) {
	return p.ports.In(p.primary.data), p.ports.In(p.secondary.data)
}

func (p *Chained) writeMasks(primary, secondary uint8) {
	p.ports.Out(p.primary.data, primary)
	p.ports.Out(p.secondary.data, secondary)
}

// out writes a command word followed by an I/O delay.
func (p *Chained) out(port uint16, val uint8) {
	p.ports.Out(port, val)
	p.ports.Out(ioWaitPort, 0)
}
