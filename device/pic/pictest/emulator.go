// Package pictest provides a software model of a chained 8259 controller
// pair that can be plugged in place of the port I/O primitives in tests.
package pictest

// Emulated port numbers.
const (
	PrimaryCommandPort   = 0x20
	PrimaryDataPort      = 0x21
	SecondaryCommandPort = 0xa0
	SecondaryDataPort    = 0xa1
	IOWaitPort           = 0x80
)

const (
	icw1Init = 0x10
	icw1IC4  = 0x01
	ocw2EOI  = 0x20
	ocw2SL   = 0x40
	ocw3Mark = 0x08
	ocw3RR   = 0x02
	ocw3RIS  = 0x01

	cascadeLine = 2
)

// Chip models a single 8259 controller.
type Chip struct {
	// Offset is the vector base programmed with ICW2.
	Offset uint8

	// Cascade is the value programmed with ICW3.
	Cascade uint8

	// Mode is the value programmed with ICW4.
	Mode uint8

	// IMR, IRR and ISR are the mask, request and in-service registers.
	IMR, IRR, ISR uint8

	// EOICount is the number of end-of-interrupt commands received.
	EOICount int

	// InitCount is the number of completed initialization sequences.
	InitCount int

	icwStep   int
	needsICW4 bool
	readISR   bool
}

func (c *Chip) writeCommand(val uint8) {
	switch {
	case val&icw1Init != 0:
		c.icwStep = 2
		c.needsICW4 = val&icw1IC4 != 0
		c.IMR, c.IRR, c.ISR = 0, 0, 0
	case val&0x18 == ocw3Mark:
		if val&ocw3RR != 0 {
			c.readISR = val&ocw3RIS != 0
		}
	case val&ocw2EOI != 0:
		c.EOICount++
		if val&ocw2SL != 0 {
			c.ISR &^= 1 << (val & 7)
			return
		}
		// Non-specific EOI clears the highest priority in-service line.
		for line := uint8(0); line < 8; line++ {
			if c.ISR&(1<<line) != 0 {
				c.ISR &^= 1 << line
				return
			}
		}
	}
}

func (c *Chip) writeData(val uint8) {
	switch c.icwStep {
	case 2:
		c.Offset = val
		c.icwStep = 3
	case 3:
		c.Cascade = val
		if c.needsICW4 {
			c.icwStep = 4
		} else {
			c.icwStep = 0
			c.InitCount++
		}
	case 4:
		c.Mode = val
		c.icwStep = 0
		c.InitCount++
	default:
		c.IMR = val
	}
}

func (c *Chip) readCommand() uint8 {
	if c.readISR {
		return c.ISR
	}
	return c.IRR
}

// Access records a single port access.
type Access struct {
	Port  uint16
	Value uint8
	Write bool
}

// Emulator models a primary/secondary 8259 pair wired through IRQ line 2.
type Emulator struct {
	Primary, Secondary Chip

	// Log contains every port access in the order it happened.
	Log []Access
}

// New returns an emulator in the power-on state with all lines masked.
func New() *Emulator {
	e := &Emulator{}
	e.Primary.IMR = 0xff
	e.Secondary.IMR = 0xff
	return e
}

// Out handles an 8-bit port write.
func (e *Emulator) Out(port uint16, val uint8) {
	e.Log = append(e.Log, Access{Port: port, Value: val, Write: true})

	switch port {
	case PrimaryCommandPort:
		e.Primary.writeCommand(val)
	case PrimaryDataPort:
		e.Primary.writeData(val)
	case SecondaryCommandPort:
		e.Secondary.writeCommand(val)
	case SecondaryDataPort:
		e.Secondary.writeData(val)
	}
}

// In handles an 8-bit port read.
func (e *Emulator) In(port uint16) uint8 {
	e.Log = append(e.Log, Access{Port: port})

	switch port {
	case PrimaryCommandPort:
		return e.Primary.readCommand()
	case PrimaryDataPort:
		return e.Primary.IMR
	case SecondaryCommandPort:
		return e.Secondary.readCommand()
	case SecondaryDataPort:
		return e.Secondary.IMR
	}
	return 0xff
}

// Raise asserts IRQ line irq (0-15). If the line is unmasked it is moved to
// the in-service register and the vector that the CPU would receive is
// returned.
func (e *Emulator) Raise(irq uint8) (vector uint8, delivered bool) {
	if irq >= 8 {
		line := irq - 8
		if e.Secondary.IMR&(1<<line) != 0 || e.Primary.IMR&(1<<cascadeLine) != 0 {
			e.Secondary.IRR |= 1 << line
			return 0, false
		}
		e.Secondary.ISR |= 1 << line
		e.Primary.ISR |= 1 << cascadeLine
		return e.Secondary.Offset + line, true
	}

	if e.Primary.IMR&(1<<irq) != 0 {
		e.Primary.IRR |= 1 << irq
		return 0, false
	}
	e.Primary.ISR |= 1 << irq
	return e.Primary.Offset + irq, true
}

// Writes returns the values written to port in order.
func (e *Emulator) Writes(port uint16) []uint8 {
	var out []uint8
	for _, access := range e.Log {
		if access.Write && access.Port == port {
			out = append(out, access.Value)
		}
	}
	return out
}

// ResetLog discards the recorded port accesses.
func (e *Emulator) ResetLog() {
	e.Log = e.Log[:0]
}
