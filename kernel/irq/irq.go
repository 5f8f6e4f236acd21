// Package irq installs the kernel's CPU exception and hardware interrupt
// handlers and brings up the interrupt controllers that feed them.
package irq

import (
	"beeos/device/keyboard"
	"beeos/device/pic"
	"beeos/kernel"
	"beeos/kernel/cpu"
	"beeos/kernel/gate"
	"beeos/kernel/gdt"
	"beeos/kernel/kfmt"
	"beeos/kernel/sync"
)

// Hardware interrupt vectors raised by the primary controller once it has
// been remapped by InitController.
const (
	TimerVector    = gate.InterruptNumber(pic.PrimaryOffset + timerLine)
	KeyboardVector = gate.InterruptNumber(pic.PrimaryOffset + keyboardLine)
)

const (
	timerLine    = 0
	keyboardLine = 1

	keyboardDataPort = 0x60
)

var (
	// FatalGPF controls whether general protection faults halt the
	// system. When false, the fault is reported and execution resumes.
	FatalGPF bool

	controller *pic.Chained

	// kbd is only touched by the keyboard interrupt handler once the
	// controller is initialized.
	kbd     *keyboard.Keyboard
	kbdLock sync.IRQSpinlock

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	handleInterruptFn = gate.HandleInterrupt
	loadVectorsFn     = gate.Load
	readScancodeFn    = cpu.PortReadByte
	panicFn           = kfmt.Panic

	// ports gives the controller driver access to the I/O port space.
	ports pic.PortIO = cpu.Ports{}

	errDoubleFault = &kernel.Error{Module: "irq", Message: "double fault"}
	errGPF         = &kernel.Error{Module: "irq", Message: "general protection fault"}
)

// InitVectors binds the kernel's exception and hardware interrupt handlers
// and loads the interrupt vector table. The double fault handler runs on the
// dedicated fault stack so that faults caused by a stack overflow can still
// be reported.
func InitVectors() *kernel.Error {
	var bindings = []struct {
		num      gate.InterruptNumber
		istIndex uint8
		handler  func(*gate.Registers)
	}{
		{gate.Breakpoint, 0, breakpointHandler},
		{gate.GPFException, 0, generalProtectionFaultHandler},
		{gate.DoubleFault, gdt.DoubleFaultISTIndex, doubleFaultHandler},
		{TimerVector, 0, timerHandler},
		{KeyboardVector, 0, keyboardHandler},
	}

	for _, b := range bindings {
		if err := handleInterruptFn(b.num, b.istIndex, b.handler); err != nil {
			return err
		}
	}

	loadVectorsFn()
	return nil
}

// InitController remaps the interrupt controllers above the CPU exception
// vectors and unmasks the timer and keyboard lines. All lines stay masked
// while the controllers are being reprogrammed. Interrupts must be disabled
// when InitController is invoked.
func InitController() {
	controller = pic.New(ports, pic.PrimaryOffset, pic.SecondaryOffset)
	controller.WriteMasks(0xff, 0xff)
	controller.Init()

	kbdLock.Acquire()
	kbd = keyboard.New()
	kbdLock.Release()

	controller.WriteMasks(pic.MaskFor(timerLine, keyboardLine))

	off1, off2 := controller.Offsets()
	mask1, mask2 := controller.ReadMasks()
	kfmt.Printf("[irq] 8259 vectors %d/%d, masks 0x%2x/0x%2x\n", off1, off2, mask1, mask2)
}

// breakpointHandler reports the trap and resumes execution at the
// instruction following the breakpoint.
func breakpointHandler(regs *gate.Registers) {
	kfmt.Printf("\nEXCEPTION: BREAKPOINT\n")
	regs.DumpTo(kfmt.GetOutputSink())
}

// generalProtectionFaultHandler is invoked for various reasons:
//   - segment errors (privilege, type or limit violations)
//   - executing privileged instructions outside ring-0
//   - attempts to access reserved or unimplemented CPU registers
func generalProtectionFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\nEXCEPTION: GENERAL PROTECTION FAULT\n")
	kfmt.Printf("error code: 0x%x\n", regs.Info)
	regs.DumpTo(kfmt.GetOutputSink())

	if FatalGPF {
		panicFn(errGPF)
	}
}

// doubleFaultHandler reports the fault and halts. A double fault cannot be
// recovered from.
func doubleFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\nEXCEPTION: DOUBLE FAULT\n")
	kfmt.Printf("error code: 0x%x\n", regs.Info)
	regs.DumpTo(kfmt.GetOutputSink())

	panicFn(errDoubleFault)
}

func timerHandler(regs *gate.Registers) {
	controller.NotifyEndOfInterrupt(uint8(regs.Vector))
}

// keyboardHandler reads one scancode byte and echoes the decoded key, if any.
// Characters are printed as-is while other keys are printed by name.
func keyboardHandler(regs *gate.Registers) {
	scancode := readScancodeFn(keyboardDataPort)

	if kbdLock.TryToAcquire() {
		key, ok := kbd.AddByte(scancode)
		kbdLock.Release()

		switch {
		case !ok:
		case key.IsRune():
			kfmt.Printf("%c", key.Rune)
		default:
			kfmt.Printf("%s", key.Code.String())
		}
	}

	controller.NotifyEndOfInterrupt(uint8(regs.Vector))
}
