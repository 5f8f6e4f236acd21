// Package kmain sequences the kernel bring-up: device discovery, descriptor
// tables, interrupt vectors and controllers, and finally the idle loop.
package kmain

import (
	"beeos/device/video/console"
	"beeos/kernel/cpu"
	"beeos/kernel/gdt"
	"beeos/kernel/hal"
	"beeos/kernel/hal/multiboot"
	"beeos/kernel/irq"
	"beeos/kernel/kfmt"

	// Drivers register themselves with the device package when imported.
	_ "beeos/device/serial"
)

const (
	// qemuExitPort is the I/O port of QEMU's isa-debug-exit device.
	qemuExitPort = 0xf4

	exitSuccess = 0x10
	exitFailure = 0x11
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	setInfoPtrFn        = multiboot.SetInfoPtr
	detectHardwareFn    = hal.DetectHardware
	bootCmdLineValueFn  = multiboot.BootCmdLineValue
	bootLoaderNameFn    = multiboot.GetBootLoaderName
	withConsoleFn       = hal.WithConsole
	activeSerialFn      = hal.ActiveSerial
	gdtInitFn           = gdt.Init
	initVectorsFn       = irq.InitVectors
	initControllerFn    = irq.InitController
	enableInterruptsFn  = cpu.EnableInterrupts
	interruptsEnabledFn = cpu.InterruptsEnabled
	breakpointFn        = cpu.Breakpoint
	portWriteDwordFn    = cpu.PortWriteDword
	waitForInterruptFn  = cpu.WaitForInterrupt
	panicFn             = kfmt.Panic
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code
// after setting up a minimal g0 struct that allows Go code to use the stack
// allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by
// the bootloader as well as the physical addresses for the kernel start/end.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, _, _ uintptr) {
	setInfoPtrFn(multibootInfoPtr)
	detectHardwareFn()

	if !bringUp() {
		return
	}

	if val, _ := bootCmdLineValueFn("selftest"); val == "on" {
		selfTest()
	}

	for {
		waitForInterruptFn()
	}
}

// bringUp loads the descriptor tables, installs the interrupt handlers and
// enables interrupts. Enabling interrupts is always the last step. It returns
// false if a step failed.
func bringUp() bool {
	var w = kfmt.PrefixWriter{Sink: kfmt.Output(), Prefix: []byte("[boot] ")}

	if val, _ := bootCmdLineValueFn("gpf"); val == "fatal" {
		irq.FatalGPF = true
	}

	if name := bootLoaderNameFn(); name != "" {
		kfmt.Fprintf(&w, "loaded by %s\n", name)
	}

	// The console lock is held while fn runs, so the grid is only logged
	// once it has been released.
	var cols, rows int
	if withConsoleFn(func(cons console.Device) { cols, rows = cons.Dimensions(console.Characters) }) {
		kfmt.Fprintf(&w, "console: %dx%d characters\n", cols, rows)
	}

	kfmt.Fprintf(&w, "loading GDT and TSS\n")
	gdtInitFn()

	kfmt.Fprintf(&w, "loading interrupt vectors\n")
	if err := initVectorsFn(); err != nil {
		panicFn(err)
		return false
	}

	kfmt.Fprintf(&w, "initializing interrupt controllers\n")
	initControllerFn()

	kfmt.Fprintf(&w, "enabling interrupts\n")
	enableInterruptsFn()

	kfmt.Fprintf(&w, "ready\n")
	if serial := activeSerialFn(); serial != nil && serial.Dropped() != 0 {
		kfmt.Fprintf(&w, "serial: %d bytes dropped\n", serial.Dropped())
	}
	return true
}

// selfTest triggers a breakpoint trap, checks that execution resumes with
// interrupts still enabled and reports the outcome through the QEMU exit
// device.
func selfTest() {
	var w = kfmt.PrefixWriter{Sink: kfmt.Output(), Prefix: []byte("[selftest] ")}

	kfmt.Fprintf(&w, "breakpoint round trip\n")
	breakpointFn()

	if !interruptsEnabledFn() {
		kfmt.Fprintf(&w, "FAILED: interrupts disabled after trap\n")
		portWriteDwordFn(qemuExitPort, exitFailure)
		return
	}

	kfmt.Fprintf(&w, "passed\n")
	portWriteDwordFn(qemuExitPort, exitSuccess)
}
