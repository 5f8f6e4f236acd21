// Package gate maintains the 256-entry interrupt descriptor table and routes
// every exception and hardware interrupt to the Go handler bound to its
// vector.
package gate

import (
	"beeos/kernel"
	"beeos/kernel/gdt"
	"beeos/kernel/kfmt"
	"encoding/binary"
	"io"
	"unsafe"
)

// Registers contains a snapshot of all register values when an exception or
// interrupt occurs. The field order mirrors the frame built by the assembly
// entry stubs and must not be changed.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Vector is the interrupt number that was delivered.
	Vector uint64

	// Info contains the error code pushed by the CPU for exceptions that
	// report one and 0 otherwise.
	Info uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x VEC = %16x\n", r.RFlags, r.Vector)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

// CPU exception vectors (Intel SDM vol. 3, table 6-1).
const (
	// DivideByZero is raised by DIV and IDIV when the divisor is zero or
	// the quotient does not fit the destination.
	DivideByZero = InterruptNumber(0)

	// Debug is raised for single-step traps and hardware breakpoints set
	// through the debug registers.
	Debug = InterruptNumber(1)

	// NMI is the non-maskable interrupt. Chipsets use it to report memory
	// parity errors and watchdog timeouts.
	NMI = InterruptNumber(2)

	// Breakpoint is raised by the one-byte INT3 instruction. The saved
	// instruction pointer refers to the instruction after INT3, so the
	// handler can simply return.
	Breakpoint = InterruptNumber(3)

	// Overflow is raised by INTO when RFLAGS.OF is set. INTO is not valid
	// in 64-bit mode.
	Overflow = InterruptNumber(4)

	// BoundRangeExceeded is raised by BOUND for an out-of-range index.
	BoundRangeExceeded = InterruptNumber(5)

	// InvalidOpcode is raised for undefined or reserved opcodes and for
	// instructions that are not valid in the current mode.
	InvalidOpcode = InterruptNumber(6)

	// DeviceNotAvailable is raised by x87 and SSE instructions while
	// CR0.TS or CR0.EM prevents their use.
	DeviceNotAvailable = InterruptNumber(7)

	// DoubleFault is raised when a second exception occurs while the CPU
	// delivers the first one. Its handler needs a known-good stack as the
	// original fault may have been a stack overflow.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS is raised when a task switch or stack switch references
	// a malformed task-state segment.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent is raised when a segment or gate descriptor with
	// the present bit cleared is loaded.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault is raised for non-canonical stack addresses and
	// failed stack segment limit checks.
	StackSegmentFault = InterruptNumber(12)

	// GPFException is the general protection fault. It is pushed with an
	// error code that holds the offending selector, if any.
	GPFException = InterruptNumber(13)

	// PageFaultException is raised for accesses to unmapped pages and for
	// page-level protection violations. CR2 holds the faulting address.
	PageFaultException = InterruptNumber(14)

	// FloatingPointException reports a pending unmasked x87 exception
	// when CR0.NE is set.
	FloatingPointException = InterruptNumber(16)

	// AlignmentCheck is raised for misaligned accesses in ring 3 while
	// CR0.AM and RFLAGS.AC are both set.
	AlignmentCheck = InterruptNumber(17)

	// MachineCheck reports internal CPU or bus errors. It is only raised
	// when CR4.MCE is set.
	MachineCheck = InterruptNumber(18)

	// SIMDFloatingPointException reports an unmasked SSE exception. With
	// CR4.OSXMMEXCPT cleared the CPU raises InvalidOpcode instead.
	SIMDFloatingPointException = InterruptNumber(19)
)

// maxISTIndex is the highest interrupt stack table slot supported by the CPU.
const maxISTIndex = 7

// Gate descriptor bits (Intel SDM vol. 3, 6.14.1).
const (
	gateTypeInterrupt = 0xe << 8
	gatePresent       = 1 << 15
)

// gateDescriptor is a 16-byte long mode IDT entry.
type gateDescriptor [2]uint64

var (
	table    [256]gateDescriptor
	handlers [256]func(*Registers)

	loaded bool

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadIDTFn   = loadIDT
	entryAddrFn = gateEntryAddr
	panicFn     = kfmt.Panic

	errTableLoaded = &kernel.Error{Module: "gate", Message: "interrupt table already loaded"}
	errBound       = &kernel.Error{Module: "gate", Message: "interrupt vector already bound"}
	errNilHandler  = &kernel.Error{Module: "gate", Message: "nil interrupt handler"}
	errISTIndex    = &kernel.Error{Module: "gate", Message: "interrupt stack table index out of range"}
	errUnhandled   = &kernel.Error{Module: "gate", Message: "unhandled interrupt"}
)

// HandleInterrupt binds handler to the intNumber vector. The value of the
// istIndex argument selects an interrupt stack table slot (1-7) for the
// handler to run on; 0 keeps the interrupted stack. A vector can be bound
// only once and only before the table is loaded.
func HandleInterrupt(intNumber InterruptNumber, istIndex uint8, handler func(*Registers)) *kernel.Error {
	switch {
	case loaded:
		return errTableLoaded
	case handler == nil:
		return errNilHandler
	case istIndex > maxISTIndex:
		return errISTIndex
	case handlers[intNumber] != nil:
		return errBound
	}

	handlers[intNumber] = handler
	table[intNumber] = newInterruptGate(entryAddrFn(uint8(intNumber)), gdt.CodeSelector, istIndex)
	return nil
}

// Load fills in the gates for all vectors without a handler and loads the
// table into the CPU. Delivery of an unbound vector is fatal. Subsequent
// calls are no-ops.
func Load() {
	if loaded {
		return
	}

	for num := range handlers {
		if handlers[num] == nil {
			table[num] = newInterruptGate(entryAddrFn(uint8(num)), gdt.CodeSelector, 0)
		}
	}

	var idtr [10]byte
	binary.LittleEndian.PutUint16(idtr[:2], uint16(unsafe.Sizeof(table)-1))
	binary.LittleEndian.PutUint64(idtr[2:], uint64(uintptr(unsafe.Pointer(&table[0]))))
	loadIDTFn(uintptr(unsafe.Pointer(&idtr[0])))

	loaded = true
}

// newInterruptGate encodes a present, ring 0 interrupt gate that transfers
// control to entry. Interrupt gates clear RFLAGS.IF on entry.
func newInterruptGate(entry uintptr, selector uint16, istIndex uint8) gateDescriptor {
	pc := uint64(entry)
	lo := pc&0xffff |
		uint64(selector)<<16 |
		uint64(istIndex&7)<<32 |
		uint64(gatePresent|gateTypeInterrupt)<<32 |
		(pc>>16&0xffff)<<48
	return gateDescriptor{lo, pc >> 32}
}

// dispatchInterrupt is invoked by the common interrupt entrypoint with a
// pointer to the saved register frame.
//
//go:nosplit
func dispatchInterrupt(regs *Registers) {
	if handler := handlers[uint8(regs.Vector)]; handler != nil {
		handler(regs)
		return
	}

	kfmt.Printf("\nunhandled interrupt vector %d (info: 0x%x)\n", regs.Vector, regs.Info)
	regs.DumpTo(kfmt.GetOutputSink())
	panicFn(errUnhandled)
}

// loadIDT loads the IDT register from the 10-byte descriptor at idtrAddr.
func loadIDT(idtrAddr uintptr)

// gateEntryAddr returns the address of the assembly entrypoint for vector
// num.
func gateEntryAddr(num uint8) uintptr
