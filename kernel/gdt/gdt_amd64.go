// Package gdt builds and loads the segment descriptor table and the
// task-state segment. In long mode segmentation is mostly disabled but the CPU
// still requires a code segment to run in and a TSS that publishes the
// interrupt stack table used by the double fault handler.
package gdt

import (
	"beeos/kernel"
	"beeos/kernel/kfmt"
	"beeos/kernel/mem"
	"encoding/binary"
	"unsafe"
)

const (
	// CodeSelector is the selector of the ring 0 64-bit code segment.
	CodeSelector uint16 = slotCode << 3

	// TSSSelector is the selector of the task-state segment descriptor.
	TSSSelector uint16 = slotTSS << 3

	// DoubleFaultISTIndex is the interrupt stack table slot (1-based)
	// whose stack is reserved for the double fault handler.
	DoubleFaultISTIndex = 1

	// FaultStackSize is the size of the isolated double fault stack.
	FaultStackSize = 5 << mem.PageShift
)

// Descriptor table slots. The 64-bit TSS descriptor spans two slots.
const (
	slotNull = iota
	slotCode
	slotTSS
	slotTSSHigh
	slotCount
)

// Descriptor bits (Intel SDM vol. 3, 3.4.5).
const (
	descAccessed    = 1 << 40
	descReadWrite   = 1 << 41
	descExecutable  = 1 << 43
	descUserSegment = 1 << 44
	descPresent     = 1 << 47
	descLongMode    = 1 << 53
	descGranularity = 1 << 55

	// descLimitMax sets the 20-bit limit to its maximum value.
	descLimitMax = 0xffff | 0xf<<48

	// descTypeTSSAvailable is the system segment type of an idle 64-bit TSS.
	descTypeTSSAvailable = 0x9 << 40
)

// taskStateSegment holds the 104-byte 64-bit TSS as dwords so that the Go
// compiler does not insert padding between the unaligned 64-bit fields.
type taskStateSegment [26]uint32

const (
	tssSize = unsafe.Sizeof(taskStateSegment{})

	// tssIOMapBaseDword holds the I/O map base in its upper 16 bits.
	tssIOMapBaseDword = 25
)

var (
	table      [slotCount]uint64
	tss        taskStateSegment
	faultStack [FaultStackSize]byte

	loaded bool

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadGDTFn        = loadGDT
	reloadSegmentsFn = reloadSegments
	loadTRFn         = loadTaskRegister
	panicFn          = kfmt.Panic

	errTableAlignment = &kernel.Error{Module: "gdt", Message: "descriptor table is not 8-byte aligned"}
	errTSSAlignment   = &kernel.Error{Module: "gdt", Message: "task-state segment is not 4-byte aligned"}
	errISTIndex       = &kernel.Error{Module: "gdt", Message: "interrupt stack table index out of range"}
)

// Init builds the descriptor table and the task-state segment and loads them
// into the CPU. Subsequent calls are no-ops.
func Init() {
	if loaded {
		return
	}

	tableAddr := uintptr(unsafe.Pointer(&table[0]))
	tssAddr := uintptr(unsafe.Pointer(&tss[0]))
	switch {
	case tableAddr&7 != 0:
		panicFn(errTableAlignment)
		return
	case tssAddr&3 != 0:
		panicFn(errTSSAlignment)
		return
	}

	if err := tss.setIST(DoubleFaultISTIndex, FaultStackTop()); err != nil {
		panicFn(err)
		return
	}
	tss.setIOMapBase(uint16(tssSize))

	table[slotNull] = 0
	table[slotCode] = newCodeDescriptor()
	table[slotTSS], table[slotTSSHigh] = newTSSDescriptor(tssAddr, uint32(tssSize-1))

	// The GDT register is a 10 byte value: a 16-bit limit followed by the
	// 64-bit table address.
	var gdtr [10]byte
	binary.LittleEndian.PutUint16(gdtr[:2], uint16(unsafe.Sizeof(table)-1))
	binary.LittleEndian.PutUint64(gdtr[2:], uint64(tableAddr))

	loadGDTFn(uintptr(unsafe.Pointer(&gdtr[0])))
	reloadSegmentsFn(CodeSelector, 0)
	loadTRFn(TSSSelector)

	loaded = true
}

// FaultStackTop returns the 16-byte aligned address one past the top of the
// isolated double fault stack.
func FaultStackTop() uintptr {
	top := uintptr(unsafe.Pointer(&faultStack[0])) + FaultStackSize
	return top &^ (mem.StackAlign - 1)
}

// newCodeDescriptor returns a flat, present, ring 0 long mode code segment
// descriptor.
func newCodeDescriptor() uint64 {
	return descLimitMax | descAccessed | descReadWrite | descExecutable |
		descUserSegment | descPresent | descLongMode | descGranularity
}

// newTSSDescriptor encodes the two-slot system descriptor for an available
// 64-bit TSS located at base.
func newTSSDescriptor(base uintptr, limit uint32) (lo, hi uint64) {
	b := uint64(base)
	lo = uint64(limit&0xffff) |
		(b&0xffffff)<<16 |
		descTypeTSSAvailable |
		descPresent |
		uint64(limit>>16&0xf)<<48 |
		(b>>24&0xff)<<56
	hi = b >> 32
	return lo, hi
}

// setIST stores the stack top for the 1-based interrupt stack table slot idx.
func (t *taskStateSegment) setIST(idx int, top uintptr) *kernel.Error {
	if idx < 1 || idx > 7 {
		return errISTIndex
	}

	t[7+idx*2] = uint32(top)
	t[7+idx*2+1] = uint32(uint64(top) >> 32)
	return nil
}

// ist returns the stack top stored in the 1-based interrupt stack table slot
// idx.
func (t *taskStateSegment) ist(idx int) uintptr {
	return uintptr(uint64(t[7+idx*2]) | uint64(t[7+idx*2+1])<<32)
}

// setIOMapBase sets the offset of the I/O permission bitmap. An offset equal
// to the TSS size means that no bitmap is present.
func (t *taskStateSegment) setIOMapBase(offset uint16) {
	t[tssIOMapBaseDword] = uint32(offset) << 16
}

// loadGDT loads the GDT register from the 10-byte descriptor at gdtrAddr.
func loadGDT(gdtrAddr uintptr)

// reloadSegments loads CS with code via a far return and the data segment
// registers with data.
func reloadSegments(code, data uint16)

// loadTaskRegister loads the task register with the TSS selector sel.
func loadTaskRegister(sel uint16)
