package gate

import (
	"beeos/kernel"
	"beeos/kernel/gdt"
	"beeos/kernel/kfmt"
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"unsafe"
)

func mockEntryAddr(num uint8) uintptr {
	return 0xffff800000100000 + uintptr(num)*16
}

func resetGateState() {
	table = [256]gateDescriptor{}
	handlers = [256]func(*Registers){}
	loaded = false
	loadIDTFn = loadIDT
	entryAddrFn = gateEntryAddr
	panicFn = kfmt.Panic
}

func TestNewInterruptGate(t *testing.T) {
	specs := []struct {
		entry    uintptr
		selector uint16
		ist      uint8
		exp      gateDescriptor
	}{
		{0x0000000000102030, 0x08, 0, gateDescriptor{0x00108e0000082030, 0}},
		{0xffff800012345678, 0x08, 1, gateDescriptor{0x12348e0100085678, 0xffff8000}},
	}

	for specIndex, spec := range specs {
		if got := newInterruptGate(spec.entry, spec.selector, spec.ist); got != spec.exp {
			t.Errorf("[spec %d] expected gate {0x%x, 0x%x}; got {0x%x, 0x%x}", specIndex, spec.exp[0], spec.exp[1], got[0], got[1])
		}
	}
}

func TestHandleInterrupt(t *testing.T) {
	defer resetGateState()
	resetGateState()
	entryAddrFn = mockEntryAddr

	handler := func(_ *Registers) {}

	if err := HandleInterrupt(DoubleFault, gdt.DoubleFaultISTIndex, handler); err != nil {
		t.Fatal(err)
	}

	exp := newInterruptGate(mockEntryAddr(uint8(DoubleFault)), gdt.CodeSelector, gdt.DoubleFaultISTIndex)
	if got := table[DoubleFault]; got != exp {
		t.Fatalf("expected gate {0x%x, 0x%x}; got {0x%x, 0x%x}", exp[0], exp[1], got[0], got[1])
	}

	specs := []struct {
		num     InterruptNumber
		ist     uint8
		handler func(*Registers)
		expErr  *kernel.Error
	}{
		{DoubleFault, 0, handler, errBound},
		{Breakpoint, 0, nil, errNilHandler},
		{GPFException, 8, handler, errISTIndex},
	}

	for specIndex, spec := range specs {
		if err := HandleInterrupt(spec.num, spec.ist, spec.handler); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}

	if table[Breakpoint] != (gateDescriptor{}) || table[GPFException] != (gateDescriptor{}) {
		t.Fatal("expected rejected bindings to leave the table untouched")
	}
}

func TestLoad(t *testing.T) {
	defer resetGateState()
	resetGateState()
	entryAddrFn = mockEntryAddr

	var (
		loadCount int
		idtLimit  uint16
		idtBase   uint64
	)
	loadIDTFn = func(idtrAddr uintptr) {
		loadCount++
		idtr := (*[10]byte)(unsafe.Pointer(idtrAddr))
		idtLimit = binary.LittleEndian.Uint16(idtr[:2])
		idtBase = binary.LittleEndian.Uint64(idtr[2:])
	}

	if err := HandleInterrupt(Breakpoint, 0, func(_ *Registers) {}); err != nil {
		t.Fatal(err)
	}

	Load()
	Load()

	if loadCount != 1 {
		t.Fatalf("expected the IDT to be loaded once; got %d", loadCount)
	}
	if idtLimit != 256*16-1 {
		t.Errorf("expected IDT limit %d; got %d", 256*16-1, idtLimit)
	}
	if exp := uint64(uintptr(unsafe.Pointer(&table[0]))); idtBase != exp {
		t.Errorf("expected IDT base 0x%x; got 0x%x", exp, idtBase)
	}

	for num := 0; num < 256; num++ {
		exp := newInterruptGate(mockEntryAddr(uint8(num)), gdt.CodeSelector, 0)
		if got := table[num]; got != exp {
			t.Errorf("expected vector %d to have a present gate to its entrypoint; got {0x%x, 0x%x}", num, got[0], got[1])
		}
	}

	if err := HandleInterrupt(GPFException, 0, func(_ *Registers) {}); err != errTableLoaded {
		t.Fatalf("expected binding after Load to fail with errTableLoaded; got %v", err)
	}
}

func TestGateEntryAddr(t *testing.T) {
	seen := make(map[uintptr]bool)
	for num := 0; num < 256; num++ {
		addr := gateEntryAddr(uint8(num))
		if addr == 0 {
			t.Fatalf("expected vector %d to have an entrypoint", num)
		}
		if seen[addr] {
			t.Fatalf("expected vector %d to have a unique entrypoint", num)
		}
		seen[addr] = true
	}
}

func TestDispatchInterrupt(t *testing.T) {
	defer func() {
		resetGateState()
		kfmt.SetOutputSink(nil)
	}()
	resetGateState()
	entryAddrFn = mockEntryAddr

	var got *Registers
	if err := HandleInterrupt(33, 0, func(regs *Registers) { got = regs }); err != nil {
		t.Fatal(err)
	}

	regs := &Registers{Vector: 33}
	dispatchInterrupt(regs)
	if got != regs {
		t.Fatal("expected the bound handler to receive the register frame")
	}

	t.Run("unbound vector is fatal", func(t *testing.T) {
		var buf bytes.Buffer
		kfmt.SetOutputSink(&buf)

		var panicErr interface{}
		panicFn = func(e interface{}) { panicErr = e }

		dispatchInterrupt(&Registers{Vector: 200, RIP: 0xbadf00d})

		if panicErr != errUnhandled {
			t.Fatalf("expected Panic to be called with errUnhandled; got %v", panicErr)
		}

		out := buf.String()
		for _, exp := range []string{"unhandled interrupt vector 200", "RIP = 000000000badf00d"} {
			if !strings.Contains(out, exp) {
				t.Errorf("expected output to contain %q; got:\n%s", exp, out)
			}
		}
	})
}

func TestRegistersDumpTo(t *testing.T) {
	regs := Registers{
		RAX: 1, RBX: 2, RCX: 3, RDX: 4,
		RSI: 5, RDI: 6, RBP: 7,
		R8: 8, R9: 9, R10: 10, R11: 11, R12: 12, R13: 13, R14: 14, R15: 15,
		Vector: 3, Info: 0,
		RIP: 16, CS: 17, RFlags: 18, RSP: 19, SS: 20,
	}

	exp := "RAX = 0000000000000001 RBX = 0000000000000002\n" +
		"RCX = 0000000000000003 RDX = 0000000000000004\n" +
		"RSI = 0000000000000005 RDI = 0000000000000006\n" +
		"RBP = 0000000000000007\n" +
		"R8  = 0000000000000008 R9  = 0000000000000009\n" +
		"R10 = 000000000000000a R11 = 000000000000000b\n" +
		"R12 = 000000000000000c R13 = 000000000000000d\n" +
		"R14 = 000000000000000e R15 = 000000000000000f\n\n" +
		"RIP = 0000000000000010 CS  = 0000000000000011\n" +
		"RSP = 0000000000000013 SS  = 0000000000000014\n" +
		"RFL = 0000000000000012 VEC = 0000000000000003\n"

	var buf bytes.Buffer
	regs.DumpTo(&buf)

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}

func TestRegistersLayout(t *testing.T) {
	var regs Registers
	specs := []struct {
		name   string
		offset uintptr
		exp    uintptr
	}{
		{"R15", unsafe.Offsetof(regs.R15), 14 * 8},
		{"Vector", unsafe.Offsetof(regs.Vector), 15 * 8},
		{"Info", unsafe.Offsetof(regs.Info), 16 * 8},
		{"RIP", unsafe.Offsetof(regs.RIP), 17 * 8},
		{"SS", unsafe.Offsetof(regs.SS), 21 * 8},
	}

	for specIndex, spec := range specs {
		if spec.offset != spec.exp {
			t.Errorf("[spec %d] expected %s at offset %d; got %d", specIndex, spec.name, spec.exp, spec.offset)
		}
	}
}
