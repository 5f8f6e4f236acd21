package kmain

import (
	"beeos/device/video/console"
	"beeos/device/video/console/font"
	"beeos/kernel"
	"beeos/kernel/hal"
	"beeos/kernel/irq"
	"beeos/kernel/kfmt"
	"bytes"
	"reflect"
	"strings"
	"testing"
)

type stopIdleLoop struct{}

// mockBoot replaces the bring-up steps with functions that record their
// invocation order. The returned buffer collects the kernel output.
func mockBoot(t *testing.T, cmdLine map[string]string) (*[]string, *bytes.Buffer) {
	var (
		calls []string
		buf   bytes.Buffer
	)

	origSetInfoPtr, origDetectHardware, origCmdLine := setInfoPtrFn, detectHardwareFn, bootCmdLineValueFn
	origGDTInit, origInitVectors, origInitController := gdtInitFn, initVectorsFn, initControllerFn
	origEnable, origEnabled, origBreakpoint := enableInterruptsFn, interruptsEnabledFn, breakpointFn
	origPortWrite, origWait, origPanic := portWriteDwordFn, waitForInterruptFn, panicFn
	origLoaderName, origWithConsole, origActiveSerial := bootLoaderNameFn, withConsoleFn, activeSerialFn

	t.Cleanup(func() {
		setInfoPtrFn, detectHardwareFn, bootCmdLineValueFn = origSetInfoPtr, origDetectHardware, origCmdLine
		gdtInitFn, initVectorsFn, initControllerFn = origGDTInit, origInitVectors, origInitController
		enableInterruptsFn, interruptsEnabledFn, breakpointFn = origEnable, origEnabled, origBreakpoint
		portWriteDwordFn, waitForInterruptFn, panicFn = origPortWrite, origWait, origPanic
		bootLoaderNameFn, withConsoleFn, activeSerialFn = origLoaderName, origWithConsole, origActiveSerial
		irq.FatalGPF = false
		kfmt.SetOutputSink(nil)
	})

	kfmt.SetOutputSink(&buf)
	buf.Reset()

	record := func(name string) func() {
		return func() { calls = append(calls, name) }
	}

	setInfoPtrFn = func(uintptr) { calls = append(calls, "multiboot") }
	detectHardwareFn = record("hal")
	bootCmdLineValueFn = func(key string) (string, bool) {
		val, ok := cmdLine[key]
		return val, ok
	}
	bootLoaderNameFn = func() string { return "" }
	withConsoleFn = func(func(console.Device)) bool { return false }
	activeSerialFn = func() hal.SerialPort { return nil }
	gdtInitFn = record("gdt")
	initVectorsFn = func() *kernel.Error {
		calls = append(calls, "vectors")
		return nil
	}
	initControllerFn = record("pic")
	enableInterruptsFn = record("sti")
	interruptsEnabledFn = func() bool { return true }
	breakpointFn = record("int3")
	portWriteDwordFn = func(port uint16, val uint32) {
		if port != qemuExitPort {
			t.Errorf("unexpected write to port 0x%x", port)
		}
		calls = append(calls, map[uint32]string{exitSuccess: "exit-success", exitFailure: "exit-failure"}[val])
	}
	waitForInterruptFn = func() {
		calls = append(calls, "hlt")
		panic(stopIdleLoop{})
	}
	panicFn = func(e interface{}) {
		calls = append(calls, "panic:"+e.(*kernel.Error).Message)
	}

	return &calls, &buf
}

// runKmain invokes Kmain and returns once it enters the idle loop.
func runKmain() {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stopIdleLoop); !ok {
				panic(r)
			}
		}
	}()

	Kmain(0xbadf00d, 0, 0)
}

func TestKmain(t *testing.T) {
	specs := []struct {
		cmdLine  map[string]string
		expCalls []string
	}{
		{
			nil,
			[]string{"multiboot", "hal", "gdt", "vectors", "pic", "sti", "hlt"},
		},
		{
			map[string]string{"selftest": "on"},
			[]string{"multiboot", "hal", "gdt", "vectors", "pic", "sti", "int3", "exit-success", "hlt"},
		},
		{
			map[string]string{"selftest": "off"},
			[]string{"multiboot", "hal", "gdt", "vectors", "pic", "sti", "hlt"},
		},
	}

	for specIndex, spec := range specs {
		calls, _ := mockBoot(t, spec.cmdLine)
		runKmain()

		if !reflect.DeepEqual(*calls, spec.expCalls) {
			t.Errorf("[spec %d] expected call sequence %v; got %v", specIndex, spec.expCalls, *calls)
		}
	}
}

func TestKmainBootLog(t *testing.T) {
	_, buf := mockBoot(t, nil)
	runKmain()

	exp := "[boot] loading GDT and TSS\n" +
		"[boot] loading interrupt vectors\n" +
		"[boot] initializing interrupt controllers\n" +
		"[boot] enabling interrupts\n" +
		"[boot] ready\n"

	if got := buf.String(); got != exp {
		t.Fatalf("expected boot log:\n%s\ngot:\n%s", exp, got)
	}
}

type fakeSerial struct {
	dropped uint64
}

func (s *fakeSerial) Write(p []byte) (int, error) { return len(p), nil }
func (s *fakeSerial) WriteByte(byte) error        { return nil }
func (s *fakeSerial) Dropped() uint64             { return s.dropped }

func TestKmainBootLogDevices(t *testing.T) {
	info := console.FramebufferInfo{Width: 80 * 7, Height: 25 * 13, Pitch: 80 * 7, BytesPerPixel: 1, Format: console.PixelFormatU8}
	surface, err := console.NewSurface(make([]byte, info.Pitch*info.Height), info)
	if err != nil {
		t.Fatal(err)
	}
	cons, err := console.NewTextConsole(surface, font.Basic7x13, console.DefaultClearColor, console.DefaultTextColor)
	if err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		loaderName string
		dropped    uint64
		expLog     string
	}{
		{
			"GRUB 2.06",
			0,
			"[boot] loaded by GRUB 2.06\n" +
				"[boot] console: 80x25 characters\n" +
				"[boot] loading GDT and TSS\n" +
				"[boot] loading interrupt vectors\n" +
				"[boot] initializing interrupt controllers\n" +
				"[boot] enabling interrupts\n" +
				"[boot] ready\n",
		},
		{
			"",
			12,
			"[boot] console: 80x25 characters\n" +
				"[boot] loading GDT and TSS\n" +
				"[boot] loading interrupt vectors\n" +
				"[boot] initializing interrupt controllers\n" +
				"[boot] enabling interrupts\n" +
				"[boot] ready\n" +
				"[boot] serial: 12 bytes dropped\n",
		},
	}

	for specIndex, spec := range specs {
		_, buf := mockBoot(t, nil)

		loaderName := spec.loaderName
		bootLoaderNameFn = func() string { return loaderName }
		withConsoleFn = func(fn func(console.Device)) bool {
			fn(cons)
			return true
		}
		serial := &fakeSerial{dropped: spec.dropped}
		activeSerialFn = func() hal.SerialPort { return serial }

		runKmain()

		if got := buf.String(); got != spec.expLog {
			t.Errorf("[spec %d] expected boot log:\n%s\ngot:\n%s", specIndex, spec.expLog, got)
		}
	}
}

func TestKmainVectorError(t *testing.T) {
	calls, _ := mockBoot(t, map[string]string{"selftest": "on"})

	expErr := &kernel.Error{Module: "test", Message: "vector already bound"}
	initVectorsFn = func() *kernel.Error { return expErr }

	runKmain()

	exp := []string{"multiboot", "hal", "gdt", "panic:vector already bound"}
	if !reflect.DeepEqual(*calls, exp) {
		t.Fatalf("expected call sequence %v; got %v", exp, *calls)
	}
}

func TestKmainGPFPolicy(t *testing.T) {
	specs := []struct {
		cmdLine  map[string]string
		expFatal bool
	}{
		{nil, false},
		{map[string]string{"gpf": "log"}, false},
		{map[string]string{"gpf": "fatal"}, true},
	}

	for specIndex, spec := range specs {
		mockBoot(t, spec.cmdLine)
		irq.FatalGPF = false
		runKmain()

		if irq.FatalGPF != spec.expFatal {
			t.Errorf("[spec %d] expected FatalGPF to be %t", specIndex, spec.expFatal)
		}
	}
}

func TestSelfTestFailure(t *testing.T) {
	calls, buf := mockBoot(t, map[string]string{"selftest": "on"})
	interruptsEnabledFn = func() bool { return false }

	runKmain()

	exp := []string{"multiboot", "hal", "gdt", "vectors", "pic", "sti", "int3", "exit-failure", "hlt"}
	if !reflect.DeepEqual(*calls, exp) {
		t.Fatalf("expected call sequence %v; got %v", exp, *calls)
	}

	if !strings.Contains(buf.String(), "[selftest] FAILED: interrupts disabled after trap\n") {
		t.Fatalf("expected self-test failure to be logged; got:\n%s", buf.String())
	}
}
