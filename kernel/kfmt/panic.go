package kfmt

import (
	"beeos/kernel"
	"beeos/kernel/cpu"
	"io"
)

// PanicSink is an io.Writer that receives the output of Panic. BeginPanic is
// invoked once before anything is written to the sink.
type PanicSink interface {
	io.Writer
	BeginPanic()
}

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	// panicSink, if set, replaces the output sink for Panic messages.
	panicSink PanicSink

	// panicking is set while a Panic call is rendering its message. A
	// nested Panic skips straight to halting the CPU.
	panicking bool

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// SetPanicSink registers s as the destination for Panic output. Passing nil
// reverts to the active output sink.
func SetPanicSink(s PanicSink) {
	panicSink = s
}

// Panic outputs the supplied error (if not nil) and halts the CPU. Calls to
// Panic never return.
func Panic(e interface{}) {
	if panicking {
		cpuHaltFn()
		return
	}
	panicking = true
	defer func() { panicking = false }()

	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	w := outputSink
	if panicSink != nil {
		panicSink.BeginPanic()
		w = panicSink
	}

	Fprintf(w, "\n-----------------------------------\n")
	if err != nil {
		Fprintf(w, "[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Fprintf(w, "*** kernel panic: system halted ***")
	Fprintf(w, "\n-----------------------------------\n")

	cpuHaltFn()
}
