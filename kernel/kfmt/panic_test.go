package kfmt

import (
	"beeos/kernel"
	"beeos/kernel/cpu"
	"bytes"
	"errors"
	"testing"
)

type recordingPanicSink struct {
	bytes.Buffer
	beginCount int
}

func (s *recordingPanicSink) BeginPanic() {
	s.beginCount++
	s.Reset()
}

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	specs := []struct {
		input     interface{}
		expOutput string
	}{
		{
			&kernel.Error{Module: "test", Message: "panic test"},
			"\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			errors.New("go error"),
			"\n-----------------------------------\n[rt] unrecoverable error: go error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"string error",
			"\n-----------------------------------\n[rt] unrecoverable error: string error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			nil,
			"\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	for specIndex, spec := range specs {
		buf.Reset()
		cpuHaltCalled = false

		Panic(spec.input)

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected to get:\n%q\ngot:\n%q", specIndex, spec.expOutput, got)
		}

		if !cpuHaltCalled {
			t.Errorf("[spec %d] expected cpu.Halt() to be called by Panic", specIndex)
		}
	}
}

func TestPanicWithPanicSink(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
		panicSink = nil
	}()

	haltCount := 0
	cpuHaltFn = func() { haltCount++ }

	var regular bytes.Buffer
	SetOutputSink(&regular)

	sink := new(recordingPanicSink)
	sink.WriteString("stale contents")
	SetPanicSink(sink)

	Panic(&kernel.Error{Module: "gate", Message: "double fault"})

	if sink.beginCount != 1 {
		t.Fatalf("expected BeginPanic to be called once; got %d", sink.beginCount)
	}

	exp := "\n-----------------------------------\n[gate] unrecoverable error: double fault\n*** kernel panic: system halted ***\n-----------------------------------\n"
	if got := sink.String(); got != exp {
		t.Fatalf("expected panic sink to receive:\n%q\ngot:\n%q", exp, got)
	}

	if regular.Len() != 0 {
		t.Fatalf("expected regular output sink to remain untouched; got %q", regular.String())
	}

	if haltCount != 1 {
		t.Fatalf("expected cpu.Halt() to be called once; got %d", haltCount)
	}
}

func TestNestedPanicHalts(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
		panicSink = nil
	}()

	haltCount := 0
	cpuHaltFn = func() { haltCount++ }

	sink := &nestingPanicSink{}
	SetPanicSink(sink)

	Panic("outer")

	if haltCount != 2 {
		t.Fatalf("expected cpu.Halt() to be called by both the nested and the outer Panic; got %d", haltCount)
	}

	if sink.nestedBegin {
		t.Fatal("expected nested Panic to skip BeginPanic")
	}
}

type nestingPanicSink struct {
	bytes.Buffer
	began       bool
	nestedBegin bool
}

func (s *nestingPanicSink) BeginPanic() {
	if s.began {
		s.nestedBegin = true
		return
	}
	s.began = true
	Panic("inner")
}
