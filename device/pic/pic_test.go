package pic

import (
	"beeos/device/pic/pictest"
	"beeos/kernel/sync"
	"testing"
)

func newTestChained(t *testing.T) (*Chained, *pictest.Emulator) {
	_, restore := sync.EmulateInterruptFlag(false)
	t.Cleanup(restore)

	emu := pictest.New()
	return New(emu, PrimaryOffset, SecondaryOffset), emu
}

func TestInit(t *testing.T) {
	p, emu := newTestChained(t)

	emu.Primary.IMR = 0xb8
	emu.Secondary.IMR = 0x8e

	p.Init()

	if emu.Primary.InitCount != 1 || emu.Secondary.InitCount != 1 {
		t.Fatalf("expected one complete init sequence per controller; got %d and %d", emu.Primary.InitCount, emu.Secondary.InitCount)
	}

	if emu.Primary.Offset != 32 || emu.Secondary.Offset != 40 {
		t.Fatalf("expected offsets 32/40; got %d/%d", emu.Primary.Offset, emu.Secondary.Offset)
	}

	if emu.Primary.Cascade != 4 || emu.Secondary.Cascade != 2 {
		t.Fatalf("expected cascade 4/2; got %d/%d", emu.Primary.Cascade, emu.Secondary.Cascade)
	}

	if emu.Primary.Mode != mode8086 || emu.Secondary.Mode != mode8086 {
		t.Fatalf("expected 8086 mode; got 0x%x/0x%x", emu.Primary.Mode, emu.Secondary.Mode)
	}

	if emu.Primary.IMR != 0xb8 || emu.Secondary.IMR != 0x8e {
		t.Fatalf("expected masks to be restored to 0xb8/0x8e; got 0x%x/0x%x", emu.Primary.IMR, emu.Secondary.IMR)
	}

	// Every command word is followed by an I/O delay.
	if got, exp := len(emu.Writes(pictest.IOWaitPort)), 8; got != exp {
		t.Fatalf("expected %d I/O wait writes; got %d", exp, got)
	}
	for i, access := range emu.Log {
		if access.Write && access.Port == pictest.PrimaryCommandPort {
			if next := emu.Log[i+1]; next.Port != pictest.IOWaitPort {
				t.Fatalf("expected I/O wait after ICW1; got access to port 0x%x", next.Port)
			}
		}
	}
}

func TestMasks(t *testing.T) {
	p, emu := newTestChained(t)

	p.WriteMasks(0xfc, 0xff)
	if emu.Primary.IMR != 0xfc || emu.Secondary.IMR != 0xff {
		t.Fatalf("expected masks 0xfc/0xff; got 0x%x/0x%x", emu.Primary.IMR, emu.Secondary.IMR)
	}

	if m1, m2 := p.ReadMasks(); m1 != 0xfc || m2 != 0xff {
		t.Fatalf("expected ReadMasks to return 0xfc/0xff; got 0x%x/0x%x", m1, m2)
	}
}

func TestMaskFor(t *testing.T) {
	specs := []struct {
		lines        []uint8
		expPrimary   uint8
		expSecondary uint8
	}{
		{nil, 0xff, 0xff},
		{[]uint8{0, 1}, 0xfc, 0xff},
		{[]uint8{1, 12}, 0xf9, 0xef},
		{[]uint8{8}, 0xfb, 0xfe},
		{[]uint8{16, 200}, 0xff, 0xff},
	}

	for specIndex, spec := range specs {
		m1, m2 := MaskFor(spec.lines...)
		if m1 != spec.expPrimary || m2 != spec.expSecondary {
			t.Errorf("[spec %d] expected masks 0x%x/0x%x; got 0x%x/0x%x", specIndex, spec.expPrimary, spec.expSecondary, m1, m2)
		}
	}
}

func TestHandlesInterrupt(t *testing.T) {
	p, _ := newTestChained(t)

	specs := []struct {
		vector uint8
		exp    bool
	}{
		{0, false},
		{31, false},
		{32, true},
		{39, true},
		{40, true},
		{47, true},
		{48, false},
		{255, false},
	}

	for specIndex, spec := range specs {
		if got := p.HandlesInterrupt(spec.vector); got != spec.exp {
			t.Errorf("[spec %d] expected HandlesInterrupt(%d) to return %t", specIndex, spec.vector, spec.exp)
		}
	}

	if o1, o2 := p.Offsets(); o1 != 32 || o2 != 40 {
		t.Fatalf("expected offsets 32/40; got %d/%d", o1, o2)
	}
}

func TestNotifyEndOfInterrupt(t *testing.T) {
	specs := []struct {
		irq              uint8
		expPrimaryEOIs   int
		expSecondaryEOIs int
	}{
		{0, 1, 0},
		{1, 1, 0},
		{12, 1, 1},
	}

	for specIndex, spec := range specs {
		p, emu := newTestChained(t)
		p.Init()
		p.WriteMasks(MaskFor(spec.irq))

		vector, delivered := emu.Raise(spec.irq)
		if !delivered {
			t.Fatalf("[spec %d] expected IRQ %d to be delivered", specIndex, spec.irq)
		}

		p.NotifyEndOfInterrupt(vector)

		if emu.Primary.EOICount != spec.expPrimaryEOIs || emu.Secondary.EOICount != spec.expSecondaryEOIs {
			t.Errorf("[spec %d] expected %d/%d EOIs; got %d/%d", specIndex, spec.expPrimaryEOIs, spec.expSecondaryEOIs, emu.Primary.EOICount, emu.Secondary.EOICount)
		}

		if emu.Primary.ISR != 0 || emu.Secondary.ISR != 0 {
			t.Errorf("[spec %d] expected in-service registers to be clear; got 0x%x/0x%x", specIndex, emu.Primary.ISR, emu.Secondary.ISR)
		}
	}

	t.Run("vector not owned by the controllers", func(t *testing.T) {
		p, emu := newTestChained(t)
		p.NotifyEndOfInterrupt(3)
		if len(emu.Log) != 0 {
			t.Fatalf("expected no port access; got %v", emu.Log)
		}
	})
}

func TestMaskedLineIsNotDelivered(t *testing.T) {
	p, emu := newTestChained(t)
	p.Init()
	p.WriteMasks(0xfc, 0xff)

	for _, irq := range []uint8{2, 4, 8, 15} {
		if _, delivered := emu.Raise(irq); delivered {
			t.Errorf("expected masked IRQ %d not to be delivered", irq)
		}
	}

	if vector, delivered := emu.Raise(1); !delivered || vector != 33 {
		t.Fatalf("expected IRQ 1 to be delivered as vector 33; got %d (%t)", vector, delivered)
	}
}
