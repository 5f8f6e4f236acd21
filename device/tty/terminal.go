package tty

import (
	"beeos/device"
	"beeos/device/video/console"
	"beeos/kernel"
	"image"
	"io"
	"unicode/utf8"
)

// Terminal renders a byte stream on an attached console. The stream is
// decoded as UTF-8 and the following special characters are interpreted:
//   - \r (carriage-return)
//   - \n (line-feed)
//   - \b (backspace; erases the previous character)
//   - \t (tab; expanded to the next tab stop)
type Terminal struct {
	cons     console.Device
	tabWidth int

	// A partially received UTF-8 sequence.
	pending    [utf8.UTFMax]byte
	pendingLen int
}

// NewTerminal creates a new terminal whose tab stops are placed every
// tabWidth columns.
func NewTerminal(tabWidth int) *Terminal {
	if tabWidth < 1 {
		tabWidth = 1
	}

	return &Terminal{tabWidth: tabWidth}
}

// AttachTo connects the terminal to a console instance.
func (t *Terminal) AttachTo(cons console.Device) {
	if cons == nil {
		return
	}

	t.cons = cons
	t.pendingLen = 0
}

// Write implements io.Writer.
func (t *Terminal) Write(data []byte) (int, error) {
	for count, b := range data {
		if err := t.WriteByte(b); err != nil {
			return count, err
		}
	}

	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *Terminal) WriteByte(b byte) error {
	if t.cons == nil {
		return io.ErrClosedPipe
	}

	if t.pendingLen != 0 {
		// A byte that cannot continue the pending sequence terminates it.
		if b&0xc0 != 0x80 {
			t.pendingLen = 0
			t.cons.WriteRune(utf8.RuneError)
		} else {
			t.pending[t.pendingLen] = b
			t.pendingLen++
			if utf8.FullRune(t.pending[:t.pendingLen]) {
				r, _ := utf8.DecodeRune(t.pending[:t.pendingLen])
				t.pendingLen = 0
				t.cons.WriteRune(r)
			}
			return nil
		}
	}

	if b >= utf8.RuneSelf {
		if !utf8.RuneStart(b) {
			t.cons.WriteRune(utf8.RuneError)
			return nil
		}

		t.pending[0] = b
		t.pendingLen = 1
		return nil
	}

	switch b {
	case '\r':
		t.cons.MoveCursor(image.Pt(0, t.cons.CursorPosition().Y))
	case '\n':
		t.cons.CursorNewLine()
	case '\b':
		if pos := t.cons.CursorPosition(); pos.X > 0 {
			pos.X--
			t.cons.MoveCursor(pos)
			t.cons.ClearCell(pos)
		}
	case '\t':
		for {
			t.cons.WriteRune(' ')
			if t.cons.CursorPosition().X%t.tabWidth == 0 {
				break
			}
		}
	default:
		t.cons.WriteRune(rune(b))
	}

	return nil
}

// DriverName returns the name of this driver.
func (t *Terminal) DriverName() string {
	return "tty"
}

// DriverVersion returns the version of this driver.
func (t *Terminal) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit initializes this driver.
func (t *Terminal) DriverInit(_ io.Writer) *kernel.Error { return nil }

func probeForTerminal() device.Driver {
	return NewTerminal(DefaultTabWidth)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderLast,
		Probe: probeForTerminal,
	})
}
