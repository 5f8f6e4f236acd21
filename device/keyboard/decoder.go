package keyboard

import "beeos/kernel"

// KeyState describes a key transition.
type KeyState uint8

const (
	// Down is reported when a key is pressed or repeated.
	Down KeyState = iota

	// Up is reported when a key is released.
	Up
)

// KeyEvent is a single key transition decoded from raw scancodes.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}

const (
	extendedPrefix = 0xe0
	pausePrefix    = 0xe1
	releaseBit     = 0x80

	// The controller wraps some extended keys with these shift codes to
	// emulate an XT keyboard.
	fakeShiftLeft  = 0x2a
	fakeShiftRight = 0x36
)

type decodeState uint8

const (
	stateStart decodeState = iota
	stateExtended
	statePause
	statePauseSecond
)

var (
	errUnknownScancode = &kernel.Error{Module: "keyboard", Message: "unknown scancode"}
	errBadPauseCode    = &kernel.Error{Module: "keyboard", Message: "malformed pause sequence"}
)

// Decoder turns scancode set 1 bytes into key events. It keeps the partial
// state of multi-byte sequences between calls.
type Decoder struct {
	state      decodeState
	pauseFirst uint8
}

// AddByte feeds the next scancode byte to the decoder. It returns a key
// event and true once a complete sequence has been received. Unknown
// scancodes return an error and reset the decoder.
func (d *Decoder) AddByte(b uint8) (KeyEvent, bool, *kernel.Error) {
	switch d.state {
	case stateExtended:
		d.state = stateStart
		if code := b &^ releaseBit; code == fakeShiftLeft || code == fakeShiftRight {
			return KeyEvent{}, false, nil
		}
		return eventFrom(&set1ExtendedKeys, b)
	case statePause:
		d.pauseFirst = b
		d.state = statePauseSecond
		return KeyEvent{}, false, nil
	case statePauseSecond:
		d.state = stateStart
		switch {
		case d.pauseFirst == 0x1d && b == 0x45:
			return KeyEvent{Code: PauseBreak, State: Down}, true, nil
		case d.pauseFirst == 0x9d && b == 0xc5:
			return KeyEvent{Code: PauseBreak, State: Up}, true, nil
		}
		return KeyEvent{}, false, errBadPauseCode
	}

	switch b {
	case extendedPrefix:
		d.state = stateExtended
		return KeyEvent{}, false, nil
	case pausePrefix:
		d.state = statePause
		return KeyEvent{}, false, nil
	}
	return eventFrom(&set1Keys, b)
}

func eventFrom(table *[0x80]KeyCode, b uint8) (KeyEvent, bool, *kernel.Error) {
	code := table[b&^releaseBit]
	if code == KeyNone {
		return KeyEvent{}, false, errUnknownScancode
	}

	state := Down
	if b&releaseBit != 0 {
		state = Up
	}
	return KeyEvent{Code: code, State: state}, true, nil
}
