// Package keyboard decodes PS/2 scancode set 1 into key events and maps them
// to characters using the US 104-key layout.
package keyboard

// DecodedKey is the result of processing a key press. Keys that map to a
// character have a non-zero Rune; all other keys are reported by Code only.
type DecodedKey struct {
	Rune rune
	Code KeyCode
}

// IsRune returns true if the key produced a character.
func (k DecodedKey) IsRune() bool {
	return k.Rune != 0
}

// Modifiers tracks the state of the modifier and lock keys.
type Modifiers struct {
	ShiftLeft, ShiftRight     bool
	ControlLeft, ControlRight bool
	Alt, AltGr                bool
	CapsLock, NumLock         bool
}

// IsShifted returns true if either shift key is held.
func (m *Modifiers) IsShifted() bool {
	return m.ShiftLeft || m.ShiftRight
}

// IsCaps returns true if letters should be upper case.
func (m *Modifiers) IsCaps() bool {
	return m.IsShifted() != m.CapsLock
}

// Keyboard combines a scancode decoder with modifier tracking and the US
// 104-key layout. Control key combinations are not translated into control
// characters.
type Keyboard struct {
	decoder   Decoder
	modifiers Modifiers
}

// New returns a Keyboard with num lock enabled.
func New() *Keyboard {
	return &Keyboard{modifiers: Modifiers{NumLock: true}}
}

// Modifiers returns the current modifier state.
func (kb *Keyboard) Modifiers() Modifiers {
	return kb.modifiers
}

// AddByte feeds a raw scancode byte to the keyboard and returns the decoded
// key, if any. Malformed input is dropped.
func (kb *Keyboard) AddByte(b uint8) (DecodedKey, bool) {
	ev, ok, err := kb.decoder.AddByte(b)
	if err != nil || !ok {
		return DecodedKey{}, false
	}
	return kb.ProcessKeyEvent(ev)
}

// ProcessKeyEvent updates the modifier state and maps key presses to decoded
// keys. Releases never produce a decoded key.
func (kb *Keyboard) ProcessKeyEvent(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == Down

	switch ev.Code {
	case ShiftLeft:
		kb.modifiers.ShiftLeft = down
	case ShiftRight:
		kb.modifiers.ShiftRight = down
	case ControlLeft:
		kb.modifiers.ControlLeft = down
	case ControlRight:
		kb.modifiers.ControlRight = down
	case AltLeft:
		kb.modifiers.Alt = down
	case AltRight:
		kb.modifiers.AltGr = down
	case CapsLock:
		if down {
			kb.modifiers.CapsLock = !kb.modifiers.CapsLock
		}
	case NumpadLock:
		if down {
			kb.modifiers.NumLock = !kb.modifiers.NumLock
		}
	default:
		if !down {
			return DecodedKey{}, false
		}
		return mapUS104(ev.Code, &kb.modifiers), true
	}

	if !down {
		return DecodedKey{}, false
	}
	return DecodedKey{Code: ev.Code}, true
}
