package keyboard

// us104Pairs holds the unshifted and shifted characters of the keys whose
// output depends only on the shift state.
var us104Pairs = [keyCodeCount][2]rune{
	BackTick:           {'`', '~'},
	Key1:               {'1', '!'},
	Key2:               {'2', '@'},
	Key3:               {'3', '#'},
	Key4:               {'4', '$'},
	Key5:               {'5', '%'},
	Key6:               {'6', '^'},
	Key7:               {'7', '&'},
	Key8:               {'8', '*'},
	Key9:               {'9', '('},
	Key0:               {'0', ')'},
	Minus:              {'-', '_'},
	Equals:             {'=', '+'},
	BracketSquareLeft:  {'[', '{'},
	BracketSquareRight: {']', '}'},
	BackSlash:          {'\\', '|'},
	SemiColon:          {';', ':'},
	Quote:              {'\'', '"'},
	Comma:              {',', '<'},
	Fullstop:           {'.', '>'},
	Slash:              {'/', '?'},
}

var us104Letters = [keyCodeCount]rune{
	Q: 'q', W: 'w', E: 'e', R: 'r', T: 't', Y: 'y', U: 'u', I: 'i', O: 'o', P: 'p',
	A: 'a', S: 's', D: 'd', F: 'f', G: 'g', H: 'h', J: 'j', K: 'k', L: 'l',
	Z: 'z', X: 'x', C: 'c', V: 'v', B: 'b', N: 'n', M: 'm',
}

// us104NumLock holds the characters produced by the numeric keypad while
// num lock is on.
var us104NumLock = [keyCodeCount]rune{
	Numpad0: '0', Numpad1: '1', Numpad2: '2', Numpad3: '3', Numpad4: '4',
	Numpad5: '5', Numpad6: '6', Numpad7: '7', Numpad8: '8', Numpad9: '9',
	NumpadPeriod: '.',
}

// mapUS104 maps a key press to a character using the US 104-key layout.
func mapUS104(code KeyCode, m *Modifiers) DecodedKey {
	key := DecodedKey{Code: code}
	if code >= keyCodeCount {
		return key
	}

	switch {
	case us104Letters[code] != 0:
		key.Rune = us104Letters[code]
		if m.IsCaps() {
			key.Rune -= 'a' - 'A'
		}
	case us104Pairs[code][0] != 0:
		if m.IsShifted() {
			key.Rune = us104Pairs[code][1]
		} else {
			key.Rune = us104Pairs[code][0]
		}
	case us104NumLock[code] != 0:
		if m.NumLock {
			key.Rune = us104NumLock[code]
		} else if code == NumpadPeriod {
			key.Rune = 0x7f
		}
	default:
		switch code {
		case Spacebar:
			key.Rune = ' '
		case Enter, NumpadEnter:
			key.Rune = '\n'
		case Tab:
			key.Rune = '\t'
		case Backspace:
			key.Rune = '\b'
		case Escape:
			key.Rune = 0x1b
		case Delete:
			key.Rune = 0x7f
		case NumpadSlash:
			key.Rune = '/'
		case NumpadStar:
			key.Rune = '*'
		case NumpadMinus:
			key.Rune = '-'
		case NumpadPlus:
			key.Rune = '+'
		}
	}

	return key
}
