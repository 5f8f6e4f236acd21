package keyboard

// KeyCode identifies a physical key independently of the active layout.
type KeyCode uint8

// The set of keys found on a US 104-key keyboard.
const (
	KeyNone KeyCode = iota
	Escape
	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	PrintScreen
	ScrollLock
	PauseBreak
	BackTick
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	Minus
	Equals
	Backspace
	Tab
	Q
	W
	E
	R
	T
	Y
	U
	I
	O
	P
	BracketSquareLeft
	BracketSquareRight
	BackSlash
	CapsLock
	A
	S
	D
	F
	G
	H
	J
	K
	L
	SemiColon
	Quote
	Enter
	ShiftLeft
	Z
	X
	C
	V
	B
	N
	M
	Comma
	Fullstop
	Slash
	ShiftRight
	ControlLeft
	WindowsLeft
	AltLeft
	Spacebar
	AltRight
	WindowsRight
	Menus
	ControlRight
	Insert
	Home
	PageUp
	Delete
	End
	PageDown
	ArrowUp
	ArrowLeft
	ArrowDown
	ArrowRight
	NumpadLock
	NumpadSlash
	NumpadStar
	NumpadMinus
	NumpadPlus
	NumpadEnter
	NumpadPeriod
	Numpad0
	Numpad1
	Numpad2
	Numpad3
	Numpad4
	Numpad5
	Numpad6
	Numpad7
	Numpad8
	Numpad9

	keyCodeCount
)

var keyNames = [keyCodeCount]string{
	"None", "Escape", "F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9",
	"F10", "F11", "F12", "PrintScreen", "ScrollLock", "PauseBreak",
	"BackTick", "Key1", "Key2", "Key3", "Key4", "Key5", "Key6", "Key7",
	"Key8", "Key9", "Key0", "Minus", "Equals", "Backspace", "Tab", "Q", "W",
	"E", "R", "T", "Y", "U", "I", "O", "P", "BracketSquareLeft",
	"BracketSquareRight", "BackSlash", "CapsLock", "A", "S", "D", "F", "G",
	"H", "J", "K", "L", "SemiColon", "Quote", "Enter", "ShiftLeft", "Z", "X",
	"C", "V", "B", "N", "M", "Comma", "Fullstop", "Slash", "ShiftRight",
	"ControlLeft", "WindowsLeft", "AltLeft", "Spacebar", "AltRight",
	"WindowsRight", "Menus", "ControlRight", "Insert", "Home", "PageUp",
	"Delete", "End", "PageDown", "ArrowUp", "ArrowLeft", "ArrowDown",
	"ArrowRight", "NumpadLock", "NumpadSlash", "NumpadStar", "NumpadMinus",
	"NumpadPlus", "NumpadEnter", "NumpadPeriod", "Numpad0", "Numpad1",
	"Numpad2", "Numpad3", "Numpad4", "Numpad5", "Numpad6", "Numpad7",
	"Numpad8", "Numpad9",
}

// String returns the name of the key.
func (k KeyCode) String() string {
	if k >= keyCodeCount {
		return "Unknown"
	}
	return keyNames[k]
}

// set1Keys maps scancode set 1 make codes to keys.
var set1Keys = [0x80]KeyCode{
	0x01: Escape,
	0x02: Key1, 0x03: Key2, 0x04: Key3, 0x05: Key4, 0x06: Key5,
	0x07: Key6, 0x08: Key7, 0x09: Key8, 0x0a: Key9, 0x0b: Key0,
	0x0c: Minus, 0x0d: Equals, 0x0e: Backspace, 0x0f: Tab,
	0x10: Q, 0x11: W, 0x12: E, 0x13: R, 0x14: T, 0x15: Y, 0x16: U,
	0x17: I, 0x18: O, 0x19: P,
	0x1a: BracketSquareLeft, 0x1b: BracketSquareRight, 0x1c: Enter,
	0x1d: ControlLeft,
	0x1e: A, 0x1f: S, 0x20: D, 0x21: F, 0x22: G, 0x23: H, 0x24: J,
	0x25: K, 0x26: L,
	0x27: SemiColon, 0x28: Quote, 0x29: BackTick, 0x2a: ShiftLeft,
	0x2b: BackSlash,
	0x2c: Z, 0x2d: X, 0x2e: C, 0x2f: V, 0x30: B, 0x31: N, 0x32: M,
	0x33: Comma, 0x34: Fullstop, 0x35: Slash, 0x36: ShiftRight,
	0x37: NumpadStar, 0x38: AltLeft, 0x39: Spacebar, 0x3a: CapsLock,
	0x3b: F1, 0x3c: F2, 0x3d: F3, 0x3e: F4, 0x3f: F5, 0x40: F6, 0x41: F7,
	0x42: F8, 0x43: F9, 0x44: F10,
	0x45: NumpadLock, 0x46: ScrollLock,
	0x47: Numpad7, 0x48: Numpad8, 0x49: Numpad9, 0x4a: NumpadMinus,
	0x4b: Numpad4, 0x4c: Numpad5, 0x4d: Numpad6, 0x4e: NumpadPlus,
	0x4f: Numpad1, 0x50: Numpad2, 0x51: Numpad3, 0x52: Numpad0,
	0x53: NumpadPeriod,
	0x57: F11, 0x58: F12,
}

// set1ExtendedKeys maps make codes prefixed by 0xE0 to keys.
var set1ExtendedKeys = [0x80]KeyCode{
	0x1c: NumpadEnter,
	0x1d: ControlRight,
	0x35: NumpadSlash,
	0x37: PrintScreen,
	0x38: AltRight,
	0x47: Home,
	0x48: ArrowUp,
	0x49: PageUp,
	0x4b: ArrowLeft,
	0x4d: ArrowRight,
	0x4f: End,
	0x50: ArrowDown,
	0x51: PageDown,
	0x52: Insert,
	0x53: Delete,
	0x5b: WindowsLeft,
	0x5c: WindowsRight,
	0x5d: Menus,
}
