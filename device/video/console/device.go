package console

import (
	"beeos/device/video/console/font"
	"image"
	"image/color"
)

// Dimension defines the types of dimensions that can be queried off a device.
type Dimension uint8

const (
	// Characters describes the number of characters in
	// the console depending on the currently active
	// font.
	Characters Dimension = iota

	// Pixels describes the number of pixels in the console framebuffer.
	Pixels
)

// The Device interface is implemented by objects that can function as system
// consoles.
type Device interface {
	// Dimensions returns the width and height of the console
	// using a particular dimension.
	Dimensions(Dimension) (int, int)

	// Colors returns the active text and clear colors.
	Colors() (text, clear color.RGBA)

	// SetTextColor sets the color used for rendering text.
	SetTextColor(color.RGBA)

	// SetClearColor sets the color used for clearing the console.
	SetClearColor(color.RGBA)

	// Clear fills the console with the clear color.
	Clear()

	// ClearCell fills a single character cell with the clear color.
	ClearCell(image.Point)

	// CursorPosition returns the 0-based cell coordinates of the cursor.
	CursorPosition() image.Point

	// MoveCursor moves the cursor to the specified cell.
	MoveCursor(image.Point)

	// CursorNewLine moves the cursor to the start of the next line,
	// scrolling the console contents if required.
	CursorNewLine()

	// WriteRune renders a character at the cursor position and advances
	// the cursor.
	WriteRune(rune)
}

// FontSetter is an interface implemented by console devices that
// support loadable fonts.
//
// SetFont selects a font to be used by the console.
type FontSetter interface {
	SetFont(*font.Font)
}
