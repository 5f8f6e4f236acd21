package console

import (
	"beeos/device/video/console/font"
	"beeos/kernel"
	"beeos/kernel/kfmt"
	"image"
	"image/color"
	"unicode/utf8"
)

var (
	// DefaultClearColor is the background color used by the framebuffer
	// console driver.
	DefaultClearColor = color.RGBA{A: 255}

	// DefaultTextColor is the text color used by the framebuffer console
	// driver.
	DefaultTextColor = color.RGBA{R: 255, G: 255, A: 255}

	errNoSurface       = &kernel.Error{Module: "console", Message: "no surface to draw on"}
	errNoFont          = &kernel.Error{Module: "console", Message: "no font selected"}
	errSurfaceTooSmall = &kernel.Error{Module: "console", Message: "surface cannot fit a single character cell"}
	errCursorOutOfGrid = &kernel.Error{Module: "console", Message: "cursor position outside of the character grid"}
	errLineOutOfGrid   = &kernel.Error{Module: "console", Message: "line index outside of the character grid"}
	errCellOutOfBounds = &kernel.Error{Module: "console", Message: "character cell exceeds framebuffer bounds"}
)

// TextConsole renders text on a Surface using a character grid whose cell
// size is defined by the active font. All cursor coordinates are 0-based
// cell coordinates.
type TextConsole struct {
	surface *Surface
	font    *font.Font

	cellWidth, cellHeight int

	// Grid dimensions in characters.
	width, height int

	cursor image.Point

	textColor  color.RGBA
	clearColor color.RGBA
}

// NewTextConsole creates a console that draws on s using font f. The surface
// contents are left untouched; callers typically invoke Clear before writing
// any text.
func NewTextConsole(s *Surface, f *font.Font, clearColor, textColor color.RGBA) (*TextConsole, *kernel.Error) {
	if s == nil {
		return nil, errNoSurface
	}

	cons := &TextConsole{
		surface:    s,
		clearColor: clearColor,
		textColor:  textColor,
	}

	if err := cons.setFont(f); err != nil {
		return nil, err
	}

	return cons, nil
}

// SetFont selects the font used for rendering text. The character grid is
// recalculated and the cursor is clamped to the new grid. Fonts whose cell
// does not fit the surface are rejected and the active font is kept.
func (cons *TextConsole) SetFont(f *font.Font) {
	if err := cons.setFont(f); err != nil {
		kfmt.Printf("[console] font rejected: %s\n", err.Message)
	}
}

func (cons *TextConsole) setFont(f *font.Font) *kernel.Error {
	if f == nil {
		return errNoFont
	}

	cellW, cellH := f.CellSize()
	surfW, surfH := cons.surface.Dimensions()
	if cellW <= 0 || cellH <= 0 || surfW/cellW == 0 || surfH/cellH == 0 {
		return errSurfaceTooSmall
	}

	cons.font = f
	cons.cellWidth, cons.cellHeight = cellW, cellH
	cons.width, cons.height = surfW/cellW, surfH/cellH

	if cons.cursor.X >= cons.width {
		cons.cursor.X = cons.width - 1
	}
	if cons.cursor.Y >= cons.height {
		cons.cursor.Y = cons.height - 1
	}

	return nil
}

// Font returns the active font.
func (cons *TextConsole) Font() *font.Font {
	return cons.font
}

// Dimensions returns the console width and height in the specified dimension.
func (cons *TextConsole) Dimensions(dim Dimension) (int, int) {
	switch dim {
	case Characters:
		return cons.width, cons.height
	default:
		return cons.surface.Dimensions()
	}
}

// Colors returns the active text and clear colors.
func (cons *TextConsole) Colors() (text, clear color.RGBA) {
	return cons.textColor, cons.clearColor
}

// SetTextColor sets the color used for rendering text.
func (cons *TextConsole) SetTextColor(c color.RGBA) {
	cons.textColor = c
}

// SetClearColor sets the color used for clearing the console.
func (cons *TextConsole) SetClearColor(c color.RGBA) {
	cons.clearColor = c
}

// CursorPosition returns the current cursor position.
func (cons *TextConsole) CursorPosition() image.Point {
	return cons.cursor
}

// MoveCursor sets the cursor position to pos. Moving the cursor outside the
// character grid causes a kernel panic.
func (cons *TextConsole) MoveCursor(pos image.Point) {
	if pos.X < 0 || pos.Y < 0 || pos.X >= cons.width || pos.Y >= cons.height {
		panicFn(errCursorOutOfGrid)
		return
	}

	cons.cursor = pos
}

// IncrementCursorPos advances the cursor by one cell wrapping to the next
// line when the end of the current line is reached.
func (cons *TextConsole) IncrementCursorPos() {
	cons.cursor.X++
	if cons.cursor.X < cons.width {
		return
	}

	cons.CursorNewLine()
}

// CursorNewLine moves the cursor to the beginning of the next line. If the
// cursor is already on the last line, the console contents are scrolled.
func (cons *TextConsole) CursorNewLine() {
	cons.cursor.X = 0
	cons.cursor.Y++
	if cons.cursor.Y == cons.height {
		cons.ScrollDown()
	}
}

// ScrollDown shifts the console contents up by one line, clears the last line
// and moves the cursor one line up unless it is already on the first line.
func (cons *TextConsole) ScrollDown() {
	if cons.height > 1 {
		cons.surface.CopyRect(
			image.Pt(0, cons.cellHeight),
			image.Pt(0, 0),
			cons.width*cons.cellWidth,
			(cons.height-1)*cons.cellHeight,
		)
	}

	cons.ClearLine(cons.height - 1)

	if cons.cursor.Y != 0 {
		cons.cursor.Y--
	}
}

// Clear fills the entire surface with the clear color.
func (cons *TextConsole) Clear() {
	w, h := cons.surface.Dimensions()
	cons.surface.DrawRect(cons.clearColor, image.Pt(0, 0), image.Pt(w, h))
}

// ClearLine fills the specified line with the clear color. Clearing a line
// outside the character grid causes a kernel panic.
func (cons *TextConsole) ClearLine(line int) {
	if line < 0 || line >= cons.height {
		panicFn(errLineOutOfGrid)
		return
	}

	w, _ := cons.surface.Dimensions()
	minY := line * cons.cellHeight
	cons.surface.DrawRect(cons.clearColor, image.Pt(0, minY), image.Pt(w, minY+cons.cellHeight))
}

// ClearCell fills the character cell at pos with the clear color.
func (cons *TextConsole) ClearCell(pos image.Point) {
	topLeft := image.Pt(pos.X*cons.cellWidth, pos.Y*cons.cellHeight)
	cons.surface.DrawRect(cons.clearColor, topLeft, topLeft.Add(image.Pt(cons.cellWidth, cons.cellHeight)))
}

// Putc renders the glyph for r with its top-left corner at the pixel
// coordinates pos. Each glyph pixel is drawn using c scaled by the glyph
// intensity at that pixel. Runes without a glyph are rendered as '?'.
// Drawing a glyph that does not fit the surface causes a kernel panic.
func (cons *TextConsole) Putc(r rune, c color.RGBA, pos image.Point) {
	surfW, surfH := cons.surface.Dimensions()
	if pos.X < 0 || pos.Y < 0 || pos.X+cons.cellWidth > surfW || pos.Y+cons.cellHeight > surfH {
		panicFn(errCellOutOfBounds)
		return
	}

	raster, ok := cons.font.Raster(r)
	if !ok {
		raster, _ = cons.font.Raster('?')
	}

	for y := 0; y < cons.cellHeight; y++ {
		for x := 0; x < cons.cellWidth; x++ {
			cons.surface.DrawPixel(scaleColor(c, raster.Intensity(x, y)), pos.X+x, pos.Y+y)
		}
	}
}

// scaleColor multiplies each color channel by intensity/255.
func scaleColor(c color.RGBA, intensity uint8) color.RGBA {
	return color.RGBA{
		R: uint8(uint16(c.R) * uint16(intensity) / 255),
		G: uint8(uint16(c.G) * uint16(intensity) / 255),
		B: uint8(uint16(c.B) * uint16(intensity) / 255),
		A: c.A,
	}
}

// WriteRune renders r at the cursor position and advances the cursor. A
// line-feed moves the cursor to the beginning of the next line.
func (cons *TextConsole) WriteRune(r rune) {
	if r == '\n' {
		cons.CursorNewLine()
		return
	}

	cons.Putc(r, cons.textColor, image.Pt(cons.cursor.X*cons.cellWidth, cons.cursor.Y*cons.cellHeight))
	cons.IncrementCursorPos()
}

// WriteText renders s starting at the cursor position. A carriage-return
// that precedes a line-feed is discarded.
func (cons *TextConsole) WriteText(s string) {
	for i, r := range s {
		if r == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			continue
		}
		cons.WriteRune(r)
	}
}

// Write implements io.Writer. The contents of data are decoded as UTF-8 and
// rendered like WriteText does.
func (cons *TextConsole) Write(data []byte) (int, error) {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			i += size
			continue
		}

		cons.WriteRune(r)
		i += size
	}

	return len(data), nil
}
