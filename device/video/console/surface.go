package console

import (
	"beeos/kernel"
	"beeos/kernel/kfmt"
	"image"
	"image/color"
)

// PixelFormat describes the byte layout of a single framebuffer pixel.
type PixelFormat uint8

// The list of pixel formats supported by Surface.
const (
	// PixelFormatUnknown marks a framebuffer that cannot be drawn to.
	PixelFormatUnknown PixelFormat = iota

	// PixelFormatRGB stores the red channel in the first byte of each
	// pixel followed by green and blue.
	PixelFormatRGB

	// PixelFormatBGR stores the blue channel in the first byte of each
	// pixel followed by green and red.
	PixelFormatBGR

	// PixelFormatU8 stores a single grayscale intensity byte per pixel.
	PixelFormatU8
)

// String implements fmt.Stringer for PixelFormat.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGB:
		return "rgb"
	case PixelFormatBGR:
		return "bgr"
	case PixelFormatU8:
		return "u8"
	default:
		return "unknown"
	}
}

// minBytesPerPixel returns the smallest pixel size that can hold all
// channels of the format.
func (f PixelFormat) minBytesPerPixel() int {
	switch f {
	case PixelFormatRGB, PixelFormatBGR:
		return 3
	case PixelFormatU8:
		return 1
	default:
		return 0
	}
}

// FramebufferInfo describes the geometry and pixel layout of a linear
// framebuffer.
type FramebufferInfo struct {
	// Dimensions in pixels.
	Width, Height int

	// Size of a framebuffer row in bytes.
	Pitch int

	// Size of a pixel in bytes. Pixels may carry padding bytes that are
	// never written.
	BytesPerPixel int

	Format PixelFormat
}

var (
	panicFn = kfmt.Panic

	errUnknownPixelFormat = &kernel.Error{Module: "console", Message: "unsupported framebuffer pixel format"}
	errBadGeometry        = &kernel.Error{Module: "console", Message: "framebuffer geometry does not fit the pixel format"}
	errBufferTooSmall     = &kernel.Error{Module: "console", Message: "framebuffer smaller than its reported geometry"}
	errInvertedRect       = &kernel.Error{Module: "console", Message: "rectangle top-left corner lies past its bottom-right corner"}
	errRectOutOfBounds    = &kernel.Error{Module: "console", Message: "rectangle exceeds framebuffer bounds"}
)

// Surface provides pixel-level access to a linear framebuffer. The pixel
// encoding is selected once when the surface is created.
type Surface struct {
	buf           []byte
	width, height int
	pitch         int
	bytesPerPixel int
	format        PixelFormat

	drawFn func(pixel []byte, c color.RGBA)
	readFn func(pixel []byte) color.RGBA
}

// NewSurface creates a Surface backed by buf. It returns an error if the pixel
// format is not supported or buf cannot hold the geometry described by info.
func NewSurface(buf []byte, info FramebufferInfo) (*Surface, *kernel.Error) {
	s := &Surface{
		buf:           buf,
		width:         info.Width,
		height:        info.Height,
		pitch:         info.Pitch,
		bytesPerPixel: info.BytesPerPixel,
		format:        info.Format,
	}

	switch info.Format {
	case PixelFormatRGB:
		s.drawFn, s.readFn = drawRGB, readRGB
	case PixelFormatBGR:
		s.drawFn, s.readFn = drawBGR, readBGR
	case PixelFormatU8:
		s.drawFn, s.readFn = drawU8, readU8
	default:
		return nil, errUnknownPixelFormat
	}

	if info.Width <= 0 || info.Height <= 0 ||
		info.BytesPerPixel < info.Format.minBytesPerPixel() ||
		info.Pitch < info.Width*info.BytesPerPixel {
		return nil, errBadGeometry
	}

	if len(buf) < info.Pitch*(info.Height-1)+info.Width*info.BytesPerPixel {
		return nil, errBufferTooSmall
	}

	return s, nil
}

func drawRGB(pixel []byte, c color.RGBA) {
	pixel[0], pixel[1], pixel[2] = c.R, c.G, c.B
}

func readRGB(pixel []byte) color.RGBA {
	return color.RGBA{R: pixel[0], G: pixel[1], B: pixel[2], A: 255}
}

func drawBGR(pixel []byte, c color.RGBA) {
	pixel[0], pixel[1], pixel[2] = c.B, c.G, c.R
}

func readBGR(pixel []byte) color.RGBA {
	return color.RGBA{R: pixel[2], G: pixel[1], B: pixel[0], A: 255}
}

func drawU8(pixel []byte, c color.RGBA) {
	pixel[0] = uint8((uint16(c.R) + uint16(c.G) + uint16(c.B)) / 3)
}

func readU8(pixel []byte) color.RGBA {
	return color.RGBA{R: pixel[0], G: pixel[0], B: pixel[0], A: 255}
}

// Dimensions returns the surface width and height in pixels.
func (s *Surface) Dimensions() (int, int) {
	return s.width, s.height
}

// Format returns the pixel format used by the surface.
func (s *Surface) Format() PixelFormat {
	return s.format
}

// offset returns the byte offset of the pixel at (x, y).
func (s *Surface) offset(x, y int) int {
	return y*s.pitch + x*s.bytesPerPixel
}

// DrawPixel sets the pixel at (x, y) to c. The coordinates are not validated;
// callers must ensure that they lie within the surface.
func (s *Surface) DrawPixel(c color.RGBA, x, y int) {
	s.drawFn(s.buf[s.offset(x, y):], c)
}

// PixelAt returns the color stored at (x, y) decoded from the surface pixel
// format. Grayscale pixels decode to a color with equal channels.
func (s *Surface) PixelAt(x, y int) color.RGBA {
	return s.readFn(s.buf[s.offset(x, y):])
}

// DrawRect fills the half-open rectangle [topLeft, bottomRight) with c. An
// inverted rectangle or a rectangle that does not fit the surface causes a
// kernel panic.
func (s *Surface) DrawRect(c color.RGBA, topLeft, bottomRight image.Point) {
	if topLeft.X > bottomRight.X || topLeft.Y > bottomRight.Y {
		panicFn(errInvertedRect)
		return
	}

	if topLeft.X < 0 || topLeft.Y < 0 || bottomRight.X > s.width || bottomRight.Y > s.height {
		panicFn(errRectOutOfBounds)
		return
	}

	if topLeft.X == bottomRight.X || topLeft.Y == bottomRight.Y {
		return
	}

	// Encode the first row and replicate it to the remaining rows.
	rowStart := s.offset(topLeft.X, topLeft.Y)
	rowLen := (bottomRight.X - topLeft.X) * s.bytesPerPixel
	row := s.buf[rowStart : rowStart+rowLen]
	s.drawFn(row, c)
	if s.bytesPerPixel == 1 {
		kernel.Memset(row, row[0])
	} else {
		kernel.FillPattern(row, row[:s.bytesPerPixel])
	}

	for y := topLeft.Y + 1; y < bottomRight.Y; y++ {
		dstStart := s.offset(topLeft.X, y)
		copy(s.buf[dstStart:dstStart+rowLen], row)
	}
}

// CopyRect copies a width x height block of pixels from src to dst one row at
// a time. Neither rectangle is validated; callers must ensure that both lie
// within the surface.
func (s *Surface) CopyRect(src, dst image.Point, width, height int) {
	rowLen := width * s.bytesPerPixel

	// Copy bottom-up when moving content down so that overlapping rows
	// are read before they are overwritten.
	if dst.Y > src.Y {
		for y := height - 1; y >= 0; y-- {
			s.copyRow(src, dst, y, rowLen)
		}
		return
	}

	for y := 0; y < height; y++ {
		s.copyRow(src, dst, y, rowLen)
	}
}

func (s *Surface) copyRow(src, dst image.Point, y, rowLen int) {
	srcStart := s.offset(src.X, src.Y+y)
	dstStart := s.offset(dst.X, dst.Y+y)
	copy(s.buf[dstStart:dstStart+rowLen], s.buf[srcStart:srcStart+rowLen])
}
