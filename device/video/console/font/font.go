// Package font provides the glyph faces used by the framebuffer console. The
// glyph data comes from the fixed-size faces in golang.org/x/image; each glyph
// is exposed as a raster of 0-255 intensity values.
package font

import (
	"image"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	// Basic7x13 is a 7x13 pixel face suitable for low resolution modes.
	Basic7x13 = &Font{
		Name:              "basic7x13",
		RecommendedWidth:  800,
		RecommendedHeight: 600,
		Priority:          0,
		face:              basicfont.Face7x13,
		scale:             1,
	}

	// Basic7x13x2 is Basic7x13 magnified 2x for high resolution modes.
	Basic7x13x2 = &Font{
		Name:              "basic7x13x2",
		RecommendedWidth:  1920,
		RecommendedHeight: 1080,
		Priority:          1,
		face:              basicfont.Face7x13,
		scale:             2,
	}

	// The list of available fonts.
	availableFonts = []*Font{Basic7x13, Basic7x13x2}
)

// Font describes a fixed-size glyph face that can be used by a console device.
type Font struct {
	// The name of the font
	Name string

	// The recommended console resolution for this font.
	RecommendedWidth  uint32
	RecommendedHeight uint32

	// Font priority (lower is better). When auto-detecting a font to use, the font with
	// the lowest priority will be preferred
	Priority uint32

	face *basicfont.Face

	// scale is the integer magnification applied to each glyph pixel.
	scale int
}

// CellSize returns the size in pixels of the character cell occupied by each
// glyph.
func (f *Font) CellSize() (width, height int) {
	var face xfont.Face = f.face

	advance, _ := face.GlyphAdvance('?')
	metrics := face.Metrics()
	return scaledPixels(advance, f.scale), scaledPixels(metrics.Ascent+metrics.Descent, f.scale)
}

// Raster returns the intensity raster for r. If the face has no glyph for r,
// Raster returns false.
func (f *Font) Raster(r rune) (Raster, bool) {
	for _, rng := range f.face.Ranges {
		if r < rng.Low || r >= rng.High {
			continue
		}

		glyphHeight := f.face.Ascent + f.face.Descent
		return Raster{
			mask:   f.face.Mask,
			origin: image.Pt(f.face.Left, (int(r-rng.Low)+rng.Offset)*glyphHeight),
			width:  f.face.Width,
			height: glyphHeight,
			scale:  f.scale,
		}, true
	}

	return Raster{}, false
}

// Raster gives access to the pixels of a single glyph.
type Raster struct {
	mask   image.Image
	origin image.Point
	width  int
	height int
	scale  int
}

// Intensity returns the coverage of the glyph pixel at (x, y) as a value
// between 0 (background) and 255 (foreground). Coordinates are relative to
// the top-left corner of the character cell; pixels outside the glyph mask
// have zero intensity.
func (r Raster) Intensity(x, y int) uint8 {
	if r.mask == nil {
		return 0
	}

	x, y = x/r.scale, y/r.scale
	if x < 0 || x >= r.width || y < 0 || y >= r.height {
		return 0
	}

	x, y = r.origin.X+x, r.origin.Y+y
	if alpha, ok := r.mask.(*image.Alpha); ok {
		return alpha.AlphaAt(x, y).A
	}

	_, _, _, a := r.mask.At(x, y).RGBA()
	return uint8(a >> 8)
}

func scaledPixels(v fixed.Int26_6, scale int) int {
	return v.Round() * scale
}

// FindByName looks up a font instance by name. If the font is not found then
// the function returns nil.
func FindByName(name string) *Font {
	for _, f := range availableFonts {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// BestFit returns the best font from the available font list given the
// specified console dimensions. If multiple fonts match the dimension criteria
// then their priority attribute is used to select one.
//
// The algorithm for selecting the best font is the following:
//
//	For each font:
//	  - calculate the sum of abs differences between the font recommended dimension
//	    and the console dimensions.
//	  - if the font score is lower than the current best font's score then the
//	    font becomes the new best font.
//	  - if the font score is equal to the current best font's score then the
//	    font with the lowest priority becomes the new best font.
func BestFit(consoleWidth, consoleHeight uint32) *Font {
	var (
		best      *Font
		bestDelta uint32
	)

	for _, f := range availableFonts {
		delta := absDiff(f.RecommendedWidth, consoleWidth) + absDiff(f.RecommendedHeight, consoleHeight)

		if best == nil || delta < bestDelta || (delta == bestDelta && f.Priority < best.Priority) {
			best = f
			bestDelta = delta
		}
	}

	return best
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
