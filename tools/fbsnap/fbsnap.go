package main

import (
	"beeos/device/video/console"
	"beeos/device/video/console/font"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

var errUnknownFont = errors.New("unknown font")

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[fbsnap] error: %s\n", err.Error())
	os.Exit(1)
}

func parseFormat(name string) (console.PixelFormat, error) {
	for _, f := range []console.PixelFormat{console.PixelFormatRGB, console.PixelFormatBGR, console.PixelFormatU8} {
		if f.String() == name {
			return f, nil
		}
	}

	return console.PixelFormatUnknown, fmt.Errorf("unsupported pixel format %q; supported values are: rgb, bgr or u8", name)
}

// loadSurface wraps the contents of a raw framebuffer dump with a surface.
func loadSurface(path string, info console.FramebufferInfo) (*console.Surface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s, kErr := console.NewSurface(data, info)
	if kErr != nil {
		return nil, kErr
	}
	return s, nil
}

// renderText draws text on a blank surface using the same console code that
// renders kernel output.
func renderText(info console.FramebufferInfo, fontName, text string) (*console.Surface, *font.Font, error) {
	s, kErr := console.NewSurface(make([]byte, info.Pitch*info.Height), info)
	if kErr != nil {
		return nil, nil, kErr
	}

	f := font.BestFit(uint32(info.Width), uint32(info.Height))
	if fontName != "" {
		if f = font.FindByName(fontName); f == nil {
			return nil, nil, fmt.Errorf("%w: %s", errUnknownFont, fontName)
		}
	}

	cons, kErr := console.NewTextConsole(s, f, console.DefaultClearColor, console.DefaultTextColor)
	if kErr != nil {
		return nil, nil, kErr
	}

	cons.Clear()
	cons.WriteText(text)
	return s, f, nil
}

// snapshot converts the surface contents into an image scaled by the
// requested factor.
func snapshot(s *console.Surface, scale int) *image.RGBA {
	w, h := s.Dimensions()

	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.SetRGBA(x, y, s.PixelAt(x, y))
		}
	}

	if scale <= 1 {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// drawCellGrid outlines the text cells of font f on top of img.
func drawCellGrid(img *image.RGBA, f *font.Font, scale int) *gg.Context {
	ctx := gg.NewContextForRGBA(img)
	if f == nil {
		return ctx
	}

	cellW, cellH := f.CellSize()
	if scale > 1 {
		cellW, cellH = cellW*scale, cellH*scale
	}

	bounds := img.Bounds()
	ctx.SetColor(color.RGBA{R: 64, G: 64, B: 255, A: 255})
	ctx.SetLineWidth(1)
	for x := cellW; x < bounds.Dx(); x += cellW {
		ctx.DrawLine(float64(x)+0.5, 0, float64(x)+0.5, float64(bounds.Dy()))
	}
	for y := cellH; y < bounds.Dy(); y += cellH {
		ctx.DrawLine(0, float64(y)+0.5, float64(bounds.Dx()), float64(y)+0.5)
	}
	ctx.Stroke()

	return ctx
}

func runTool() error {
	width := flag.Int("width", 800, "the framebuffer width in pixels")
	height := flag.Int("height", 600, "the framebuffer height in pixels")
	pitch := flag.Int("pitch", 0, "the length of a framebuffer row in bytes (defaults to width * bytes per pixel)")
	bpp := flag.Int("bpp", 32, "the number of bits per pixel")
	format := flag.String("format", "bgr", "the pixel format (rgb, bgr or u8)")
	profilePath := flag.String("profile", "", "a TOML file with the framebuffer geometry; explicitly set flags take precedence")
	scale := flag.Int("scale", 1, "the integer factor for scaling the snapshot")
	text := flag.String("text", "", "render the given text instead of loading a framebuffer dump")
	fontName := flag.String("font", "", "the font used for rendering -text (defaults to the best fit for the resolution)")
	grid := flag.Bool("grid", false, "outline the text cells of the selected font")
	output := flag.String("out", "fb.png", "the PNG file to write the snapshot to")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "fbsnap: convert a raw framebuffer dump or rendered text to a png image\n\n")
		fmt.Fprint(os.Stderr, "Usage: fbsnap [options] [dump]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	p := profile{Width: *width, Height: *height, Pitch: *pitch, Bpp: *bpp, Format: strings.ToLower(*format), Font: *fontName}
	if *profilePath != "" {
		var err error
		if p, err = loadProfile(*profilePath); err != nil {
			return err
		}

		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "width":
				p.Width = *width
			case "height":
				p.Height = *height
			case "pitch":
				p.Pitch = *pitch
			case "bpp":
				p.Bpp = *bpp
			case "format":
				p.Format = strings.ToLower(*format)
			case "font":
				p.Font = *fontName
			}
		})
	}

	if err := p.validate(); err != nil {
		return err
	}

	info, err := p.framebufferInfo()
	if err != nil {
		return err
	}

	var (
		s        *console.Surface
		gridFont *font.Font
	)

	switch {
	case *text != "":
		if s, gridFont, err = renderText(info, p.Font, strings.ReplaceAll(*text, `\n`, "\n")); err != nil {
			return err
		}
	case flag.NArg() == 1:
		if s, err = loadSurface(flag.Arg(0), info); err != nil {
			return err
		}

		if *grid {
			if gridFont = font.FindByName(p.Font); gridFont == nil {
				gridFont = font.BestFit(uint32(info.Width), uint32(info.Height))
			}
		}
	default:
		return errors.New("missing framebuffer dump argument")
	}

	img := snapshot(s, *scale)
	if !*grid {
		gridFont = nil
	}

	return drawCellGrid(img, gridFont, *scale).SavePNG(*output)
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
