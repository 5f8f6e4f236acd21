package main

import (
	"beeos/device/video/console"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// profile describes the geometry of a captured framebuffer so that dumps
// taken from the same machine configuration can be converted without
// repeating the command line flags.
type profile struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Pitch  int    `toml:"pitch"`
	Bpp    int    `toml:"bpp"`
	Format string `toml:"format"`
	Font   string `toml:"font"`
}

func loadProfile(path string) (profile, error) {
	var p profile

	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}

	if err = toml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}

	return p, p.validate()
}

func (p *profile) validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("profile: invalid resolution %dx%d", p.Width, p.Height)
	}

	switch p.Bpp {
	case 8, 24, 32:
	default:
		return fmt.Errorf("profile: unsupported bpp %d", p.Bpp)
	}

	if p.Format != "" {
		if _, err := parseFormat(p.Format); err != nil {
			return fmt.Errorf("profile: %w", err)
		}
	}

	if minPitch := p.Width * ((p.Bpp + 7) >> 3); p.Pitch != 0 && p.Pitch < minPitch {
		return fmt.Errorf("profile: pitch %d is shorter than a row (%d bytes)", p.Pitch, minPitch)
	}

	return nil
}

// framebufferInfo returns the surface geometry described by the profile.
func (p *profile) framebufferInfo() (console.FramebufferInfo, error) {
	format := console.PixelFormatBGR
	if p.Format != "" {
		var err error
		if format, err = parseFormat(p.Format); err != nil {
			return console.FramebufferInfo{}, err
		}
	}

	info := console.FramebufferInfo{
		Width:         p.Width,
		Height:        p.Height,
		Pitch:         p.Pitch,
		BytesPerPixel: (p.Bpp + 7) >> 3,
		Format:        format,
	}
	if info.Pitch == 0 {
		info.Pitch = info.Width * info.BytesPerPixel
	}

	return info, nil
}
