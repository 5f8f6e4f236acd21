package main

import (
	"beeos/device/video/console"
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "fb.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProfile(t *testing.T) {
	specs := []struct {
		contents string
		expInfo  console.FramebufferInfo
		expFont  string
		expErr   bool
	}{
		{
			"width = 1024\nheight = 768\nbpp = 32\nformat = \"rgb\"\nfont = \"basic7x13\"\n",
			console.FramebufferInfo{Width: 1024, Height: 768, Pitch: 4096, BytesPerPixel: 4, Format: console.PixelFormatRGB},
			"basic7x13",
			false,
		},
		{
			"width = 640\nheight = 480\npitch = 2560\nbpp = 24\n",
			console.FramebufferInfo{Width: 640, Height: 480, Pitch: 2560, BytesPerPixel: 3, Format: console.PixelFormatBGR},
			"",
			false,
		},
		{
			"width = 320\nheight = 200\nbpp = 8\nformat = \"u8\"\n",
			console.FramebufferInfo{Width: 320, Height: 200, Pitch: 320, BytesPerPixel: 1, Format: console.PixelFormatU8},
			"",
			false,
		},
		// invalid TOML
		{"width = ", console.FramebufferInfo{}, "", true},
		// missing resolution
		{"bpp = 32\n", console.FramebufferInfo{}, "", true},
		// unsupported bpp
		{"width = 800\nheight = 600\nbpp = 16\n", console.FramebufferInfo{}, "", true},
		// unsupported format
		{"width = 800\nheight = 600\nbpp = 32\nformat = \"rgb565\"\n", console.FramebufferInfo{}, "", true},
		// pitch shorter than a row
		{"width = 800\nheight = 600\npitch = 800\nbpp = 32\n", console.FramebufferInfo{}, "", true},
	}

	for specIndex, spec := range specs {
		p, err := loadProfile(writeProfile(t, spec.contents))
		if spec.expErr {
			if err == nil {
				t.Errorf("[spec %d] expected an error", specIndex)
			}
			continue
		}

		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}

		info, err := p.framebufferInfo()
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}

		if info != spec.expInfo {
			t.Errorf("[spec %d] expected framebuffer info %+v; got %+v", specIndex, spec.expInfo, info)
		}

		if p.Font != spec.expFont {
			t.Errorf("[spec %d] expected font %q; got %q", specIndex, spec.expFont, p.Font)
		}
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := loadProfile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing profile")
	}
}
