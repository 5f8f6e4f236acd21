package console

import (
	"beeos/device"
	"beeos/device/video/console/font"
	"beeos/kernel"
	"beeos/kernel/hal/multiboot"
	"beeos/kernel/kfmt"
	"io"
)

var (
	overlayFn            = kernel.Overlay
	getFramebufferInfoFn = multiboot.GetFramebufferInfo
)

// FramebufferConsole is a console driver for the linear framebuffer set up by
// the boot loader.
type FramebufferConsole struct {
	*TextConsole

	physAddr uintptr
	info     FramebufferInfo
}

// NewFramebufferConsole creates a console driver for the framebuffer at the
// specified physical address. The framebuffer is not accessed until the
// driver is initialized.
func NewFramebufferConsole(physAddr uintptr, info FramebufferInfo) *FramebufferConsole {
	return &FramebufferConsole{
		physAddr: physAddr,
		info:     info,
	}
}

// DriverName returns the name of this driver.
func (cons *FramebufferConsole) DriverName() string {
	return "fb_console"
}

// DriverVersion returns the version of this driver.
func (cons *FramebufferConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit initializes this driver.
func (cons *FramebufferConsole) DriverInit(w io.Writer) *kernel.Error {
	buf := overlayFn(cons.physAddr, cons.info.Pitch*cons.info.Height)

	surface, err := NewSurface(buf, cons.info)
	if err != nil {
		return err
	}

	textConsole, err := NewTextConsole(
		surface,
		font.BestFit(uint32(cons.info.Width), uint32(cons.info.Height)),
		DefaultClearColor,
		DefaultTextColor,
	)
	if err != nil {
		return err
	}

	cons.TextConsole = textConsole
	cons.Clear()

	kfmt.Fprintf(w, "%dx%d %s framebuffer at 0x%x\n", cons.info.Width, cons.info.Height, cons.info.Format.String(), cons.physAddr)
	return nil
}

// pixelFormatFor maps the framebuffer description supplied by the boot
// loader to a PixelFormat. Indexed framebuffers are not supported: U8 stores
// intensities, which a palette would interpret as color indices.
func pixelFormatFor(fbInfo *multiboot.FramebufferInfo) PixelFormat {
	switch fbInfo.Type {
	case multiboot.FramebufferTypeRGB:
		if fbInfo.Bpp == 8 {
			return PixelFormatU8
		}

		if fbInfo.Bpp != 24 && fbInfo.Bpp != 32 {
			break
		}

		colorInfo := fbInfo.RGBColorInfo()
		switch {
		case colorInfo.RedPosition == 0 && colorInfo.GreenPosition == 8 && colorInfo.BluePosition == 16:
			return PixelFormatRGB
		case colorInfo.RedPosition == 16 && colorInfo.GreenPosition == 8 && colorInfo.BluePosition == 0:
			return PixelFormatBGR
		}
	}

	return PixelFormatUnknown
}

// probeForFramebufferConsole checks for a linear framebuffer with a
// supported pixel format.
func probeForFramebufferConsole() device.Driver {
	fbInfo := getFramebufferInfoFn()
	if fbInfo == nil {
		return nil
	}

	format := pixelFormatFor(fbInfo)
	if format == PixelFormatUnknown {
		return nil
	}

	return NewFramebufferConsole(uintptr(fbInfo.PhysAddr), FramebufferInfo{
		Width:         int(fbInfo.Width),
		Height:        int(fbInfo.Height),
		Pitch:         int(fbInfo.Pitch),
		BytesPerPixel: (int(fbInfo.Bpp) + 7) >> 3,
		Format:        format,
	})
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderConsole,
		Probe: probeForFramebufferConsole,
	})
}
