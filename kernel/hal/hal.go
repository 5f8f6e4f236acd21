// Package hal probes for the hardware the kernel needs, owns the resulting
// device singletons and routes kernel output to them.
package hal

import (
	"beeos/device"
	"beeos/device/tty"
	"beeos/device/video/console"
	"beeos/device/video/console/font"
	"beeos/kernel/hal/multiboot"
	"beeos/kernel/kfmt"
	"beeos/kernel/sync"
	"bytes"
	"image"
	"image/color"
	"io"
	"sort"
)

// SerialPort is implemented by drivers that mirror kernel output off-machine.
type SerialPort interface {
	io.Writer
	io.ByteWriter

	// Dropped returns the number of bytes discarded because the port
	// was not ready to accept them.
	Dropped() uint64
}

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeConsole console.Device
	activeTTY     tty.Device
	activeSerial  SerialPort

	// ttyLinked is set once the active TTY has been attached to the
	// active console.
	ttyLinked bool

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer

	// consoleLock guards the active console and the TTY attached to it.
	consoleLock sync.IRQSpinlock

	// serialLock guards the active serial port.
	serialLock sync.IRQSpinlock

	output      outputSink
	panicOutput panicScreen

	panicTextColor  = color.RGBA{R: 255, A: 255}
	panicClearColor = color.RGBA{A: 255}

	driverListFn       = device.DriverList
	bootCmdLineValueFn = multiboot.BootCmdLineValue
)

// ActiveTTY returns the currently active TTY
func ActiveTTY() tty.Device {
	return devices.activeTTY
}

// ActiveConsole returns the currently active console.
func ActiveConsole() console.Device {
	return devices.activeConsole
}

// ActiveSerial returns the serial port that mirrors kernel output.
func ActiveSerial() SerialPort {
	return devices.activeSerial
}

// WithConsole invokes fn with exclusive access to the active console and
// returns true. If no console is active, fn is not invoked and WithConsole
// returns false. WithConsole must not be called from interrupt context.
func WithConsole(fn func(console.Device)) bool {
	if devices.activeConsole == nil {
		return false
	}

	consoleLock.Acquire()
	fn(devices.activeConsole)
	consoleLock.Release()
	return true
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers. Once probing completes, the detected output devices are attached
// as the kfmt output and panic sinks.
func DetectHardware() {
	// Get driver list and sort by detection priority
	drivers := driverListFn()
	sort.Sort(drivers)

	probe(drivers)

	kfmt.SetOutputSink(&output)
	kfmt.SetPanicSink(&panicOutput)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.Output()}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		onDriverInit(drv)
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(drv device.Driver) {
	switch drvImpl := drv.(type) {
	case console.Device:
		onConsoleInit(drvImpl)
	case tty.Device:
		if devices.activeTTY != nil {
			return
		}

		devices.activeTTY = drvImpl
		if devices.activeConsole != nil {
			linkTTYToConsole()
		}
	case SerialPort:
		if devices.activeSerial == nil {
			devices.activeSerial = drvImpl
		}
	}
}

// onConsoleInit is invoked whenever a console is initialized. If this is the
// first found console it automatically becomes the active console. If the
// console supports fonts, the font requested via the "consoleFont" boot
// command line option is loaded; otherwise the font that best fits the
// console resolution is used. Finally, if an active TTY device is present, it
// will be automatically linked to the console via a call to linkTTYToConsole.
func onConsoleInit(cons console.Device) {
	if devices.activeConsole != nil {
		return
	}

	devices.activeConsole = cons

	if fontSetter, ok := cons.(console.FontSetter); ok {
		var selFont *font.Font
		if name, ok := bootCmdLineValueFn("consoleFont"); ok {
			selFont = font.FindByName(name)
		}

		if selFont == nil {
			consW, consH := cons.Dimensions(console.Pixels)
			selFont = font.BestFit(uint32(consW), uint32(consH))
		}

		fontSetter.SetFont(selFont)
	}

	if devices.activeTTY != nil {
		linkTTYToConsole()
	}
}

// linkTTYToConsole connects the active TTY device to the active console
// device.
func linkTTYToConsole() {
	devices.activeTTY.AttachTo(devices.activeConsole)
	devices.ttyLinked = true
}

// outputSink mirrors kernel output to the active serial port and the TTY
// attached to the active console. A device whose lock is already held is
// skipped so that handlers can log without blocking.
type outputSink struct{}

// Write implements io.Writer.
func (outputSink) Write(p []byte) (int, error) {
	if devices.activeSerial != nil && serialLock.TryToAcquire() {
		_, _ = devices.activeSerial.Write(p)
		serialLock.Release()
	}

	if devices.ttyLinked && consoleLock.TryToAcquire() {
		_, _ = devices.activeTTY.Write(p)
		consoleLock.Release()
	}

	return len(p), nil
}

// panicScreen renders panic messages in red at the top-left corner of the
// active console and mirrors them to the serial port. The device locks are
// ignored as the CPU halts once the message is written.
type panicScreen struct{}

// BeginPanic clears the console and prepares it for rendering the panic
// message.
func (panicScreen) BeginPanic() {
	cons := devices.activeConsole
	if cons == nil {
		return
	}

	cons.SetTextColor(panicTextColor)
	cons.SetClearColor(panicClearColor)
	cons.Clear()
	cons.MoveCursor(image.Pt(0, 0))
}

// Write implements io.Writer.
func (panicScreen) Write(p []byte) (int, error) {
	if devices.activeSerial != nil {
		_, _ = devices.activeSerial.Write(p)
	}

	if devices.ttyLinked {
		_, _ = devices.activeTTY.Write(p)
	}

	return len(p), nil
}
