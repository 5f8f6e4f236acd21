// Package serial implements a driver for the 16550 UART found behind the
// legacy COM ports. It is used as an off-machine mirror of the console.
package serial

import (
	"beeos/device"
	"beeos/kernel"
	"beeos/kernel/cpu"
	"beeos/kernel/kfmt"
	"io"
)

const (
	// COM1 is the I/O base of the first serial port.
	COM1 = 0x3f8

	// DefaultBaudRate is the line speed used by the probed port.
	DefaultBaudRate = 38400

	// baseClock is the UART input clock divided by 16.
	baseClock = 115200

	// transmitPollLimit bounds the number of line status polls while
	// waiting for room in the transmitter.
	transmitPollLimit = 1 << 14

	// loopbackProbe is the byte echoed during the loopback self-test.
	loopbackProbe = 0xae
)

// Register offsets from the port base.
const (
	regData        = 0
	regIntEnable   = 1
	regDivisorLow  = 0
	regDivisorHigh = 1
	regFIFOCtrl    = 2
	regLineCtrl    = 3
	regModemCtrl   = 4
	regLineStatus  = 5
)

const (
	lineCtrlDLAB = 0x80
	lineCtrl8N1  = 0x03

	// Enable and clear both FIFOs with a 14-byte receive threshold.
	fifoCtrlEnable = 0xc7

	modemCtrlDTR      = 0x01
	modemCtrlRTS      = 0x02
	modemCtrlOut1     = 0x04
	modemCtrlOut2     = 0x08
	modemCtrlLoopback = 0x10
	modemCtrlNormal   = modemCtrlDTR | modemCtrlRTS | modemCtrlOut1 | modemCtrlOut2

	lineStatusTxEmpty = 0x20
)

var (
	errBadBaudRate = &kernel.Error{Module: "serial", Message: "unsupported baud rate"}
	errNoDevice    = &kernel.Error{Module: "serial", Message: "loopback self-test failed"}
)

// PortIO is the subset of the I/O port space used by the UART.
type PortIO interface {
	Out(port uint16, val uint8)
	In(port uint16) uint8
}

// UART drives a single 16550 compatible serial port in polled mode.
type UART struct {
	base     uint16
	baudRate uint32
	ports    PortIO

	dropped uint64
}

// New returns a UART for the port at base that runs at baudRate once
// initialized.
func New(ports PortIO, base uint16, baudRate uint32) *UART {
	return &UART{base: base, baudRate: baudRate, ports: ports}
}

// DriverName returns the name of this driver.
func (u *UART) DriverName() string {
	return "serial_16550"
}

// DriverVersion returns the version of this driver.
func (u *UART) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit programs the line settings, enables the FIFOs and verifies that
// a UART is present by running a loopback self-test.
func (u *UART) DriverInit(w io.Writer) *kernel.Error {
	if u.baudRate == 0 || baseClock%u.baudRate != 0 {
		return errBadBaudRate
	}
	divisor := uint16(baseClock / u.baudRate)

	u.out(regIntEnable, 0)
	u.out(regLineCtrl, lineCtrlDLAB)
	u.out(regDivisorLow, uint8(divisor))
	u.out(regDivisorHigh, uint8(divisor>>8))
	u.out(regLineCtrl, lineCtrl8N1)
	u.out(regFIFOCtrl, fifoCtrlEnable)

	u.out(regModemCtrl, modemCtrlRTS|modemCtrlOut1|modemCtrlOut2|modemCtrlLoopback)
	u.out(regData, loopbackProbe)
	if got := u.in(regData); got != loopbackProbe {
		return errNoDevice
	}
	u.out(regModemCtrl, modemCtrlNormal)

	kfmt.Fprintf(w, "port 0x%x, %d baud 8N1\n", u.base, u.baudRate)
	return nil
}

// WriteByte transmits b. If the transmitter does not drain within a bounded
// number of polls the byte is dropped.
func (u *UART) WriteByte(b byte) error {
	for poll := 0; poll < transmitPollLimit; poll++ {
		if u.in(regLineStatus)&lineStatusTxEmpty != 0 {
			u.out(regData, b)
			return nil
		}
	}

	u.dropped++
	return nil
}

// Write transmits p, translating line feeds to CR LF pairs. Output is
// best-effort so the full length of p is always reported as written.
func (u *UART) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			u.WriteByte('\r')
		}
		u.WriteByte(b)
	}
	return len(p), nil
}

// Dropped returns the number of bytes discarded because the transmitter was
// busy.
func (u *UART) Dropped() uint64 {
	return u.dropped
}

func (u *UART) out(reg uint16, val uint8) {
	u.ports.Out(u.base+reg, val)
}

func (u *UART) in(reg uint16) uint8 {
	return u.ports.In(u.base + reg)
}

func probeForCOM1() device.Driver {
	return New(cpu.Ports{}, COM1, DefaultBaudRate)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForCOM1,
	})
}
