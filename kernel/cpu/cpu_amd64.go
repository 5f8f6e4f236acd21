// Package cpu exposes the privileged x86_64 instructions used by the kernel
// core. All functions are implemented in assembly.
package cpu

const (
	// flagIF is the interrupt-enable bit in RFLAGS.
	flagIF = 1 << 9
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled returns true if the IF flag is currently set.
func InterruptsEnabled() bool {
	return readFlags()&flagIF != 0
}

// readFlags returns the contents of the RFLAGS register.
func readFlags() uint64

// Halt disables interrupts and stops instruction execution. Calls to Halt
// never return.
func Halt()

// WaitForInterrupt suspends execution until the next interrupt arrives. It
// is used by the idle loop and returns once the interrupt has been serviced.
func WaitForInterrupt()

// Breakpoint raises a breakpoint trap (int3).
func Breakpoint()

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortWriteDword writes a uint32 value to the requested port.
func PortWriteDword(port uint16, val uint32)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// Ports provides access to the I/O port space through the in and out
// instructions. Drivers accept it through small interfaces so that tests can
// substitute emulated devices.
type Ports struct{}

// Out writes val to port.
func (Ports) Out(port uint16, val uint8) { PortWriteByte(port, val) }

// In reads a byte from port.
func (Ports) In(port uint16) uint8 { return PortReadByte(port) }
