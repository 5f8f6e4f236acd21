package tty

import (
	"beeos/device/video/console"
	"io"
)

// DefaultTabWidth is the number of cells between two tab stops.
const DefaultTabWidth = 4

// Device turns a stream of bytes into operations on the console it is
// attached to. Writes fail until a console is attached.
type Device interface {
	io.Writer
	io.ByteWriter

	// AttachTo routes subsequent writes to cons.
	AttachTo(cons console.Device)
}
