//go:build amd64

package mem

const (
	// PageShift is equal to log2(PageSize).
	PageShift = 12

	// PageSize defines the system's page size in bytes. Statically
	// reserved regions such as the isolated fault stack are sized in
	// multiples of it.
	PageSize = Size(1 << PageShift)

	// StackAlign is the alignment the CPU expects for stack pointers that
	// it loads from the task-state segment.
	StackAlign = 16
)
