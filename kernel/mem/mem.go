// Package mem defines the memory geometry shared by the regions that the
// kernel reserves statically.
package mem

// Size is a length of memory in bytes.
type Size uint64
