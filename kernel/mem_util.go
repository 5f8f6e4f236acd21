package kernel

import "unsafe"

// Overlay returns a byte slice of the given size backed by the memory region
// that starts at addr. The caller must ensure that the region is mapped and
// that nothing else treats it as Go-managed memory.
func Overlay(addr uintptr, size int) []byte {
	if addr == 0 || size <= 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// FillPattern repeats pattern across dst. Instead of copying the pattern once
// per slot, FillPattern seeds dst with a single copy and then performs
// log2(len(dst)/len(pattern)) copy calls that double the initialized prefix.
// A trailing partial pattern is filled with the leading pattern bytes.
func FillPattern(dst, pattern []byte) {
	if len(dst) == 0 || len(pattern) == 0 {
		return
	}

	filled := copy(dst, pattern)
	for filled < len(dst) {
		filled += copy(dst[filled:], dst[:filled])
	}
}

// Memset sets every byte of dst to value.
func Memset(dst []byte, value byte) {
	if len(dst) == 0 {
		return
	}

	dst[0] = value
	for index := 1; index < len(dst); index *= 2 {
		copy(dst[index:], dst[:index])
	}
}
