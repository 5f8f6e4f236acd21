// Package mbtest assembles synthetic multiboot2 information blobs for tests.
package mbtest

import (
	"encoding/binary"
	"unsafe"
)

const (
	tagEnd         = 0
	tagCmdLine     = 1
	tagLoaderName  = 2
	tagFramebuffer = 8
)

// Framebuffer describes the contents of a framebuffer tag.
type Framebuffer struct {
	PhysAddr      uint64
	Pitch         uint32
	Width, Height uint32
	Bpp           uint8
	Type          uint8

	RedPosition, RedMaskSize     uint8
	GreenPosition, GreenMaskSize uint8
	BluePosition, BlueMaskSize   uint8
}

// Builder accumulates tags into a multiboot2 information blob.
type Builder struct {
	tags []byte
}

// CmdLine appends a boot command line tag.
func (b *Builder) CmdLine(cmdLine string) *Builder {
	return b.stringTag(tagCmdLine, cmdLine)
}

// LoaderName appends a boot loader name tag.
func (b *Builder) LoaderName(name string) *Builder {
	return b.stringTag(tagLoaderName, name)
}

// Framebuffer appends a framebuffer info tag.
func (b *Builder) Framebuffer(fb Framebuffer) *Builder {
	payload := make([]byte, 30)
	binary.LittleEndian.PutUint64(payload[0:], fb.PhysAddr)
	binary.LittleEndian.PutUint32(payload[8:], fb.Pitch)
	binary.LittleEndian.PutUint32(payload[12:], fb.Width)
	binary.LittleEndian.PutUint32(payload[16:], fb.Height)
	payload[20] = fb.Bpp
	payload[21] = fb.Type
	payload[24] = fb.RedPosition
	payload[25] = fb.RedMaskSize
	payload[26] = fb.GreenPosition
	payload[27] = fb.GreenMaskSize
	payload[28] = fb.BluePosition
	payload[29] = fb.BlueMaskSize
	return b.tag(tagFramebuffer, payload)
}

// Build terminates the tag list and returns the blob together with its
// address. The backing storage is 8-byte aligned; callers must keep the
// returned slice alive while the address is in use.
func (b *Builder) Build() ([]uint64, uintptr) {
	b.tag(tagEnd, nil)

	total := 8 + len(b.tags)
	words := make([]uint64, (total+7)/8)
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
	binary.LittleEndian.PutUint32(raw[0:], uint32(total))
	copy(raw[8:], b.tags)

	return words, uintptr(unsafe.Pointer(&words[0]))
}

func (b *Builder) stringTag(tagType uint32, s string) *Builder {
	payload := append([]byte(s), 0)
	return b.tag(tagType, payload)
}

func (b *Builder) tag(tagType uint32, payload []byte) *Builder {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], tagType)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(8+len(payload)))

	b.tags = append(b.tags, hdr[:]...)
	b.tags = append(b.tags, payload...)
	for len(b.tags)%8 != 0 {
		b.tags = append(b.tags, 0)
	}
	return b
}
