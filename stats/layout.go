package stats

import "unsafe"

const version = 1

var magic = [8]byte{'S', 'I', 'G', 'R', 'S', 'T', 'A', 'T'}

const (
	headSize   = int(unsafe.Sizeof(header{}))
	recordSize = int(unsafe.Sizeof(record{}))
)

// header sits at offset 0 of the file. seq is odd while the publisher is
// rewriting the file.
type header struct {
	magic      [8]byte
	version    uint32
	recordSize uint32
	count      uint32
	handoff    uint32
	mode       uint32
	pid        uint32
	seq        uint32
	_          uint32
	updated    int64
}

type record struct {
	name         [24]byte
	capacity     uint64
	available    uint64
	bytesWritten uint64
	bytesRead    uint64
	closed       uint32
	_            uint32
}

func fileSize(count int) int64 {
	return int64(headSize + count*recordSize)
}

func (r *record) setName(name string) {
	r.name = [24]byte{}
	copy(r.name[:], name)
}

func (r *record) nameString() string {
	n := 0

	for n < len(r.name) && r.name[n] != 0 {
		n++
	}

	return string(r.name[:n])
}
