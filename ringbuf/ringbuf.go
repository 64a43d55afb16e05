// Package ringbuf implements a circular byte buffer whose storage is mapped
// twice, back to back, in virtual memory. Any window of up to Cap() bytes
// starting anywhere in the ring is therefore one contiguous slice, and reads
// and writes never have to be split at the wrap point.
//
// A Buffer does no locking of its own. The caller guarantees that at most one
// goroutine touches the cursors at a time and that it never advances past
// Free() or Available().
package ringbuf

import (
	"fmt"
	"math/bits"
)

type Buffer struct {
	data     []byte // 2*capacity bytes, second half aliases the first
	capacity int
	writeIdx int
	readIdx  int
}

// New allocates a ring of the given capacity. The capacity must be a power
// of two and a multiple of the OS page size.
func New(capacity int) (b *Buffer, err error) {
	if err = validCapacity(capacity); err != nil {
		return
	}

	data, err := mapRegion(capacity)

	if err != nil {
		return
	}

	b = &Buffer{
		data:     data,
		capacity: capacity,
	}

	return
}

func validCapacity(capacity int) error {
	if capacity <= 0 || bits.OnesCount(uint(capacity)) != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	if capacity%pageSize() != 0 {
		return fmt.Errorf("%w: %d is not a multiple of %d", ErrInvalidCapacity, capacity, pageSize())
	}

	return nil
}

// WriteWindow returns the contiguous free space starting at the write cursor.
// Its length equals Free().
func (b *Buffer) WriteWindow() []byte {
	return b.data[b.writeIdx : b.readIdx+b.capacity]
}

func (b *Buffer) AdvanceWrite(n int) {
	if n < 0 || n > b.Free() {
		panic(fmt.Sprintf("ringbuf: advance write by %d with %d bytes free", n, b.Free()))
	}

	b.writeIdx += n
}

// ReadWindow returns the contiguous buffered bytes starting at the read
// cursor. Its length equals Available().
func (b *Buffer) ReadWindow() []byte {
	return b.data[b.readIdx:b.writeIdx]
}

func (b *Buffer) AdvanceRead(n int) {
	if n < 0 || n > b.Available() {
		panic(fmt.Sprintf("ringbuf: advance read by %d with %d bytes available", n, b.Available()))
	}

	b.readIdx += n

	// Keep both cursors inside the first copy of the mapping.
	if b.readIdx >= b.capacity {
		b.readIdx -= b.capacity
		b.writeIdx -= b.capacity
	}
}

func (b *Buffer) Available() int {
	return b.writeIdx - b.readIdx
}

func (b *Buffer) Free() int {
	return b.capacity - b.Available()
}

func (b *Buffer) Cap() int {
	return b.capacity
}

// Clear drops everything buffered.
func (b *Buffer) Clear() {
	b.writeIdx = 0
	b.readIdx = 0
}

// Close unmaps both views of the ring at once. Windows handed out earlier
// must not be touched afterwards.
func (b *Buffer) Close() (err error) {
	if b.data == nil {
		return
	}

	err = unmapRegion(b.data)
	b.data = nil
	b.Clear()
	return
}
