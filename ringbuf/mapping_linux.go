//go:build linux

package ringbuf

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Replaced in tests to simulate failures.
var (
	memfdCreate = unix.MemfdCreate
	ftruncate   = unix.Ftruncate
	mmapPtr     = unix.MmapPtr
	munmapPtr   = unix.MunmapPtr
	closeFd     = unix.Close
)

func pageSize() int {
	return unix.Getpagesize()
}

// mapRegion reserves 2*capacity bytes of address space and maps one
// anonymous memfd of capacity bytes into both halves.
func mapRegion(capacity int) (data []byte, err error) {
	fd, err := memfdCreate("sigroute-ring", unix.MFD_CLOEXEC)

	if err != nil {
		return nil, fmt.Errorf("%w: memfd_create: %w", ErrAllocation, err)
	}

	// The mappings keep the memory object alive once the descriptor is gone.
	defer closeFd(fd)

	if err = ftruncate(fd, int64(capacity)); err != nil {
		return nil, fmt.Errorf("%w: ftruncate: %w", ErrAllocation, err)
	}

	size := uintptr(capacity)

	base, err := mmapPtr(-1, 0, nil, 2*size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)

	if err != nil {
		return nil, fmt.Errorf("%w: reserve: %w", ErrAllocation, err)
	}

	for _, addr := range [2]unsafe.Pointer{base, unsafe.Add(base, capacity)} {
		var got unsafe.Pointer

		got, err = mmapPtr(fd, 0, addr, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED)

		if err == nil && got != addr {
			err = fmt.Errorf("mapped at %p, wanted %p", got, addr)
		}

		if err != nil {
			munmapPtr(base, 2*size)
			return nil, fmt.Errorf("%w: mmap: %w", ErrAllocation, err)
		}
	}

	return unsafe.Slice((*byte)(base), 2*capacity), nil
}

func unmapRegion(data []byte) error {
	if err := munmapPtr(unsafe.Pointer(unsafe.SliceData(data)), uintptr(len(data))); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}

	return nil
}
