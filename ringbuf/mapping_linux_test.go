//go:build linux

package ringbuf

import (
	"errors"
	"math/bits"
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAllocationFailureReleasesResources(t *testing.T) {
	errInjected := errors.New("injected")
	page := os.Getpagesize()

	for _, step := range []string{"memfd", "ftruncate", "reserve", "first map", "second map"} {
		t.Run(step, func(t *testing.T) {
			restoreSyscalls(t)

			var (
				created  []int
				closed   []int
				reserved []unsafe.Pointer
				unmapped = map[unsafe.Pointer]uintptr{}
				mmaps    int
			)

			memfdCreate = func(name string, flags int) (int, error) {
				if step == "memfd" {
					return -1, errInjected
				}

				fd, err := unix.MemfdCreate(name, flags)

				if err == nil {
					created = append(created, fd)
				}

				return fd, err
			}

			ftruncate = func(fd int, length int64) error {
				if step == "ftruncate" {
					return errInjected
				}

				return unix.Ftruncate(fd, length)
			}

			closeFd = func(fd int) error {
				closed = append(closed, fd)
				return unix.Close(fd)
			}

			mmapPtr = func(fd int, offset int64, addr unsafe.Pointer, length uintptr, prot, flags int) (unsafe.Pointer, error) {
				n := mmaps
				mmaps++

				if (step == "reserve" && n == 0) || (step == "first map" && n == 1) || (step == "second map" && n == 2) {
					return nil, errInjected
				}

				p, err := unix.MmapPtr(fd, offset, addr, length, prot, flags)

				if err == nil && n == 0 {
					reserved = append(reserved, p)
				}

				return p, err
			}

			munmapPtr = func(addr unsafe.Pointer, length uintptr) error {
				unmapped[addr] = length
				return unix.MunmapPtr(addr, length)
			}

			_, err := New(page)
			require.ErrorIs(t, err, ErrAllocation)
			require.ErrorIs(t, err, errInjected)

			require.ElementsMatch(t, created, closed)

			for _, p := range reserved {
				require.Equal(t, 2*uintptr(page), unmapped[p])
			}
		})
	}
}

func TestReservationTooLarge(t *testing.T) {
	if bits.UintSize < 64 {
		t.Skip("needs a 64-bit address space")
	}

	// A valid capacity whose double mapping exceeds any user address space.
	_, err := New(1 << (bits.UintSize - 2))
	require.ErrorIs(t, err, ErrAllocation)
}

func restoreSyscalls(t *testing.T) {
	m, f, mp, mu, c := memfdCreate, ftruncate, mmapPtr, munmapPtr, closeFd

	t.Cleanup(func() {
		memfdCreate, ftruncate, mmapPtr, munmapPtr, closeFd = m, f, mp, mu, c
	})
}
