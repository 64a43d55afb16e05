// Package stats publishes channel diagnostics into a small memory-mapped
// file so that other processes (an external DSP, the monitor CLI) can watch
// fill levels without talking to the router.
package stats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/webbmaffian/go-sigroute/internal/utils"
)

type file struct {
	data mmap.MMap
	file *os.File
	head *header
}

func create(path string, count int) (f *file, err error) {
	f = &file{}

	if f.file, err = os.Create(path); err != nil {
		return
	}

	if err = f.file.Truncate(fileSize(count)); err != nil {
		f.file.Close()
		return
	}

	if f.data, err = mmap.Map(f.file, mmap.RDWR, 0); err != nil {
		f.file.Close()
		return
	}

	head := header{
		magic:      magic,
		version:    version,
		recordSize: uint32(recordSize),
		count:      uint32(count),
		pid:        uint32(os.Getpid()),
	}

	if copy(f.data[:headSize], utils.PointerToBytes(&head)) != headSize {
		f.close()
		return nil, errors.New("failed to write header")
	}

	f.head = utils.BytesToPointer[header](f.data[:headSize])

	if err = f.data.Flush(); err != nil {
		f.close()
		return nil, err
	}

	return
}

func open(path string) (f *file, err error) {
	f = &file{}

	if f.file, err = os.Open(path); err != nil {
		return
	}

	if err = f.validateHead(); err != nil {
		f.file.Close()
		return
	}

	if f.data, err = mmap.Map(f.file, mmap.RDONLY, 0); err != nil {
		f.file.Close()
		return
	}

	f.head = utils.BytesToPointer[header](f.data[:headSize])
	return
}

func (f *file) validateHead() (err error) {
	info, err := f.file.Stat()

	if err != nil {
		return
	}

	if info.Size() < int64(headSize) {
		return fmt.Errorf("%w: %d bytes is too small", ErrInvalidFile, info.Size())
	}

	var head header

	if _, err = io.ReadFull(f.file, utils.PointerToBytes(&head)); err != nil {
		return
	}

	if head.magic != magic {
		return fmt.Errorf("%w: bad magic", ErrInvalidFile)
	}

	if head.version != version {
		return fmt.Errorf("%w: version %d, expected %d", ErrInvalidFile, head.version, version)
	}

	if head.recordSize != uint32(recordSize) {
		return fmt.Errorf("%w: record size %d, expected %d", ErrInvalidFile, head.recordSize, recordSize)
	}

	if info.Size() != fileSize(int(head.count)) {
		return fmt.Errorf("%w: size %d does not hold %d records", ErrInvalidFile, info.Size(), head.count)
	}

	return
}

func (f *file) record(i int) *record {
	off := headSize + i*recordSize
	return utils.BytesToPointer[record](f.data[off : off+recordSize])
}

func (f *file) count() int {
	return int(f.head.count)
}

// update runs fn with the sequence number odd, so readers retry instead of
// seeing a half-written snapshot.
func (f *file) update(fn func()) {
	atomic.AddUint32(&f.head.seq, 1)
	fn()
	atomic.StoreInt64(&f.head.updated, time.Now().UnixNano())
	atomic.AddUint32(&f.head.seq, 1)
}

// read copies a consistent view out of the file, retrying while the writer
// is active.
func (f *file) read(fn func()) error {
	for attempt := 0; attempt < 100; attempt++ {
		before := atomic.LoadUint32(&f.head.seq)

		if before&1 == 0 {
			fn()

			if atomic.LoadUint32(&f.head.seq) == before {
				return nil
			}
		}

		time.Sleep(time.Millisecond)
	}

	return ErrBusy
}

// close is idempotent. The header and records must not be touched after
// it returns.
func (f *file) close() (err error) {
	if f.file == nil {
		return
	}

	f.head = nil

	if f.data != nil {
		err = f.data.Unmap()
		f.data = nil
	}

	err = errors.Join(err, f.file.Close())
	f.file = nil
	return
}

func (f *file) closed() bool {
	return f.head == nil
}
