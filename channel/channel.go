// Package channel provides a blocking, back-pressured byte pipe between one
// producer and one consumer goroutine, backed by a double-mapped ring buffer.
//
// Callers agree on a frame size out of band and always move whole frames.
// A write is never observed partially by the reader.
package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/webbmaffian/go-sigroute/ringbuf"
)

type Channel struct {
	ring         *ringbuf.Buffer
	readCond     sync.Cond // Awaited by readers, notified by writers.
	writeCond    sync.Cond // Awaited by writers, notified by readers.
	mu           sync.Mutex
	capacity     int
	bytesWritten uint64
	bytesRead    uint64
	closed       bool
}

// State is a point-in-time copy of a channel's counters. It is stale as soon
// as it is returned and must not be used to predict whether Read or Write
// will block.
type State struct {
	Capacity     int
	Available    int
	BytesWritten uint64
	BytesRead    uint64
	Closed       bool
}

func New(capacity int) (ch *Channel, err error) {
	ring, err := ringbuf.New(capacity)

	if err != nil {
		return
	}

	ch = &Channel{
		ring:     ring,
		capacity: capacity,
	}

	ch.readCond.L = &ch.mu
	ch.writeCond.L = &ch.mu

	return
}

// Write blocks until len(p) bytes fit, then copies p in as one unit.
func (ch *Channel) Write(p []byte) error {
	return ch.writeOrBlock(nil, p)
}

// WriteContext is Write that also gives up when ctx is done.
func (ch *Channel) WriteContext(ctx context.Context, p []byte) error {
	return ch.writeOrBlock(ctx, p)
}

// writeOrBlock waits for space without a deadline when ctx is nil.
func (ch *Channel) writeOrBlock(ctx context.Context, p []byte) (err error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err = ch.check(len(p)); err != nil {
		return
	}

	if ctx != nil {
		stop := context.AfterFunc(ctx, ch.wakeAll)
		defer stop()
	}

	for !ch.closed && ch.ring.Free() < len(p) {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		// Wait until the reader has drained enough
		ch.writeCond.Wait()
	}

	if ch.closed {
		return ErrClosed
	}

	ch.write(p)
	return
}

// TryWrite writes p only if it fits right now.
func (ch *Channel) TryWrite(p []byte) (ok bool, err error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err = ch.check(len(p)); err != nil {
		return
	}

	if ch.ring.Free() < len(p) {
		return
	}

	ch.write(p)
	return true, nil
}

func (ch *Channel) write(p []byte) {
	copy(ch.ring.WriteWindow(), p)
	ch.ring.AdvanceWrite(len(p))
	ch.bytesWritten += uint64(len(p))
	ch.readCond.Broadcast()
}

// Read blocks until len(p) bytes are buffered, then fills p.
func (ch *Channel) Read(p []byte) error {
	return ch.readOrBlock(nil, p)
}

// ReadContext is Read that also gives up when ctx is done.
func (ch *Channel) ReadContext(ctx context.Context, p []byte) error {
	return ch.readOrBlock(ctx, p)
}

func (ch *Channel) readOrBlock(ctx context.Context, p []byte) (err error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err = ch.check(len(p)); err != nil {
		return
	}

	if ctx != nil {
		stop := context.AfterFunc(ctx, ch.wakeAll)
		defer stop()
	}

	for !ch.closed && ch.ring.Available() < len(p) {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		// Wait until the writer has produced enough
		ch.readCond.Wait()
	}

	if ch.closed {
		return ErrClosed
	}

	ch.read(p)
	return
}

// TryRead fills p only if enough bytes are buffered right now.
func (ch *Channel) TryRead(p []byte) (ok bool, err error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err = ch.check(len(p)); err != nil {
		return
	}

	if ch.ring.Available() < len(p) {
		return
	}

	ch.read(p)
	return true, nil
}

func (ch *Channel) read(p []byte) {
	copy(p, ch.ring.ReadWindow())
	ch.ring.AdvanceRead(len(p))
	ch.bytesRead += uint64(len(p))
	ch.writeCond.Broadcast()
}

func (ch *Channel) check(n int) error {
	if ch.closed {
		return ErrClosed
	}

	// Could never be satisfied, even by an empty channel.
	if n > ch.capacity {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, n, ch.capacity)
	}

	return nil
}

func (ch *Channel) wakeAll() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.readCond.Broadcast()
	ch.writeCond.Broadcast()
}

// Size returns the number of buffered bytes. Diagnostics only.
func (ch *Channel) Size() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.ring == nil {
		return 0
	}

	return ch.ring.Available()
}

// FreeSize returns the number of bytes that could be written without
// blocking at the moment of the call. Diagnostics only.
func (ch *Channel) FreeSize() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.ring == nil {
		return 0
	}

	return ch.ring.Free()
}

func (ch *Channel) Cap() int {
	return ch.capacity
}

func (ch *Channel) BytesWritten() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.bytesWritten
}

func (ch *Channel) BytesRead() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.bytesRead
}

func (ch *Channel) Snapshot() (s State) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	s = State{
		Capacity:     ch.capacity,
		BytesWritten: ch.bytesWritten,
		BytesRead:    ch.bytesRead,
		Closed:       ch.closed,
	}

	if ch.ring != nil {
		s.Available = ch.ring.Available()
	}

	return
}

// Clear discards everything buffered and wakes all waiters, which then
// re-check their condition against the emptied ring. A blocked writer
// usually proceeds; a blocked reader keeps waiting for fresh data.
func (ch *Channel) Clear() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.ring == nil {
		return
	}

	ch.ring.Clear()
	ch.readCond.Broadcast()
	ch.writeCond.Broadcast()
}

// Shutdown makes every pending and future Read and Write return ErrClosed.
// The ring stays mapped so counters remain readable.
func (ch *Channel) Shutdown() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if !ch.closed {
		ch.closed = true
		ch.readCond.Broadcast()
		ch.writeCond.Broadcast()
	}
}

// Close shuts the channel down and unmaps its ring.
func (ch *Channel) Close() (err error) {
	ch.Shutdown()

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.ring == nil {
		return
	}

	err = ch.ring.Close()
	ch.ring = nil
	return
}
