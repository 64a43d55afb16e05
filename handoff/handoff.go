// Package handoff passes the DSP role between the internal processing loop
// and an external process. It is a two-party handshake: the internal loop
// parks itself while an external DSP owns the channels and resumes once the
// role is reclaimed. Access to the channels by the external process is not
// synchronized here.
package handoff

import (
	"sync"

	"github.com/webbmaffian/go-sigroute/config"
)

type handoffError string

var _ error = handoffError("")

func (err handoffError) Error() string {
	return string(err)
}

const ErrClosed = handoffError("handoff is closed")

type State uint8

const (
	Internal State = iota
	External
)

func (s State) String() string {
	if s == External {
		return "external"
	}

	return "internal"
}

type Handoff struct {
	mu        sync.Mutex
	cond      sync.Cond
	suspended bool // internal DSP must stay parked
	parked    bool // a goroutine is currently parked
	closed    bool
}

// New seeds the state from the operating mode: External when an external DSP
// is configured, Internal otherwise.
func New(mode config.OperatingMode) *Handoff {
	h := &Handoff{
		suspended: mode == config.ModeExternalDSP,
	}

	h.cond.L = &h.mu

	return h
}

// RequestReleaseToExternal hands the channels to the external DSP and parks
// the calling goroutine until ReclaimInternal is called. It returns ErrClosed
// if the handoff is closed while parked.
func (h *Handoff) RequestReleaseToExternal() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.suspended = true
	return h.park()
}

// Checkpoint parks the caller only while the External state is in effect.
// The internal DSP loop calls it once per iteration.
func (h *Handoff) Checkpoint() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.park()
}

func (h *Handoff) park() error {
	h.parked = true
	defer func() { h.parked = false }()

	for h.suspended && !h.closed {
		h.cond.Wait()
	}

	if h.closed {
		return ErrClosed
	}

	return nil
}

// ReclaimInternal ends external mode and releases the parked loop.
func (h *Handoff) ReclaimInternal() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.suspended = false
	h.cond.Broadcast()
}

// Suspend switches to External without blocking. The internal loop parks
// at its next Checkpoint.
func (h *Handoff) Suspend() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.suspended = true
}

func (h *Handoff) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.suspended {
		return External
	}

	return Internal
}

// Parked reports whether the internal loop is currently parked.
func (h *Handoff) Parked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.parked
}

// Close releases a parked goroutine with ErrClosed. Used on shutdown.
func (h *Handoff) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.cond.Broadcast()
}
