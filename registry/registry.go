// Package registry holds the fixed set of named channels connecting the
// audio stages. A Registry is built once at startup and handed to every
// stage; there is no package-level state.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/webbmaffian/go-sigroute/channel"
	"github.com/webbmaffian/go-sigroute/config"
)

type Name string

const (
	RadioToDSP    Name = config.ChannelRadioToDSP
	DSPToRadio    Name = config.ChannelDSPToRadio
	MicToDSP      Name = config.ChannelMicToDSP
	DSPToSpeaker  Name = config.ChannelDSPToSpeaker
	DSPToLoopback Name = config.ChannelDSPToLoopback
	LoopbackToDSP Name = config.ChannelLoopbackToDSP
)

var names = [...]Name{
	RadioToDSP,
	DSPToRadio,
	MicToDSP,
	DSPToSpeaker,
	DSPToLoopback,
	LoopbackToDSP,
}

// Names returns every channel in a stable order. The slice is a copy.
func Names() []Name {
	n := make([]Name, len(names))
	copy(n, names[:])
	return n
}

type Registry struct {
	mu       sync.RWMutex
	cfg      config.Config
	channels map[Name]*channel.Channel
}

func New(cfg config.Config) *Registry {
	return &Registry{
		cfg: cfg,
	}
}

// InitializeAll creates every channel with its configured capacity. If any
// channel fails, the ones already created are destroyed and the registry is
// left uninitialized.
func (r *Registry) InitializeAll() (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels != nil {
		return ErrAlreadyInitialized
	}

	for name := range r.cfg.Channels {
		if !config.KnownChannel(name) {
			return fmt.Errorf("%w: %q in configuration", ErrUnknownChannel, name)
		}
	}

	channels := make(map[Name]*channel.Channel, len(names))

	for _, name := range names {
		var ch *channel.Channel

		if ch, err = channel.New(r.cfg.Capacity(string(name))); err != nil {
			err = fmt.Errorf("channel %s: %w", name, err)

			for _, created := range channels {
				err = errors.Join(err, created.Close())
			}

			return
		}

		channels[name] = ch
	}

	r.channels = channels
	return
}

func (r *Registry) Get(name Name) (*channel.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.channels == nil {
		return nil, ErrNotInitialized
	}

	ch, ok := r.channels[name]

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}

	return ch, nil
}

// MustGet is Get for callers that have already checked initialization, such
// as stages started after a successful InitializeAll.
func (r *Registry) MustGet(name Name) *channel.Channel {
	ch, err := r.Get(name)

	if err != nil {
		panic(err)
	}

	return ch
}

func (r *Registry) Config() config.Config {
	return r.cfg
}

// Each calls fn for every channel in Names order. It does nothing before
// InitializeAll.
func (r *Registry) Each(fn func(Name, *channel.Channel)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.channels == nil {
		return
	}

	for _, name := range names {
		fn(name, r.channels[name])
	}
}

// ClearAll drops the buffered contents of every channel.
func (r *Registry) ClearAll() {
	r.Each(func(_ Name, ch *channel.Channel) {
		ch.Clear()
	})
}

// ShutdownAll releases every goroutine blocked on any channel. Used to stop
// the stages; the channels stay mapped until TeardownAll.
func (r *Registry) ShutdownAll() {
	r.Each(func(_ Name, ch *channel.Channel) {
		ch.Shutdown()
	})
}

// TeardownAll destroys every channel. Call it only after all producers and
// consumers have returned.
func (r *Registry) TeardownAll() (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels == nil {
		return ErrNotInitialized
	}

	for _, name := range names {
		if e := r.channels[name].Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("channel %s: %w", name, e))
		}
	}

	r.channels = nil
	return
}
