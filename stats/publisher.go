package stats

import (
	"context"
	"sync"
	"time"

	"github.com/webbmaffian/go-sigroute/channel"
	"github.com/webbmaffian/go-sigroute/config"
	"github.com/webbmaffian/go-sigroute/handoff"
	"github.com/webbmaffian/go-sigroute/registry"
)

// Publisher copies the state of every registry channel into a stats file.
type Publisher struct {
	mu       sync.Mutex
	file     *file
	reg      *registry.Registry
	handoff  *handoff.Handoff
	mode     config.OperatingMode
	interval time.Duration
}

// NewPublisher creates (or truncates) the file at path with one record per
// registry channel. The handoff may be nil.
func NewPublisher(path string, reg *registry.Registry, h *handoff.Handoff) (p *Publisher, err error) {
	cfg := reg.Config()

	f, err := create(path, len(registry.Names()))

	if err != nil {
		return
	}

	f.update(func() {
		for i, name := range registry.Names() {
			f.record(i).setName(string(name))
		}

		f.head.mode = uint32(cfg.Mode)
	})

	p = &Publisher{
		file:     f,
		reg:      reg,
		handoff:  h,
		mode:     cfg.Mode,
		interval: cfg.StatsInterval,
	}

	return
}

// PublishOnce writes the current snapshot of every channel.
func (p *Publisher) PublishOnce() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file.closed() {
		return ErrClosed
	}

	states := make([]channel.State, 0, len(registry.Names()))

	p.reg.Each(func(_ registry.Name, ch *channel.Channel) {
		states = append(states, ch.Snapshot())
	})

	if len(states) != p.file.count() {
		return registry.ErrNotInitialized
	}

	var hs handoff.State

	if p.handoff != nil {
		hs = p.handoff.State()
	}

	p.file.update(func() {
		p.file.head.handoff = uint32(hs)

		for i, s := range states {
			r := p.file.record(i)
			r.capacity = uint64(s.Capacity)
			r.available = uint64(s.Available)
			r.bytesWritten = s.BytesWritten
			r.bytesRead = s.BytesRead
			r.closed = 0

			if s.Closed {
				r.closed = 1
			}
		}
	})

	return nil
}

// Run publishes every interval until ctx is done, then publishes a final
// snapshot.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.PublishOnce(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return p.PublishOnce()
		case <-ticker.C:
		}
	}
}

func (p *Publisher) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file.closed() {
		return
	}

	if err = p.file.data.Flush(); err != nil {
		return
	}

	return p.file.close()
}
