// Package pipeline runs the audio stages that move frames through a channel
// registry: capture, playback, loopback, and the internal DSP loop.
//
// Every stage runs on its own goroutine locked to an OS thread. Stopping is
// explicit: when the context passed to Runner.Run ends, every channel and the
// handoff are shut down, which releases any stage blocked inside them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/webbmaffian/go-sigroute/channel"
	"github.com/webbmaffian/go-sigroute/handoff"
	"github.com/webbmaffian/go-sigroute/registry"
	"golang.org/x/sync/errgroup"
)

// Source produces one frame per call, blocking at the device cadence.
// Returning io.EOF ends the pipeline.
type Source interface {
	Capture(frame []byte) error
}

// Sink consumes one frame per call.
type Sink interface {
	Play(frame []byte) error
}

type SourceFunc func(frame []byte) error

func (fn SourceFunc) Capture(frame []byte) error {
	return fn(frame)
}

type SinkFunc func(frame []byte) error

func (fn SinkFunc) Play(frame []byte) error {
	return fn(frame)
}

type Stage struct {
	Name string
	run  func(ctx context.Context) error
}

type Runner struct {
	// Realtime asks for SCHED_FIFO on every stage thread. Failing to get it
	// is an error.
	Realtime bool

	reg     *registry.Registry
	handoff *handoff.Handoff
	stages  []Stage
}

func NewRunner(reg *registry.Registry, h *handoff.Handoff, stages ...Stage) *Runner {
	return &Runner{
		reg:     reg,
		handoff: h,
		stages:  stages,
	}
}

func (r *Runner) Add(stages ...Stage) {
	r.stages = append(r.stages, stages...)
}

// Run blocks until ctx ends, a source reports io.EOF, or a stage fails. It
// returns nil on a clean stop and the first stage error otherwise.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var running sync.WaitGroup

	for _, s := range r.stages {
		s := s // per-iteration copy; go.mod targets go 1.21 loop semantics
		running.Add(1)

		g.Go(func() (err error) {
			defer running.Done()

			// Never unlocked: the thread is discarded with its scheduling
			// policy when the stage returns.
			runtime.LockOSThread()

			if r.Realtime {
				if err = setRealtime(); err != nil {
					return fmt.Errorf("%s: %w", s.Name, err)
				}
			}

			if err = s.run(gctx); err != nil && !stopped(err) {
				return fmt.Errorf("%s: %w", s.Name, err)
			}

			return nil
		})
	}

	// Stages can also stop on their own, e.g. when the registry is shut
	// down from outside.
	go func() {
		running.Wait()
		cancel()
	}()

	g.Go(func() error {
		<-gctx.Done()
		r.reg.ShutdownAll()

		if r.handoff != nil {
			r.handoff.Close()
		}

		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

func stopped(err error) bool {
	return errors.Is(err, channel.ErrClosed) ||
		errors.Is(err, handoff.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
