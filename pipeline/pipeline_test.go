//go:build linux

package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webbmaffian/go-sigroute/config"
	"github.com/webbmaffian/go-sigroute/handoff"
	"github.com/webbmaffian/go-sigroute/registry"
)

const testFrameSamples = 64

func newTestRegistry(t *testing.T, mode config.OperatingMode) *registry.Registry {
	cfg := config.Default()
	cfg.Mode = mode
	cfg.FrameSamples = testFrameSamples

	for _, name := range registry.Names() {
		cfg.Channels[string(name)] = 1 << 16
	}

	reg := registry.New(cfg)
	require.NoError(t, reg.InitializeAll())

	t.Cleanup(func() {
		reg.TeardownAll()
	})

	return reg
}

// stereoCounter produces stereo frames whose left samples count up from 0
// and whose right samples carry the same count with the top bit set.
func stereoCounter() SourceFunc {
	var seq uint32

	return func(frame []byte) error {
		for i := 0; i < len(frame); i += 8 {
			binary.LittleEndian.PutUint32(frame[i:], seq)
			binary.LittleEndian.PutUint32(frame[i+4:], seq|1<<31)
			seq++
		}

		return nil
	}
}

func silence() SourceFunc {
	return func(frame []byte) error {
		clear(frame)
		return nil
	}
}

type collector struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (c *collector) Play(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames = append(c.frames, append([]byte(nil), frame...))
	return c.err
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.frames)
}

func (c *collector) samples(stride, offset int) (out []uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range c.frames {
		for i := offset; i < len(f); i += stride {
			out = append(out, binary.LittleEndian.Uint32(f[i:]))
		}
	}

	return
}

type harness struct {
	reg      *registry.Registry
	handoff  *handoff.Handoff
	dsp      *DSP
	radio    *collector
	loopback *collector
	cancel   context.CancelFunc
	done     chan error
}

func start(t *testing.T, mode config.OperatingMode) *harness {
	h := &harness{
		reg:      newTestRegistry(t, mode),
		handoff:  handoff.New(mode),
		radio:    &collector{},
		loopback: &collector{},
		done:     make(chan error, 1),
	}

	h.dsp = NewDSP(h.reg, h.handoff, Passthrough{})

	runner := NewRunner(h.reg, h.handoff,
		CaptureStage(h.reg, stereoCounter()),
		PlaybackStage(h.reg, h.radio),
		LoopbackCaptureStage(h.reg, silence()),
		LoopbackPlaybackStage(h.reg, h.loopback),
		h.dsp.Stage(),
	)

	var ctx context.Context
	ctx, h.cancel = context.WithCancel(context.Background())

	go func() {
		h.done <- runner.Run(ctx)
	}()

	t.Cleanup(h.stop)

	return h
}

func (h *harness) stop() {
	h.cancel()
}

func (h *harness) wait(t *testing.T) error {
	select {
	case err := <-h.done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not stop")
		return nil
	}
}

func requireSequence(t *testing.T, got []uint32, mask uint32) {
	require.NotEmpty(t, got)

	for i, v := range got {
		require.Equal(t, uint32(i)|mask, v, "sample %d", i)
	}
}

func TestReceivePath(t *testing.T) {
	h := start(t, config.ModeVoice)

	require.Eventually(t, func() bool {
		return h.radio.count() >= 50 && h.loopback.count() >= 50
	}, 10*time.Second, time.Millisecond)

	h.stop()
	require.NoError(t, h.wait(t))

	// Radio playback is tx on the left, speaker on the right.
	for _, v := range h.radio.samples(8, 0) {
		require.Zero(t, v)
	}

	requireSequence(t, h.radio.samples(8, 4), 0)
	requireSequence(t, h.loopback.samples(4, 0), 0)
}

func TestTransmitFromMic(t *testing.T) {
	h := start(t, config.ModeVoice)
	h.dsp.SetTransmit(true)

	require.Eventually(t, func() bool {
		return h.radio.count() >= 20
	}, 10*time.Second, time.Millisecond)

	h.stop()
	require.NoError(t, h.wait(t))

	// Frames processed before SetTransmit took effect carry silence on the
	// left; every frame after that carries the microphone sequence.
	var tx []uint32

	for _, v := range h.radio.samples(8, 0) {
		if v != 0 || len(tx) > 0 {
			tx = append(tx, v)
		}
	}

	require.NotEmpty(t, tx)

	first := tx[0] &^ (1 << 31)

	for i, v := range tx {
		require.Equal(t, (first+uint32(i))|1<<31, v)
	}
}

func TestExternalModeParksDSP(t *testing.T) {
	h := start(t, config.ModeExternalDSP)

	require.Eventually(t, h.handoff.Parked, 10*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, h.dsp.Frames())
	require.Zero(t, h.radio.count())

	h.dsp.SetMode(config.ModeVoice)
	require.Equal(t, handoff.Internal, h.handoff.State())

	require.Eventually(t, func() bool {
		return h.radio.count() >= 10
	}, 10*time.Second, time.Millisecond)

	h.dsp.SetMode(config.ModeExternalDSP)
	require.Eventually(t, h.handoff.Parked, 10*time.Second, time.Millisecond)

	h.stop()
	require.NoError(t, h.wait(t))
}

func TestControlsOnlyParksDSP(t *testing.T) {
	h := start(t, config.ModeVoice)

	require.Eventually(t, func() bool {
		return h.radio.count() >= 10
	}, 10*time.Second, time.Millisecond)

	h.dsp.SetMode(config.ModeControlsOnly)
	require.Eventually(t, h.handoff.Parked, 10*time.Second, time.Millisecond)

	frames := h.dsp.Frames()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, frames, h.dsp.Frames())

	// Moving between the two idle modes keeps the loop parked.
	h.dsp.SetMode(config.ModeExternalDSP)
	require.True(t, h.handoff.Parked())

	h.dsp.SetMode(config.ModeLoopback)

	require.Eventually(t, func() bool {
		return h.dsp.Frames() > frames
	}, 10*time.Second, time.Millisecond)

	h.stop()
	require.NoError(t, h.wait(t))
}

func TestStartInControlsOnly(t *testing.T) {
	h := start(t, config.ModeControlsOnly)

	require.Eventually(t, h.handoff.Parked, 10*time.Second, time.Millisecond)
	require.Zero(t, h.dsp.Frames())

	h.stop()
	require.NoError(t, h.wait(t))
}

func TestStageErrorStopsPipeline(t *testing.T) {
	h := start(t, config.ModeVoice)

	gone := errors.New("device gone")

	h.radio.mu.Lock()
	h.radio.err = gone
	h.radio.mu.Unlock()

	err := h.wait(t)
	require.ErrorIs(t, err, gone)
	require.Contains(t, err.Error(), "radio playback")
}

func TestSourceEOFStopsPipeline(t *testing.T) {
	reg := newTestRegistry(t, config.ModeVoice)

	frames := 0
	src := SourceFunc(func(frame []byte) error {
		if frames == 5 {
			return io.EOF
		}

		frames++
		return nil
	})

	runner := NewRunner(reg, nil, LoopbackCaptureStage(reg, src))
	require.NoError(t, runner.Run(context.Background()))
	require.Equal(t, 5*reg.Config().FrameBytes(), reg.MustGet(registry.LoopbackToDSP).Size())
}

func TestInterleave(t *testing.T) {
	left := []byte{1, 1, 2, 2}
	right := []byte{8, 8, 9, 9}
	stereo := make([]byte, 8)

	interleave(stereo, left, right, 2)
	require.Equal(t, []byte{1, 1, 8, 8, 2, 2, 9, 9}, stereo)

	l, r := make([]byte, 4), make([]byte, 4)
	deinterleave(stereo, l, r, 2)
	require.Equal(t, left, l)
	require.Equal(t, right, r)
}
