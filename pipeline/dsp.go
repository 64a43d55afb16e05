package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/webbmaffian/go-sigroute/config"
	"github.com/webbmaffian/go-sigroute/handoff"
	"github.com/webbmaffian/go-sigroute/registry"
)

// Processor turns one input frame into the three output frames. All slices
// are exactly one frame long and only valid during the call.
type Processor interface {
	// RX demodulates the radio signal.
	RX(radio, speaker, loopback, tx []byte)

	// TX modulates signal, which comes from the microphone or, when
	// fromLoopback is set, from the loopback device.
	TX(signal, speaker, loopback, tx []byte, fromLoopback bool)
}

// DSP is the internal processing loop. It yields the channels to an
// external DSP whenever the handoff is in the External state.
type DSP struct {
	reg      *registry.Registry
	handoff  *handoff.Handoff
	proc     Processor
	mode     atomic.Uint32
	transmit atomic.Bool
	frames   atomic.Uint64
}

func NewDSP(reg *registry.Registry, h *handoff.Handoff, proc Processor) *DSP {
	d := &DSP{
		reg:     reg,
		handoff: h,
		proc:    proc,
	}

	d.mode.Store(uint32(reg.Config().Mode))

	if reg.Config().Mode == config.ModeControlsOnly {
		h.Suspend()
	}

	return d
}

// idle reports whether the internal loop must stay parked in mode m.
func idle(m config.OperatingMode) bool {
	return m == config.ModeExternalDSP || m == config.ModeControlsOnly
}

func (d *DSP) Mode() config.OperatingMode {
	return config.OperatingMode(d.mode.Load())
}

// SetMode switches the operating mode at runtime. Entering external DSP or
// controls only mode parks the loop at its next iteration; leaving them
// resumes the loop.
func (d *DSP) SetMode(m config.OperatingMode) {
	prev := config.OperatingMode(d.mode.Swap(uint32(m)))

	switch {
	case idle(m) && !idle(prev):
		d.handoff.Suspend()
	case !idle(m) && idle(prev):
		d.handoff.ReclaimInternal()
	}
}

func (d *DSP) SetTransmit(on bool) {
	d.transmit.Store(on)
}

func (d *DSP) Transmitting() bool {
	return d.transmit.Load()
}

// Frames returns the number of frames processed so far.
func (d *DSP) Frames() uint64 {
	return d.frames.Load()
}

func (d *DSP) Stage() Stage {
	return Stage{
		Name: "dsp",
		run:  d.run,
	}
}

func (d *DSP) run(ctx context.Context) error {
	size := d.reg.Config().FrameBytes()

	radioIn := d.reg.MustGet(registry.RadioToDSP)
	micIn := d.reg.MustGet(registry.MicToDSP)
	loopIn := d.reg.MustGet(registry.LoopbackToDSP)
	loopOut := d.reg.MustGet(registry.DSPToLoopback)
	radioOut := d.reg.MustGet(registry.DSPToRadio)
	speakerOut := d.reg.MustGet(registry.DSPToSpeaker)

	radio := make([]byte, size)
	mic := make([]byte, size)
	loop := make([]byte, size)
	speaker := make([]byte, size)
	loopback := make([]byte, size)
	tx := make([]byte, size)

	for ctx.Err() == nil {
		if err := d.handoff.Checkpoint(); err != nil {
			return err
		}

		if err := radioIn.Read(radio); err != nil {
			return err
		}

		if err := micIn.Read(mic); err != nil {
			return err
		}

		fromLoopback := d.Mode() == config.ModeLoopback
		signal := mic

		if fromLoopback {
			if err := loopIn.Read(loop); err != nil {
				return err
			}

			signal = loop
		} else {
			// Nobody consumes the loopback input; keep it from backing up.
			loopIn.Clear()
		}

		if d.Transmitting() {
			d.proc.TX(signal, speaker, loopback, tx, fromLoopback)
		} else {
			d.proc.RX(radio, speaker, loopback, tx)
		}

		if err := loopOut.Write(loopback); err != nil {
			return err
		}

		if err := radioOut.Write(tx); err != nil {
			return err
		}

		if err := speakerOut.Write(speaker); err != nil {
			return err
		}

		d.frames.Add(1)
	}

	return ctx.Err()
}
