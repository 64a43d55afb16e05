package pipeline

import (
	"context"

	"github.com/webbmaffian/go-sigroute/registry"
)

// CaptureStage reads interleaved stereo frames from the radio sound card,
// left channel radio and right channel microphone, and feeds radio_to_dsp
// and mic_to_dsp.
func CaptureStage(reg *registry.Registry, src Source) Stage {
	cfg := reg.Config()
	radioCh := reg.MustGet(registry.RadioToDSP)
	micCh := reg.MustGet(registry.MicToDSP)

	return Stage{
		Name: "radio capture",
		run: func(ctx context.Context) error {
			stereo := make([]byte, 2*cfg.FrameBytes())
			radio := make([]byte, cfg.FrameBytes())
			mic := make([]byte, cfg.FrameBytes())

			for ctx.Err() == nil {
				if err := src.Capture(stereo); err != nil {
					return err
				}

				deinterleave(stereo, radio, mic, cfg.SampleBytes)

				if err := radioCh.Write(radio); err != nil {
					return err
				}

				if err := micCh.Write(mic); err != nil {
					return err
				}
			}

			return ctx.Err()
		},
	}
}

// PlaybackStage interleaves dsp_to_radio (left) and dsp_to_speaker (right)
// into stereo frames for the radio sound card.
func PlaybackStage(reg *registry.Registry, sink Sink) Stage {
	cfg := reg.Config()
	radioCh := reg.MustGet(registry.DSPToRadio)
	speakerCh := reg.MustGet(registry.DSPToSpeaker)

	return Stage{
		Name: "radio playback",
		run: func(ctx context.Context) error {
			stereo := make([]byte, 2*cfg.FrameBytes())
			radio := make([]byte, cfg.FrameBytes())
			speaker := make([]byte, cfg.FrameBytes())

			for ctx.Err() == nil {
				if err := radioCh.Read(radio); err != nil {
					return err
				}

				if err := speakerCh.Read(speaker); err != nil {
					return err
				}

				interleave(stereo, radio, speaker, cfg.SampleBytes)

				if err := sink.Play(stereo); err != nil {
					return err
				}
			}

			return ctx.Err()
		},
	}
}

// LoopbackCaptureStage feeds loopback_to_dsp from the loopback device.
func LoopbackCaptureStage(reg *registry.Registry, src Source) Stage {
	cfg := reg.Config()
	ch := reg.MustGet(registry.LoopbackToDSP)

	return Stage{
		Name: "loopback capture",
		run: func(ctx context.Context) error {
			frame := make([]byte, cfg.FrameBytes())

			for ctx.Err() == nil {
				if err := src.Capture(frame); err != nil {
					return err
				}

				if err := ch.Write(frame); err != nil {
					return err
				}
			}

			return ctx.Err()
		},
	}
}

// LoopbackPlaybackStage drains dsp_to_loopback into the loopback device.
func LoopbackPlaybackStage(reg *registry.Registry, sink Sink) Stage {
	cfg := reg.Config()
	ch := reg.MustGet(registry.DSPToLoopback)

	return Stage{
		Name: "loopback playback",
		run: func(ctx context.Context) error {
			frame := make([]byte, cfg.FrameBytes())

			for ctx.Err() == nil {
				if err := ch.Read(frame); err != nil {
					return err
				}

				if err := sink.Play(frame); err != nil {
					return err
				}
			}

			return ctx.Err()
		},
	}
}

func deinterleave(stereo, left, right []byte, sample int) {
	for i, j := 0, 0; j < len(left); i, j = i+2*sample, j+sample {
		copy(left[j:j+sample], stereo[i:])
		copy(right[j:j+sample], stereo[i+sample:])
	}
}

func interleave(stereo, left, right []byte, sample int) {
	for i, j := 0, 0; j < len(left); i, j = i+2*sample, j+sample {
		copy(stereo[i:i+sample], left[j:])
		copy(stereo[i+sample:i+2*sample], right[j:])
	}
}
