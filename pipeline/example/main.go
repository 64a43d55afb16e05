// Command example runs the signal router against synthetic devices: a sine
// tone on the radio input, silence on the microphone and loopback inputs, and
// sinks that discard what they are given.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/webbmaffian/go-sigroute/config"
	"github.com/webbmaffian/go-sigroute/handoff"
	"github.com/webbmaffian/go-sigroute/pipeline"
	"github.com/webbmaffian/go-sigroute/registry"
	"github.com/webbmaffian/go-sigroute/stats"
	"golang.org/x/sync/errgroup"
)

const sampleRate = 48000

func main() {
	configPath := flag.String("config", "", "path to a Lua configuration script")
	realtime := flag.Bool("rt", false, "run stages with SCHED_FIFO priority")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	cfg := config.Default()

	if *configPath != "" {
		var err error

		if cfg, err = config.Load(*configPath); err != nil {
			log.Println(err)
			return
		}
	}

	reg := registry.New(cfg)

	if err := reg.InitializeAll(); err != nil {
		log.Println(err)
		return
	}

	defer func() {
		if err := reg.TeardownAll(); err != nil {
			log.Println(err)
		}
	}()

	h := handoff.New(cfg.Mode)
	dsp := pipeline.NewDSP(reg, h, pipeline.Passthrough{})
	runner := pipeline.NewRunner(reg, h)
	runner.Realtime = *realtime

	// Controls only: no audio flows, the process just keeps the channels
	// and the diagnostics file alive.
	if cfg.Mode != config.ModeControlsOnly {
		period := time.Duration(cfg.FrameSamples) * time.Second / sampleRate
		runner.Add(
			dsp.Stage(),
			pipeline.CaptureStage(reg, tone(ctx, period, cfg.SampleBytes)),
			pipeline.PlaybackStage(reg, discard()),
			pipeline.LoopbackCaptureStage(reg, silence(ctx, period)),
			pipeline.LoopbackPlaybackStage(reg, discard()),
		)
	}

	var pub *stats.Publisher

	if cfg.StatsPath != "" {
		var err error

		if pub, err = stats.NewPublisher(cfg.StatsPath, reg, h); err != nil {
			log.Println(err)
			return
		}

		defer func() {
			if err := pub.Close(); err != nil {
				log.Println(err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Mode == config.ModeControlsOnly {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	} else {
		g.Go(func() error {
			defer stop()
			return runner.Run(gctx)
		})
	}

	if pub != nil {
		g.Go(func() error {
			return pub.Run(gctx)
		})
	}

	log.Printf("running in %s mode, %d byte frames", cfg.Mode, cfg.FrameBytes())

	if err := g.Wait(); err != nil {
		log.Println(err)
	}

	log.Printf("stopped after %d frames", dsp.Frames())
}

// tone produces a 1 kHz sine on the left channel and silence on the right,
// paced like a sound card. Samples are little endian float32 when the sample
// size allows it.
func tone(ctx context.Context, period time.Duration, sampleBytes int) pipeline.Source {
	ticker := time.NewTicker(period)
	var phase float64

	return pipeline.SourceFunc(func(frame []byte) error {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return ctx.Err()
		case <-ticker.C:
		}

		clear(frame)

		if sampleBytes != 4 {
			return nil
		}

		for i := 0; i+8 <= len(frame); i += 8 {
			v := float32(0.5 * math.Sin(phase))
			binary.LittleEndian.PutUint32(frame[i:], math.Float32bits(v))
			phase += 2 * math.Pi * 1000 / sampleRate
		}

		phase = math.Mod(phase, 2*math.Pi)
		return nil
	})
}

func silence(ctx context.Context, period time.Duration) pipeline.Source {
	ticker := time.NewTicker(period)

	return pipeline.SourceFunc(func(frame []byte) error {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return ctx.Err()
		case <-ticker.C:
		}

		clear(frame)
		return nil
	})
}

func discard() pipeline.Sink {
	return pipeline.SinkFunc(func([]byte) error {
		return nil
	})
}
