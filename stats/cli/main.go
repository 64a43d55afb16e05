package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gosuri/uilive"
	"github.com/mattn/go-isatty"
	"github.com/sugawarayuuta/sonnet"
	"github.com/webbmaffian/go-sigroute/registry"
	"github.com/webbmaffian/go-sigroute/stats"
)

func main() {
	asJSON := flag.Bool("json", false, "print one JSON snapshot per line")
	interval := flag.Duration("interval", time.Second, "refresh interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	args := flag.Args()

	if len(args) != 1 {
		log.Println("Exactly one (1) argument expected, and this must be the path to the stats file.")
		return
	}

	r, err := stats.Open(args[0])

	if err != nil {
		log.Println(err)
		return
	}

	defer r.Close()

	var render func(stats.Snapshot) error

	switch {
	case *asJSON:
		render = renderJSON(os.Stdout)
	case isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()):
		writer := uilive.New()

		// start listening for updates and render
		writer.Start()
		defer writer.Stop()

		render = renderLive(writer)
	default:
		render = renderPlain(os.Stdout)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		s, err := r.Snapshot()

		if err == nil {
			err = render(s)
		}

		if err != nil {
			log.Println(err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func renderJSON(w io.Writer) func(stats.Snapshot) error {
	return func(s stats.Snapshot) error {
		b, err := sonnet.Marshal(s)

		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
}

func renderLive(writer *uilive.Writer) func(stats.Snapshot) error {
	status := writer.Newline()
	lines := make([]io.Writer, len(registry.Names()))

	for i := range lines {
		lines[i] = writer.Newline()
	}

	return func(s stats.Snapshot) error {
		fmt.Fprintf(status, "PID %d, mode %s, DSP %s, updated %s\n", s.PID, s.Mode, s.Handoff, s.Updated.Format(time.TimeOnly))

		for i, c := range s.Channels {
			if i < len(lines) {
				printChannel(lines[i], c)
			}
		}

		return nil
	}
}

func renderPlain(w io.Writer) func(stats.Snapshot) error {
	return func(s stats.Snapshot) error {
		fmt.Fprintf(w, "%s pid=%d mode=%s dsp=%s\n", s.Updated.Format(time.RFC3339), s.PID, s.Mode, s.Handoff)

		for _, c := range s.Channels {
			printChannel(w, c)
		}

		return nil
	}
}

func printChannel(w io.Writer, c stats.ChannelStat) {
	state := ""

	if c.Closed {
		state = " (closed)"
	}

	fmt.Fprintf(w, "%-16s %8d / %-8d %5.1f%%  written %d  read %d%s\n",
		c.Name, c.Available, c.Capacity, 100*c.Fill(), c.BytesWritten, c.BytesRead, state)
}
