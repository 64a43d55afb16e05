package config

import "fmt"

// OperatingMode selects which stages run and where the transmit signal
// comes from.
type OperatingMode uint8

const (
	ModeVoice        OperatingMode = iota // DSP runs, transmit audio from the microphone
	ModeLoopback                          // DSP runs, transmit audio from the loopback device
	ModeControlsOnly                      // no audio path at all
	ModeExternalDSP                       // an external process owns the channels
)

var modeNames = [...]string{
	ModeVoice:        "voice",
	ModeLoopback:     "loopback",
	ModeControlsOnly: "controls_only",
	ModeExternalDSP:  "external_dsp",
}

func (m OperatingMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}

	return fmt.Sprintf("OperatingMode(%d)", m)
}

func ParseOperatingMode(s string) (OperatingMode, error) {
	for m, name := range modeNames {
		if name == s {
			return OperatingMode(m), nil
		}
	}

	return 0, fmt.Errorf("%w: unknown operating mode %q", ErrInvalid, s)
}
