// Package config reads the router configuration from a Lua script.
//
// The script is run with only the base and math libraries available and is
// expected to assign globals:
//
//	operating_mode    = "voice"   -- voice, loopback, controls_only, external_dsp
//	frame_samples     = 1024
//	sample_bytes      = 4
//	stats_path        = "/run/sigroute/stats.bin"
//	stats_interval_ms = 2000
//	channels          = { radio_to_dsp = 2^18, loopback_to_dsp = 2^17 }
//
// Globals that are not set keep their Default value.
package config

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"
)

const (
	DefaultCapacity      = 1 << 18
	DefaultFrameSamples  = 1024
	DefaultSampleBytes   = 4
	DefaultStatsInterval = 2 * time.Second
)

type Config struct {
	Mode          OperatingMode
	FrameSamples  int
	SampleBytes   int
	Channels      map[string]int // channel name -> capacity in bytes, overrides DefaultCapacity
	StatsPath     string         // empty disables the diagnostics file
	StatsInterval time.Duration
}

func Default() Config {
	return Config{
		Mode:          ModeVoice,
		FrameSamples:  DefaultFrameSamples,
		SampleBytes:   DefaultSampleBytes,
		Channels:      map[string]int{},
		StatsInterval: DefaultStatsInterval,
	}
}

// FrameBytes is the size of one frame moved through every channel.
func (cfg Config) FrameBytes() int {
	return cfg.FrameSamples * cfg.SampleBytes
}

// Capacity returns the configured capacity for a channel.
func (cfg Config) Capacity(name string) int {
	if c, ok := cfg.Channels[name]; ok {
		return c
	}

	return DefaultCapacity
}

func (cfg Config) Validate() error {
	if int(cfg.Mode) >= len(modeNames) {
		return fmt.Errorf("%w: operating mode %d", ErrInvalid, cfg.Mode)
	}

	if cfg.FrameSamples <= 0 || cfg.SampleBytes <= 0 {
		return fmt.Errorf("%w: frame of %d samples x %d bytes", ErrInvalid, cfg.FrameSamples, cfg.SampleBytes)
	}

	if cfg.StatsInterval <= 0 {
		return fmt.Errorf("%w: stats interval %s", ErrInvalid, cfg.StatsInterval)
	}

	if err := cfg.checkCapacity("default", DefaultCapacity); err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Channels))

	for name := range cfg.Channels {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if !KnownChannel(name) {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalid, name)
		}

		if err := cfg.checkCapacity(name, cfg.Channels[name]); err != nil {
			return err
		}
	}

	return nil
}

func (cfg Config) checkCapacity(name string, c int) error {
	if c <= 0 || bits.OnesCount(uint(c)) != 1 {
		return fmt.Errorf("%w: capacity of %s is %d, not a power of two", ErrInvalid, name, c)
	}

	if cfg.FrameBytes() > c {
		return fmt.Errorf("%w: frame of %d bytes does not fit %s channel of %d bytes", ErrInvalid, cfg.FrameBytes(), name, c)
	}

	return nil
}

func Load(path string) (Config, error) {
	return load(func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

func LoadString(src string) (Config, error) {
	return load(func(L *lua.LState) error {
		return L.DoString(src)
	})
}

func load(run func(*lua.LState) error) (cfg Config, err error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err = L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), Protect: true}, lua.LString(lib.name)); err != nil {
			return
		}
	}

	if err = run(L); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	cfg = Default()

	if mode, ok, e := stringGlobal(L, "operating_mode"); e != nil {
		return cfg, e
	} else if ok {
		if cfg.Mode, err = ParseOperatingMode(mode); err != nil {
			return
		}
	}

	if cfg.StatsPath, _, err = stringGlobal(L, "stats_path"); err != nil {
		return
	}

	if err = intGlobal(L, "frame_samples", &cfg.FrameSamples); err != nil {
		return
	}

	if err = intGlobal(L, "sample_bytes", &cfg.SampleBytes); err != nil {
		return
	}

	ms := int(cfg.StatsInterval / time.Millisecond)

	if err = intGlobal(L, "stats_interval_ms", &ms); err != nil {
		return
	}

	cfg.StatsInterval = time.Duration(ms) * time.Millisecond

	if err = readChannels(L, cfg.Channels); err != nil {
		return
	}

	return cfg, cfg.Validate()
}

func stringGlobal(L *lua.LState, name string) (s string, ok bool, err error) {
	switch v := L.GetGlobal(name).(type) {
	case *lua.LNilType:
		return
	case lua.LString:
		return string(v), true, nil
	default:
		return "", false, fmt.Errorf("%w: %s must be a string, got %s", ErrInvalid, name, v.Type())
	}
}

func intGlobal(L *lua.LState, name string, dst *int) error {
	v := L.GetGlobal(name)

	if v == lua.LNil {
		return nil
	}

	n, err := toInt(v)

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
	}

	*dst = n
	return nil
}

func readChannels(L *lua.LState, dst map[string]int) (err error) {
	v := L.GetGlobal("channels")

	if v == lua.LNil {
		return
	}

	tbl, ok := v.(*lua.LTable)

	if !ok {
		return fmt.Errorf("%w: channels must be a table, got %s", ErrInvalid, v.Type())
	}

	tbl.ForEach(func(key, val lua.LValue) {
		if err != nil {
			return
		}

		name, ok := key.(lua.LString)

		if !ok {
			err = fmt.Errorf("%w: channel key %s is not a name", ErrInvalid, key.String())
			return
		}

		var capacity int

		if capacity, err = toInt(val); err != nil {
			err = fmt.Errorf("%w: channel %s: %w", ErrInvalid, name, err)
			return
		}

		dst[string(name)] = capacity
	})

	return
}

func toInt(v lua.LValue) (int, error) {
	n, ok := v.(lua.LNumber)

	if !ok {
		return 0, fmt.Errorf("expected a number, got %s", v.Type())
	}

	f := float64(n)

	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%v is not an integer", f)
	}

	return int(f), nil
}
