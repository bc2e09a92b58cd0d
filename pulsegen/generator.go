// Package pulsegen builds pulse programs from a handful of named settings.
//
// A Generator describes its settings as a list of Params and knows how to
// lay out channels given values for them.  Build adds the settings every
// generator shares (sync output, trailing padding, short pulses), validates
// the values, runs the generator, and compiles the result.
package pulsegen

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nasa-jpl/pulselab/pulse"
	"github.com/nasa-jpl/pulselab/util"
	"go.uber.org/multierr"
)

var (
	// ErrUnknownSetting is generated when a setting is not a param of the generator
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrOutOfRange is generated when a setting is outside its limits
	ErrOutOfRange = errors.New("setting out of range")

	// ErrNoShortPulse is generated when a generator asks for a short pulse
	// channel but the board has no short pulse field
	ErrNoShortPulse = errors.New("short pulses are not configured for this board")

	// ErrUnknownGenerator is generated by Lookup for names it does not know
	ErrUnknownGenerator = errors.New("unknown generator")
)

const (
	syncOutKey    = "sync_out"
	paddingKey    = "all_off_padding"
	shortPulseKey = "short_pulse"

	// SyncOutChannel is the name of the channel the sync output is put on
	SyncOutChannel = "sync_out"

	// maxSyncPeriods bounds the number of sync pulses in one program
	maxSyncPeriods = 1 << 20
)

// common are the params every generator has
var common = []Param{
	{Name: syncOutKey, Unit: "MHz", Default: -10, Limits: util.Limiter{Min: -1e3, Max: 1e3},
		Description: "frequency of a 50% duty cycle sync output, negative or zero disables"},
	{Name: paddingKey, Unit: "ns", Default: 0, Limits: util.Limiter{Min: 0, Max: 1e12},
		Description: "trailing all-off time at the end of the program"},
	{Name: shortPulseKey, Unit: "", Default: 0, Limits: util.Limiter{Min: 0, Max: 1},
		Description: "1 to replace instructions shorter than the board minimum with short pulses"},
}

// Config describes the board a program is built for
type Config struct {
	// Clock is the board timebase
	Clock pulse.Clock

	// Table maps channel names to output bits
	Table pulse.Table

	// ShortPulseBit is the lowest bit of the short pulse field, zero if the
	// board has none
	ShortPulseBit uint
}

// Generator lays out the channels of one kind of pulse sequence
type Generator interface {
	// Name is the name the generator is registered under
	Name() string

	// Params are the settings specific to this generator
	Params() []Param

	// Make adds channels to b.  s holds a value for every param, including
	// the common ones.  Times are given to the builder in ns.
	Make(b *Builder, s Settings) error
}

// Params returns every param of g, the common ones first
func Params(g Generator) []Param {
	own := g.Params()
	out := make([]Param, 0, len(common)+len(own))
	out = append(out, common...)
	return append(out, own...)
}

// Result is the output of Build
type Result struct {
	// Program is the compiled program
	Program pulse.Program

	// Channels are the channels the program was compiled from, the sync
	// output last if enabled
	Channels []pulse.Channel

	// Names holds the name of each channel, parallel to Channels
	Names []string

	// Derived holds values computed during the build, such as padding
	// derived from a frequency.  It is recomputed on every call.
	Derived Settings
}

// Build validates s, lays out the channels of g and compiles them.  Settings
// missing from s take their defaults.  Nothing is kept between calls.
func Build(g Generator, cfg Config, s Settings) (Result, error) {
	params := Params(g)
	if err := Validate(params, s); err != nil {
		return Result{}, err
	}
	if err := cfg.Clock.Valid(); err != nil {
		return Result{}, err
	}
	st := merge(params, s)
	b := newBuilder(cfg, st[paddingKey])
	if err := g.Make(b, st); err != nil {
		return Result{}, fmt.Errorf("%s: %w", g.Name(), err)
	}
	if err := b.Err(); err != nil {
		return Result{}, fmt.Errorf("%s: %w", g.Name(), err)
	}
	if f := st[syncOutKey]; f > 0 {
		addSyncOut(b, f)
		if err := b.Err(); err != nil {
			return Result{}, fmt.Errorf("%s: %w", g.Name(), err)
		}
	}

	opts := pulse.Options{Padding: b.padding}
	if st[shortPulseKey] != 0 {
		if cfg.ShortPulseBit == 0 {
			return Result{}, ErrNoShortPulse
		}
		opts.ShortPulseBit = cfg.ShortPulseBit
	}
	prog, err := pulse.Compile(cfg.Clock, b.channels, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Program: prog, Channels: b.channels, Names: b.names, Derived: b.derived}, nil
}

// addSyncOut stretches every pulse that ends at the end of the program so
// the program is a whole number of sync periods long, then adds a 50% duty
// cycle channel with that period.  The period is rounded to a whole number
// of clock periods, at least two, and the frequency actually played is
// reported as a derived setting.
func addSyncOut(b *Builder, freqMHz float64) {
	clk := b.cfg.Clock
	periodNS := 1e3 / freqMHz
	if !clk.Representable(periodNS) {
		b.err = multierr.Append(b.err, fmt.Errorf("%w: sync_out of %g MHz is too slow", ErrOutOfRange, freqMHz))
		return
	}
	period := clk.Ticks(periodNS)
	if period < 2 {
		b.err = multierr.Append(b.err, fmt.Errorf("%w: sync_out of %g MHz is above half the %g MHz clock",
			ErrOutOfRange, freqMHz, clk.FrequencyMHz))
		return
	}
	var end int64
	for _, c := range b.channels {
		if e := c.End(); e > end {
			end = e
		}
	}
	n := (end + period - 1) / period
	if n > maxSyncPeriods {
		b.err = multierr.Append(b.err, fmt.Errorf("%w: sync_out of %g MHz needs %d periods, at most %d are allowed",
			ErrOutOfRange, freqMHz, n, maxSyncPeriods))
		return
	}
	adjusted := n * period
	for i := range b.channels {
		for j, p := range b.channels[i].Pulses {
			if p.End() == end {
				b.channels[i].Pulses[j].Duration = adjusted - p.Start
			}
		}
	}
	starts := make([]float64, n)
	durs := make([]float64, n)
	for k := range starts {
		starts[k] = clk.NS(int64(k) * period)
		durs[k] = clk.NS(period / 2)
	}
	b.Channel(SyncOutChannel, starts, durs)
	b.Derive(syncOutKey, clk.FrequencyMHz/float64(period))
}

// Names returns the names Lookup knows, sorted
func Names() []string {
	out := []string{"correlation_spectroscopy", "pwm", "rabi", "sig_ref_readout", "t1", "t2", "xy8"}
	sort.Strings(out)
	return out
}

// Lookup returns a new generator by name.  The name is not case sensitive.
func Lookup(name string) (Generator, error) {
	switch strings.ToLower(name) {
	case "pwm":
		return PWM{}, nil
	case "t1":
		return T1{}, nil
	case "t2", "hahn", "hahn-echo":
		return T2{}, nil
	case "rabi":
		return Rabi{}, nil
	case "xy8":
		return XY8{}, nil
	case "correlation_spectroscopy", "cs":
		return CorrelationSpectroscopy{}, nil
	case "sig_ref_readout", "sigref":
		return SigRefReadout{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
	}
}
