package pulse

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/nasa-jpl/pulselab/mathx"
	"go.uber.org/multierr"
)

var (
	// ErrLengthMismatch is generated when a channel is given a different
	// number of start times and durations
	ErrLengthMismatch = errors.New("start times and durations differ in length")

	// ErrBadTime is generated when a time is negative, NaN, infinite, or
	// too long to count in clock periods
	ErrBadTime = errors.New("time must be finite, non-negative, and under MaxTicks clock periods")

	// ErrBadClock is generated when the clock frequency is not a positive number
	ErrBadClock = errors.New("clock frequency must be finite and positive")

	// ErrBadBit is generated when an output bit does not fit in the flags word
	ErrBadBit = errors.New("output bit must be in [0,63]")
)

// MaxTicks bounds every time in clock periods.  Sums of a few such times
// stay well inside an int64.
const MaxTicks = 1 << 60

// Clock is the timebase of a pulse controller
type Clock struct {
	// FrequencyMHz is the core clock frequency in MHz
	FrequencyMHz float64 `json:"frequencyMHz" yaml:"FrequencyMHz"`
}

// Valid returns ErrBadClock if the frequency is unusable
func (c Clock) Valid() error {
	f := c.FrequencyMHz
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrBadClock
	}
	return nil
}

// Period returns t_min, the clock period in ns
func (c Clock) Period() float64 {
	return 1e3 / c.FrequencyMHz
}

// Ticks quantizes a time in ns to the nearest whole number of clock periods
func (c Clock) Ticks(ns float64) int64 {
	return mathx.Steps(ns, c.Period())
}

// NS converts a number of clock periods to ns
func (c Clock) NS(ticks int64) float64 {
	return float64(ticks) * c.Period()
}

// Quantize rounds a time in ns to the nearest multiple of t_min
func (c Clock) Quantize(ns float64) float64 {
	return mathx.Round(ns, c.Period())
}

// Pulse is a single high period of a channel, in clock periods
type Pulse struct {
	Start    int64
	Duration int64
}

// End is the time the pulse falls
func (p Pulse) End() int64 {
	return p.Start + p.Duration
}

// Channel is an output mask and the pulses it carries.
//
// Mask is usually a single output bit, but may hold any bits, including ones
// above the physical outputs such as the short pulse period field.
type Channel struct {
	Mask   uint64
	Pulses []Pulse
}

// NewChannel quantizes start times and durations (ns) to the clock and returns
// a channel.  Every invalid value is reported in the returned error.
func NewChannel(mask uint64, starts, durations []float64, clk Clock) (Channel, error) {
	if err := clk.Valid(); err != nil {
		return Channel{}, err
	}
	if len(starts) != len(durations) {
		return Channel{}, fmt.Errorf("%w: %d starts, %d durations", ErrLengthMismatch, len(starts), len(durations))
	}
	var err error
	pulses := make([]Pulse, len(starts))
	for i := range starts {
		s, d := starts[i], durations[i]
		if !clk.Representable(s) {
			err = multierr.Append(err, fmt.Errorf("%w: start %d = %v", ErrBadTime, i, s))
		}
		if !clk.Representable(d) {
			err = multierr.Append(err, fmt.Errorf("%w: duration %d = %v", ErrBadTime, i, d))
		}
		pulses[i] = Pulse{Start: clk.Ticks(s), Duration: clk.Ticks(d)}
	}
	if err != nil {
		return Channel{}, err
	}
	return Channel{Mask: mask, Pulses: pulses}, nil
}

// NewBitChannel is NewChannel for a single output bit
func NewBitChannel(bit uint, starts, durations []float64, clk Clock) (Channel, error) {
	if bit > 63 {
		return Channel{}, fmt.Errorf("%w: %d", ErrBadBit, bit)
	}
	return NewChannel(1<<bit, starts, durations, clk)
}

// Representable returns true if ns is a finite, non-negative time shorter
// than MaxTicks clock periods
func (c Clock) Representable(ns float64) bool {
	if ns < 0 || math.IsNaN(ns) || math.IsInf(ns, 0) {
		return false
	}
	return ns/c.Period() < MaxTicks
}

// End returns the latest falling edge of the channel
func (c Channel) End() int64 {
	var end int64
	for _, p := range c.Pulses {
		if e := p.End(); e > end {
			end = e
		}
	}
	return end
}

// Table maps channel names to output bit positions
type Table map[string]uint

// Mask returns the output mask of a named channel
func (t Table) Mask(name string) (uint64, error) {
	bit, ok := t[name]
	if !ok {
		return 0, fmt.Errorf("channel %q is not in the channel table", name)
	}
	if bit > 63 {
		return 0, fmt.Errorf("%w: channel %q at bit %d", ErrBadBit, name, bit)
	}
	return 1 << bit, nil
}

// Names inverts the table, bit => name.  If two names share a bit the
// alphabetically first one wins.
func (t Table) Names() map[uint]string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := make(map[uint]string, len(t))
	for _, k := range keys {
		out[t[k]] = k
	}
	return out
}
