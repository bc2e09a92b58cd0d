package pulsegen

import (
	"fmt"

	"github.com/nasa-jpl/pulselab/pulse"
	"go.uber.org/multierr"
)

// Builder collects the channels a generator makes.  A new Builder is used
// for every build, so nothing carries over between calls.
type Builder struct {
	cfg      Config
	channels []pulse.Channel
	names    []string
	padding  float64
	derived  Settings
	err      error
}

func newBuilder(cfg Config, padding float64) *Builder {
	return &Builder{cfg: cfg, padding: padding, derived: Settings{}}
}

// TMin is the clock period in ns
func (b *Builder) TMin() float64 {
	return b.cfg.Clock.Period()
}

// Quantize rounds a time in ns to the clock
func (b *Builder) Quantize(t float64) float64 {
	return b.cfg.Clock.Quantize(t)
}

func (b *Builder) add(name string, mask uint64, starts, durations []float64) {
	c, err := pulse.NewChannel(mask, starts, durations, b.cfg.Clock)
	b.push(name, c, err)
}

func (b *Builder) push(name string, c pulse.Channel, err error) {
	if err != nil {
		b.err = multierr.Append(b.err, fmt.Errorf("channel %s: %w", name, err))
		return
	}
	b.channels = append(b.channels, c)
	b.names = append(b.names, name)
}

// Channel adds a channel driving the output named in the channel table.
// times are in ns.
func (b *Builder) Channel(name string, starts, durations []float64) {
	mask, err := b.cfg.Table.Mask(name)
	if err != nil {
		b.err = multierr.Append(b.err, err)
		return
	}
	b.add(name, mask, starts, durations)
}

// Output adds a channel driving a physical output by number
func (b *Builder) Output(bit uint, starts, durations []float64) {
	c, err := pulse.NewBitChannel(bit, starts, durations, b.cfg.Clock)
	b.push(fmt.Sprintf("chan_%d", bit), c, err)
}

// ShortPulse adds a channel that drives the short pulse period field with
// the given number of clock periods.  Outputs high at the same time are high
// for that many periods only.
func (b *Builder) ShortPulse(periods int, starts, durations []float64) {
	if b.cfg.ShortPulseBit == 0 {
		b.err = multierr.Append(b.err, ErrNoShortPulse)
		return
	}
	if periods < 0 || periods > 7 {
		b.err = multierr.Append(b.err, fmt.Errorf("short pulse of %d periods, must be in [0,7]", periods))
		return
	}
	mask := uint64(periods) << b.cfg.ShortPulseBit
	b.add(fmt.Sprintf("%d period", periods), mask, starts, durations)
}

// SetPadding overrides the all-off time at the end of the program (ns).  The
// value is reported as a derived setting.
func (b *Builder) SetPadding(t float64) {
	b.padding = t
	b.Derive(paddingKey, t)
}

// Derive records a value computed by the generator so callers can see it
func (b *Builder) Derive(name string, v float64) {
	b.derived[name] = v
}

// Err returns every error met while building
func (b *Builder) Err() error {
	return b.err
}
