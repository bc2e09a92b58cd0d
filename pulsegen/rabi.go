package pulsegen

import "fmt"

// Rabi applies a single microwave pulse of variable length followed by a
// laser readout, then repeats the readout without microwaves as a
// reference.
//
// Microwave pulses of 5 clock periods or less are played with the short
// pulse field: the uW output is held for 5 periods and a short pulse
// channel cuts it to the requested length.
type Rabi struct{}

// Name satisfies Generator
func (Rabi) Name() string { return "rabi" }

// Params satisfies Generator
func (Rabi) Params() []Param {
	return []Param{
		{Name: "program_duration", Unit: "us", Default: 30, Limits: positive},
		{Name: "t_uW", Unit: "ns", Default: 200, Limits: positive},
		{Name: "t_readout_delay", Unit: "us", Default: 2.3, Limits: positive},
		{Name: "t_AOM", Unit: "us", Default: 2, Limits: positive},
		{Name: "t_uW_to_AOM_delay", Unit: "us", Default: 1, Limits: positive},
		{Name: "t_gate", Unit: "us", Default: 5, Limits: positive},
	}
}

// Make satisfies Generator
func (Rabi) Make(b *Builder, s Settings) error {
	aom := s["t_AOM"] * us
	readoutDelay := s["t_readout_delay"] * us
	gate := s["t_gate"] * us
	delay := s["t_uW_to_AOM_delay"] * us
	half := s["program_duration"] * us / 2
	uw := s["t_uW"] * ns

	tmin := b.TMin()
	if uw > 0 && uw <= 5*tmin {
		periods := int(b.cfg.Clock.Ticks(uw))
		if periods == 0 {
			return fmt.Errorf("%w: t_uW of %g ns is under half a clock period", ErrOutOfRange, uw)
		}
		b.ShortPulse(periods, []float64{0}, []float64{5 * tmin})
		b.Channel("uW", []float64{0}, []float64{5 * tmin})
	} else {
		b.Channel("uW", []float64{0}, []float64{uw})
	}

	t := delay + aom + uw
	b.Channel("AOM", []float64{t, half + t}, []float64{aom, aom})
	b.Channel("DAQ_sig", []float64{t + aom + readoutDelay}, []float64{gate})
	b.Channel("DAQ_ref", []float64{half + t + aom + readoutDelay}, []float64{gate})
	return nil
}
