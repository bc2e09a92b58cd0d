package pulsegen

import "github.com/nasa-jpl/pulselab/util"

var positive = util.Limiter{Min: 0, Max: 1e9}

// T1 measures spin-lattice relaxation.  The program is split in two halves,
// each starting with a laser (AOM) pulse; a pi pulse is applied in the
// second half only, so the first half is the signal and the second the
// reference.
type T1 struct{}

// Name satisfies Generator
func (T1) Name() string { return "t1" }

// Params satisfies Generator
func (T1) Params() []Param {
	return []Param{
		{Name: "program_duration", Unit: "us", Default: 160, Limits: positive},
		{Name: "t_gate", Unit: "us", Default: 50, Limits: positive},
		{Name: "t_AOM", Unit: "us", Default: 5, Limits: positive},
		{Name: "t_readout_delay", Unit: "us", Default: 2.3, Limits: positive},
		{Name: "t_pi_pulse", Unit: "ns", Default: 24, Limits: positive},
	}
}

// Make satisfies Generator
func (T1) Make(b *Builder, s Settings) error {
	half := s["program_duration"] * us / 2
	readoutDelay := s["t_readout_delay"] * us
	gate := s["t_gate"] * us
	aom := s["t_AOM"] * us
	pi := s["t_pi_pulse"] * ns

	aom1 := 0.
	aom2 := half
	b.Channel("AOM", []float64{aom1, aom2}, []float64{aom, aom})
	b.Channel("uW", []float64{half + readoutDelay + 1*us}, []float64{pi})
	b.Channel("DAQ_sig", []float64{aom1 + readoutDelay}, []float64{gate})
	b.Channel("DAQ_ref", []float64{aom2 + readoutDelay}, []float64{gate})
	return nil
}
