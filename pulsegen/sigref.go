package pulsegen

import (
	"fmt"
	"math"

	"github.com/nasa-jpl/pulselab/util"
)

// sigRefSpeedups are the multiples of f_tick played by the uW train, one
// third of the program each
var sigRefSpeedups = [...]int{4, 2, 1}

// SigRefReadout checks the signal and reference gates of the acquisition
// hardware.  The uW output plays a 50% duty cycle train at 4, 2, and 1 times
// f_tick, each for a third of the program, while DAQ_sig and DAQ_ref open at
// fixed times.  The program length is reported as the derived setting
// program_duration, in us.
type SigRefReadout struct{}

// Name satisfies Generator
func (SigRefReadout) Name() string { return "sig_ref_readout" }

// Params satisfies Generator
func (SigRefReadout) Params() []Param {
	return []Param{
		{Name: "t_readout_sig", Unit: "us", Default: 0, Limits: positive},
		{Name: "t_readout_ref", Unit: "us", Default: 50, Limits: positive},
		{Name: "t_gate", Unit: "us", Default: 50, Limits: positive},
		{Name: "f_tick", Unit: "MHz", Default: 2.5, Limits: util.Limiter{Min: 1e-3, Max: 10},
			Description: "slowest frequency of the uW train"},
		{Name: "periods", Unit: "", Default: 600, Limits: util.Limiter{Min: 3, Max: 6e4},
			Description: "program length in periods of f_tick"},
	}
}

// Make satisfies Generator
func (SigRefReadout) Make(b *Builder, s Settings) error {
	tick := 1 * us / s["f_tick"]
	third := int(math.Round(s["periods"])) / 3
	if third == 0 {
		return fmt.Errorf("%w: periods must be at least 3", ErrOutOfRange)
	}
	gate := s["t_gate"] * us
	sig := s["t_readout_sig"] * us
	ref := s["t_readout_ref"] * us

	var starts, durs []float64
	var block float64
	for _, k := range sigRefSpeedups {
		period := tick / float64(k)
		for i := 0; i < third*k; i++ {
			starts = append(starts, block+float64(i)*period)
			durs = append(durs, period/2)
		}
		block += float64(third) * tick
	}
	b.Channel("uW", starts, durs)
	b.Channel("DAQ_sig", []float64{sig}, []float64{gate})
	b.Channel("DAQ_ref", []float64{ref}, []float64{gate})

	// the low half of the last tick is all-off time
	low := tick / 2
	b.SetPadding(b.padding + low)
	end := math.Max(block-low, math.Max(sig, ref)+gate)
	b.Derive("program_duration", (end+b.padding)/us)
	return nil
}
