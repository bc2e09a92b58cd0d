package pulsegen

import (
	"math"

	"github.com/nasa-jpl/pulselab/util"
)

// CorrelationSpectroscopy plays two XY8 sequences separated by tau0 before
// each laser readout.  In the reference half the last pi/2 pulse of the
// second sequence is switched from the Q gate to the I gate.
//
// The program length is reported as the derived setting program_duration, in us.
type CorrelationSpectroscopy struct{}

// Name satisfies Generator
func (CorrelationSpectroscopy) Name() string { return "correlation_spectroscopy" }

// Params satisfies Generator
func (CorrelationSpectroscopy) Params() []Param {
	return []Param{
		{Name: "t_gate", Unit: "us", Default: 5, Limits: positive},
		{Name: "t_delay", Unit: "us", Default: 1, Limits: positive},
		{Name: "t_AOM", Unit: "us", Default: 5, Limits: positive},
		{Name: "t_readout_delay", Unit: "us", Default: 2.3, Limits: positive},
		{Name: "t_pi", Unit: "ns", Default: 24, Limits: positive},
		{Name: "t_IQ_padding", Unit: "ns", Default: 30, Limits: positive},
		{Name: "N_pi", Unit: "", Default: 1, Limits: util.Limiter{Min: 1, Max: 1000},
			Description: "number of blocks of eight pi pulses in each XY8"},
		{Name: "tau0", Unit: "ns", Default: 1500, Limits: positive,
			Description: "free evolution between the two XY8 sequences"},
	}
}

// Make satisfies Generator
func (CorrelationSpectroscopy) Make(b *Builder, s Settings) error {
	gate := s["t_gate"] * us
	aom := s["t_AOM"] * us
	delay := s["t_delay"] * us
	pi := s["t_pi"] * ns
	iqPad := s["t_IQ_padding"] * ns
	readoutDelay := s["t_readout_delay"] * us
	tau0 := s["tau0"] * ns
	blocks := int(math.Round(s["N_pi"]))

	start := b.Quantize(2 * us)
	uwToAOM := b.Quantize(1 * us)

	a := makeXY8(start, blocks, delay, pi, iqPad)
	aEnd := a.uwStart[len(a.uwStart)-1] + pi/2
	gap := aEnd + tau0
	bUW := shift(a.uwStart, gap)
	bQ := shift(a.qStart, gap)
	seqEnd := bUW[len(bUW)-1] + pi/2

	aom1 := seqEnd + uwToAOM
	daq1 := aom1 + readoutDelay
	first := aom1 + aom
	aom2 := first + aom1
	daq2 := first + daq1

	sigUW := append(append([]float64{}, a.uwStart...), bUW...)
	uwDur := append(append([]float64{}, a.uwDur...), a.uwDur...)
	sigQ := append(append([]float64{}, a.qStart...), bQ...)
	qDur := append(append([]float64{}, a.qDur...), a.qDur...)
	nq := len(sigQ) - 1

	b.Channel("uW", append(sigUW, shift(sigUW, first)...), append(uwDur, uwDur...))
	b.Channel("Q", append(sigQ, shift(sigQ[:nq], first)...), append(qDur, qDur[:nq]...))
	b.Channel("I", shift(a.iStart, first+gap), a.iDur)
	b.Channel("AOM", []float64{aom1, aom2}, []float64{aom, aom})
	b.Channel("DAQ_sig", []float64{daq1}, []float64{gate})
	b.Channel("DAQ_ref", []float64{daq2}, []float64{gate})

	b.Derive("program_duration", math.Max(aom2+aom, daq2+gate)/us+1)
	return nil
}
