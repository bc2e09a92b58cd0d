package pulsegen

import (
	"math"

	"github.com/nasa-jpl/pulselab/util"
)

// xy8Q are the pi pulses of a block of eight, zero indexed, that are Y
// pulses and need the Q gate
var xy8Q = [...]int{1, 3, 4, 6}

// XY8 is a dynamical decoupling sequence: a pi/2 pulse, N_pi blocks of eight
// pi pulses with the phase pattern X-Y-X-Y-Y-X-Y-X spaced t_delay apart, and
// a final -x pi/2 pulse, followed by a laser readout.  The whole sequence is
// repeated as a reference in which the last pi/2 pulse is not phase flipped.
//
// The program length is reported as the derived setting program_duration, in us.
type XY8 struct{}

// Name satisfies Generator
func (XY8) Name() string { return "xy8" }

// Params satisfies Generator
func (XY8) Params() []Param {
	return []Param{
		{Name: "t_gate", Unit: "us", Default: 5, Limits: positive},
		{Name: "t_delay", Unit: "us", Default: 1, Limits: positive},
		{Name: "t_AOM", Unit: "us", Default: 5, Limits: positive},
		{Name: "t_readout_delay", Unit: "us", Default: 2.3, Limits: positive},
		{Name: "t_pi", Unit: "ns", Default: 24, Limits: positive},
		{Name: "t_IQ_padding", Unit: "ns", Default: 30, Limits: positive},
		{Name: "N_pi", Unit: "", Default: 1, Limits: util.Limiter{Min: 1, Max: 1000},
			Description: "number of blocks of eight pi pulses"},
	}
}

type xy8Pulses struct {
	uwStart, uwDur []float64
	iStart, iDur   []float64
	qStart, qDur   []float64
}

// makeXY8 lays out one half of the sequence starting at start
func makeXY8(start float64, blocks int, delay, pi, iqPad float64) xy8Pulses {
	piHalf := pi / 2
	piQuarter := piHalf / 2
	var p xy8Pulses
	p.uwStart = []float64{start}
	p.uwDur = []float64{piHalf}
	var qs, qd []float64
	for blk := 0; blk < blocks; blk++ {
		var edge float64
		if blk == 0 {
			edge = start + delay/2 - piQuarter
		} else {
			edge = p.uwStart[len(p.uwStart)-1] + delay
		}
		var eight [8]float64
		for j := range eight {
			eight[j] = edge + float64(j)*delay
		}
		for _, j := range xy8Q {
			qs = append(qs, eight[j])
			qd = append(qd, pi)
		}
		for _, t := range eight {
			p.uwStart = append(p.uwStart, t)
			p.uwDur = append(p.uwDur, pi)
		}
	}
	last := p.uwStart[len(p.uwStart)-1] + delay/2 + piQuarter
	p.uwStart = append(p.uwStart, last)
	p.uwDur = append(p.uwDur, piHalf)
	qs = append(qs, last)
	qd = append(qd, piHalf)
	for i := range qs {
		p.qStart = append(p.qStart, qs[i]-iqPad)
		p.qDur = append(p.qDur, qd[i]+2*iqPad)
	}
	p.iStart = []float64{last - iqPad}
	p.iDur = []float64{piHalf + 2*iqPad}
	return p
}

func shift(ts []float64, dt float64) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = t + dt
	}
	return out
}

// Make satisfies Generator
func (XY8) Make(b *Builder, s Settings) error {
	gate := s["t_gate"] * us
	aom := s["t_AOM"] * us
	delay := s["t_delay"] * us
	pi := s["t_pi"] * ns
	iqPad := s["t_IQ_padding"] * ns
	readoutDelay := s["t_readout_delay"] * us
	blocks := int(math.Round(s["N_pi"]))

	uwToAOM := b.Quantize(1 * us)
	start := uwToAOM + readoutDelay
	sig := makeXY8(start, blocks, delay, pi, iqPad)

	aom1 := sig.uwStart[len(sig.uwStart)-1] + pi/2 + uwToAOM
	daq1 := aom1 + readoutDelay
	first := aom1 + aom
	aom2 := first + aom1
	daq2 := first + daq1

	nq := len(sig.qStart) - 1
	b.Channel("uW",
		append(append([]float64{}, sig.uwStart...), shift(sig.uwStart, first)...),
		append(append([]float64{}, sig.uwDur...), sig.uwDur...))
	b.Channel("AOM", []float64{aom1, aom2}, []float64{aom, aom})
	b.Channel("I", sig.iStart, sig.iDur)
	b.Channel("Q",
		append(append([]float64{}, sig.qStart...), shift(sig.qStart[:nq], first)...),
		append(append([]float64{}, sig.qDur...), sig.qDur[:nq]...))
	b.Channel("DAQ_sig", []float64{daq1}, []float64{gate})
	b.Channel("DAQ_ref", []float64{daq2}, []float64{gate})

	b.Derive("program_duration", math.Max(aom2+aom, daq2+gate)/us+1)
	return nil
}
