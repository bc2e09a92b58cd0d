package pulsegen

// T2 is a Hahn echo: pi/2, tau, pi, tau, pi/2, then a laser readout.  The
// sequence is played twice, the second time with the phase of the last pi/2
// pulse flipped by the I/Q gates, giving a signal and a reference.
type T2 struct{}

// Name satisfies Generator
func (T2) Name() string { return "t2" }

// Params satisfies Generator
func (T2) Params() []Param {
	return []Param{
		{Name: "t_readout", Unit: "us", Default: 0.35, Limits: positive},
		{Name: "t_gate", Unit: "us", Default: 1, Limits: positive},
		{Name: "tau", Unit: "us", Default: 0.1, Limits: positive},
		{Name: "t_AOM_duration", Unit: "us", Default: 250, Limits: positive},
		{Name: "t_uW_to_AOM_delay", Unit: "us", Default: 10, Limits: positive},
		{Name: "t_pi", Unit: "ns", Default: 60, Limits: positive},
		{Name: "t_IQ_padding", Unit: "ns", Default: 20, Limits: positive},
	}
}

// Make satisfies Generator
func (T2) Make(b *Builder, s Settings) error {
	readout := s["t_readout"] * us
	gate := s["t_gate"] * us
	aomDur := s["t_AOM_duration"] * us
	tau := s["tau"] * us
	pi := s["t_pi"] * ns
	iqPad := s["t_IQ_padding"] * ns
	delay := s["t_uW_to_AOM_delay"] * us
	piHalf := pi / 2

	// signal half
	halfA1 := delay
	piA := halfA1 + piHalf + tau
	halfA2 := piA + pi + tau
	aomA := halfA2 + piHalf + delay

	// reference half
	halfB1 := aomA + aomDur + delay
	piB := halfB1 + piHalf + tau
	halfB2 := piB + pi + tau
	aomB := halfB2 + piHalf + delay

	iqPi := pi + 2*iqPad
	iqPiHalf := piHalf + 2*iqPad

	b.Channel("uW",
		[]float64{halfA1, piA, halfA2, halfB1, piB, halfB2},
		[]float64{piHalf, pi, piHalf, piHalf, pi, piHalf})
	b.Channel("AOM", []float64{aomA, aomB}, []float64{aomDur, aomDur})
	b.Channel("I",
		[]float64{piA - iqPad, halfA2 - iqPad, piB - iqPad},
		[]float64{iqPi, iqPiHalf, iqPi})
	b.Channel("Q", []float64{halfA2 - iqPad}, []float64{iqPiHalf})
	b.Channel("DAQ_sig", []float64{aomA + readout}, []float64{gate})
	b.Channel("DAQ_ref", []float64{aomB + readout}, []float64{gate})
	return nil
}
