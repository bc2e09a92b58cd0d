package pulsegen

import (
	"fmt"

	"github.com/nasa-jpl/pulselab/util"
)

// PWM drives the first few outputs with a square wave.  Each output is high
// for duty_cycle percent of the period, and the off part of the period is
// the trailing padding.  The all_off_padding setting is overridden.
type PWM struct{}

// Name satisfies Generator
func (PWM) Name() string { return "pwm" }

// Params satisfies Generator
func (PWM) Params() []Param {
	return []Param{
		{Name: "duty_cycle", Unit: "%", Default: 50, Limits: util.Limiter{Min: 0, Max: 100}},
		{Name: "frequency", Unit: "Hz", Default: 500, Limits: util.Limiter{Min: 1e-3, Max: 1e9}},
		{Name: "outputs", Unit: "", Default: 6, Limits: util.Limiter{Min: 1, Max: 24},
			Description: "number of outputs driven, starting from output 0"},
	}
}

// Make satisfies Generator
func (PWM) Make(b *Builder, s Settings) error {
	if s["frequency"] <= 0 {
		return fmt.Errorf("%w: frequency must be positive", ErrOutOfRange)
	}
	period := 1e9 / s["frequency"]
	up := s["duty_cycle"] / 100 * period
	b.SetPadding(period - up)
	for bit := uint(0); bit < uint(s["outputs"]); bit++ {
		b.Output(bit, []float64{0}, []float64{up})
	}
	return nil
}
