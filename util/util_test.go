package util_test

import (
	"testing"

	"github.com/nasa-jpl/pulselab/util"
)

func TestGetBit(t *testing.T) {
	if !util.GetBit(0b100, 2) {
		t.Error("expected bit 2 of 0b100 to be high")
	}
	if util.GetBit(0b100, 1) {
		t.Error("expected bit 1 of 0b100 to be low")
	}
	if !util.GetBit(1<<63, 63) {
		t.Error("expected bit 63 of 1<<63 to be high")
	}
}

func TestLimiterZeroValueAllowsAll(t *testing.T) {
	l := util.Limiter{}
	if !l.Check(-1e12) || !l.Check(1e12) {
		t.Error("zero value limiter rejected a value")
	}
}

func TestLimiterCheck(t *testing.T) {
	l := util.Limiter{Min: 0, Max: 100}
	if l.Check(101) {
		t.Error("limiter accepted 101 with Max=100")
	}
	if !l.Check(50) || !l.Check(0) || !l.Check(100) {
		t.Error("limiter rejected a value in [0,100]")
	}
}
