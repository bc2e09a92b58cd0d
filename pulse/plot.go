package pulse

import (
	"fmt"

	"github.com/nasa-jpl/pulselab/util"
)

const (
	low  = 0
	high = 1
)

// Trace is a step plot of one output, times in ns and levels 0 or 1
type Trace struct {
	X []float64 `json:"x"`
	Y []int     `json:"y"`
}

func (tr *Trace) add(x float64, y ...int) {
	for _, v := range y {
		tr.X = append(tr.X, x)
		tr.Y = append(tr.Y, v)
	}
}

func (tr *Trace) last() int {
	return tr.Y[len(tr.Y)-1]
}

// PlotLines draws a trace for every output used by the program.  names maps
// output bits to channel names; outputs missing from names are called
// chan_<bit>.  shortPulseBit is the short pulse field used when compiling,
// zero if the short pulse pass was not used.
//
// every trace starts at (0, 0) and ends at the end of the program.
func PlotLines(p Program, names map[uint]string, shortPulseBit uint) map[string]Trace {
	limit := uint(64)
	if shortPulseBit > 0 {
		limit = shortPulseBit
	}
	used := p.ChannelsUsed(limit)
	lu := make(map[uint]string, len(used))
	for _, bit := range used {
		name, ok := names[uint(bit)]
		if !ok {
			name = fmt.Sprintf("chan_%d", bit)
		}
		lu[uint(bit)] = name
	}

	lines := make(map[string]*Trace, len(lu))
	for _, name := range lu {
		lines[name] = &Trace{X: []float64{0}, Y: []int{low}}
	}
	period := p.Clock.Period()
	var t int64
	for _, inst := range p.Instructions {
		var periods int64
		if shortPulseBit > 0 {
			periods = int64(inst.Flags >> shortPulseBit)
		}
		x := p.Clock.NS(t)
		for bit, name := range lu {
			tr := lines[name]
			isHigh := util.GetBit(inst.Flags, bit)
			wasHigh := tr.last() == high
			if periods != 0 {
				x1 := x + period*float64(periods)
				switch {
				case isHigh && wasHigh:
					tr.add(x1, high, low)
				case isHigh && !wasHigh:
					tr.add(x, low, high)
					tr.add(x1, high, low)
				case !isHigh && wasHigh:
					tr.add(x, high, low)
				}
				continue
			}
			switch {
			case isHigh && !wasHigh:
				tr.add(x, low, high)
			case !isHigh && wasHigh:
				tr.add(x, high, low)
			}
		}
		t += inst.Ticks
	}

	end := p.Clock.NS(t)
	out := make(map[string]Trace, len(lines))
	for name, tr := range lines {
		if tr.X[len(tr.X)-1] != end {
			tr.add(end, tr.last())
		}
		out[name] = *tr
	}
	return out
}
