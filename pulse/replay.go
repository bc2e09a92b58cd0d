package pulse

import "github.com/nasa-jpl/pulselab/util"

// Interval is a high period of an output, [Start, End) in clock periods
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Intervals replays the states and lengths of a program and returns, for
// every output bit that is ever high, the periods during which it is high.
// Adjacent instructions that keep a bit high merge into one interval.
func Intervals(p Program) map[uint][]Interval {
	out := map[uint][]Interval{}
	open := map[uint]int64{}
	var t int64
	for _, inst := range p.Instructions {
		for bit := uint(0); bit < 64; bit++ {
			high := util.GetBit(inst.Flags, bit)
			start, isOpen := open[bit]
			switch {
			case high && !isOpen:
				open[bit] = t
			case !high && isOpen:
				out[bit] = append(out[bit], Interval{Start: start, End: t})
				delete(open, bit)
			}
		}
		t += inst.Ticks
	}
	for bit := uint(0); bit < 64; bit++ {
		if start, ok := open[bit]; ok {
			out[bit] = append(out[bit], Interval{Start: start, End: t})
		}
	}
	return out
}
