package pulse

import "sort"

// Event is a point in time at which at least one output changes, and the
// state of all outputs from then until the next event
type Event struct {
	// Ticks is the time of the event in clock periods
	Ticks int64 `json:"ticks"`

	// Time is the time of the event in ns
	Time float64 `json:"time"`

	// State holds the output flags active from this event on
	State uint64 `json:"state"`
}

// Timeline is a list of events in ascending time order.  It always begins at
// t=0 and its last entry marks the end of the program.
type Timeline []Event

// Times returns the event times in clock periods
func (tl Timeline) Times() []int64 {
	out := make([]int64, len(tl))
	for i, e := range tl {
		out[i] = e.Ticks
	}
	return out
}

// Catalog merges the edges of all channels into a timeline.
//
// every start and end time XORs the channel mask into a toggle accumulator
// for that time.  Times whose toggles cancel (a zero length pulse, or two
// coincident edges of one mask) change nothing and are dropped.  If padding
// (clock periods) is positive, an all-off end marker is placed padding after
// the last edge.
func Catalog(clk Clock, channels []Channel, padding int64) Timeline {
	toggles := map[int64]uint64{0: 0}
	for _, c := range channels {
		for _, p := range c.Pulses {
			toggles[p.Start] ^= c.Mask
			toggles[p.End()] ^= c.Mask
		}
	}

	times := make([]int64, 0, len(toggles))
	for t, m := range toggles {
		if m != 0 || t == 0 {
			times = append(times, t)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	tl := make(Timeline, 0, len(times)+1)
	var state uint64
	for _, t := range times {
		state ^= toggles[t]
		tl = append(tl, Event{Ticks: t, Time: clk.NS(t), State: state})
	}
	if padding > 0 {
		end := tl[len(tl)-1].Ticks + padding
		tl = append(tl, Event{Ticks: end, Time: clk.NS(end), State: state})
	}
	return tl
}

// Durations returns the gaps between consecutive events, in clock periods.
// N events yield N-1 durations.
func Durations(tl Timeline) []int64 {
	if len(tl) < 2 {
		return []int64{}
	}
	out := make([]int64, len(tl)-1)
	for i := range out {
		out[i] = tl[i+1].Ticks - tl[i].Ticks
	}
	return out
}
