package pulsegen

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nasa-jpl/pulselab/pulse"
	"go.uber.org/multierr"
)

var testCfg = Config{
	Clock: pulse.Clock{FrequencyMHz: 500},
	Table: pulse.Table{
		"AOM":      0,
		"uW":       1,
		"DAQ_sig":  2,
		"DAQ_ref":  3,
		"I":        4,
		"Q":        5,
		"sync_out": 6,
	},
	ShortPulseBit: 21,
}

// fixed is a generator with a single 150 ns AOM pulse
type fixed struct{}

func (fixed) Name() string    { return "fixed" }
func (fixed) Params() []Param { return nil }
func (fixed) Make(b *Builder, s Settings) error {
	b.Channel("AOM", []float64{0}, []float64{150})
	return nil
}

type fakeBoard struct {
	calls    []string
	loaded   pulse.Program
	startErr error
}

func (f *fakeBoard) Write(p pulse.Program) error {
	f.calls = append(f.calls, "write")
	f.loaded = p
	return nil
}

func (f *fakeBoard) Start() error {
	f.calls = append(f.calls, "start")
	return f.startErr
}

func (f *fakeBoard) Stop() error {
	f.calls = append(f.calls, "stop")
	return nil
}

func equalIntervals(t *testing.T, name string, got, exp []pulse.Interval) {
	t.Helper()
	if len(got) != len(exp) {
		t.Errorf("%s: expected %d intervals, got %v", name, len(exp), got)
		return
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("%s interval %d: expected %v, got %v", name, i, exp[i], got[i])
		}
	}
}

func ExampleBuild() {
	res, _ := Build(PWM{}, testCfg, Settings{"frequency": 500, "duty_cycle": 50, "outputs": 2})
	for _, inst := range res.Program.Instructions {
		fmt.Printf("%02b %v %v\n", inst.Flags, inst.Op, inst.Length)
	}
	fmt.Println(res.Derived["all_off_padding"])
	// Output:
	// 11 CONTINUE 1e+06
	// 00 BRANCH 1e+06
	// 1e+06
}

func TestPWMDefaults(t *testing.T) {
	res, err := Build(PWM{}, testCfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Channels) != 6 {
		t.Errorf("expected 6 channels, got %d", len(res.Channels))
	}
	insts := res.Program.Instructions
	if len(insts) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(insts))
	}
	if insts[0].Flags != 0x3F || insts[0].Length != 1e6 {
		t.Errorf("expected outputs 0-5 high for 1e6 ns, got %+v", insts[0])
	}
	if insts[1].Flags != 0 || insts[1].Length != 1e6 || insts[1].Op != pulse.Branch {
		t.Errorf("expected 1e6 ns all-off branch, got %+v", insts[1])
	}
	if d := res.Program.Duration(); d != 2e6 {
		t.Errorf("expected 2e6 ns program, got %g", d)
	}
}

func TestDerivedPaddingRecomputed(t *testing.T) {
	res, err := Build(PWM{}, testCfg, Settings{"frequency": 1000})
	if err != nil {
		t.Fatal(err)
	}
	if pad := res.Derived["all_off_padding"]; pad != 5e5 {
		t.Errorf("expected padding 5e5 ns at 1 kHz, got %g", pad)
	}
	res, err = Build(PWM{}, testCfg, Settings{"frequency": 500})
	if err != nil {
		t.Fatal(err)
	}
	if pad := res.Derived["all_off_padding"]; pad != 1e6 {
		t.Errorf("expected padding 1e6 ns at 500 Hz, got %g", pad)
	}
}

func TestBuildIdempotent(t *testing.T) {
	for _, name := range Names() {
		g, err := Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		a, err := Build(g, testCfg, nil)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		b, _ := Build(g, testCfg, nil)
		if a.Program.Checksum() != b.Program.Checksum() {
			t.Errorf("%s: two builds with the same settings differ", name)
		}
		if len(a.Channels) != len(b.Channels) {
			t.Errorf("%s: channels accumulated between builds", name)
		}
	}
}

func TestValidateReportsEverything(t *testing.T) {
	err := Validate(Params(PWM{}), Settings{"duty_cycle": 101, "bogus": 1})
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", err)
	}
	if !errors.Is(err, ErrUnknownSetting) || !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected unknown setting and out of range, got %v", err)
	}
}

func TestBuildRejectsBadSettings(t *testing.T) {
	_, err := Build(PWM{}, testCfg, Settings{"all_off_padding": -5})
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestPWMFrequencyFloor(t *testing.T) {
	_, err := Build(PWM{}, testCfg, Settings{"frequency": 1e-12, "outputs": 1})
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestUnknownChannelName(t *testing.T) {
	cfg := testCfg
	cfg.Table = pulse.Table{"uW": 1}
	_, err := Build(fixed{}, cfg, nil)
	if err == nil {
		t.Error("expected an error for a channel missing from the table")
	}
}

func TestSyncOut(t *testing.T) {
	res, err := Build(fixed{}, testCfg, Settings{"sync_out": 10})
	if err != nil {
		t.Fatal(err)
	}
	if n := res.Names[len(res.Names)-1]; n != SyncOutChannel {
		t.Errorf("expected the last channel to be %s, got %s", SyncOutChannel, n)
	}
	if d := res.Channels[0].Pulses[0].Duration; d != 100 {
		t.Errorf("expected the AOM pulse stretched to 100 periods, got %d", d)
	}
	exp := []uint64{0x41, 0x01, 0x41, 0x01}
	insts := res.Program.Instructions
	if len(insts) != len(exp) {
		t.Fatalf("expected %d instructions, got %d", len(exp), len(insts))
	}
	for i := range exp {
		if insts[i].Flags != exp[i] || insts[i].Ticks != 25 {
			t.Errorf("instruction %d: expected flags %x for 25 periods, got %x for %d", i, exp[i], insts[i].Flags, insts[i].Ticks)
		}
	}
	if d := res.Program.Duration(); d != 200 {
		t.Errorf("expected the program to be 2 sync periods long, got %g ns", d)
	}
}

func TestSyncOutDisabled(t *testing.T) {
	res, err := Build(fixed{}, testCfg, Settings{"sync_out": -10})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Channels) != 1 {
		t.Errorf("expected no sync channel, got %d channels", len(res.Channels))
	}
}

func TestSyncOutTooSlow(t *testing.T) {
	_, err := Build(T1{}, testCfg, Settings{"sync_out": 1e12})
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestSyncOutAboveHalfClock(t *testing.T) {
	// 2.5 ns rounds to one 2 ns period, leaving no room for a low half
	_, err := Build(fixed{}, testCfg, Settings{"sync_out": 400})
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestSyncOutRoundedToClock(t *testing.T) {
	cfg := testCfg
	cfg.Clock = pulse.Clock{FrequencyMHz: 100}
	res, err := Build(fixed{}, cfg, Settings{"sync_out": 60})
	if err != nil {
		t.Fatal(err)
	}
	if f := res.Derived["sync_out"]; f != 50 {
		t.Errorf("expected the sync output played at 50 MHz, got %g", f)
	}
	exp := make([]pulse.Interval, 8)
	for k := range exp {
		exp[k] = pulse.Interval{Start: int64(2 * k), End: int64(2*k + 1)}
	}
	iv := pulse.Intervals(res.Program)
	equalIntervals(t, "sync_out", iv[6], exp)
	equalIntervals(t, "AOM", iv[0], []pulse.Interval{{Start: 0, End: 16}})
}

func TestRabiShortMicrowave(t *testing.T) {
	res, err := Build(Rabi{}, testCfg, Settings{"t_uW": 6})
	if err != nil {
		t.Fatal(err)
	}
	first := res.Program.Instructions[0]
	if first.Flags != 3<<21|1<<1 {
		t.Errorf("expected uW with a 3 period short pulse, got %b", first.Flags)
	}
	if first.Ticks != 5 {
		t.Errorf("expected the uW instruction held for 5 periods, got %d", first.Ticks)
	}
}

func TestRabiShortMicrowaveWithoutField(t *testing.T) {
	cfg := testCfg
	cfg.ShortPulseBit = 0
	_, err := Build(Rabi{}, cfg, Settings{"t_uW": 6})
	if !errors.Is(err, ErrNoShortPulse) {
		t.Errorf("expected ErrNoShortPulse, got %v", err)
	}
}

func TestRabiMicrowaveUnderHalfPeriod(t *testing.T) {
	_, err := Build(Rabi{}, testCfg, Settings{"t_uW": 1})
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestT1Layout(t *testing.T) {
	res, err := Build(T1{}, testCfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	iv := pulse.Intervals(res.Program)
	equalIntervals(t, "AOM", iv[0], []pulse.Interval{{Start: 0, End: 2500}, {Start: 40000, End: 42500}})
	equalIntervals(t, "uW", iv[1], []pulse.Interval{{Start: 41650, End: 41662}})
	equalIntervals(t, "DAQ_sig", iv[2], []pulse.Interval{{Start: 1150, End: 26150}})
	equalIntervals(t, "DAQ_ref", iv[3], []pulse.Interval{{Start: 41150, End: 66150}})
}

func TestT2Layout(t *testing.T) {
	res, err := Build(T2{}, testCfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	iv := pulse.Intervals(res.Program)
	equalIntervals(t, "uW", iv[1], []pulse.Interval{
		{Start: 5000, End: 5015}, {Start: 5065, End: 5095}, {Start: 5145, End: 5160},
		{Start: 140160, End: 140175}, {Start: 140225, End: 140255}, {Start: 140305, End: 140320},
	})
	equalIntervals(t, "I", iv[4], []pulse.Interval{
		{Start: 5055, End: 5105}, {Start: 5135, End: 5170}, {Start: 140215, End: 140265},
	})
	equalIntervals(t, "Q", iv[5], []pulse.Interval{{Start: 5135, End: 5170}})
	equalIntervals(t, "AOM", iv[0], []pulse.Interval{{Start: 10160, End: 135160}, {Start: 145320, End: 270320}})
	equalIntervals(t, "DAQ_sig", iv[2], []pulse.Interval{{Start: 10335, End: 10835}})
	equalIntervals(t, "DAQ_ref", iv[3], []pulse.Interval{{Start: 145495, End: 145995}})
}

func TestXY8Layout(t *testing.T) {
	res, err := Build(XY8{}, testCfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	iv := pulse.Intervals(res.Program)
	if n := len(iv[1]); n != 20 {
		t.Errorf("expected 20 uW pulses, got %d", n)
	}
	if n := len(iv[5]); n != 9 {
		t.Errorf("expected 9 Q pulses, got %d", n)
	}
	if n := len(iv[4]); n != 1 {
		t.Errorf("expected 1 I pulse, got %d", n)
	}
	if res.Derived["program_duration"] <= 0 {
		t.Error("expected a positive derived program duration")
	}
}

func TestCorrelationSpectroscopyLayout(t *testing.T) {
	res, err := Build(CorrelationSpectroscopy{}, testCfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	iv := pulse.Intervals(res.Program)
	if n := len(iv[1]); n != 40 {
		t.Errorf("expected 40 uW pulses, got %d", n)
	}
	if n := len(iv[5]); n != 19 {
		t.Errorf("expected 19 Q pulses, got %d", n)
	}
	if n := len(iv[4]); n != 1 {
		t.Fatalf("expected 1 I pulse, got %d", n)
	}
	if len(iv[0]) != 2 || iv[4][0].Start < iv[0][0].End {
		t.Errorf("expected the I pulse in the reference half, got I %v AOM %v", iv[4], iv[0])
	}
	if res.Derived["program_duration"] <= 0 {
		t.Error("expected a positive derived program duration")
	}
}

func TestSigRefReadoutLayout(t *testing.T) {
	res, err := Build(SigRefReadout{}, testCfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	iv := pulse.Intervals(res.Program)
	uw := iv[1]
	if len(uw) != 1400 {
		t.Fatalf("expected 1400 uW pulses, got %d", len(uw))
	}
	exp := map[int]pulse.Interval{
		0:    {Start: 0, End: 25},
		799:  {Start: 39950, End: 39975},
		800:  {Start: 40000, End: 40050},
		1200: {Start: 80000, End: 80100},
		1399: {Start: 119800, End: 119900},
	}
	for i, e := range exp {
		if uw[i] != e {
			t.Errorf("uW pulse %d: expected %v, got %v", i, e, uw[i])
		}
	}
	equalIntervals(t, "DAQ_sig", iv[2], []pulse.Interval{{Start: 0, End: 25000}})
	equalIntervals(t, "DAQ_ref", iv[3], []pulse.Interval{{Start: 25000, End: 50000}})
	if d := res.Derived["program_duration"]; d != 240 {
		t.Errorf("expected a 240 us program, got %g", d)
	}
	if d := res.Program.Duration(); d != 240e3 {
		t.Errorf("expected the program to end with the low half of the last tick, got %g ns", d)
	}
}

func TestLookup(t *testing.T) {
	g, err := Lookup("XY8")
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "xy8" {
		t.Errorf("expected xy8, got %s", g.Name())
	}
	for alias, name := range map[string]string{"cs": "correlation_spectroscopy", "SigRef": "sig_ref_readout", "hahn": "t2"} {
		g, err := Lookup(alias)
		if err != nil || g.Name() != name {
			t.Errorf("expected %s to find %s, got %v %v", alias, name, g, err)
		}
	}
	_, err = Lookup("ramsey")
	if !errors.Is(err, ErrUnknownGenerator) {
		t.Errorf("expected ErrUnknownGenerator, got %v", err)
	}
}

func TestSessionWrite(t *testing.T) {
	board := &fakeBoard{}
	s := NewSession(PWM{}, testCfg, board)
	res, err := s.Write()
	if err != nil {
		t.Fatal(err)
	}
	if len(board.calls) != 2 || board.calls[0] != "write" || board.calls[1] != "start" {
		t.Errorf("expected write then start, got %v", board.calls)
	}
	if board.loaded.Checksum() != res.Program.Checksum() || s.Loaded() != res.Program.Checksum() {
		t.Error("board was not loaded with the built program")
	}
}

func TestSessionHardwareErrorUnmodified(t *testing.T) {
	boom := errors.New("board on fire")
	s := NewSession(PWM{}, testCfg, &fakeBoard{startErr: boom})
	_, err := s.Write()
	if err != boom {
		t.Errorf("expected the board error unmodified, got %v", err)
	}
}

func TestSessionUpdateAtomic(t *testing.T) {
	s := NewSession(PWM{}, testCfg, &fakeBoard{})
	err := s.Update(Settings{"frequency": 1000, "duty_cycle": 200})
	if err == nil {
		t.Fatal("expected an error for duty_cycle=200")
	}
	if f, _ := s.Get("frequency"); f != 500 {
		t.Errorf("expected frequency unchanged at 500, got %g", f)
	}
	if err = s.Set("frequency", 1000); err != nil {
		t.Fatal(err)
	}
	if f, _ := s.Get("frequency"); f != 1000 {
		t.Errorf("expected frequency 1000, got %g", f)
	}
}

func TestSessionPlotLines(t *testing.T) {
	s := NewSession(fixed{}, testCfg, &fakeBoard{})
	lines, err := s.PlotLines()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lines["AOM"]; !ok || len(lines) != 1 {
		t.Errorf("expected a single AOM trace, got %v", lines)
	}
}
