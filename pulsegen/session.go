package pulsegen

import (
	"fmt"
	"log"
	"sync"

	"github.com/nasa-jpl/pulselab/pulse"
)

// Programmer is a pulse controller that can be loaded with a program
type Programmer interface {
	// Write loads a program onto the board, replacing any previous one
	Write(pulse.Program) error

	// Start begins executing the loaded program
	Start() error

	// Stop halts execution
	Stop() error
}

// Session couples a generator, its current settings, and the board they are
// played on.  It is safe for concurrent use.
type Session struct {
	mu   sync.Mutex
	gen  Generator
	cfg  Config
	hw   Programmer
	st   Settings
	last uint16
}

// NewSession returns a session with the default settings of g
func NewSession(g Generator, cfg Config, hw Programmer) *Session {
	return &Session{gen: g, cfg: cfg, hw: hw, st: Defaults(Params(g))}
}

// Name is the name of the generator
func (s *Session) Name() string {
	return s.gen.Name()
}

// Params returns every param of the generator
func (s *Session) Params() []Param {
	return Params(s.gen)
}

// Config returns the board configuration
func (s *Session) Config() Config {
	return s.cfg
}

// Settings returns a copy of the current settings
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// Get returns the value of one setting
func (s *Session) Get(name string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	return v, nil
}

// Set changes one setting
func (s *Session) Set(name string, v float64) error {
	return s.Update(Settings{name: v})
}

// Update changes several settings at once.  If any is invalid, none are
// changed.
func (s *Session) Update(st Settings) error {
	if err := Validate(s.Params(), st); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range st {
		s.st[k] = v
	}
	return nil
}

// Program builds the program for the current settings without touching the
// board
func (s *Session) Program() (Result, error) {
	return Build(s.gen, s.cfg, s.Settings())
}

// Write builds the program for the current settings, loads it onto the
// board and starts it.  Errors from the board are returned as-is.
func (s *Session) Write() (Result, error) {
	res, err := s.Program()
	if err != nil {
		return res, err
	}
	if err = s.hw.Write(res.Program); err != nil {
		return res, err
	}
	if err = s.hw.Start(); err != nil {
		return res, err
	}
	crc := res.Program.Checksum()
	s.mu.Lock()
	s.last = crc
	s.mu.Unlock()
	log.Printf("%s: programmed and started, %d instructions, %g ns, crc %04X\n",
		s.gen.Name(), len(res.Program.Instructions), res.Program.Duration(), crc)
	if res.Program.HasShortPulses(pulse.DefaultMinInstructionTicks) {
		log.Printf("%s: program has instructions shorter than %d clock periods, enable short_pulse if timing is off\n",
			s.gen.Name(), pulse.DefaultMinInstructionTicks)
	}
	return res, nil
}

// Loaded returns the checksum of the last program written by this session,
// zero if none has been
func (s *Session) Loaded() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Stop halts the board
func (s *Session) Stop() error {
	return s.hw.Stop()
}

// PlotLines builds the program for the current settings and returns a trace
// per output
func (s *Session) PlotLines() (map[string]pulse.Trace, error) {
	res, err := s.Program()
	if err != nil {
		return nil, err
	}
	return pulse.PlotLines(res.Program, s.cfg.Table.Names(), s.cfg.ShortPulseBit), nil
}
