package spincore

import (
	"fmt"
	"sync"

	"github.com/nasa-jpl/pulselab/pulse"
)

// Mock is a fake PulseBlaster that remembers what it was sent
type Mock struct {
	Clock pulse.Clock

	mu      sync.Mutex
	prog    pulse.Program
	running bool
	writes  int
}

// NewMock returns a new Mock running at clk
func NewMock(clk pulse.Clock) *Mock {
	return &Mock{Clock: clk}
}

// Write satisfies pulsegen.Programmer.  Loading a program stops the board.
func (m *Mock) Write(p pulse.Program) error {
	if len(p.Instructions) == 0 {
		return pulse.ErrEmptyProgram
	}
	if p.Clock != m.Clock {
		return fmt.Errorf("%w: program %g MHz, board %g MHz", ErrClockMismatch, p.Clock.FrequencyMHz, m.Clock.FrequencyMHz)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prog = p
	m.running = false
	m.writes++
	return nil
}

// Start satisfies pulsegen.Programmer
func (m *Mock) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prog.Instructions) == 0 {
		return pulse.ErrEmptyProgram
	}
	m.running = true
	return nil
}

// Stop satisfies pulsegen.Programmer
func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Loaded returns the last program written and whether it is running
func (m *Mock) Loaded() (pulse.Program, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prog, m.running
}

// Writes returns the number of programs written
func (m *Mock) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
