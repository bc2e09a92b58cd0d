package pulse

import (
	"errors"
	"fmt"
)

// ErrShortPulseRange is generated when the short pulse pass could produce a
// period count that does not fit the three bit short pulse field
var ErrShortPulseRange = errors.New("short pulse minimum instruction must be at most 8 periods, below bit 61")

// shortPulseMax is the largest minimum instruction length usable with short
// pulses; shorter instructions carry at most 7 periods
const shortPulseMax = 8

// Opcode is a controller instruction opcode.  The values follow spinapi.
type Opcode int

const (
	// Continue falls through to the next instruction
	Continue Opcode = 0

	// Branch jumps to the instruction given by the data field
	Branch Opcode = 6
)

func (o Opcode) String() string {
	switch o {
	case Continue:
		return "CONTINUE"
	case Branch:
		return "BRANCH"
	default:
		return fmt.Sprintf("Opcode(%d)", int(o))
	}
}

// Instruction is one step of a pulse program
type Instruction struct {
	// Flags is the state of the outputs during the instruction
	Flags uint64 `json:"flags"`

	// Op is the opcode
	Op Opcode `json:"op"`

	// Data is the opcode argument, the target index for Branch
	Data int `json:"data"`

	// Ticks is the length of the instruction in clock periods
	Ticks int64 `json:"ticks"`

	// Length is the length of the instruction in ns
	Length float64 `json:"length"`
}

// DefaultMinInstructionTicks is the shortest instruction most boards can
// execute, in clock periods
const DefaultMinInstructionTicks = 5

// Options adjust compilation
type Options struct {
	// Padding is all-off time appended to the end of the program, in ns
	Padding float64

	// ShortPulseBit is the lowest bit of the short pulse period field.
	// Zero disables the short pulse pass.
	ShortPulseBit uint

	// MinInstructionTicks is the shortest instruction the board can execute.
	// Zero means DefaultMinInstructionTicks.
	MinInstructionTicks int64
}

// Compile converts channels into a cyclic program.  Each event of the
// timeline becomes a Continue instruction lasting until the next event, then
// the last instruction is rewritten to Branch to instruction 0.
//
// An empty channel list (or one whose pulses all cancel) yields a program
// with no instructions.
func Compile(clk Clock, channels []Channel, opts Options) (Program, error) {
	if err := clk.Valid(); err != nil {
		return Program{}, err
	}
	if !clk.Representable(opts.Padding) {
		return Program{}, fmt.Errorf("%w: padding %v", ErrBadTime, opts.Padding)
	}
	tl := Catalog(clk, channels, clk.Ticks(opts.Padding))
	durs := Durations(tl)
	insts := make([]Instruction, len(durs))
	for i, d := range durs {
		insts[i] = Instruction{Flags: tl[i].State, Op: Continue, Ticks: d, Length: clk.NS(d)}
	}
	insts = makeContinuous(insts)
	if opts.ShortPulseBit > 0 {
		min := opts.MinInstructionTicks
		if min <= 0 {
			min = DefaultMinInstructionTicks
		}
		if min > shortPulseMax || opts.ShortPulseBit > 61 {
			return Program{}, fmt.Errorf("%w: minimum %d, bit %d", ErrShortPulseRange, min, opts.ShortPulseBit)
		}
		insts = shortPulse(clk, insts, opts.ShortPulseBit, min)
	}
	return Program{Clock: clk, Instructions: insts}, nil
}

// makeContinuous rewrites the last instruction to branch to the first
func makeContinuous(insts []Instruction) []Instruction {
	if n := len(insts); n > 0 {
		insts[n-1].Op = Branch
		insts[n-1].Data = 0
	}
	return insts
}

// shortPulse replaces instructions shorter than the board minimum with
// instructions of the minimum length that carry the desired number of
// periods in the short pulse field of the flags.  Outputs high in such an
// instruction are high for the original length then low until the minimum
// has passed.
func shortPulse(clk Clock, insts []Instruction, bit uint, min int64) []Instruction {
	for i := range insts {
		if insts[i].Ticks < min {
			insts[i].Flags |= uint64(insts[i].Ticks) << bit
			insts[i].Ticks = min
			insts[i].Length = clk.NS(min)
		}
	}
	return insts
}
