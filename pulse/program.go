package pulse

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/snksoft/crc"
)

var (
	crcTable = crc.NewTable(crc.XMODEM)

	// ErrEmptyProgram is generated when a program with no instructions is
	// sent to hardware
	ErrEmptyProgram = errors.New("pulse program has no instructions")
)

// Program is a compiled list of instructions and the clock they were
// compiled for
type Program struct {
	Clock        Clock         `json:"clock"`
	Instructions []Instruction `json:"instructions"`
}

// DurationTicks is the length of one repetition of the program in clock periods
func (p Program) DurationTicks() int64 {
	var sum int64
	for _, inst := range p.Instructions {
		sum += inst.Ticks
	}
	return sum
}

// Duration is the length of one repetition of the program in ns
func (p Program) Duration() float64 {
	return p.Clock.NS(p.DurationTicks())
}

// ChannelsUsed returns the output bits below limit that are high in any
// instruction, ascending
func (p Program) ChannelsUsed(limit uint) []int {
	var used uint64
	for _, inst := range p.Instructions {
		used |= inst.Flags
	}
	out := []int{}
	for bit := uint(0); bit < limit && bit < 64; bit++ {
		if used&(1<<bit) != 0 {
			out = append(out, int(bit))
		}
	}
	return out
}

// HasShortPulses returns true if any instruction is shorter than min clock periods
func (p Program) HasShortPulses(min int64) bool {
	for _, inst := range p.Instructions {
		if inst.Ticks < min {
			return true
		}
	}
	return false
}

// Checksum computes a CRC-16 (XMODEM) over the instruction list.  Two
// programs with the same checksum are, for practical purposes, identical.
func (p Program) Checksum() uint16 {
	buf := make([]byte, 21)
	c := crcTable.InitCrc()
	for _, inst := range p.Instructions {
		binary.BigEndian.PutUint64(buf[0:8], inst.Flags)
		buf[8] = byte(inst.Op)
		binary.BigEndian.PutUint32(buf[9:13], uint32(inst.Data))
		binary.BigEndian.PutUint64(buf[13:21], uint64(inst.Ticks))
		c = crcTable.UpdateCrc(c, buf)
	}
	return crcTable.CRC16(c)
}

// String renders the program as a table, one instruction per line
func (p Program) String() string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "%-4s %-26s %-9s %-4s %s\n", "#", "flags", "op", "data", "length [ns]")
	for i, inst := range p.Instructions {
		fmt.Fprintf(&b, "%-4d %026b %-9s %-4d %g\n", i, inst.Flags, inst.Op, inst.Data, inst.Length)
	}
	return b.String()
}
