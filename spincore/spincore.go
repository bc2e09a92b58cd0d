/*Package spincore loads pulse programs onto SpinCore PulseBlaster boards.

The board's vendor library only exists for a handful of platforms, so the
board is driven through a small bridge process that owns it and speaks a line
oriented ASCII protocol over TCP or RS232.  Each command is a single line and
is answered by a line reading OK, or ERR followed by a message:

	INIT <clock MHz>
	PROG START
	INST <flags> <opcode> <data> <length ns>
	PROG STOP
	START
	STOP
	CLOSE

A Mock is provided for use without hardware.
*/
package spincore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nasa-jpl/pulselab/comm"
	"github.com/nasa-jpl/pulselab/pulse"
	"github.com/tarm/serial"
	"golang.org/x/time/rate"
)

// MinReprogramInterval is the shortest time between two programs written to a
// board through a Bridge
const MinReprogramInterval = 100 * time.Millisecond

var (
	// ErrBoard is generated when the bridge answers a command with ERR
	ErrBoard = errors.New("pulse blaster error")

	// ErrUnexpectedReply is generated when the bridge answers with neither OK nor ERR
	ErrUnexpectedReply = errors.New("unexpected reply from bridge")

	// ErrClockMismatch is generated when a program was compiled for a
	// different clock than the board runs at
	ErrClockMismatch = errors.New("program clock does not match board clock")
)

// Bridge is a PulseBlaster reached through a bridge process
type Bridge struct {
	*comm.RemoteDevice

	// Clock is the board clock, sent to the bridge by Init
	Clock pulse.Clock

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewBridge returns a new Bridge.  addr is a host:port, or a serial device
// if isSerial is true.
func NewBridge(addr string, isSerial bool, clk pulse.Clock) *Bridge {
	term := &comm.Terminators{Tx: comm.LF, Rx: comm.LF}
	var conf *serial.Config
	if isSerial {
		conf = &serial.Config{Baud: 115200}
	}
	return &Bridge{
		RemoteDevice: comm.NewRemoteDevice(addr, isSerial, term, conf),
		Clock:        clk,
		limiter:      rate.NewLimiter(rate.Every(MinReprogramInterval), 1),
	}
}

// command sends one line and checks the reply
func (b *Bridge) command(format string, args ...interface{}) error {
	cmd := fmt.Sprintf(format, args...)
	resp, err := b.SendRecv([]byte(cmd))
	if err != nil {
		return err
	}
	return parseReply(cmd, string(resp))
}

func parseReply(cmd, resp string) error {
	resp = strings.TrimSpace(resp)
	switch {
	case resp == "OK":
		return nil
	case strings.HasPrefix(resp, "ERR"):
		msg := strings.TrimSpace(strings.TrimPrefix(resp, "ERR"))
		return fmt.Errorf("%w: %s: %s", ErrBoard, cmd, msg)
	default:
		return fmt.Errorf("%w: %s: %q", ErrUnexpectedReply, cmd, resp)
	}
}

// Init initializes the board and sets its clock
func (b *Bridge) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.command("INIT %s", strconv.FormatFloat(b.Clock.FrequencyMHz, 'f', -1, 64))
}

// Write loads a program onto the board, replacing the one there.  Writes
// closer together than MinReprogramInterval are delayed.
func (b *Bridge) Write(p pulse.Program) error {
	if len(p.Instructions) == 0 {
		return pulse.ErrEmptyProgram
	}
	if p.Clock != b.Clock {
		return fmt.Errorf("%w: program %g MHz, board %g MHz", ErrClockMismatch, p.Clock.FrequencyMHz, b.Clock.FrequencyMHz)
	}
	if err := b.limiter.Wait(context.Background()); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.command("PROG START"); err != nil {
		return err
	}
	for i, inst := range p.Instructions {
		err := b.command("INST %d %d %d %s", inst.Flags, int(inst.Op), inst.Data,
			strconv.FormatFloat(inst.Length, 'f', -1, 64))
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	if err := b.command("PROG STOP"); err != nil {
		return err
	}
	log.Printf("spincore: loaded %d instructions onto %s\n", len(p.Instructions), b.Addr)
	return nil
}

// Start begins executing the loaded program
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.command("START")
}

// Stop halts the board
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.command("STOP")
}

// Close releases the board and the connection to the bridge
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.command("CLOSE")
	b.RemoteDevice.Close()
	return err
}
