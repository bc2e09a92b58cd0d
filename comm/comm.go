/*Package comm provides a line oriented connection to remote hardware over TCP
or RS232.

Most usages of this package boil down to embedding a RemoteDevice in a type
that represents your hardware and writing methods on top of SendRecv:

	type Board struct {
		*comm.RemoteDevice
	}

	func (b *Board) Version() (string, error) {
		resp, err := b.SendRecv([]byte("VER?"))
		return string(resp), err
	}

Connections are opened on demand and closed after a period of inactivity.
*/
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

const (
	// CR is a carriage return, the default terminator
	CR = byte('\r')

	// LF is a line feed
	LF = byte('\n')
)

var (
	// ErrNoSerialConf is generated when a serial device has no serial config
	ErrNoSerialConf = errors.New("serial device has no serial config")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Terminators holds the bytes that end a transmission in each direction
type Terminators struct {
	Tx byte
	Rx byte
}

// RemoteDevice has an address and sends and receives terminated messages.
// It is safe for concurrent use; each SendRecv has exclusive use of the
// connection for its duration.
type RemoteDevice struct {
	// Addr is a host:port for TCP or a device path for serial
	Addr string

	// Serial selects a serial connection over TCP
	Serial bool

	// SerialConf is used when Serial is true.  Its Name is set from Addr.
	SerialConf *serial.Config

	// Timeout bounds connecting and each read or write
	Timeout time.Duration

	Terminators

	pool *Pool
}

// NewRemoteDevice creates a new RemoteDevice.  If term is nil both
// terminators are CR.  conf may be nil for TCP devices.
func NewRemoteDevice(addr string, isSerial bool, term *Terminators, conf *serial.Config) *RemoteDevice {
	if term == nil {
		term = &Terminators{Tx: CR, Rx: CR}
	}
	rd := &RemoteDevice{
		Addr:        addr,
		Serial:      isSerial,
		SerialConf:  conf,
		Timeout:     3 * time.Second,
		Terminators: *term,
	}
	rd.pool = NewPool(1, 30*time.Second, rd.open)
	return rd
}

// open dials the remote with an exponential backoff, so devices that do not
// like being connection thrashed get time to recover
func (rd *RemoteDevice) open() (io.ReadWriteCloser, error) {
	var conn io.ReadWriteCloser
	op := func() error {
		var err error
		if rd.Serial {
			if rd.SerialConf == nil {
				return backoff.Permanent(ErrNoSerialConf)
			}
			conf := *rd.SerialConf
			conf.Name = rd.Addr
			conf.ReadTimeout = rd.Timeout
			conn, err = serial.OpenPort(&conf)
		} else {
			conn, err = TCPSetup(rd.Addr, rd.Timeout)
		}
		return err
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", rd.Addr, err)
	}
	return conn, nil
}

// SendRecv sends a buffer after appending the Tx terminator, then returns the
// response with the Rx terminator stripped
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	conn, err := rd.pool.Get()
	if err != nil {
		return nil, err
	}
	err = rd.send(conn, b)
	if err != nil {
		rd.release(conn, err)
		return nil, err
	}
	resp, err := rd.recv(conn)
	rd.release(conn, err)
	return resp, err
}

// Close frees any idle connection
func (rd *RemoteDevice) Close() error {
	rd.pool.Close()
	return nil
}

// release returns a connection to the pool, or discards it if it errored
func (rd *RemoteDevice) release(conn io.ReadWriteCloser, err error) {
	if err != nil {
		rd.pool.Destroy(conn)
		return
	}
	rd.pool.Put(conn)
}

func (rd *RemoteDevice) send(conn io.ReadWriteCloser, b []byte) error {
	if nc, ok := conn.(net.Conn); ok {
		nc.SetWriteDeadline(time.Now().Add(rd.Timeout))
	}
	buf := make([]byte, 0, len(b)+1)
	buf = append(buf, b...)
	buf = append(buf, rd.Tx)
	_, err := conn.Write(buf)
	return err
}

func (rd *RemoteDevice) recv(conn io.ReadWriteCloser) ([]byte, error) {
	if nc, ok := conn.(net.Conn); ok {
		nc.SetReadDeadline(time.Now().Add(rd.Timeout))
	}
	buf, err := bufio.NewReader(conn).ReadBytes(rd.Rx)
	if err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(buf, []byte{rd.Rx}) {
		return buf, ErrTerminatorNotFound
	}
	buf = buf[:len(buf)-1]
	// tolerate CRLF when the terminator is LF
	if rd.Rx == LF {
		buf = bytes.TrimSuffix(buf, []byte{CR})
	}
	return buf, nil
}

// TCPSetup opens a new TCP connection with a timeout on connect
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}
