package comm_test

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/nasa-jpl/pulselab/comm"
)

// tcpEchoServer starts an echo server on a free port and returns its address
func tcpEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("could not listen:", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { io.Copy(conn, conn) }()
		}
	}()
	return ln.Addr().String()
}

func TestSendRecvEcho(t *testing.T) {
	addr := tcpEchoServer(t)
	rd := comm.NewRemoteDevice(addr, false, nil, nil)
	defer rd.Close()
	for _, msg := range []string{"PROG START", "INST 1 0 0 100"} {
		resp, err := rd.SendRecv([]byte(msg))
		if err != nil {
			t.Fatal(err)
		}
		if string(resp) != msg {
			t.Errorf("expected %q echoed, got %q", msg, resp)
		}
	}
}

func TestLineFeedTerminator(t *testing.T) {
	addr := tcpEchoServer(t)
	rd := comm.NewRemoteDevice(addr, false, &comm.Terminators{Tx: comm.LF, Rx: comm.LF}, nil)
	defer rd.Close()
	resp, err := rd.SendRecv([]byte("OK\r"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "OK" {
		t.Errorf("expected CR stripped before LF, got %q", resp)
	}
}

func TestSerialWithoutConf(t *testing.T) {
	rd := comm.NewRemoteDevice("/dev/ttyS99", true, nil, nil)
	_, err := rd.SendRecv([]byte("START"))
	if !errors.Is(err, comm.ErrNoSerialConf) {
		t.Errorf("expected ErrNoSerialConf, got %v", err)
	}
}

func dialer(t *testing.T, addr string) comm.CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", addr)
	}
}

func TestPoolReuses(t *testing.T) {
	addr := tcpEchoServer(t)
	made := 0
	dial := dialer(t, addr)
	pool := comm.NewPool(3, time.Second, func() (io.ReadWriteCloser, error) {
		made++
		return dial()
	})
	defer pool.Close()
	for i := 0; i < 5; i++ {
		c, err := pool.Get()
		if err != nil {
			t.Fatal(err)
		}
		pool.Put(c)
	}
	if made != 1 {
		t.Errorf("expected one connection made and reused, got %d", made)
	}
	if pool.Size() != 1 || pool.Active() != 0 {
		t.Errorf("expected 1 idle connection, got size %d active %d", pool.Size(), pool.Active())
	}
}

func TestPoolExpires(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(3, 10*time.Millisecond, dialer(t, addr))
	c, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	pool.Put(c)
	time.Sleep(100 * time.Millisecond)
	if pool.Size() != 0 {
		t.Errorf("expected idle connections reclaimed, got %d", pool.Size())
	}
}

func TestPoolMaintainsSize(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(2, time.Second, dialer(t, addr))
	defer pool.Close()
	held := []io.ReadWriteCloser{}
	for i := 0; i < 2; i++ {
		c, err := pool.Get()
		if err != nil {
			t.Fatal(err)
		}
		held = append(held, c)
	}
	got := make(chan io.ReadWriteCloser, 1)
	go func() {
		c, _ := pool.Get()
		got <- c
	}()
	select {
	case <-got:
		t.Fatal("pool gave out more connections than its size")
	case <-time.After(100 * time.Millisecond):
	}
	pool.Put(held[0])
	select {
	case c := <-got:
		pool.Put(c)
	case <-time.After(time.Second):
		t.Fatal("blocked Get did not receive the returned connection")
	}
	pool.Put(held[1])
}
