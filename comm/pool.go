package comm

import (
	"io"
	"time"
)

// CreationFunc is a function which returns a new "connection" to something.
// A closure should be used to encapsulate the variables and functions needed.
type CreationFunc func() (io.ReadWriteCloser, error)

// Pool holds one or more connections to a device.  Connections are made as
// needed, and closed once all have been returned and the timeout has elapsed.
// It is concurrent safe.  Pools must be created with NewPool.
type Pool struct {
	timeout time.Duration
	conns   chan io.ReadWriteCloser // idle connections
	leases  chan struct{}           // one element per connection given out
	timer   *time.Timer             // reclaims idle connections when it fires
	maker   CreationFunc
}

// NewPool returns a pool of at most maxSize connections
func NewPool(maxSize int, timeout time.Duration, maker CreationFunc) *Pool {
	p := &Pool{
		timeout: timeout,
		conns:   make(chan io.ReadWriteCloser, maxSize),
		leases:  make(chan struct{}, maxSize),
		maker:   maker,
	}
	p.timer = time.AfterFunc(timeout, p.reclaim)
	p.timer.Stop()
	return p
}

// Get retrieves a connection, blocking until one is available if all are in
// use.  The caller has exclusive use of it until it is returned with Put, or
// discarded with Destroy if it has gone bad.
//
// If the error from Get is not nil, there is nothing to return to the pool.
func (p *Pool) Get() (io.ReadWriteCloser, error) {
	p.leases <- struct{}{}
	p.timer.Stop()
	select {
	case c := <-p.conns:
		return c, nil
	default:
	}
	c, err := p.maker()
	if err != nil {
		<-p.leases
		return nil, err
	}
	return c, nil
}

// Put returns a connection to the pool
func (p *Pool) Put(c io.ReadWriteCloser) {
	p.conns <- c
	<-p.leases
	if len(p.leases) == 0 {
		p.timer.Reset(p.timeout)
	}
}

// Destroy closes a connection that has gone bad instead of returning it
func (p *Pool) Destroy(c io.ReadWriteCloser) {
	c.Close()
	<-p.leases
}

// Size returns the number of connections in the pool, or given out from it
func (p *Pool) Size() int {
	return len(p.conns) + len(p.leases)
}

// Active returns the number of connections currently given out
func (p *Pool) Active() int {
	return len(p.leases)
}

// Close closes every idle connection
func (p *Pool) Close() {
	p.timer.Stop()
	p.reclaim()
}

func (p *Pool) reclaim() {
	for {
		select {
		case c := <-p.conns:
			c.Close()
		default:
			return
		}
	}
}
