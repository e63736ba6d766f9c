// Package transport abstracts the framed, ordered, bidirectional
// connection a live session runs over.
package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by reads and writes after the connection is
// closed from either side.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a framed full-duplex connection. ReadFrame and WriteFrame
// may be called from different goroutines; neither is safe for
// concurrent use with itself.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// Dialer opens a Conn to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Pipe returns two connected in-memory Conns. Frames written to one
// end are read from the other. Useful for tests.
func Pipe() (Conn, Conn) {
	a2b := make(chan []byte, 64)
	b2a := make(chan []byte, 64)
	done := make(chan struct{})
	shared := &pipeShared{done: done}
	a := &pipeConn{in: b2a, out: a2b, shared: shared}
	b := &pipeConn{in: a2b, out: b2a, shared: shared}
	return a, b
}

type pipeShared struct {
	once sync.Once
	done chan struct{}
}

func (s *pipeShared) close() {
	s.once.Do(func() { close(s.done) })
}

type pipeConn struct {
	in     chan []byte
	out    chan []byte
	shared *pipeShared
}

func (c *pipeConn) ReadFrame() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.shared.done:
		// Drain frames that were written before close.
		select {
		case data := <-c.in:
			return data, nil
		default:
			return nil, ErrClosed
		}
	}
}

func (c *pipeConn) WriteFrame(data []byte) error {
	// Check done first: with buffer room free the send would otherwise
	// race the closed channel and sometimes win.
	select {
	case <-c.shared.done:
		return ErrClosed
	default:
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case c.out <- buf:
		return nil
	case <-c.shared.done:
		return ErrClosed
	}
}

func (c *pipeConn) Close() error {
	c.shared.close()
	return nil
}
