package transport

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Transport is a live byte stream to an NNTP server.
//
// A Transport is used by one goroutine at a time, with the exception
// of Close which may be called concurrently to unblock a pending
// ReadChunk.
type Transport interface {
	// ReadChunk blocks until at least one byte is available and returns
	// up to max bytes. The returned slice is only valid until the next
	// call to ReadChunk.
	ReadChunk(max int) ([]byte, error)
	// WriteAll writes all of b or returns an error.
	WriteAll(b []byte) error
	// Close releases the connection. It is idempotent.
	Close() error
	// Connected reports whether the transport is still usable: it has
	// not been closed and the peer has not closed its side.
	Connected() bool
	// RemoteAddr returns the address of the connected endpoint.
	RemoteAddr() net.Addr
}

// stream is the behaviour shared by both Transport variants.
type stream struct {
	conn net.Conn
	buf  []byte

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
	eof       bool
}

func (s *stream) ReadChunk(max int) ([]byte, error) {
	if max < 1 {
		max = 1
	}
	if cap(s.buf) < max {
		s.buf = make([]byte, max)
	}
	for {
		n, err := s.conn.Read(s.buf[:max])
		if n > 0 {
			return s.buf[:n], nil
		}
		if err == io.EOF {
			s.eof = true
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *stream) WriteAll(b []byte) error {
	for len(b) > 0 {
		n, err := s.conn.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

func (s *stream) Connected() bool { return !s.closed.Load() && !s.eof }

func (s *stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Plain is an unencrypted Transport over a TCP connection.
type Plain struct{ stream }

// NewPlain returns a Plain transport owning conn.
func NewPlain(conn net.Conn) *Plain { return &Plain{stream{conn: conn}} }

// Secure is a TLS encrypted Transport.
type Secure struct {
	stream
	tc *tls.Conn
}

// NewSecure returns a Secure transport owning conn, whose handshake
// must already have completed.
func NewSecure(conn *tls.Conn) *Secure { return &Secure{stream: stream{conn: conn}, tc: conn} }

// ConnectionState returns the TLS session details.
func (s *Secure) ConnectionState() tls.ConnectionState { return s.tc.ConnectionState() }

var (
	_ Transport = (*Plain)(nil)
	_ Transport = (*Secure)(nil)
)
