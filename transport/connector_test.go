package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/andaru/nntp/nntperr"
	"github.com/andaru/nntp/nntptest"
)

// failDialer fails the test if any dial is attempted.
type failDialer struct{ t *testing.T }

func (d failDialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	d.t.Errorf("unexpected dial to %s", addr)
	return nil, net.ErrClosed
}

// trackingConn records whether it was closed.
type trackingConn struct {
	net.Conn
	mu     sync.Mutex
	closed bool
}

func (c *trackingConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Conn.Close()
}

func (c *trackingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// scriptDialer refuses the endpoints in refuse and redirects every
// other endpoint to target.
type scriptDialer struct {
	refuse map[string]bool
	target string

	mu    sync.Mutex
	dials []string
	conns []*trackingConn
}

func (d *scriptDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, addr)
	d.mu.Unlock()
	if d.refuse[addr] {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errRefused}
	}
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, network, d.target)
	if err != nil {
		return nil, err
	}
	tc := &trackingConn{Conn: conn}
	d.mu.Lock()
	d.conns = append(d.conns, tc)
	d.mu.Unlock()
	return tc, nil
}

func (d *scriptDialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

type refusedError struct{}

func (refusedError) Error() string { return "connection refused" }

var errRefused = refusedError{}

// readyGreeting accepts 200 and 201 greetings, rejects any other code as
// a protocol violation and reports read failures as transport errors.
func readyGreeting(t Transport) error {
	var line []byte
	for !bytes.HasSuffix(line, []byte("\r\n")) {
		chunk, err := t.ReadChunk(64)
		if err != nil {
			return nntperr.Transport(nntperr.WithOp("greeting"), nntperr.WithCause(err))
		}
		line = append(line, chunk...)
	}
	if bytes.HasPrefix(line, []byte("200")) || bytes.HasPrefix(line, []byte("201")) {
		return nil
	}
	return nntperr.ProtocolViolation(nntperr.WithOp("greeting"), nntperr.WithMessage(string(line)))
}

func newServer(t *testing.T, greeting string) (*nntptest.Server, string) {
	t.Helper()
	s, err := nntptest.NewServer(greeting, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	host, port := s.HostPort()
	return s, net.JoinHostPort(host, port)
}

func TestConnectPortGuard(t *testing.T) {
	for _, tc := range []struct {
		name   string
		secure bool
		port   string
	}{
		{name: "plain on 563", port: PortSecure},
		{name: "plain on 443", port: PortSecureAlt},
		{name: "secure on 119", secure: true, port: PortPlain},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ck := assert.New(t)
			r := &nntptest.Resolver{Hosts: map[string][]string{"news.example": {"192.0.2.1"}}}
			c := NewConnector(WithResolver(r), WithDialer(failDialer{t}))

			var tr Transport
			var err error
			if tc.secure {
				tr, err = c.ConnectSecure(context.Background(), "news.example", tc.port)
			} else {
				tr, err = c.ConnectPlain(context.Background(), "news.example", tc.port)
			}
			ck.Nil(tr)
			ck.True(nntperr.IsKind(err, nntperr.KindConfiguration), "got %v", err)
			ck.Zero(r.HostLookups)
		})
	}
}

func TestEndpoints(t *testing.T) {
	r := &nntptest.Resolver{
		Hosts: map[string][]string{
			"news.example":  {"192.0.2.1", "2001:db8::1"},
			"empty.example": {},
		},
		Ports: map[string]int{"nntp": 119},
	}
	c := NewConnector(WithResolver(r))

	for _, tc := range []struct {
		name string
		host string
		port string
		want []string
		kind nntperr.Kind
	}{
		{
			name: "numeric port",
			host: "news.example",
			port: "119",
			want: []string{"192.0.2.1:119", "[2001:db8::1]:119"},
		},
		{name: "service name", host: "news.example", port: "nntp", want: []string{"192.0.2.1:119", "[2001:db8::1]:119"}},
		{name: "unknown host", host: "missing.example", port: "119", kind: nntperr.KindResolution},
		{name: "no addresses", host: "empty.example", port: "119", kind: nntperr.KindResolution},
		{name: "unknown service", host: "news.example", port: "gopher-news", kind: nntperr.KindResolution},
		{name: "port out of range", host: "news.example", port: "70000", kind: nntperr.KindResolution},
		{name: "port zero", host: "news.example", port: "0", kind: nntperr.KindResolution},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ck := assert.New(t)
			got, err := c.Endpoints(context.Background(), tc.host, tc.port)
			if tc.want != nil {
				ck.NoError(err)
				ck.Equal(tc.want, got)
				return
			}
			ck.Nil(got)
			ck.True(nntperr.IsKind(err, tc.kind), "got %v", err)
		})
	}
}

func TestConnectFallback(t *testing.T) {
	ck := assert.New(t)
	_, target := newServer(t, "200 news.example ready\r\n")

	r := &nntptest.Resolver{Hosts: map[string][]string{"news.example": {"192.0.2.1", "192.0.2.2", "192.0.2.3"}}}
	d := &scriptDialer{
		refuse: map[string]bool{"192.0.2.1:119": true, "192.0.2.2:119": true},
		target: target,
	}
	c := NewConnector(WithResolver(r), WithDialer(d), WithGreeting(readyGreeting))

	tr, err := c.ConnectPlain(context.Background(), "news.example", PortPlain)
	require.NoError(t, err)
	defer tr.Close()

	ck.Equal([]string{"192.0.2.1:119", "192.0.2.2:119", "192.0.2.3:119"}, d.Dials())
	ck.True(tr.Connected())
	ck.IsType(&Plain{}, tr)
}

func TestConnectGreetingViolationIsFatal(t *testing.T) {
	ck := assert.New(t)
	_, target := newServer(t, "502 access denied\r\n")

	r := &nntptest.Resolver{Hosts: map[string][]string{"news.example": {"192.0.2.1", "192.0.2.2"}}}
	d := &scriptDialer{target: target}
	c := NewConnector(WithResolver(r), WithDialer(d), WithGreeting(readyGreeting))

	tr, err := c.ConnectPlain(context.Background(), "news.example", PortPlain)
	ck.Nil(tr)
	ck.True(nntperr.IsKind(err, nntperr.KindProtocolViolation), "got %v", err)
	ck.Equal([]string{"192.0.2.1:119"}, d.Dials())
	if ck.Len(d.conns, 1) {
		ck.True(d.conns[0].isClosed())
	}
}

func TestConnectGreetingFailureTriesNext(t *testing.T) {
	ck := assert.New(t)
	_, target := newServer(t, "200 ready\r\n")

	// The first endpoint accepts and immediately hangs up.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	r := &nntptest.Resolver{Hosts: map[string][]string{"news.example": {"192.0.2.1", "192.0.2.2"}}}
	d := &redirectDialer{routes: map[string]string{
		"192.0.2.1:119": l.Addr().String(),
		"192.0.2.2:119": target,
	}}
	c := NewConnector(WithResolver(r), WithDialer(d), WithGreeting(readyGreeting))

	tr, err := c.ConnectPlain(context.Background(), "news.example", PortPlain)
	require.NoError(t, err)
	defer tr.Close()
	ck.Equal(target, tr.RemoteAddr().String())
}

type redirectDialer struct{ routes map[string]string }

func (d *redirectDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var nd net.Dialer
	return nd.DialContext(ctx, network, d.routes[addr])
}

func TestConnectAllFail(t *testing.T) {
	ck := assert.New(t)
	r := &nntptest.Resolver{Hosts: map[string][]string{"news.example": {"192.0.2.1", "192.0.2.2", "192.0.2.3"}}}
	d := &scriptDialer{refuse: map[string]bool{
		"192.0.2.1:119": true,
		"192.0.2.2:119": true,
		"192.0.2.3:119": true,
	}}
	c := NewConnector(WithResolver(r), WithDialer(d))

	tr, err := c.ConnectPlain(context.Background(), "news.example", PortPlain)
	ck.Nil(tr)
	ck.True(nntperr.IsKind(err, nntperr.KindConnection), "got %v", err)

	var ne *nntperr.Error
	if ck.ErrorAs(err, &ne) {
		ck.Equal("news.example:119", ne.Addr)
		ck.Len(multierr.Errors(ne.Err), 3)
	}
	ck.Contains(err.Error(), "connection refused")
}

func TestConnectGreetingHonoursContext(t *testing.T) {
	ck := assert.New(t)
	_, target := newServer(t, "")

	r := &nntptest.Resolver{Hosts: map[string][]string{"news.example": {"192.0.2.1", "192.0.2.2"}}}
	d := &scriptDialer{target: target}
	c := NewConnector(WithResolver(r), WithDialer(d), WithGreeting(readyGreeting))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	tr, err := c.ConnectPlain(ctx, "news.example", PortPlain)
	ck.Nil(tr)
	ck.Less(time.Since(start), 2*time.Second)
	ck.True(nntperr.IsKind(err, nntperr.KindConnection), "got %v", err)
	ck.ErrorIs(err, context.DeadlineExceeded)
	ck.Equal([]string{"192.0.2.1:119"}, d.Dials())
	for _, conn := range d.conns {
		ck.True(conn.isClosed())
	}
}

func TestConnectResolutionFailure(t *testing.T) {
	ck := assert.New(t)
	r := &nntptest.Resolver{}
	c := NewConnector(WithResolver(r), WithDialer(failDialer{t}))

	_, err := c.ConnectSecure(context.Background(), "missing.example", PortSecure)
	ck.True(nntperr.IsKind(err, nntperr.KindResolution), "got %v", err)
	ck.Equal(1, r.HostLookups)
}

func TestConnectSecure(t *testing.T) {
	ck := assert.New(t)
	cert, pool, err := nntptest.Certificate()
	require.NoError(t, err)

	s, err := nntptest.NewTLSServer("200 secure news ready\r\n", nil, cert)
	require.NoError(t, err)
	defer s.Close()
	host, port := s.HostPort()

	c := NewConnector(WithTLSConfig(&tls.Config{RootCAs: pool}), WithGreeting(readyGreeting))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := c.ConnectSecure(ctx, host, port)
	require.NoError(t, err)
	defer tr.Close()

	if sec, ok := tr.(*Secure); ck.True(ok) {
		state := sec.ConnectionState()
		ck.True(state.HandshakeComplete)
	}

	require.NoError(t, tr.WriteAll([]byte("HELP\r\n")))
	var got []byte
	for !bytes.HasSuffix(got, []byte("\r\n")) {
		chunk, err := tr.ReadChunk(4)
		require.NoError(t, err)
		ck.LessOrEqual(len(chunk), 4)
		got = append(got, chunk...)
	}
	ck.Equal("500 unknown command\r\n", string(got))
}

func TestConnectSecureHandshakeFailure(t *testing.T) {
	ck := assert.New(t)
	// A plain server answers the ClientHello with an NNTP greeting.
	_, target := newServer(t, "200 plain news ready\r\n")

	r := &nntptest.Resolver{Hosts: map[string][]string{"news.example": {"192.0.2.1"}}}
	d := &scriptDialer{target: target}
	c := NewConnector(WithResolver(r), WithDialer(d))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := c.ConnectSecure(ctx, "news.example", PortSecure)
	ck.Nil(tr)
	ck.True(nntperr.IsKind(err, nntperr.KindConnection), "got %v", err)
	if ck.Len(d.conns, 1) {
		ck.True(d.conns[0].isClosed())
	}
}
