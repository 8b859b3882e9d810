package transport

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/andaru/nntp/nntperr"
)

// Well-known NNTP ports.
const (
	PortPlain     = "119"
	PortSecure    = "563"
	PortSecureAlt = "443"
)

// Resolver resolves host names and service names. *net.Resolver
// implements Resolver.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupPort(ctx context.Context, network, service string) (int, error)
}

// ContextDialer dials a single endpoint. *net.Dialer implements
// ContextDialer.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// GreetingFunc is called with each newly connected candidate transport
// before it is handed to the caller. A returned error whose kind is
// nntperr.KindProtocolViolation stops the connection attempt; any other
// error moves on to the next candidate.
type GreetingFunc func(Transport) error

// Connector establishes Transports, trying each resolved endpoint in
// turn.
type Connector struct {
	resolver  Resolver
	dialer    ContextDialer
	tlsConfig *tls.Config
	greeting  GreetingFunc
}

// NewConnector returns a Connector configured by opts. By default it
// uses net.DefaultResolver, a zero net.Dialer and performs no greeting.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{resolver: net.DefaultResolver, dialer: &net.Dialer{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConnectPlain connects an unencrypted transport to host:port.
// Ports reserved for TLS are refused before any network I/O.
func (c *Connector) ConnectPlain(ctx context.Context, host, port string) (Transport, error) {
	if port == PortSecure || port == PortSecureAlt {
		return nil, nntperr.Configuration(nntperr.WithOp("connect"),
			nntperr.WithMessage("TLS port "+port+" used for a plain connection"))
	}
	return c.connect(ctx, host, port, false)
}

// ConnectSecure connects a TLS transport to host:port. The plain NNTP
// port is refused before any network I/O.
func (c *Connector) ConnectSecure(ctx context.Context, host, port string) (Transport, error) {
	if port == PortPlain {
		return nil, nntperr.Configuration(nntperr.WithOp("connect"),
			nntperr.WithMessage("plain port "+port+" used for a TLS connection"))
	}
	return c.connect(ctx, host, port, true)
}

// Endpoints resolves host and port to the candidate addresses, in the
// order returned by the resolver.
func (c *Connector) Endpoints(ctx context.Context, host, port string) ([]string, error) {
	addr := net.JoinHostPort(host, port)
	pn, err := strconv.Atoi(port)
	if err != nil {
		if pn, err = c.resolver.LookupPort(ctx, "tcp", port); err != nil {
			return nil, nntperr.Resolution(nntperr.WithAddr(addr), nntperr.WithCause(err))
		}
	}
	if pn < 1 || pn > 65535 {
		return nil, nntperr.Resolution(nntperr.WithAddr(addr), nntperr.WithMessage("port out of range"))
	}
	hosts, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, nntperr.Resolution(nntperr.WithAddr(addr), nntperr.WithCause(err))
	}
	if len(hosts) == 0 {
		return nil, nntperr.Resolution(nntperr.WithAddr(addr), nntperr.WithMessage("no addresses"))
	}
	endpoints := make([]string, 0, len(hosts))
	for _, h := range hosts {
		endpoints = append(endpoints, net.JoinHostPort(h, strconv.Itoa(pn)))
	}
	return endpoints, nil
}

func (c *Connector) connect(ctx context.Context, host, port string, secure bool) (Transport, error) {
	endpoints, err := c.Endpoints(ctx, host, port)
	if err != nil {
		return nil, err
	}

	var errs error
	for _, ep := range endpoints {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		glog.V(2).Infof("nntp: connecting to %s (secure=%v)", ep, secure)
		t, err := c.dial(ctx, ep, host, secure)
		if err != nil {
			glog.V(2).Infof("nntp: %s: %v", ep, err)
			errs = multierr.Append(errs, err)
			continue
		}
		if c.greeting != nil {
			// closing the transport unblocks a server that never greets
			stop := context.AfterFunc(ctx, func() { t.Close() })
			err = c.greeting(t)
			if !stop() && err == nil {
				err = ctx.Err()
			}
			if err != nil {
				t.Close()
				if nntperr.IsKind(err, nntperr.KindProtocolViolation) {
					return nil, err
				}
				glog.V(2).Infof("nntp: %s: greeting: %v", ep, err)
				errs = multierr.Append(errs, errors.Wrapf(err, "greeting %s", ep))
				if ctx.Err() != nil {
					errs = multierr.Append(errs, ctx.Err())
					break
				}
				continue
			}
		}
		glog.V(2).Infof("nntp: connected to %s", ep)
		return t, nil
	}
	return nil, nntperr.Connection(nntperr.WithAddr(net.JoinHostPort(host, port)),
		nntperr.WithMessage(strconv.Itoa(len(multierr.Errors(errs)))+" endpoint attempt(s) failed"),
		nntperr.WithCause(errs))
}

// dial connects to a single endpoint, completing the TLS handshake for
// secure transports. A failed handshake closes the underlying connection.
func (c *Connector) dial(ctx context.Context, addr, host string, secure bool) (Transport, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	if !secure {
		return NewPlain(conn), nil
	}

	tc := tls.Client(conn, c.clientTLSConfig(host))
	if err = tc.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "tls handshake %s", addr)
	}
	return NewSecure(tc), nil
}

func (c *Connector) clientTLSConfig(host string) *tls.Config {
	var cfg *tls.Config
	if c.tlsConfig != nil {
		cfg = c.tlsConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}
