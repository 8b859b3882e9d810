package main

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/andaru/nntp/session"
)

// connect establishes a session as configured, authenticating and
// negotiating compression when asked to.
func connect(ctx context.Context, cfg config) (*session.Session, error) {
	s := session.New(cfg.sessionConfig())
	s.SetEcho(cfg.Echo)

	connectCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	port := cfg.port()
	InfoMsg("Connecting to %s:%s\n", cfg.Host, port)
	var err error
	if cfg.SSL {
		err = s.ConnectSecure(connectCtx, cfg.Host, port)
	} else {
		err = s.Connect(connectCtx, cfg.Host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	InfoMsg("Connected to %s\n", s.RemoteAddr())

	if cfg.User != "" {
		if err = authenticate(s, cfg.User, cfg.Pass); err != nil {
			s.Close()
			return nil, err
		}
	}
	if cfg.Compress {
		if err = negotiateCompression(s); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// authenticate logs in with AUTHINFO USER and, when the server asks for
// it, AUTHINFO PASS.
func authenticate(s *session.Session, user, pass string) error {
	ok, err := exchange(s, "AUTHINFO USER "+user, io.Discard)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	if !ok {
		return fmt.Errorf("authenticating: user rejected with %s", s.Code())
	}
	if s.Code() == 281 {
		return nil
	}
	if ok, err = exchange(s, "AUTHINFO PASS "+pass, io.Discard); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	if !ok {
		return fmt.Errorf("authenticating: password rejected with %s", s.Code())
	}
	glog.V(2).Infof("nntpcat: authenticated as %s", user)
	return nil
}

// negotiateCompression enables compressed overview responses if the
// server supports them.
func negotiateCompression(s *session.Session) error {
	ok, err := exchange(s, "XFEATURE COMPRESS GZIP", io.Discard)
	if err != nil {
		return fmt.Errorf("enabling compression: %w", err)
	}
	if !ok {
		InfoMsg("Server declined compression (%s)\n", s.Code())
		return nil
	}
	s.SetCompression(true)
	InfoMsg("Compression enabled\n")
	return nil
}
