package session

import (
	"context"
	"crypto/tls"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/andaru/nntp/codec"
	"github.com/andaru/nntp/framing"
	"github.com/andaru/nntp/message"
	"github.com/andaru/nntp/nntperr"
	"github.com/andaru/nntp/transport"
)

// New returns a new, unconnected NNTP Session
func New(config Config) *Session {
	return &Session{Config: &config, State: &State{}}
}

// Session represents a client connection to an NNTP server.
//
// A Session is used by one goroutine at a time. Abort is the exception:
// it may be called from any goroutine to unblock a pending read.
type Session struct {
	Config *Config
	State  *State

	mu sync.Mutex // guards t against Abort
	t  transport.Transport
	r  *message.Reader
	w  *message.Writer

	compress bool
	echo     bool
	greeting framing.Code
}

// Config contains Session configuration
type Config struct {
	// Resolver resolves server names. Defaults to net.DefaultResolver.
	Resolver transport.Resolver
	// Dialer connects each candidate endpoint. Defaults to a zero
	// net.Dialer.
	Dialer transport.ContextDialer
	// TLSConfig configures secure sessions. ServerName defaults to the
	// host passed to ConnectSecure.
	TLSConfig *tls.Config
	// ChunkSize is the maximum size of each transport read. Defaults
	// to message.DefaultChunkSize.
	ChunkSize int
	// Echo receives the raw responses while echo is enabled. Defaults
	// to os.Stdout.
	Echo io.Writer
	// MaxDecompressedSize limits the size of an inflated compressed
	// body. Defaults to codec.DefaultMaxSize.
	MaxDecompressedSize int64
}

// State contains runtime Session state
type State struct {
	// Status is the session status
	Status Status
	// Greeting is the server's greeting line, without its CRLF
	Greeting string
	// Counters contains counters for the current connection
	Counters struct {
		// Commands is the number of command lines sent
		Commands int
		// Responses is the number of responses whose code was read
		Responses int
		// RxBytes and TxBytes count bytes received and sent
		RxBytes, TxBytes int64
	}

	errs []error
}

// Status is a Session's (present) state.
type Status int

const (
	// StatusInactive is the initial session state, before any
	// connection is made.
	StatusInactive Status = iota
	// StatusConnecting is set while candidate endpoints are tried.
	StatusConnecting
	// StatusEstablished is set once a server has sent a valid greeting.
	StatusEstablished
	// StatusError indicates the session has encountered an error that
	// leaves the response stream out of step with commands.
	StatusError
	// StatusClosed indicates the session was closed.
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusConnecting:
		return "connecting"
	case StatusEstablished:
		return "established"
	case StatusError:
		return "error"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// Connect connects to an NNTP server without encryption and reads its
// greeting. Connecting a connected session does nothing.
func (s *Session) Connect(ctx context.Context, host, port string) error {
	return s.connect(ctx, host, port, false)
}

// ConnectSecure connects to an NNTP server over TLS and reads its
// greeting. Connecting a connected session does nothing.
func (s *Session) ConnectSecure(ctx context.Context, host, port string) error {
	return s.connect(ctx, host, port, true)
}

func (s *Session) connect(ctx context.Context, host, port string, secure bool) error {
	if s.Connected() {
		return nil
	}
	if s.t != nil {
		// the previous transport is dead, release it
		s.Close()
	}
	s.State.Status = StatusConnecting

	opts := []transport.Option{transport.WithGreeting(s.greet)}
	if s.Config.Resolver != nil {
		opts = append(opts, transport.WithResolver(s.Config.Resolver))
	}
	if s.Config.Dialer != nil {
		opts = append(opts, transport.WithDialer(s.Config.Dialer))
	}
	if s.Config.TLSConfig != nil {
		opts = append(opts, transport.WithTLSConfig(s.Config.TLSConfig))
	}
	c := transport.NewConnector(opts...)

	var t transport.Transport
	var err error
	if secure {
		t, err = c.ConnectSecure(ctx, host, port)
	} else {
		t, err = c.ConnectPlain(ctx, host, port)
	}
	if err != nil {
		s.AddError(err)
		s.State.Status = StatusError
		return err
	}

	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
	s.State.Status = StatusEstablished
	s.sync()
	glog.V(2).Infof("nntp: session established with %s: %s", t.RemoteAddr(), s.State.Greeting)
	return nil
}

// greet validates the greeting of a candidate transport, preparing the
// session's reader and writer for it on success.
func (s *Session) greet(t transport.Transport) error {
	r := message.NewReader(t, message.WithChunkSize(s.Config.ChunkSize))
	r.SetEcho(s.echoWriter())
	r.SetDecoder(s.decoder())

	ok, line, err := r.ReadLineBuffer(framing.CodeReadyPostingAllowed, framing.CodeReadyPostingProhibited)
	if err != nil {
		return err
	}
	if !ok {
		return nntperr.ProtocolViolation(nntperr.WithOp("greeting"), nntperr.WithCode(int(r.Code())),
			nntperr.WithMessage("server is not ready"))
	}
	s.r = r
	s.w = message.NewWriter(t)
	s.greeting = r.Code()
	s.State.Greeting = strings.TrimRight(string(line), "\r\n")
	return nil
}

// Greeting returns the server's greeting line, without its CRLF
func (s *Session) Greeting() string { return s.State.Greeting }

// PostingAllowed reports whether the server's greeting permits posting
func (s *Session) PostingAllowed() bool { return s.greeting == framing.CodeReadyPostingAllowed }

// Send sends a command line. The CRLF line ending is added.
func (s *Session) Send(line string) error {
	if err := s.live("send"); err != nil {
		return err
	}
	defer s.sync()
	return s.check(s.w.Send(line))
}

// ReadLine reads a single-line response, reporting whether its code is
// one of expect. An empty expect accepts any code.
func (s *Session) ReadLine(expect ...framing.Code) (bool, error) {
	if err := s.live("read line"); err != nil {
		return false, err
	}
	defer s.sync()
	ok, err := s.r.ReadLine(expect...)
	return ok, s.check(err)
}

// ReadLineBuffer is ReadLine, also returning the bytes read.
func (s *Session) ReadLineBuffer(expect ...framing.Code) (bool, []byte, error) {
	if err := s.live("read line"); err != nil {
		return false, nil, err
	}
	defer s.sync()
	ok, buf, err := s.r.ReadLineBuffer(expect...)
	return ok, buf, s.check(err)
}

// ReadLines reads a multi-line response, reporting whether its code is
// one of expect.
func (s *Session) ReadLines(expect ...framing.Code) (bool, error) {
	if err := s.live("read lines"); err != nil {
		return false, err
	}
	defer s.sync()
	ok, err := s.r.ReadLines(expect...)
	return ok, s.check(err)
}

// ReadLinesBuffer is ReadLines, also returning the bytes read.
func (s *Session) ReadLinesBuffer(expect ...framing.Code) (bool, []byte, error) {
	if err := s.live("read lines"); err != nil {
		return false, nil, err
	}
	defer s.sync()
	ok, buf, err := s.r.ReadLinesBuffer(expect...)
	return ok, buf, s.check(err)
}

// ReadCompressedLines reads a multi-line response whose body is
// compressed when compression is enabled, returning it inflated. With
// compression disabled it is ReadLinesBuffer.
func (s *Session) ReadCompressedLines(expect ...framing.Code) (bool, []byte, error) {
	if err := s.live("read compressed lines"); err != nil {
		return false, nil, err
	}
	defer s.sync()
	ok, buf, err := s.r.ReadCompressedLines(expect...)
	return ok, buf, s.check(err)
}

// ReadCode reads a single-line response with any code, returning the
// code and the line.
func (s *Session) ReadCode() (framing.Code, []byte, error) {
	if err := s.live("read line"); err != nil {
		return 0, nil, err
	}
	defer s.sync()
	code, buf, err := s.r.ReadCode()
	return code, buf, s.check(err)
}

// FinishLine reads the rest of a mismatched response line, given the
// bytes returned by the mismatched read.
func (s *Session) FinishLine(partial []byte) ([]byte, error) {
	if err := s.live("finish line"); err != nil {
		return partial, err
	}
	defer s.sync()
	buf, err := s.r.FinishLine(partial)
	return buf, s.check(err)
}

// Code returns the code of the last response read, or 0.
func (s *Session) Code() framing.Code {
	if s.r == nil {
		return 0
	}
	return s.r.Code()
}

// SetCompression enables or disables decoding of compressed
// multi-line responses by ReadCompressedLines.
func (s *Session) SetCompression(on bool) {
	s.compress = on
	if s.r != nil {
		s.r.SetDecoder(s.decoder())
	}
}

// Compression reports whether compression is enabled.
func (s *Session) Compression() bool { return s.compress }

// SetEcho enables or disables mirroring of responses to Config.Echo.
func (s *Session) SetEcho(on bool) {
	s.echo = on
	if s.r != nil {
		s.r.SetEcho(s.echoWriter())
	}
}

// Echo reports whether echo is enabled.
func (s *Session) Echo() bool { return s.echo }

// Connected reports whether the session has a live transport.
func (s *Session) Connected() bool { return s.t != nil && s.t.Connected() }

// RemoteAddr returns the connected server address, or an empty string.
func (s *Session) RemoteAddr() string {
	if s.t == nil {
		return ""
	}
	return s.t.RemoteAddr().String()
}

// Close closes the Session. Closing a closed or never connected session
// is not an error.
func (s *Session) Close() error {
	s.mu.Lock()
	t := s.t
	s.t = nil
	s.mu.Unlock()

	s.State.Status = StatusClosed
	if t == nil {
		return nil
	}
	s.sync()
	s.r, s.w = nil, nil
	return t.Close()
}

// Abort closes the transport, unblocking a read in progress in another
// goroutine, which then fails with a transport error. The session must
// still be closed with Close.
func (s *Session) Abort() {
	s.mu.Lock()
	t := s.t
	s.mu.Unlock()
	if t != nil {
		t.Close()
	}
}

// AddError adds an error to the session state
func (s *Session) AddError(errs ...error) (added int) {
	for _, err := range errs {
		if err != nil {
			s.State.errs = append(s.State.errs, err)
			added++
		}
	}
	return added
}

// Errors returns all session errors
func (s *Session) Errors() []error { return s.State.errs }

// live returns a not connected error for op unless the session has a
// live transport.
func (s *Session) live(op string) error {
	if s.Connected() {
		return nil
	}
	err := nntperr.NotConnected(nntperr.WithOp(op))
	s.AddError(err)
	return err
}

// check records err. Errors that leave responses out of step with
// commands move the session to StatusError.
func (s *Session) check(err error) error {
	if err == nil {
		return nil
	}
	s.AddError(err)
	if kind, _ := nntperr.KindOf(err); kind == nntperr.KindTransport || kind == nntperr.KindProtocolViolation {
		s.State.Status = StatusError
	}
	return err
}

// sync copies the reader and writer counters into the session state.
func (s *Session) sync() {
	if s.r != nil {
		s.State.Counters.Responses = s.r.Responses()
		s.State.Counters.RxBytes = s.r.RxBytes()
	}
	if s.w != nil {
		s.State.Counters.Commands = s.w.Commands()
		s.State.Counters.TxBytes = s.w.TxBytes()
	}
}

func (s *Session) echoWriter() io.Writer {
	if !s.echo {
		return nil
	}
	if s.Config.Echo != nil {
		return s.Config.Echo
	}
	return os.Stdout
}

func (s *Session) decoder() *codec.Decoder {
	if !s.compress {
		return nil
	}
	return codec.NewDecoder(codec.WithMaxSize(s.Config.MaxDecompressedSize))
}
