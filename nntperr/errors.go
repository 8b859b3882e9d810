package nntperr

import (
	"errors"
	"fmt"
)

// Kind represents the class of an NNTP core failure
type Kind int

const (
	// KindConfiguration is a caller configuration error, such as a
	// plain connection attempted on a well-known TLS port
	KindConfiguration Kind = iota
	// KindResolution indicates the host or port could not be resolved
	KindResolution
	// KindConnection indicates every candidate endpoint failed
	KindConnection
	// KindNotConnected indicates an operation needing a live transport
	// was attempted without one
	KindNotConnected
	// KindProtocolViolation indicates an unparseable response code, or
	// an unexpected code at a point where the session cannot continue
	KindProtocolViolation
	// KindTransport is an I/O failure while reading or writing
	KindTransport
	// KindMalformedCompressedBody indicates a compressed multi-line
	// body that does not carry the expected envelope
	KindMalformedCompressedBody
	// KindDecompression indicates a corrupt or truncated compressed stream
	KindDecompression
)

var kindNames = [...]string{
	KindConfiguration:           "configuration",
	KindResolution:              "resolution",
	KindConnection:              "connection",
	KindNotConnected:            "not-connected",
	KindProtocolViolation:       "protocol-violation",
	KindTransport:               "transport",
	KindMalformedCompressedBody: "malformed-compressed-body",
	KindDecompression:           "decompression",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is an NNTP core error.
//
// Op names the failed operation (e.g. "connect", "read", "decode"),
// Addr the endpoint involved if any, and Code the offending response
// code for protocol violations raised against a parseable code.
type Error struct {
	Kind    Kind
	Op      string
	Addr    string
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	s := "nntp " + e.Kind.String() + " error"
	if e.Op != "" {
		s += " op:" + e.Op
	}
	if e.Addr != "" {
		s += " addr:" + e.Addr
	}
	if e.Code != 0 {
		s += fmt.Sprintf(" code:%03d", e.Code)
	}
	if e.Message != "" {
		s += " " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
// ok is false if there is none.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err's chain holds an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func newError(kind Kind, opts []Option) *Error {
	e := &Error{Kind: kind}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Configuration(opts ...Option) *Error { return newError(KindConfiguration, opts) }

func Resolution(opts ...Option) *Error { return newError(KindResolution, opts) }

func Connection(opts ...Option) *Error { return newError(KindConnection, opts) }

func NotConnected(opts ...Option) *Error {
	e := newError(KindNotConnected, opts)
	if e.Message == "" {
		e.Message = "no live transport"
	}
	return e
}

func ProtocolViolation(opts ...Option) *Error { return newError(KindProtocolViolation, opts) }

func Transport(opts ...Option) *Error { return newError(KindTransport, opts) }

func MalformedCompressedBody(opts ...Option) *Error {
	return newError(KindMalformedCompressedBody, opts)
}

func Decompression(opts ...Option) *Error { return newError(KindDecompression, opts) }
