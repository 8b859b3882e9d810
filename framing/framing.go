package framing

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Code is a three digit NNTP response code
type Code int

const (
	// CodeReadyPostingAllowed is the greeting of a server accepting posts
	CodeReadyPostingAllowed Code = 200
	// CodeReadyPostingProhibited is the greeting of a read-only server
	CodeReadyPostingProhibited Code = 201
)

func (c Code) String() string { return fmt.Sprintf("%03d", int(c)) }

// In reports whether c is one of codes
func (c Code) In(codes ...Code) bool {
	for _, want := range codes {
		if c == want {
			return true
		}
	}
	return false
}

// CodeLen is the length of the response code prefix on the wire
const CodeLen = 3

var (
	// CRLF is the line terminator for commands and responses
	CRLF = []byte("\r\n")
	// Terminator closes a multi-line response. It is only significant
	// at the start of a line.
	Terminator = []byte(".\r\n")

	lineTerminator = []byte("\r\n.\r\n")
)

// ErrBadCode is returned for a response whose first bytes are not a
// valid response code.
type ErrBadCode struct {
	Prefix []byte
}

func (e ErrBadCode) Error() string {
	return fmt.Sprintf("invalid response code %q", e.Prefix)
}

// ParseCode parses the response code from the start of b.
//
// b must begin with three ASCII digits forming a value of at least 100.
// Only the first three bytes are examined.
func ParseCode(b []byte) (Code, error) {
	if len(b) < CodeLen {
		return 0, ErrBadCode{Prefix: append([]byte(nil), b...)}
	}
	var c int
	for _, r := range b[:CodeLen] {
		if r < '0' || r > '9' {
			return 0, ErrBadCode{Prefix: append([]byte(nil), b[:CodeLen]...)}
		}
		c = c*10 + int(r-'0')
	}
	if c < 100 {
		return 0, ErrBadCode{Prefix: append([]byte(nil), b[:CodeLen]...)}
	}
	return Code(c), nil
}

// Window tracks the tail of a response stream across chunk reads, so
// that line and terminator detection do not depend on where the
// stream was split into chunks.
//
// The zero value is ready for use.
type Window struct {
	tail [5]byte
	n    int
}

// Write slides p into the window. It never fails.
func (w *Window) Write(p []byte) (int, error) {
	if len(p) >= len(w.tail) {
		copy(w.tail[:], p[len(p)-len(w.tail):])
		w.n = len(w.tail)
		return len(p), nil
	}
	keep := len(w.tail) - len(p)
	copy(w.tail[:keep], w.tail[len(p):])
	copy(w.tail[keep:], p)
	if w.n += len(p); w.n > len(w.tail) {
		w.n = len(w.tail)
	}
	return len(p), nil
}

func (w *Window) bytes() []byte { return w.tail[len(w.tail)-w.n:] }

// LineComplete reports whether the stream seen so far ends with CRLF
func (w *Window) LineComplete() bool { return bytes.HasSuffix(w.bytes(), CRLF) }

// Terminated reports whether the stream seen so far ends with the
// multi-line terminator on a line of its own.
func (w *Window) Terminated() bool { return bytes.HasSuffix(w.bytes(), lineTerminator) }

// Ended reports whether the stream seen so far ends with the
// terminator, wherever it falls. Compressed bodies are binary and are
// not line oriented, so only this weaker check applies to them, and the
// terminator may still be part of the body.
func (w *Window) Ended() bool { return bytes.HasSuffix(w.bytes(), Terminator) }

// Reset empties the window
func (w *Window) Reset() { *w = Window{} }

// SplitBody returns a bufio.SplitFunc tokenizing a complete multi-line
// response into lines.
//
// The first token is the response line. Subsequent tokens are body lines
// with the line terminator removed and dot-stuffing undone. The
// terminator line itself is not returned; once seen, input is finished
// and further data is ignored. Input ending before the terminator
// yields io.ErrUnexpectedEOF.
func SplitBody() bufio.SplitFunc {
	var first = true
	var done bool
	return func(b []byte, atEOF bool) (advance int, token []byte, err error) {
		if done {
			return len(b), nil, nil
		}
		idx := bytes.Index(b, CRLF)
		if idx < 0 {
			if atEOF {
				if len(b) > 0 || !first {
					err = io.ErrUnexpectedEOF
				}
				return
			}
			return 0, nil, nil
		}
		advance = idx + len(CRLF)
		line := b[:idx]
		switch {
		case first:
			first = false
			token = line
		case len(line) == 1 && line[0] == '.':
			done = true
			return advance, nil, nil
		case len(line) > 0 && line[0] == '.':
			token = line[1:]
		default:
			token = line
		}
		return
	}
}
