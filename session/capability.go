package session

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/andaru/nntp/framing"
	"github.com/andaru/nntp/nntperr"
)

// Capabilities is a slice of capability lines advertised by a server,
// such as "VERSION 2" or "LIST ACTIVE NEWSGROUPS".
type Capabilities []string

// ParseCapabilities parses a complete CAPABILITIES response, as returned
// by Session.ReadLinesBuffer.
func ParseCapabilities(buf []byte) (Capabilities, error) {
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Split(framing.SplitBody())

	var caps Capabilities
	first := true
	for scanner.Scan() {
		if first {
			first = false
			if _, err := framing.ParseCode(scanner.Bytes()); err != nil {
				return nil, nntperr.ProtocolViolation(nntperr.WithOp("capabilities"), nntperr.WithCause(err))
			}
			continue
		}
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			caps = append(caps, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nntperr.ProtocolViolation(nntperr.WithOp("capabilities"), nntperr.WithCause(err))
	}
	return caps, nil
}

// Has returns true if label is advertised. Labels are compared without
// regard to case.
func (c Capabilities) Has(label string) bool {
	_, ok := c.find(label)
	return ok
}

// Args returns the arguments advertised with label.
func (c Capabilities) Args(label string) []string {
	args, _ := c.find(label)
	return args
}

func (c Capabilities) find(label string) ([]string, bool) {
	for _, line := range c {
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.EqualFold(fields[0], label) {
			return fields[1:], true
		}
	}
	return nil, false
}
