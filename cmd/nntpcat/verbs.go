package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andaru/nntp/framing"
	"github.com/andaru/nntp/session"
)

// reply is the shape of a command's successful response.
type reply int

const (
	replyLine reply = iota
	replyLines
	// replyCompressible is a multi-line reply whose body is compressed
	// once compression has been negotiated.
	replyCompressible
)

// verb describes how to read the response to an NNTP command.
type verb struct {
	name  string
	codes []framing.Code
	reply reply
}

// verbs lists the commands whose responses are known.
var verbs = []verb{
	{name: "ARTICLE", codes: []framing.Code{220}, reply: replyLines},
	{name: "AUTHINFO PASS", codes: []framing.Code{281}},
	{name: "AUTHINFO USER", codes: []framing.Code{281, 381}},
	{name: "BODY", codes: []framing.Code{222}, reply: replyLines},
	{name: "CAPABILITIES", codes: []framing.Code{101}, reply: replyLines},
	{name: "DATE", codes: []framing.Code{111}},
	{name: "GROUP", codes: []framing.Code{211}},
	{name: "HEAD", codes: []framing.Code{221}, reply: replyLines},
	{name: "HELP", codes: []framing.Code{100}, reply: replyLines},
	{name: "LAST", codes: []framing.Code{223}},
	{name: "LISTGROUP", codes: []framing.Code{211}, reply: replyLines},
	{name: "LIST", codes: []framing.Code{215}, reply: replyLines},
	{name: "MODE READER", codes: []framing.Code{200, 201}},
	{name: "NEWGROUPS", codes: []framing.Code{231}, reply: replyLines},
	{name: "NEWNEWS", codes: []framing.Code{230}, reply: replyLines},
	{name: "NEXT", codes: []framing.Code{223}},
	{name: "OVER", codes: []framing.Code{224}, reply: replyCompressible},
	{name: "QUIT", codes: []framing.Code{205}},
	{name: "STAT", codes: []framing.Code{223}},
	{name: "XFEATURE COMPRESS GZIP", codes: []framing.Code{290}},
	{name: "XHDR", codes: []framing.Code{221}, reply: replyLines},
	{name: "XOVER", codes: []framing.Code{224}, reply: replyCompressible},
}

// lookupVerb returns the verb for a command line. Unknown commands
// are read as a single line with any code.
func lookupVerb(line string) verb {
	words := strings.Fields(strings.ToUpper(line))
	best := verb{}
	bestLen := 0
	for _, v := range verbs {
		name := strings.Fields(v.name)
		if len(name) <= bestLen || len(name) > len(words) {
			continue
		}
		match := true
		for i := range name {
			if name[i] != words[i] {
				match = false
				break
			}
		}
		if match {
			best, bestLen = v, len(name)
		}
	}
	if bestLen == 0 && len(words) > 0 {
		best.name = words[0]
	}
	return best
}

// exchange sends line and reads its response, writing the response to
// out. It reports whether the response carried an expected code.
func exchange(s *session.Session, line string, out io.Writer) (bool, error) {
	v := lookupVerb(line)
	if err := s.Send(line); err != nil {
		return false, err
	}

	var (
		ok  bool
		buf []byte
		err error
	)
	switch v.reply {
	case replyLines:
		ok, buf, err = s.ReadLinesBuffer(v.codes...)
	case replyCompressible:
		ok, buf, err = s.ReadCompressedLines(v.codes...)
	default:
		ok, buf, err = s.ReadLineBuffer(v.codes...)
	}
	if err != nil {
		return false, err
	}
	if !ok {
		// error responses are single lines
		if buf, err = s.FinishLine(buf); err != nil {
			return false, err
		}
		_, err = fmt.Fprintf(out, "%s\n", bytes.TrimRight(buf, "\r\n"))
		return false, err
	}
	if v.reply == replyLine {
		_, err = fmt.Fprintf(out, "%s\n", bytes.TrimRight(buf, "\r\n"))
		return true, err
	}
	return true, writeBody(out, buf)
}

// writeBody writes a multi-line response with its dot-stuffing removed
// and without the terminator.
func writeBody(out io.Writer, buf []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Buffer(make([]byte, 0, 4096), len(buf)+1)
	scanner.Split(framing.SplitBody())
	for scanner.Scan() {
		if _, err := fmt.Fprintf(out, "%s\n", scanner.Bytes()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// capabilities asks the server for its capabilities. Servers without
// the command yield none.
func capabilities(s *session.Session) (session.Capabilities, error) {
	if err := s.Send("CAPABILITIES"); err != nil {
		return nil, err
	}
	ok, buf, err := s.ReadLinesBuffer(101)
	if err != nil {
		return nil, err
	}
	if !ok {
		_, err = s.FinishLine(buf)
		return nil, err
	}
	return session.ParseCapabilities(buf)
}
