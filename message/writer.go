package message

import (
	"github.com/golang/glog"

	"github.com/andaru/nntp/framing"
	"github.com/andaru/nntp/nntperr"
)

// ChunkWriter is the write side of a transport.
type ChunkWriter interface {
	WriteAll(b []byte) error
}

// Writer sends NNTP command lines.
type Writer struct {
	w        ChunkWriter
	commands int
	txBytes  int64
}

// NewWriter returns a Writer sending to w.
func NewWriter(w ChunkWriter) *Writer { return &Writer{w: w} }

// Send writes line followed by CRLF as a single write. The line is
// sent as given; it must not contain its own line ending.
func (w *Writer) Send(line string) error {
	b := make([]byte, 0, len(line)+len(framing.CRLF))
	b = append(append(b, line...), framing.CRLF...)
	if err := w.w.WriteAll(b); err != nil {
		return nntperr.Transport(nntperr.WithOp("send"), nntperr.WithCause(err))
	}
	w.commands++
	w.txBytes += int64(len(b))
	glog.V(4).Infof("nntp: sent %d byte command", len(b))
	return nil
}

// Commands returns the number of command lines sent.
func (w *Writer) Commands() int { return w.commands }

// TxBytes returns the number of bytes sent.
func (w *Writer) TxBytes() int64 { return w.txBytes }
