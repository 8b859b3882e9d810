package message

import (
	"io"

	"github.com/golang/glog"

	"github.com/andaru/nntp/codec"
	"github.com/andaru/nntp/framing"
	"github.com/andaru/nntp/nntperr"
)

// DefaultChunkSize is the maximum number of bytes requested from the
// transport per read.
const DefaultChunkSize = 1024

// ChunkReader is the read side of a transport.
type ChunkReader interface {
	ReadChunk(max int) ([]byte, error)
}

// mode selects how a read decides the response is complete.
type mode int

const (
	// modeLine reads one CRLF terminated line.
	modeLine mode = iota
	// modeLines reads until the terminator line.
	modeLines
	// modeCompressed reads until the stream ends with the terminator
	// and the binary data before it is a whole compressed body.
	modeCompressed
)

func (m mode) op() string {
	switch m {
	case modeLines:
		return "read lines"
	case modeCompressed:
		return "read compressed lines"
	}
	return "read line"
}

// Reader reassembles NNTP responses from the chunks returned by a
// ChunkReader.
//
// Every read method takes the set of response codes the caller
// expects. A response with any other code is a mismatch: the read
// returns false immediately, with no error, after consuming only the
// chunks already received. An empty set accepts any valid code.
//
// Reader is not safe for concurrent use.
type Reader struct {
	r         ChunkReader
	chunkSize int
	echo      io.Writer
	dec       *codec.Decoder

	code      framing.Code
	responses int
	rxBytes   int64
}

// NewReader returns a Reader reading from r.
func NewReader(r ChunkReader, opts ...ReaderOption) *Reader {
	rd := &Reader{r: r, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// SetEcho sets the writer mirroring received bytes. nil disables echo.
func (r *Reader) SetEcho(w io.Writer) { r.echo = w }

// SetDecoder sets the decoder applied by ReadCompressedLines. nil
// disables decompression.
func (r *Reader) SetDecoder(d *codec.Decoder) { r.dec = d }

// Code returns the code of the last response read.
func (r *Reader) Code() framing.Code { return r.code }

// Responses returns the number of responses whose code was read.
func (r *Reader) Responses() int { return r.responses }

// RxBytes returns the number of bytes received.
func (r *Reader) RxBytes() int64 { return r.rxBytes }

// ReadLine reads a single-line response, reporting whether its code was
// one of expect. The response is discarded.
func (r *Reader) ReadLine(expect ...framing.Code) (bool, error) {
	ok, _, err := r.read(modeLine, expect)
	return ok, err
}

// ReadLineBuffer reads a single-line response like ReadLine, also
// returning the bytes received, including the line's CRLF.
func (r *Reader) ReadLineBuffer(expect ...framing.Code) (bool, []byte, error) {
	return r.read(modeLine, expect)
}

// ReadLines reads a multi-line response, reporting whether its code
// was one of expect. The response is discarded.
func (r *Reader) ReadLines(expect ...framing.Code) (bool, error) {
	ok, _, err := r.read(modeLines, expect)
	return ok, err
}

// ReadLinesBuffer reads a multi-line response like ReadLines, also
// returning the bytes received, terminator included.
func (r *Reader) ReadLinesBuffer(expect ...framing.Code) (bool, []byte, error) {
	return r.read(modeLines, expect)
}

// ReadCompressedLines reads a multi-line response whose body may be
// compressed. With a decoder set, a matching response is decoded and
// the result is the response line, the inflated body and the
// terminator. Without one it behaves as ReadLinesBuffer.
func (r *Reader) ReadCompressedLines(expect ...framing.Code) (bool, []byte, error) {
	if r.dec == nil {
		return r.read(modeLines, expect)
	}
	ok, buf, err := r.read(modeCompressed, expect)
	if !ok || err != nil {
		return ok, buf, err
	}
	out, err := r.dec.Decode(buf)
	if err != nil {
		return false, buf, err
	}
	glog.V(4).Infof("nntp: %s inflated %d -> %d bytes", r.code, len(buf), len(out))
	return true, out, nil
}

// ReadCode reads a single-line response with any valid code, returning
// the code and the line.
func (r *Reader) ReadCode() (framing.Code, []byte, error) {
	_, buf, err := r.read(modeLine, nil)
	if err != nil {
		return 0, buf, err
	}
	return r.code, buf, nil
}

// FinishLine reads the rest of a mismatched response line. partial is
// the buffer returned by the mismatched read; the complete line is
// returned. NNTP error responses are single lines, so this keeps the
// stream in step with commands after a mismatch.
func (r *Reader) FinishLine(partial []byte) ([]byte, error) {
	var win framing.Window
	win.Write(partial)
	buf := partial
	echo := echoer{w: r.echo, n: len(partial)}
	for !win.LineComplete() {
		chunk, err := r.r.ReadChunk(r.chunkSize)
		if err != nil {
			return buf, nntperr.Transport(nntperr.WithOp("finish line"), nntperr.WithCause(err))
		}
		buf = append(buf, chunk...)
		win.Write(chunk)
		r.rxBytes += int64(len(chunk))
		echo.flush(buf)
	}
	return buf, nil
}

// read accumulates chunks until the response completes according to m,
// or its code turns out not to be expected.
func (r *Reader) read(m mode, expect []framing.Code) (bool, []byte, error) {
	var (
		buf    []byte
		win    framing.Window
		parsed bool
		echo   = echoer{w: r.echo}
	)
	if m != modeLine {
		// the terminator is never echoed
		echo.hold = len(framing.Terminator)
	}

	for {
		chunk, err := r.r.ReadChunk(r.chunkSize)
		if err != nil {
			echo.flush(buf)
			return false, buf, nntperr.Transport(nntperr.WithOp(m.op()), nntperr.WithCause(err))
		}
		buf = append(buf, chunk...)
		win.Write(chunk)
		r.rxBytes += int64(len(chunk))

		if !parsed {
			if len(buf) < framing.CodeLen {
				continue
			}
			code, err := framing.ParseCode(buf)
			if err != nil {
				echo.flush(buf)
				return false, buf, nntperr.ProtocolViolation(nntperr.WithOp(m.op()), nntperr.WithCause(err))
			}
			parsed = true
			r.code = code
			r.responses++
			if len(expect) > 0 && !code.In(expect...) {
				glog.V(4).Infof("nntp: %s not in %v", code, expect)
				echo.flush(buf)
				return false, buf, nil
			}
		}

		var done bool
		switch m {
		case modeLine:
			done = win.LineComplete()
		case modeLines:
			done = win.Terminated()
		case modeCompressed:
			done = win.Ended() && r.dec.Complete(buf)
		}
		echo.advance(buf)
		if done {
			glog.V(4).Infof("nntp: %s %s complete, %d bytes", r.code, m.op(), len(buf))
			return true, buf, nil
		}
	}
}

// echoer mirrors the response to w, keeping the last hold bytes back
// until it knows whether they are the terminator.
type echoer struct {
	w    io.Writer
	hold int
	n    int
}

// advance echoes buf up to the held back tail. Once the response is
// complete the held back bytes are the terminator and are dropped.
func (e *echoer) advance(buf []byte) { e.write(buf, len(buf)-e.hold) }

// flush echoes everything not yet echoed.
func (e *echoer) flush(buf []byte) { e.write(buf, len(buf)) }

func (e *echoer) write(buf []byte, end int) {
	if e.w == nil || end <= e.n {
		return
	}
	if _, err := e.w.Write(buf[e.n:end]); err != nil {
		glog.V(2).Infof("nntp: echo: %v", err)
	}
	e.n = end
}
