package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/andaru/nntp/framing"
	"github.com/andaru/nntp/nntperr"
)

// zlibMarker is the first byte of a zlib stream using deflate with a
// 32K window, as sent by servers implementing XFEATURE COMPRESS GZIP.
const zlibMarker = 0x78

// DefaultMaxSize is the default ceiling on a decompressed payload.
const DefaultMaxSize = 64 << 20

// Decoder unwraps compressed multi-line response envelopes.
//
// An envelope is a response line, a zlib compressed body and the
// multi-line terminator. Decode returns the equivalent uncompressed
// multi-line response.
//
// Decoder is safe for concurrent use.
type Decoder struct {
	maxSize int64
}

// NewDecoder returns a new Decoder configured by opts
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode decompresses the body of envelope and returns the response line,
// the decompressed payload and the terminator, in that order.
func (d *Decoder) Decode(envelope []byte) ([]byte, error) {
	idx := bytes.IndexByte(envelope, '\n')
	if idx < 0 {
		return nil, nntperr.MalformedCompressedBody(nntperr.WithOp("decode"),
			nntperr.WithMessage("no response line"))
	}
	line, rest := envelope[:idx+1], envelope[idx+1:]
	if !bytes.HasSuffix(rest, framing.Terminator) {
		return nil, nntperr.MalformedCompressedBody(nntperr.WithOp("decode"),
			nntperr.WithMessage("missing terminator"))
	}
	body := rest[:len(rest)-len(framing.Terminator)]
	if len(body) == 0 || body[0] != zlibMarker {
		return nil, nntperr.MalformedCompressedBody(nntperr.WithOp("decode"),
			nntperr.WithMessage("body is not a zlib stream"))
	}

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, nntperr.Decompression(nntperr.WithOp("decode"), nntperr.WithCause(err))
	}
	defer zr.Close()

	out := bytes.NewBuffer(make([]byte, 0, len(line)+4*len(body)))
	out.Write(line)
	n, err := io.Copy(out, io.LimitReader(zr, d.maxSize+1))
	switch {
	case err != nil:
		return nil, nntperr.Decompression(nntperr.WithOp("decode"), nntperr.WithCause(err))
	case n > d.maxSize:
		return nil, nntperr.Decompression(nntperr.WithOp("decode"),
			nntperr.WithMessage("decompressed body exceeds size limit"))
	}
	out.Write(framing.Terminator)
	return out.Bytes(), nil
}

// Complete reports whether envelope, which ends with the terminator,
// holds the whole compressed body. The terminator bytes may also occur
// inside a zlib stream, so a body that inflates to a truncated stream
// is not complete yet. Envelopes Decode would reject count as complete.
func (d *Decoder) Complete(envelope []byte) bool {
	idx := bytes.IndexByte(envelope, '\n')
	if idx < 0 || !bytes.HasSuffix(envelope[idx+1:], framing.Terminator) {
		return true
	}
	body := envelope[idx+1 : len(envelope)-len(framing.Terminator)]
	if len(body) == 0 || body[0] != zlibMarker {
		return true
	}

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err == nil {
		defer zr.Close()
		_, err = io.Copy(io.Discard, io.LimitReader(zr, d.maxSize+1))
	}
	return !errors.Is(err, io.ErrUnexpectedEOF)
}

// Encode returns the compressed envelope for the response line (which
// must include its line terminator) and payload.
func Encode(line, payload []byte) ([]byte, error) {
	out := bytes.NewBuffer(append([]byte(nil), line...))
	zw := zlib.NewWriter(out)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	out.Write(framing.Terminator)
	return out.Bytes(), nil
}
