package message

import (
	"io"

	"github.com/andaru/nntp/codec"
)

// ReaderOption is a constructor option function for the Reader type.
type ReaderOption func(*Reader)

// WithChunkSize sets the maximum size of each transport read. Values
// below 1 select DefaultChunkSize.
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n < 1 {
			n = DefaultChunkSize
		}
		r.chunkSize = n
	}
}

// WithEcho mirrors received bytes to w.
func WithEcho(w io.Writer) ReaderOption { return func(r *Reader) { r.echo = w } }

// WithDecoder decodes compressed bodies read by ReadCompressedLines.
func WithDecoder(d *codec.Decoder) ReaderOption { return func(r *Reader) { r.dec = d } }
