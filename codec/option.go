package codec

// Option is a constructor option function for the Decoder type.
type Option func(*Decoder)

// WithMaxSize sets the largest decompressed payload, in bytes, the
// Decoder will produce before failing. Values below 1 select
// DefaultMaxSize.
func WithMaxSize(bytes int64) Option {
	return func(d *Decoder) {
		if bytes < 1 {
			bytes = DefaultMaxSize
		}
		d.maxSize = bytes
	}
}
