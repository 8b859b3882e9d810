// Package codec decodes compressed NNTP multi-line responses.
//
// After a successful XFEATURE COMPRESS GZIP negotiation a server sends
// the bodies of overview style responses as a single zlib stream placed
// between the response line and the usual terminator. The Decoder
// strips that envelope, inflates the stream and re-wraps the result so
// it is indistinguishable from an uncompressed multi-line response.
package codec
