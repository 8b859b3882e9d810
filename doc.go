/*
Package nntp is a set of NNTP client support libraries.

They provide the transport and framing core of an NNTP client: plain
and TLS connections to news servers with endpoint fallback and
greeting validation, command writing, and reassembly of single-line,
multi-line and compressed multi-line responses from a byte stream
arriving in chunks of any size.

The core does not know NNTP commands. Callers send command lines and
choose, per command, how its response is read and which response
codes they expect. An unexpected code is an ordinary result, not an
error.

See the session sub-directory for the Session type, which ties the
other packages together, and cmd/nntpcat for a command line client
built on it.
*/
package nntp
