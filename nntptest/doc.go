// Package nntptest provides utilities for testing NNTP clients.
//
// Server is a scripted NNTP server on the loopback interface, plain or
// TLS (see Certificate). Resolver answers host and port lookups from
// static maps so tests can route names to local servers. Chunks is an
// in-memory transport replaying a response in fixed chunks, used to
// check that responses reassemble the same way however the bytes
// arrive.
package nntptest
