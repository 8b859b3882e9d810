/*
Package session offers an NNTP client Session.

A Session owns one connection to an NNTP server. It is created
unconnected by New, then connected with Connect or ConnectSecure,
which try each address of the server in turn until one answers with a
ready greeting (200, posting allowed, or 201, posting prohibited).
Any other greeting is a protocol violation and ends the attempt.

Session I/O

The session knows nothing of NNTP commands. The caller sends each
command line with Send and reads its response with the read method
matching the command:

	ReadLine, ReadLineBuffer    single-line responses
	ReadLines, ReadLinesBuffer  multi-line responses
	ReadCompressedLines         multi-line responses which may be compressed
	ReadCode                    single-line responses with any code

Each read is given the codes the caller expects. A response with
another code is not an error; the read returns false and the actual
code is available from Code. Errors are transport failures, malformed
response codes and bad compressed bodies, all typed by package
nntperr. After a transport failure or protocol violation the session
is in StatusError and should be closed.

Compression and echo are per session settings. When compression is
enabled, ReadCompressedLines inflates the body of a matching
response. When echo is enabled, responses are copied to Config.Echo
as they are received.

Cancellation

Reads block until the server responds. Abort may be called from
another goroutine to close the connection, failing the pending read.
*/
package session
