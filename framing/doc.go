/*
Package framing offers the NNTP wire framing primitives.

Responses begin with a three digit code (see ParseCode). Multi-line
responses end with a line holding a single period; Window detects that
terminator on the cumulative stream regardless of how it was chunked.

SplitBody returns a bufio.SplitFunc for use with a *bufio.Scanner over
a complete multi-line response. It returns io.ErrUnexpectedEOF when
input terminates other than at the end of the response.
*/
package framing
