/*
Package message implements the NNTP command and response layer over a
chunked transport.

A Writer sends command lines. A Reader rebuilds responses from chunks
of any size: single-line responses end at the first CRLF, multi-line
responses end with a line holding a single period, and compressed
multi-line responses end once the stream ends with ".\r\n".

Each read examines the response code as soon as its three digits have
arrived. Unexpected codes end the read early and are reported as a
false result rather than an error; only transport failures and
malformed codes are errors.

Received bytes may be echoed to an io.Writer as they arrive. Echo of
multi-line responses lags the stream by three bytes so that the
terminator is never echoed.
*/
package message
