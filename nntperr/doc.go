// Package nntperr defines the typed failures raised by the NNTP core.
//
// Every failure carries a Kind. Callers branch on the Kind (see IsKind)
// to decide whether a session is still usable: ProtocolViolation and
// Transport failures leave the session desynchronized and it should be
// closed, while a response code mismatch is never reported as an error.
package nntperr
