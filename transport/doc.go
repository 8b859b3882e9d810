/*
Package transport provides the NNTP byte stream transports.

A Transport is either Plain (TCP) or Secure (TLS); callers use the
Transport interface and never test which variant they hold.

A Connector resolves a host and port to candidate endpoints and tries
each in the resolver's order. A candidate counts as connected once the
TCP connection is up, the TLS handshake (for secure transports) has
completed and the optional greeting function accepted the server's
initial response. Ports reserved for the other variant are refused as
configuration errors before any network I/O.
*/
package transport
