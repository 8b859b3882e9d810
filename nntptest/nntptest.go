package nntptest

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"net"
	"strconv"
	"time"
)

// Certificate returns a self-signed server certificate valid for
// 127.0.0.1, ::1 and localhost, and a pool trusting it.
func Certificate() (tls.Certificate, *x509.CertPool, error) {
	var out tls.Certificate

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return out, nil, fmt.Errorf("generate key: %w", err)
	}
	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "nntptest"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return out, nil, fmt.Errorf("create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return out, nil, fmt.Errorf("parse certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	out = tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
	return out, pool, nil
}

// Resolver is a static resolver. Hosts maps host names to addresses;
// unknown hosts fail with a *net.DNSError. Ports maps service names to
// port numbers.
type Resolver struct {
	Hosts map[string][]string
	Ports map[string]int

	HostLookups int
}

// LookupHost returns the addresses listed for host, counting each call
// in HostLookups.
func (r *Resolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.HostLookups++
	addrs, ok := r.Hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

// LookupPort maps service through Ports, accepting decimal port
// numbers as they are.
func (r *Resolver) LookupPort(_ context.Context, _, service string) (int, error) {
	if p, ok := r.Ports[service]; ok {
		return p, nil
	}
	if p, err := strconv.Atoi(service); err == nil {
		return p, nil
	}
	return 0, &net.DNSError{Err: "unknown port", Name: service, IsNotFound: true}
}

// Chunks is an in-memory transport replaying a response as a fixed
// sequence of chunks, recording everything written to it.
//
// Once the chunks are exhausted ReadChunk returns io.EOF. A chunk
// larger than the requested maximum is split across reads.
type Chunks struct {
	Chunks   [][]byte
	Written  []byte
	Reads    int
	Closed   int
	WriteErr error
}

// Split returns a Chunks replaying s in pieces of size n.
func Split(s string, n int) *Chunks {
	c := &Chunks{}
	for len(s) > 0 {
		if n > len(s) {
			n = len(s)
		}
		c.Chunks = append(c.Chunks, []byte(s[:n]))
		s = s[n:]
	}
	return c
}

// SplitAt returns a Chunks replaying s split at the given offsets.
func SplitAt(s string, offsets ...int) *Chunks {
	c := &Chunks{}
	prev := 0
	for _, off := range offsets {
		if off <= prev || off >= len(s) {
			continue
		}
		c.Chunks = append(c.Chunks, []byte(s[prev:off]))
		prev = off
	}
	c.Chunks = append(c.Chunks, []byte(s[prev:]))
	return c
}

// ReadChunk returns the next chunk, at most max bytes of it.
func (c *Chunks) ReadChunk(max int) ([]byte, error) {
	if len(c.Chunks) == 0 {
		return nil, io.EOF
	}
	c.Reads++
	chunk := c.Chunks[0]
	if len(chunk) > max {
		c.Chunks[0] = chunk[max:]
		return chunk[:max], nil
	}
	c.Chunks = c.Chunks[1:]
	return chunk, nil
}

// WriteAll appends b to Written, or fails with WriteErr when set.
func (c *Chunks) WriteAll(b []byte) error {
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Written = append(c.Written, b...)
	return nil
}

// Close counts the call in Closed.
func (c *Chunks) Close() error {
	c.Closed++
	return nil
}

// Connected reports whether Close has not been called.
func (c *Chunks) Connected() bool { return c.Closed == 0 }

// RemoteAddr returns a fixed loopback address.
func (c *Chunks) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 119} }
