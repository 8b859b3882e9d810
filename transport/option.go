package transport

import "crypto/tls"

// Option is a constructor option function for the Connector type.
type Option func(*Connector)

// WithResolver sets the resolver used to find candidate endpoints.
func WithResolver(r Resolver) Option { return func(c *Connector) { c.resolver = r } }

// WithDialer sets the dialer used to connect each candidate endpoint.
func WithDialer(d ContextDialer) Option { return func(c *Connector) { c.dialer = d } }

// WithTLSConfig sets the TLS client configuration for secure
// transports. ServerName defaults to the host being connected.
func WithTLSConfig(cfg *tls.Config) Option { return func(c *Connector) { c.tlsConfig = cfg } }

// WithGreeting sets the function validating each connected candidate.
func WithGreeting(f GreetingFunc) Option { return func(c *Connector) { c.greeting = f } }
