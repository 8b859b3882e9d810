package nntptest

import (
	"bufio"
	"crypto/tls"
	"net"
	"strings"
	"sync"
)

// Handler returns the raw response for a command line received by a
// Server (without its CRLF). Returning nil closes the connection.
type Handler func(line string) []byte

// Server is a scripted NNTP server listening on the loopback interface.
type Server struct {
	// Greeting is sent to each client as soon as it connects.
	Greeting string

	l       net.Listener
	handler Handler
	wg      sync.WaitGroup

	mu    sync.Mutex
	lines []string
	conns []net.Conn
}

// NewServer starts a plain Server sending greeting to each client and
// answering commands with handler. A nil handler answers every command
// with "500 unknown command".
func NewServer(greeting string, handler Handler) (*Server, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return start(l, greeting, handler), nil
}

// NewTLSServer starts a Server like NewServer, wrapping each
// connection in TLS using cert.
func NewTLSServer(greeting string, handler Handler, cert tls.Certificate) (*Server, error) {
	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return nil, err
	}
	return start(l, greeting, handler), nil
}

func start(l net.Listener, greeting string, handler Handler) *Server {
	if handler == nil {
		handler = func(string) []byte { return []byte("500 unknown command\r\n") }
	}
	s := &Server{Greeting: greeting, l: l, handler: handler}
	s.wg.Add(1)
	go s.serve()
	return s
}

// HostPort returns the host and port the Server listens on.
func (s *Server) HostPort() (host, port string) {
	host, port, _ = net.SplitHostPort(s.l.Addr().String())
	return host, port
}

// Lines returns the command lines received so far, in order.
func (s *Server) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Close stops the listener and closes all client connections.
func (s *Server) Close() error {
	err := s.l.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.l.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	if _, err := conn.Write([]byte(s.Greeting)); err != nil {
		return
	}
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.mu.Lock()
		s.lines = append(s.lines, line)
		s.mu.Unlock()
		resp := s.handler(line)
		if resp == nil {
			return
		}
		if _, err = conn.Write(resp); err != nil {
			return
		}
	}
}
