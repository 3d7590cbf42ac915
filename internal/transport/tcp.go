package transport

import (
	"context"
	"fmt"
	"net"
)

// TCPTransport carries the protocol over plain TCP.
type TCPTransport struct{}

// NewTCPTransport creates a new instance of TCPTransport
func NewTCPTransport() *TCPTransport {
	return &TCPTransport{}
}

// Listen binds addr with SO_REUSEADDR set. The accept backlog is the
// operating system default; the net package exposes no knob for it.
func (t *TCPTransport) Listen(addr string) (*TCPListener, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return &TCPListener{ln: ln}, nil
}

// Dial connects to a TCP listener. The context bounds connection setup only.
func (t *TCPTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	return conn, nil
}

// TCPListener adapts net.Listener to Listener.
type TCPListener struct {
	ln net.Listener
}

// Accept waits for the next connection. Closing the listener unblocks it;
// ctx is only checked before waiting.
func (l *TCPListener) Accept(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (l *TCPListener) Close() error   { return l.ln.Close() }
func (l *TCPListener) Addr() net.Addr { return l.ln.Addr() }
