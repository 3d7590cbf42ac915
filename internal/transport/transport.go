package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Conn is one ordered byte stream carrying the framed protocol.
// *net.TCPConn satisfies it directly; QUIC connections are adapted.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
	SetDeadline(t time.Time) error
}

// Listener hands out accepted connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() net.Addr
}

// Dialer opens a connection to a server.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Kind names a transport.
type Kind string

const (
	KindTCP  Kind = "tcp"
	KindQUIC Kind = "quic"
	KindBoth Kind = "both" // listeners only
)

// ParseKind validates a transport name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindTCP:
		return KindTCP, nil
	case KindQUIC, KindBoth:
		return k, nil
	default:
		return "", fmt.Errorf("unknown transport %q (tcp, quic, both)", s)
	}
}

// NewDialer returns the dialer for kind.
func NewDialer(kind Kind) (Dialer, error) {
	switch kind {
	case KindTCP, "":
		return NewTCPTransport(), nil
	case KindQUIC:
		return NewQUICTransport(), nil
	default:
		return nil, fmt.Errorf("transport %q cannot dial", kind)
	}
}

// Listen opens the listener(s) for kind on port. KindBoth binds TCP and QUIC on
// the same port number and merges them with a MultiListener.
func Listen(kind Kind, port int) (Listener, error) {
	addr := fmt.Sprintf(":%d", port)
	switch kind {
	case KindTCP, "":
		return NewTCPTransport().Listen(addr)
	case KindQUIC:
		return NewQUICTransport().Listen(addr)
	case KindBoth:
		tl, err := NewTCPTransport().Listen(addr)
		if err != nil {
			return nil, err
		}
		// Reuse the port the kernel picked when port is 0.
		ql, err := NewQUICTransport().Listen(fmt.Sprintf(":%d", tl.Addr().(*net.TCPAddr).Port))
		if err != nil {
			tl.Close()
			return nil, err
		}
		m := NewMultiListener()
		m.Add(tl)
		m.Add(ql)
		return m, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}
