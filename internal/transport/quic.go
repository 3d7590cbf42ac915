package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	alpnProtocol = "flip-protocol"

	// streamWait bounds how long an accepted QUIC connection may take to open
	// its stream. The first Init write is what makes the stream visible.
	streamWait = 10 * time.Second

	// closeGrace lets the peer drain the last frames before the server side
	// tears the connection down.
	closeGrace = 2 * time.Second
)

// QUICTransport implements Listener/Dialer using quic-go. Each connection
// carries exactly one bidirectional stream.
type QUICTransport struct {
	config *quic.Config
}

// NewQUICTransport creates a new instance of QUICTransport
func NewQUICTransport() *QUICTransport {
	return &QUICTransport{
		config: &quic.Config{
			MaxIdleTimeout:     5 * time.Second,
			KeepAlivePeriod:    2 * time.Second,
			MaxIncomingStreams: 1,
		},
	}
}

// Listen starts a QUIC listener on the specified address
func (t *QUICTransport) Listen(addr string) (*QUICListener, error) {
	tlsConf, err := generateTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := quic.ListenAddr(addr, tlsConf, t.config)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return newQUICListener(ln), nil
}

// ListenPacket starts a QUIC listener on an existing packet conn.
func (t *QUICTransport) ListenPacket(pc net.PacketConn) (*QUICListener, error) {
	tlsConf, err := generateTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := quic.Listen(pc, tlsConf, t.config)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return newQUICListener(ln), nil
}

// Dial connects to a QUIC listener and opens the protocol stream.
func (t *QUICTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	conn, err := quic.DialAddr(ctx, addr, clientTLSConfig(), t.config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	return openStream(ctx, conn)
}

// DialPacket is Dial over an existing packet conn.
func (t *QUICTransport) DialPacket(ctx context.Context, pc net.PacketConn, addr net.Addr) (Conn, error) {
	conn, err := quic.Dial(ctx, pc, addr, clientTLSConfig(), t.config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	return openStream(ctx, conn)
}

func openStream(ctx context.Context, conn *quic.Conn) (Conn, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "stream open failed")
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return &quicConn{conn: conn, Stream: stream, dialed: true}, nil
}

// quicConn presents one QUIC stream as a Conn.
type quicConn struct {
	*quic.Stream
	conn   *quic.Conn
	dialed bool
}

func (c *quicConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close sends FIN on the stream and closes the connection. The accepting side
// waits for the peer to hang up first (bounded by closeGrace) so the final
// Response is not discarded by an abrupt connection close.
func (c *quicConn) Close() error {
	err := c.Stream.Close()
	if !c.dialed {
		select {
		case <-c.conn.Context().Done():
		case <-time.After(closeGrace):
		}
	}
	c.conn.CloseWithError(0, "")
	return err
}

// QUICListener accepts connections and their first stream in the background,
// so a peer that is slow to open its stream never blocks the accept loop.
type QUICListener struct {
	ln    *quic.Listener
	conns chan Conn
	done  chan struct{}
	once  sync.Once
	err   error
}

func newQUICListener(ln *quic.Listener) *QUICListener {
	l := &QUICListener{
		ln:    ln,
		conns: make(chan Conn),
		done:  make(chan struct{}),
	}
	go l.acceptLoop()
	return l
}

func (l *QUICListener) acceptLoop() {
	for {
		conn, err := l.ln.Accept(context.Background())
		if err != nil {
			// Every quic-go accept error is final for the listener.
			l.shutdown(fmt.Errorf("%w: %v", net.ErrClosed, err))
			return
		}
		go l.awaitStream(conn)
	}
}

func (l *QUICListener) awaitStream(conn *quic.Conn) {
	ctx, cancel := context.WithTimeout(conn.Context(), streamWait)
	defer cancel()
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "no stream")
		return
	}
	select {
	case l.conns <- &quicConn{conn: conn, Stream: stream}:
	case <-l.done:
		conn.CloseWithError(0, "listener closed")
	}
}

// Accept waits for and returns the next connection's stream.
func (l *QUICListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, l.err
	}
}

func (l *QUICListener) shutdown(err error) {
	l.once.Do(func() {
		l.err = err
		close(l.done)
	})
}

// Close stops accepting. Already accepted connections are unaffected.
func (l *QUICListener) Close() error {
	l.shutdown(net.ErrClosed)
	return l.ln.Close()
}

func (l *QUICListener) Addr() net.Addr { return l.ln.Addr() }

func clientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, // Self-signed certs; the protocol carries no secrets
		NextProtos:         []string{alpnProtocol},
	}
}

// generateTLSConfig generates a self-signed certificate for QUIC
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{alpnProtocol},
	}, nil
}
