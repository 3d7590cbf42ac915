package transport

import (
	"context"
	"net"
	"sync"
)

// MultiListener aggregates multiple Listeners into a single Accept loop.
// This allows the server to accept connections over TCP and QUIC simultaneously.
type MultiListener struct {
	listeners []Listener
	conns     chan Conn
	done      chan struct{}
	dead      chan struct{}
	active    sync.WaitGroup
	started   sync.Once
	mu        sync.Mutex
}

func NewMultiListener() *MultiListener {
	return &MultiListener{
		conns: make(chan Conn),
		done:  make(chan struct{}),
		dead:  make(chan struct{}),
	}
}

// Add registers a new listener and starts an accept loop for it.
func (m *MultiListener) Add(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
	m.active.Add(1)

	go func() {
		defer m.active.Done()
		for {
			conn, err := l.Accept(context.Background())
			if err != nil {
				// One listener failing does not stop the others.
				return
			}
			select {
			case m.conns <- conn:
			case <-m.done:
				conn.Close()
				return
			}
		}
	}()

	m.started.Do(func() {
		go func() {
			m.active.Wait()
			close(m.dead)
		}()
	})
}

// Accept waits for and returns the next connection from any registered listener.
// It fails once every listener has stopped.
func (m *MultiListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case conn := <-m.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, net.ErrClosed
	case <-m.dead:
		return nil, net.ErrClosed
	}
}

// Close closes all underlying listeners.
func (m *MultiListener) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		// Already closed
		return nil
	default:
		close(m.done)
	}

	for _, l := range m.listeners {
		l.Close()
	}
	return nil
}

// Addr returns the address of the first listener, or nil.
func (m *MultiListener) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.listeners) > 0 {
		return m.listeners[0].Addr()
	}
	return &net.TCPAddr{IP: net.IP{0, 0, 0, 0}, Port: 0}
}
