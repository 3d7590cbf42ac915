// Package simulation wraps connections with network faults for tests.
package simulation

import (
	"math/rand"
	"net"
	"sync"
	"time"
)

// LossyPacketConn wraps a net.PacketConn and injects loss/latency on writes.
type LossyPacketConn struct {
	net.PacketConn
	lossRate float64       // 0.0 to 1.0 (e.g. 0.2 = 20% loss)
	latency  time.Duration // Fixed latency per packet
	mu       sync.Mutex
	rand     *rand.Rand
}

// NewLossyPacketConn uses a fixed seed so a failing run can be replayed.
func NewLossyPacketConn(c net.PacketConn, lossRate float64, latency time.Duration, seed int64) *LossyPacketConn {
	return &LossyPacketConn{
		PacketConn: c,
		lossRate:   lossRate,
		latency:    latency,
		rand:       rand.New(rand.NewSource(seed)),
	}
}

func (c *LossyPacketConn) SetLossRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lossRate = rate
}

// WriteTo delays or drops packets
func (c *LossyPacketConn) WriteTo(p []byte, addr net.Addr) (n int, err error) {
	c.mu.Lock()
	loss := c.lossRate
	lat := c.latency
	r := c.rand.Float64()
	c.mu.Unlock()

	if r < loss {
		// Dropped on the wire; the caller still sees success.
		return len(p), nil
	}

	if lat > 0 {
		data := make([]byte, len(p))
		copy(data, p)
		go func() {
			time.Sleep(lat)
			c.PacketConn.WriteTo(data, addr)
		}()
		return len(p), nil
	}

	return c.PacketConn.WriteTo(p, addr)
}

// TrickleConn splits every Write into pieces of at most MaxWrite bytes and
// caps every Read at MaxRead bytes, so frames arrive fragmented the way a
// congested TCP path delivers them. Delay is slept before each piece.
type TrickleConn struct {
	net.Conn
	MaxRead  int
	MaxWrite int
	Delay    time.Duration
}

func NewTrickleConn(c net.Conn, maxRead, maxWrite int) *TrickleConn {
	return &TrickleConn{Conn: c, MaxRead: maxRead, MaxWrite: maxWrite}
}

func (c *TrickleConn) Read(p []byte) (int, error) {
	if c.MaxRead > 0 && len(p) > c.MaxRead {
		p = p[:c.MaxRead]
	}
	return c.Conn.Read(p)
}

func (c *TrickleConn) Write(p []byte) (int, error) {
	if c.MaxWrite <= 0 {
		return c.Conn.Write(p)
	}
	written := 0
	for written < len(p) {
		end := written + c.MaxWrite
		if end > len(p) {
			end = len(p)
		}
		if c.Delay > 0 {
			time.Sleep(c.Delay)
		}
		n, err := c.Conn.Write(p[written:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
