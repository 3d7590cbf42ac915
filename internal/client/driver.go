// Package client drives one transfer: handshake, then one Request/Response
// exchange per chunk over a single connection.
package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/darkprince558/flip/internal/textenc"
	"github.com/darkprince558/flip/internal/transport"
	"github.com/darkprince558/flip/pkg/protocol"
)

// DefaultTimeout bounds connection setup and every read/write.
const DefaultTimeout = 10 * time.Second

// State of a Driver.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateHandshaking
	StateTransferring
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateHandshaking:
		return "handshaking"
	case StateTransferring:
		return "transferring"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Progress is reported after every completed exchange.
type Progress struct {
	Index    int // 1-based
	Total    int
	Sent     int // payload bytes of this request
	Received int // payload bytes of this response
}

// Options configures a Driver. Zero values select defaults.
type Options struct {
	Timeout  time.Duration
	Dialer   transport.Dialer
	Encoding textenc.Encoding
	OnChunk  func(Progress)
}

// Driver is the client side of one connection. It is not safe for
// concurrent use; the protocol allows one outstanding request.
type Driver struct {
	opts      Options
	addr      string
	conn      transport.Conn
	state     State
	declared  int
	sent      int
	responses [][]byte
	err       error
	stop      func() bool
}

// New creates a disconnected driver.
func New(opts Options) *Driver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = transport.NewTCPTransport()
	}
	if opts.Encoding == nil {
		opts.Encoding = textenc.MustLookup(textenc.Default)
	}
	return &Driver{opts: opts}
}

func (d *Driver) State() State { return d.state }

// Err returns the error that moved the driver to StateFailed.
func (d *Driver) Err() error { return d.err }

// Responses returns the reversed chunks received so far, in receipt order.
func (d *Driver) Responses() [][]byte { return d.responses }

func (d *Driver) fail(err error) error {
	if d.state != StateFailed {
		d.state = StateFailed
		d.err = err
		d.closeConn()
	}
	return err
}

func (d *Driver) require(want State, op string) error {
	if d.state != want {
		return d.fail(fmt.Errorf("%w: %s called in state %s", ErrInvalidState, op, d.state))
	}
	return nil
}

// Connect dials addr. Setup is bounded by the configured timeout.
func (d *Driver) Connect(ctx context.Context, addr string) error {
	if err := d.require(StateDisconnected, "Connect"); err != nil {
		return err
	}
	d.addr = addr
	dialCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	conn, err := d.opts.Dialer.Dial(dialCtx, addr)
	if err != nil {
		return d.fail(&ConnectError{Addr: addr, Err: err})
	}
	d.conn = conn
	d.state = StateConnected
	// Cancelling ctx unblocks any pending read or write.
	d.stop = context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	return nil
}

func (d *Driver) arm() {
	d.conn.SetDeadline(time.Now().Add(d.opts.Timeout))
}

// Handshake declares count chunks with an Init packet and waits for an empty
// Agree.
func (d *Driver) Handshake(count int) error {
	if err := d.require(StateConnected, "Handshake"); err != nil {
		return err
	}
	if count < 0 || uint64(count) > math.MaxUint32 {
		return d.fail(fmt.Errorf("chunk count %d does not fit the length field", count))
	}
	d.state = StateHandshaking
	d.arm()

	if err := protocol.WriteInit(d.conn, uint32(count)); err != nil {
		return d.fail(fmt.Errorf("send init: %w", protocol.Classify(err)))
	}
	if _, err := protocol.ReadPacket(d.conn, protocol.Expect{Type: protocol.TypeAgree, Length: protocol.Length(0)}); err != nil {
		return d.fail(fmt.Errorf("await agree: %w", err))
	}
	d.declared = count
	d.responses = make([][]byte, 0, count)
	d.state = StateTransferring
	return nil
}

// SendChunk sends one Request and returns the reversed payload.
func (d *Driver) SendChunk(chunk []byte) ([]byte, error) {
	if err := d.require(StateTransferring, "SendChunk"); err != nil {
		return nil, err
	}
	if d.sent >= d.declared {
		return nil, d.fail(fmt.Errorf("%w: all %d declared chunks already sent", ErrInvalidState, d.declared))
	}
	if err := textenc.Validate(d.opts.Encoding, chunk); err != nil {
		return nil, d.fail(err)
	}
	d.arm()

	if err := protocol.WritePacket(d.conn, protocol.TypeRequest, chunk); err != nil {
		return nil, d.fail(fmt.Errorf("send request: %w", protocol.Classify(err)))
	}
	d.sent++
	reply, err := protocol.ReadPacket(d.conn, protocol.Expect{Type: protocol.TypeResponse})
	if err != nil {
		return nil, d.fail(fmt.Errorf("await response: %w", err))
	}
	d.responses = append(d.responses, reply)

	if d.opts.OnChunk != nil {
		d.opts.OnChunk(Progress{Index: d.sent, Total: d.declared, Sent: len(chunk), Received: len(reply)})
	}
	if d.sent == d.declared {
		d.state = StateDone
		d.closeConn()
	}
	return reply, nil
}

// Run performs the handshake and sends every chunk in order. The first
// failure aborts the whole run with a *TransferError.
func (d *Driver) Run(ctx context.Context, chunks [][]byte) ([][]byte, error) {
	if err := d.Handshake(len(chunks)); err != nil {
		return nil, d.abort(ctx, 0, len(chunks), err)
	}
	if len(chunks) == 0 {
		d.state = StateDone
		d.closeConn()
		return d.responses, nil
	}
	for i, c := range chunks {
		// A deadline set by cancellation is overwritten by the next exchange.
		if ctx.Err() != nil {
			return nil, d.abort(ctx, i+1, len(chunks), d.fail(fmt.Errorf("stopped before chunk %d", i+1)))
		}
		if _, err := d.SendChunk(c); err != nil {
			return nil, d.abort(ctx, i+1, len(chunks), err)
		}
	}
	return d.responses, nil
}

func (d *Driver) abort(ctx context.Context, index, total int, err error) error {
	if ctx.Err() != nil {
		err = fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	terr := &TransferError{Addr: d.addr, Index: index, Total: total, Err: err}
	d.err = terr
	return terr
}

// Close releases the connection. Closing before Done marks the driver failed.
func (d *Driver) Close() error {
	if !d.state.Terminal() && d.state != StateDisconnected {
		d.fail(fmt.Errorf("%w: closed in state %s", ErrInvalidState, d.state))
	}
	d.closeConn()
	return nil
}

func (d *Driver) closeConn() {
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

// Transfer connects to addr, runs every chunk and closes the connection.
func Transfer(ctx context.Context, addr string, chunks [][]byte, opts Options) ([][]byte, error) {
	d := New(opts)
	defer d.Close()
	if err := d.Connect(ctx, addr); err != nil {
		return nil, err
	}
	return d.Run(ctx, chunks)
}

// Assemble joins the responses last-to-first. Each response is already
// byte-reversed by the server, so the result is the chunk order inverted with
// every chunk's content inverted.
func Assemble(responses [][]byte) []byte {
	n := 0
	for _, r := range responses {
		n += len(r)
	}
	out := make([]byte, 0, n)
	for i := len(responses) - 1; i >= 0; i-- {
		out = append(out, responses[i]...)
	}
	return out
}
