package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/darkprince558/flip/internal/logging"
	"github.com/darkprince558/flip/internal/textenc"
	"github.com/darkprince558/flip/internal/transport"
	"github.com/darkprince558/flip/pkg/protocol"
)

// SessionReport summarizes one connection after its handler returns.
type SessionReport struct {
	ID        string
	Remote    string
	Declared  uint32
	Processed uint32
	BytesIn   int64
	BytesOut  int64
	Started   time.Time
	Duration  time.Duration
	Err       error
}

// Complete reports whether every declared chunk was answered.
func (r SessionReport) Complete() bool {
	return r.Err == nil && r.Processed == r.Declared
}

// Handler serves one connection at a time; a single Handler value may be
// shared by any number of goroutines since it holds configuration only.
type Handler struct {
	Encoding textenc.Encoding
	// IdleTimeout bounds each read from the peer. Zero waits forever.
	IdleTimeout time.Duration
	Logger      logging.Logger
}

func (h *Handler) encoding() textenc.Encoding {
	if h.Encoding == nil {
		return textenc.MustLookup(textenc.Default)
	}
	return h.Encoding
}

// Serve runs the protocol on conn until the declared count is reached, the
// peer goes away, or a packet is rejected. conn is always closed on return.
func (h *Handler) Serve(conn transport.Conn, id string) (rep SessionReport) {
	log := h.Logger
	if log == nil {
		log = logging.Discard()
	}
	rep = SessionReport{ID: id, Remote: conn.RemoteAddr().String(), Started: time.Now()}
	log = log.With(id)
	log.Infof("New connection from %s", rep.Remote)

	defer func() {
		conn.Close()
		rep.Duration = time.Since(rep.Started)
		switch {
		case rep.Err != nil:
			log.Warnf("Closed %s after %d/%d chunks: %v", rep.Remote, rep.Processed, rep.Declared, rep.Err)
		default:
			log.Infof("Closed %s, %d chunks reversed in %s", rep.Remote, rep.Processed, rep.Duration.Round(time.Millisecond))
		}
	}()

	enc := h.encoding()
	st := connState{}
	for st.phase != phaseClosed {
		if h.IdleTimeout > 0 {
			conn.SetDeadline(time.Now().Add(h.IdleTimeout))
		}

		hdr, err := protocol.ReadHeader(conn)
		if err != nil {
			rep.Err = describe(st, err)
			return rep
		}
		rep.BytesIn += protocol.HeaderSize

		next, err := st.accept(hdr)
		if err != nil {
			rep.Err = describe(st, err)
			return rep
		}

		switch hdr.Type {
		case protocol.TypeInit:
			rep.Declared = hdr.DeclaredCount()
			if err := protocol.WriteAgree(conn); err != nil {
				rep.Err = fmt.Errorf("send agree: %w", protocol.Classify(err))
				return rep
			}
			rep.BytesOut += protocol.HeaderSize
			log.Infof("Agreed to %d chunks with %s", rep.Declared, rep.Remote)

		case protocol.TypeRequest:
			payload, err := protocol.ReadPayload(conn, hdr, protocol.Expect{Type: protocol.TypeRequest})
			if err != nil {
				rep.Err = describe(st, err)
				return rep
			}
			rep.BytesIn += int64(len(payload))

			reversed, err := textenc.Reverse(enc, payload)
			if err != nil {
				rep.Err = describe(st, err)
				return rep
			}
			if err := protocol.WritePacket(conn, protocol.TypeResponse, reversed); err != nil {
				rep.Err = describe(st, protocol.Classify(err))
				return rep
			}
			rep.BytesOut += int64(protocol.HeaderSize + len(reversed))
			log.Debugf("Sent chunk %d/%d reversed to %s (%d bytes)", st.index(), st.declared, rep.Remote, len(reversed))
		}

		st = next
		rep.Processed = st.processed
	}
	return rep
}

// describe adds the state the failure happened in.
func describe(st connState, err error) error {
	switch st.phase {
	case phaseAwaitingInit:
		if errors.Is(err, protocol.ErrConnectionClosed) {
			return fmt.Errorf("no init packet: %w", err)
		}
		return fmt.Errorf("init: %w", err)
	default:
		return fmt.Errorf("chunk %d/%d: %w", st.index(), st.declared, err)
	}
}
