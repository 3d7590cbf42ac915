package server

import (
	"fmt"

	"github.com/darkprince558/flip/pkg/protocol"
)

// phase is the tag of a connection's state.
type phase int

const (
	phaseAwaitingInit phase = iota
	phaseAgreed
	phaseProcessing
	phaseClosed
)

func (p phase) String() string {
	switch p {
	case phaseAwaitingInit:
		return "awaiting-init"
	case phaseAgreed:
		return "agreed"
	case phaseProcessing:
		return "processing"
	case phaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// connState is threaded through the handler loop by value. processed never
// exceeds declared.
type connState struct {
	phase     phase
	declared  uint32
	processed uint32
}

// accept validates an inbound header against the current state and returns
// the state to move to once the packet has been handled.
func (s connState) accept(h protocol.Header) (connState, error) {
	switch s.phase {
	case phaseAwaitingInit:
		if h.Type != protocol.TypeInit {
			return s, &protocol.ViolationError{Field: "type", Expected: uint32(protocol.TypeInit), Actual: uint32(h.Type)}
		}
		next := connState{phase: phaseAgreed, declared: h.DeclaredCount()}
		if next.declared == 0 {
			next.phase = phaseClosed
		}
		return next, nil

	case phaseAgreed, phaseProcessing:
		if h.Type != protocol.TypeRequest {
			return s, &protocol.ViolationError{Field: "type", Expected: uint32(protocol.TypeRequest), Actual: uint32(h.Type)}
		}
		next := s
		next.phase = phaseProcessing
		next.processed++
		if next.processed == next.declared {
			next.phase = phaseClosed
		}
		return next, nil

	default:
		return s, fmt.Errorf("%w: %s packet after session closed", protocol.ErrProtocolViolation, h.Type)
	}
}

// index is the 1-based chunk number the next Request will carry.
func (s connState) index() uint32 {
	return s.processed + 1
}
