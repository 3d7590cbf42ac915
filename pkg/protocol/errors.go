package protocol

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrConnectionClosed means the peer went away before a frame was complete.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrProtocolViolation means a frame carried an unexpected type or length.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrTimeout means a read or write deadline expired.
	ErrTimeout = errors.New("timeout")
)

// ViolationError describes an unexpected header field.
type ViolationError struct {
	Field    string // "type" or "length"
	Expected uint32 // 0 for type means "any known type"
	Actual   uint32
}

func (e *ViolationError) Error() string {
	if e.Field == "type" {
		want := "a known type"
		if e.Expected != 0 {
			want = Type(e.Expected).String()
		}
		return fmt.Sprintf("protocol violation: expected packet type %s, got %s", want, Type(e.Actual))
	}
	return fmt.Sprintf("protocol violation: expected %s %d, got %d", e.Field, e.Expected, e.Actual)
}

func (e *ViolationError) Is(target error) bool {
	return target == ErrProtocolViolation
}

// classify maps transport errors onto the protocol sentinels while keeping the
// original error in the chain.
func classify(err error) error {
	var ne net.Error
	switch {
	case errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	default:
		return err
	}
}

// Classify is the exported form used by writers outside this package.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	return classify(err)
}
