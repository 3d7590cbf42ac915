package client

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when an operation is called out of order.
var ErrInvalidState = errors.New("invalid driver state")

// ConnectError means the server could not be reached.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TransferError aborts a run. Index is the 1-based position of the failing
// chunk; 0 means the handshake failed before any chunk was sent.
type TransferError struct {
	Addr  string
	Index int
	Total int
	Err   error
}

func (e *TransferError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf("transfer to %s aborted during handshake: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("transfer to %s aborted at chunk %d/%d: %v", e.Addr, e.Index, e.Total, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
