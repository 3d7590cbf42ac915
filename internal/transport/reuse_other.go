//go:build !unix

package transport

import "syscall"

// Windows has different SO_REUSEADDR semantics (it allows port stealing), so
// the default socket options are kept there.
func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
