// Package discovery finds flip servers by name, on the local network through
// mDNS and across networks through the registry service.
package discovery

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
)

// ServiceType is the mDNS service type for flip servers.
const ServiceType = "_flip._tcp"

// ErrNotFound is returned when no server answers to a name.
var ErrNotFound = errors.New("server not found")

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// ValidateName accepts lowercase DNS-label style names, e.g. "brave-otter".
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid server name %q: use lowercase letters, digits and dashes", name)
	}
	return nil
}

// ComputeHash returns the SHA256 hash of a server name. mDNS instance names
// are truncated, so browsers match on the hash in the TXT record.
func ComputeHash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return fmt.Sprintf("%x", sum)
}
