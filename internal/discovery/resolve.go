package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Resolver turns a server name into an address, trying mDNS first and then
// the registry when one is configured.
type Resolver struct {
	Registry *RegistryClient
	MDNSWait time.Duration
	browse   func(ctx context.Context, name string, timeout time.Duration) (string, error)
}

func NewResolver(registryURL string) *Resolver {
	r := &Resolver{MDNSWait: 3 * time.Second, browse: FindServer}
	if registryURL != "" {
		r.Registry = NewRegistryClient(registryURL)
	}
	return r
}

// Resolve returns the ip:port for name.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	addr, mdnsErr := r.browse(ctx, name, r.MDNSWait)
	if mdnsErr == nil {
		return addr, nil
	}
	if r.Registry == nil {
		return "", mdnsErr
	}
	item, err := r.Registry.Lookup(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w (local network: %v)", err, mdnsErr)
		}
		return "", err
	}
	return item.Addr(), nil
}
