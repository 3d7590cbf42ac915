package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// FindServer scans the local network for a flip server advertised under name.
// It returns the IPv4 ip:port of the first match, or ErrNotFound on timeout.
func FindServer(ctx context.Context, name string, timeout time.Duration) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	targetHash := ComputeHash(name)

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w on local network: %q (waited %s)", ErrNotFound, name, timeout)
		case entry := <-entries:
			if entry == nil {
				continue
			}
			if addr, ok := match(entry, targetHash); ok {
				return addr, nil
			}
		}
	}
}

// match checks the TXT hash and picks the first IPv4 address.
func match(entry *zeroconf.ServiceEntry, targetHash string) (string, bool) {
	for _, txt := range entry.Text {
		if h, ok := strings.CutPrefix(txt, "hash="); ok && h == targetHash {
			if len(entry.AddrIPv4) == 0 {
				return "", false
			}
			return fmt.Sprintf("%s:%d", entry.AddrIPv4[0], entry.Port), true
		}
	}
	return "", false
}
