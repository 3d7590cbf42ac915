package discovery

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

// StartAdvertising announces a flip server on the local network.
// It returns a shutdown function that should be called when advertising is no longer needed.
func StartAdvertising(port int, name, transport string) (func(), error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	nameHash := ComputeHash(name)
	instanceName := fmt.Sprintf("flip-%s", nameHash[:8])

	txt := []string{
		"hash=" + nameHash,
		"name=" + name,
		"transport=" + transport,
	}

	server, err := zeroconf.Register(
		instanceName,
		ServiceType,
		"local.",
		port,
		txt,
		nil, // all interfaces
	)
	if err != nil {
		return nil, err
	}

	return server.Shutdown, nil
}
