package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

var ErrNoValkeyDiscovery = errors.New("no Valkey discovery configured (VALKEY_NODES or VALKEY_SERVICE)")

const valkeyPort = 6379

// ResolveValkeyAddrs prefers the explicit node list and falls back to a DNS
// lookup of the headless service.
func ResolveValkeyAddrs(nodes, service string) ([]string, error) {
	if nodes != "" {
		var out []string
		for _, n := range strings.Split(nodes, ",") {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, n)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	if service != "" {
		addrs, err := net.LookupHost(service)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", service, err)
		}
		out := make([]string, 0, len(addrs))
		for _, ip := range addrs {
			out = append(out, net.JoinHostPort(ip, fmt.Sprint(valkeyPort)))
		}
		return out, nil
	}

	return nil, ErrNoValkeyDiscovery
}

func marshalReport(data any) ([]byte, error) {
	if b, ok := data.([]byte); ok {
		return b, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return b, nil
}
