package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Backend represents a firmware backend discovered on the network
type Backend struct {
	// Instance is the advertised service instance name (e.g., "espfw-lab")
	Instance string

	// Hostname is the mDNS hostname (e.g., "buildbox.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	Port int

	// Metadata contains the TXT record data.
	// Known keys: "path" (API prefix, default /api), "scheme", "version"
	Metadata map[string]string

	// DiscoveredAt is when the backend answered
	DiscoveredAt time.Time
}

// String returns a human-readable representation of the backend
func (b *Backend) String() string {
	return fmt.Sprintf("%s (%s) at %s", b.Instance, b.Hostname, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)))
}

// URL returns the API base URL, e.g. "http://192.168.1.20:5000/api".
func (b *Backend) URL() string {
	path := b.GetMetadata(TXTPath)
	if path == "" {
		path = DefaultPath
	}
	if path[0] != '/' {
		path = "/" + path
	}
	scheme := b.GetMetadata(TXTScheme)
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + net.JoinHostPort(b.IP, strconv.Itoa(b.Port)) + path
}

// Version returns the advertised server version, if any.
func (b *Backend) Version() string {
	return b.GetMetadata(TXTVersion)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Backend) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
