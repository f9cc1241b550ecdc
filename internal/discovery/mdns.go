package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type firmware backends advertise
	ServiceType = "_espfw._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is assumed when an entry carries no port
	DefaultPort = 5000

	// DefaultPath is the API prefix when the TXT record has none
	DefaultPath = "/api"

	// TXT record keys
	TXTPath    = "path"
	TXTVersion = "version"
	TXTScheme  = "scheme"
)

// Scanner handles mDNS backend discovery
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for backends until the timeout or ctx ends. Results are
// sorted by instance name with duplicates removed.
func (s *Scanner) Scan(ctx context.Context) ([]*Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var (
		mu    sync.Mutex
		found = make(map[string]*Backend)
	)
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if b := parseServiceEntry(entry); b != nil {
				mu.Lock()
				found[b.Instance] = b
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	backends := make([]*Backend, 0, len(found))
	for _, b := range found {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i].Instance < backends[j].Instance })
	return backends, nil
}

// First waits for any backend to answer and returns it.
func (s *Scanner) First(ctx context.Context) (*Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	result := make(chan *Backend, 1)
	go func() {
		for entry := range entries {
			if b := parseServiceEntry(entry); b != nil {
				select {
				case result <- b:
				default:
				}
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case b := <-result:
		return b, nil
	case <-ctx.Done():
		select {
		case b := <-result:
			return b, nil
		default:
		}
		return nil, fmt.Errorf("no firmware backend answered within %s", s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf entry to a Backend. Entries
// without an address are ignored.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Backend {
	if entry == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		k, v, _ := strings.Cut(txt, "=")
		metadata[k] = v
	}

	instance := entry.Instance
	if instance == "" {
		instance = strings.TrimSuffix(entry.HostName, ".")
	}

	return &Backend{
		Instance:     instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Advertisement is a running mDNS registration.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers a backend under instance on port until Shutdown.
// Empty metadata values are left out of the TXT record.
func Advertise(instance string, port int, metadata map[string]string) (*Advertisement, error) {
	keys := make([]string, 0, len(metadata))
	for k, v := range metadata {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	txt := make([]string, 0, len(keys))
	for _, k := range keys {
		txt = append(txt, k+"="+metadata[k])
	}
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to advertise %s: %w", instance, err)
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}
