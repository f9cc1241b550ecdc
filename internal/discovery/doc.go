// Package discovery finds firmware backends on the local network with
// multicast DNS.
//
// A backend started with advertising enabled registers itself as a
// "_espfw._tcp" service. Its TXT record carries the API prefix
// ("path=/api") and the server version. Clients browse for that service
// type and turn each answer into a Backend whose URL can be used as the
// backend base URL:
//
//	backends, err := discovery.NewScanner().Scan(ctx)
//	for _, b := range backends {
//	    fmt.Println(b.Instance, b.URL())
//	}
//
// # Network Requirements
//
//   - Requires multicast support on the network interface
//   - Client and backend must share a network segment
//   - Firewalls must allow mDNS (UDP port 5353)
package discovery
