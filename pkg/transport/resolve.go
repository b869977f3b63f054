package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// resolveServiceSRV looks up the _<name>._tcp SRV record through the first
// resolver in /etc/resolv.conf and returns the port of the first answer.
// Only an empty domain is supported; any other domain returns an error.
// ResolveServicePort falls back to net.LookupPort when this fails, which
// is the common case for services only listed in /etc/services.
func resolveServiceSRV(name, domain string) (int, error) {
	if domain == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil || len(conf.Servers) == 0 {
			return 0, fmt.Errorf("transport: no resolv.conf available: %w", err)
		}
		query := fmt.Sprintf("_%s._tcp.", name)
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(query), dns.TypeSRV)
		c := new(dns.Client)
		c.Timeout = 2 * time.Second
		server := net.JoinHostPort(conf.Servers[0], conf.Port)
		resp, _, err := c.Exchange(m, server)
		if err != nil {
			return 0, err
		}
		for _, ans := range resp.Answer {
			if srv, ok := ans.(*dns.SRV); ok {
				return int(srv.Port), nil
			}
		}
		return 0, fmt.Errorf("transport: no SRV record for %s", name)
	}
	return 0, fmt.Errorf("transport: SRV lookup in domain %q not supported", domain)
}

// ResolveServicePort resolves a service name to a TCP port, SRV first
// then /etc/services. Shared by every Transport implementation.
func ResolveServicePort(name string) (int, error) {
	if port, err := resolveServiceSRV(name, ""); err == nil {
		return port, nil
	}
	port, err := net.LookupPort("tcp", name)
	if err != nil {
		return 0, fmt.Errorf("transport: resolving service %q: %w", name, err)
	}
	return port, nil
}

// ResolveHostIP resolves a hostname to a dialable IP string. Shared by
// every Transport implementation.
func ResolveHostIP(host string) (string, error) {
	ips, err := net.LookupHost(host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("transport: no addresses for host %q", host)
	}
	return ips[0], nil
}
