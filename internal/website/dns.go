package website

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/rotisserie/eris"
)

// HostChecker reports whether a host name resolves.
type HostChecker interface {
	Exists(ctx context.Context, host string) (bool, error)
}

// DNSChecker asks public resolvers for an A record. Only an authoritative
// NXDOMAIN counts as missing; every other outcome fails open.
type DNSChecker struct {
	Servers []string
	client  *dns.Client
}

// NewDNSChecker queries servers in order, defaulting to Google and
// Cloudflare.
func NewDNSChecker(servers ...string) *DNSChecker {
	if len(servers) == 0 {
		servers = []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	return &DNSChecker{
		Servers: servers,
		client:  &dns.Client{Timeout: 3 * time.Second},
	}
}

// Exists implements HostChecker.
func (c *DNSChecker) Exists(ctx context.Context, host string) (bool, error) {
	if host == "" {
		return false, nil
	}
	if net.ParseIP(host) != nil || host == "localhost" {
		return true, nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range c.Servers {
		resp, _, err := c.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		switch resp.Rcode {
		case dns.RcodeNameError:
			return false, nil
		case dns.RcodeSuccess:
			return true, nil
		default:
			lastErr = eris.Errorf("resolver %s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}
	return true, eris.Wrapf(lastErr, "resolving %s", host)
}
