// Package resolve turns target hostnames into IP addresses before a
// scan starts. Resolution happens exactly once per scan invocation; a
// failure here is input validation, never a per-port outcome.
package resolve

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	proberrors "github.com/probemap/probemap/internal/errors"
	"github.com/probemap/probemap/internal/logging"
)

const (
	defaultTimeout = 5 * time.Second
	resolvConfPath = "/etc/resolv.conf"
)

// Resolver resolves hostnames via the system's configured DNS servers,
// falling back to the default Go resolver when direct queries fail.
type Resolver struct {
	timeout time.Duration
	conf    *dns.ClientConfig
}

// New creates a resolver with the given per-query timeout. A missing or
// unreadable resolv.conf is tolerated; the fallback path still works.
func New(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		logging.Debug("Could not read resolver configuration, using fallback resolver",
			"path", resolvConfPath,
			"error", err)
		conf = nil
	}

	return &Resolver{timeout: timeout, conf: conf}
}

// Resolve returns an IP address for the host. IP literals pass through
// untouched. The first A record wins; AAAA is tried when no A record
// exists.
func (r *Resolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if host == "" {
		return nil, proberrors.NewResolveError(host, fmt.Errorf("empty host"))
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	if r.conf != nil && len(r.conf.Servers) > 0 {
		if ip, err := r.lookupDirect(ctx, host); err == nil {
			return ip, nil
		}
	}

	return r.lookupFallback(ctx, host)
}

// lookupDirect queries the system's DNS servers in order.
func (r *Resolver) lookupDirect(ctx context.Context, host string) (net.IP, error) {
	client := &dns.Client{Timeout: r.timeout}

	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		msg.RecursionDesired = true

		for _, server := range r.conf.Servers {
			addr := net.JoinHostPort(server, r.conf.Port)
			reply, _, err := client.ExchangeContext(ctx, msg, addr)
			if err != nil {
				lastErr = err
				continue
			}
			if reply.Rcode != dns.RcodeSuccess {
				lastErr = fmt.Errorf("dns query for %s returned %s", host, dns.RcodeToString[reply.Rcode])
				continue
			}
			for _, rr := range reply.Answer {
				switch record := rr.(type) {
				case *dns.A:
					return record.A, nil
				case *dns.AAAA:
					return record.AAAA, nil
				}
			}
			lastErr = fmt.Errorf("no address records for %s", host)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable answer for %s", host)
	}
	return nil, lastErr
}

// lookupFallback uses the default Go resolver.
func (r *Resolver) lookupFallback(ctx context.Context, host string) (net.IP, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return nil, proberrors.NewResolveError(host, err)
	}
	if len(addrs) == 0 {
		return nil, proberrors.NewResolveError(host, fmt.Errorf("no addresses found"))
	}

	// Prefer IPv4 to match the connect-scan transport default.
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return addrs[0].IP, nil
}
