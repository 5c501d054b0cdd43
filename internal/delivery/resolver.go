package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/jibmail/jib/internal/address"
)

// DNS is the resolver capability the delivery engine depends on. The
// standard net.Resolver satisfies it.
type DNS interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Resolver produces a destination address for a domain: the lowest
// preference MX exchange when one exists, the domain's own address records
// otherwise, and literal IPs as-is with no lookup at all.
type Resolver struct {
	config  *Config
	logger  *slog.Logger
	metrics *Metrics
	dns     DNS
	cache   *dnsCache
}

// NewResolver creates a resolver. A nil dns falls back to the system
// resolver.
func NewResolver(config *Config, dns DNS) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	if dns == nil {
		dns = net.DefaultResolver
	}
	return &Resolver{
		config:  config,
		logger:  slog.Default().With("component", "resolver"),
		metrics: GetMetrics(),
		dns:     dns,
		cache:   newDNSCache(config),
	}
}

// Resolve returns the address mail for the domain should be sent to. A
// failure here is a domain-level delivery failure for every recipient in
// that group, not a process error.
func (r *Resolver) Resolve(ctx context.Context, d address.Domain) (netip.Addr, error) {
	if addr, ok := d.Addr(); ok {
		return addr, nil
	}
	name := d.Name()

	mxs, err := r.lookupMX(ctx, name)
	if err != nil {
		r.logger.Debug("MX lookup failed", "domain", name, "error", err)
	}
	if len(mxs) > 0 {
		// Lowest preference wins; stable sort keeps first-seen order
		// between equal preferences.
		sorted := make([]*net.MX, len(mxs))
		copy(sorted, mxs)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Pref < sorted[j].Pref
		})
		exchange := strings.TrimSuffix(sorted[0].Host, ".")
		addr, err := r.lookupAddr(ctx, exchange)
		if err == nil {
			r.logger.Debug("resolved via MX",
				"domain", name,
				"exchange", exchange,
				"preference", sorted[0].Pref,
				"addr", addr)
			return addr, nil
		}
		r.logger.Debug("MX exchange did not resolve",
			"domain", name,
			"exchange", exchange,
			"error", err)
	}

	// No usable MX answer; fall back to the domain's own address records.
	addr, err := r.lookupAddr(ctx, name)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("no usable address for domain %s: %w", name, err)
	}
	r.logger.Debug("resolved via address record", "domain", name, "addr", addr)
	return addr, nil
}

// CacheStats returns DNS cache counters for diagnostics.
func (r *Resolver) CacheStats() map[string]interface{} {
	return r.cache.Stats()
}

func (r *Resolver) lookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	key := "mx:" + strings.ToLower(name)
	if v := r.cache.get(key); v != nil {
		return v.([]*net.MX), nil
	}

	var mxs []*net.MX
	err := r.withRetries(ctx, func(ctx context.Context) error {
		var err error
		mxs, err = r.dns.LookupMX(ctx, name)
		return err
	})
	if err != nil {
		r.metrics.DNSErrors.Inc()
		return nil, err
	}
	r.cache.put(key, mxs)
	return mxs, nil
}

func (r *Resolver) lookupAddr(ctx context.Context, host string) (netip.Addr, error) {
	key := "addr:" + strings.ToLower(host)
	if v := r.cache.get(key); v != nil {
		return v.(netip.Addr), nil
	}

	var ipAddrs []net.IPAddr
	err := r.withRetries(ctx, func(ctx context.Context) error {
		var err error
		ipAddrs, err = r.dns.LookupIPAddr(ctx, host)
		return err
	})
	if err != nil {
		r.metrics.DNSErrors.Inc()
		return netip.Addr{}, err
	}
	if len(ipAddrs) == 0 {
		return netip.Addr{}, fmt.Errorf("no address records for %s", host)
	}
	addr, ok := netip.AddrFromSlice(ipAddrs[0].IP)
	if !ok {
		return netip.Addr{}, fmt.Errorf("unusable address record for %s", host)
	}
	addr = addr.Unmap()
	r.cache.put(key, addr)
	return addr, nil
}

// withRetries runs one lookup with a per-attempt timeout and linear
// backoff between attempts, honoring context cancellation.
func (r *Resolver) withRetries(ctx context.Context, lookup func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < r.config.DNSRetries; attempt++ {
		r.metrics.DNSQueries.Inc()

		lookupCtx, cancel := context.WithTimeout(ctx, r.config.DNSTimeout)
		err = lookup(lookupCtx)
		cancel()

		if err == nil {
			return nil
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			// Authoritative "no such record"; retrying will not help.
			return err
		}
		r.logger.Debug("lookup attempt failed", "attempt", attempt+1, "error", err)

		if attempt < r.config.DNSRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}
	return err
}
