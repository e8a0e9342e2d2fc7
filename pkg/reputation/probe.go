package reputation

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/zpam/spamscore/pkg/config"
	"github.com/zpam/spamscore/pkg/dns"
	"go.uber.org/zap"
)

// Resolver looks up the IPv4 addresses of a domain
type Resolver interface {
	LookupA(ctx context.Context, domain string) ([]net.IP, error)
}

// Probe is the default Provider: simulated domain age plus a DNS blocklist
// check guarded by a breaker and an optional shared verdict cache.
type Probe struct {
	resolver  Resolver
	blocklist map[string]struct{}
	failOpen  bool
	breaker   *Breaker
	cache     VerdictCache
	logger    *zap.Logger
}

// Option configures a Probe
type Option func(*Probe)

// WithBlocklist replaces the addresses treated as listed
func WithBlocklist(ips []string) Option {
	return func(p *Probe) {
		p.blocklist = make(map[string]struct{}, len(ips))
		for _, ip := range ips {
			if parsed := net.ParseIP(ip); parsed != nil {
				p.blocklist[parsed.String()] = struct{}{}
			}
		}
	}
}

// WithFailOpen sets whether lookup failures count as "not listed"
func WithFailOpen(failOpen bool) Option {
	return func(p *Probe) { p.failOpen = failOpen }
}

// WithBreaker guards lookups with b
func WithBreaker(b *Breaker) Option {
	return func(p *Probe) { p.breaker = b }
}

// WithCache stores verdicts in c
func WithCache(c VerdictCache) Option {
	return func(p *Probe) { p.cache = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Probe) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProbe creates a probe resolving through resolver
func NewProbe(resolver Resolver, opts ...Option) *Probe {
	p := &Probe{
		resolver: resolver,
		failOpen: true,
		logger:   zap.NewNop(),
	}
	WithBlocklist([]string{"127.0.0.2", "127.0.0.3"})(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewProbeFromConfig builds a probe with the system resolver, breaker and,
// when enabled, the Redis verdict cache
func NewProbeFromConfig(cfg *config.Config, logger *zap.Logger) (*Probe, error) {
	rc := cfg.Reputation
	client := dns.NewClient(dns.Config{
		Timeout:       time.Duration(rc.DNS.TimeoutMs) * time.Millisecond,
		CacheSize:     rc.DNS.CacheSize,
		CacheTTL:      time.Duration(rc.DNS.CacheTTLMin) * time.Minute,
		EnableCaching: rc.DNS.EnableCaching,
	})

	opts := []Option{
		WithBlocklist(rc.BlocklistIPs),
		WithFailOpen(rc.FailOpen),
		WithBreaker(NewBreaker(rc.Breaker)),
		WithLogger(logger),
	}

	if rc.Redis.Enabled {
		cache, err := NewRedisCache(rc.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to set up verdict cache: %w", err)
		}
		opts = append(opts, WithCache(cache))
	}

	return NewProbe(client, opts...), nil
}

// AgeDays returns the simulated age of domain
func (p *Probe) AgeDays(_ context.Context, domain string) int {
	return SimulatedAge(domain)
}

// IsListed resolves domain and reports whether any address is blocklisted.
// An empty domain is never listed. Lookup failures are answered by the fail
// policy; a missing domain is always "not listed".
func (p *Probe) IsListed(ctx context.Context, domain string) bool {
	if domain == "" {
		return false
	}

	if p.cache != nil {
		listed, found, err := p.cache.Get(ctx, domain)
		if err != nil {
			p.logger.Debug("verdict cache read failed", zap.String("domain", domain), zap.Error(err))
		} else if found {
			return listed
		}
	}

	if p.breaker != nil && !p.breaker.Allow() {
		p.logger.Debug("blocklist lookup skipped during cooldown",
			zap.String("domain", domain),
			zap.Bool("fail_open", p.failOpen))
		return !p.failOpen
	}

	start := time.Now()
	ips, err := p.resolver.LookupA(ctx, domain)
	if err != nil {
		if dns.IsNotFound(err) {
			p.recordSuccess(time.Since(start))
			p.store(ctx, domain, false)
			return false
		}
		if p.breaker != nil {
			p.breaker.RecordFailure(err.Error())
		}
		p.logger.Warn("blocklist lookup failed",
			zap.String("domain", domain),
			zap.Bool("fail_open", p.failOpen),
			zap.Error(err))
		return !p.failOpen
	}
	p.recordSuccess(time.Since(start))

	listed := p.matches(ips)
	p.store(ctx, domain, listed)
	return listed
}

// Stats returns breaker and resolver statistics
func (p *Probe) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"fail_open": p.failOpen,
	}
	if p.breaker != nil {
		stats["breaker"] = p.breaker.Stats()
	}
	if client, ok := p.resolver.(*dns.Client); ok {
		stats["dns"] = client.GetStats()
		stats["dns_hit_rate"] = client.HitRate()
	}
	return stats
}

// Close releases the verdict cache
func (p *Probe) Close() error {
	if p.cache != nil {
		return p.cache.Close()
	}
	return nil
}

func (p *Probe) matches(ips []net.IP) bool {
	for _, ip := range ips {
		if _, ok := p.blocklist[ip.String()]; ok {
			return true
		}
	}
	return false
}

func (p *Probe) recordSuccess(latency time.Duration) {
	if p.breaker != nil {
		p.breaker.RecordSuccess(latency)
	}
}

func (p *Probe) store(ctx context.Context, domain string, listed bool) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, domain, listed); err != nil {
		p.logger.Debug("verdict cache write failed", zap.String("domain", domain), zap.Error(err))
	}
}
