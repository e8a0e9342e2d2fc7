package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrEmptyDomain is returned for lookups of an empty name
var ErrEmptyDomain = errors.New("empty domain")

// Record represents a cached address lookup
type Record struct {
	IPs       []net.IP  `json:"ips"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Client resolves domains through the system resolver with a bounded timeout
type Client struct {
	resolver *net.Resolver
	cache    map[string]*Record
	mu       sync.RWMutex
	config   Config
	stats    Stats
}

// Config contains DNS client configuration
type Config struct {
	Timeout       time.Duration `json:"timeout"`
	CacheSize     int           `json:"cache_size"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	EnableCaching bool          `json:"enable_caching"`
}

// Stats tracks DNS client performance metrics
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Errors    int64 `json:"errors"`
	Timeouts  int64 `json:"timeouts"`
	Entries   int64 `json:"entries"`
	Evictions int64 `json:"evictions"`
}

// NewClient creates a new DNS client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Second
	}
	if config.CacheSize == 0 {
		config.CacheSize = 1000
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 30 * time.Minute
	}

	return &Client{
		resolver: &net.Resolver{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: config.Timeout}
				return d.DialContext(ctx, network, address)
			},
		},
		cache:  make(map[string]*Record),
		config: config,
	}
}

// LookupA returns the IPv4 addresses of domain. The lookup is abandoned once
// the configured timeout elapses, whatever deadline ctx carries.
func (c *Client) LookupA(ctx context.Context, domain string) ([]net.IP, error) {
	if domain == "" {
		return nil, ErrEmptyDomain
	}

	if c.config.EnableCaching {
		if ips, ok := c.getFromCache(domain); ok {
			c.mu.Lock()
			c.stats.Hits++
			c.mu.Unlock()
			return ips, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	addrs, err := c.resolver.LookupIPAddr(ctx, domain)

	c.mu.Lock()
	if err != nil {
		c.stats.Errors++
		if IsTimeout(err) {
			c.stats.Timeouts++
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("lookup %s: %w", domain, err)
	}
	c.stats.Misses++
	c.mu.Unlock()

	var ips []net.IP
	for _, addr := range addrs {
		if ipv4 := addr.IP.To4(); ipv4 != nil {
			ips = append(ips, ipv4)
		}
	}

	if c.config.EnableCaching {
		c.setInCache(domain, ips)
	}

	return ips, nil
}

// IsNotFound reports whether err means the name does not exist
func IsNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// IsTimeout reports whether err is a resolver or context timeout
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsTimeout
}

func (c *Client) getFromCache(domain string) ([]net.IP, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, exists := c.cache[domain]
	if !exists || time.Now().After(record.ExpiresAt) {
		return nil, false
	}
	return record.IPs, true
}

func (c *Client) setInCache(domain string, ips []net.IP) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[domain]; !exists && len(c.cache) >= c.config.CacheSize {
		c.evictOldest()
	}

	now := time.Now()
	c.cache[domain] = &Record{
		IPs:       ips,
		ExpiresAt: now.Add(c.config.CacheTTL),
		CreatedAt: now,
	}
	c.stats.Entries = int64(len(c.cache))
}

// evictOldest removes the oldest cache entry; callers hold mu
func (c *Client) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, record := range c.cache {
		if oldestKey == "" || record.CreatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = record.CreatedAt
		}
	}

	if oldestKey != "" {
		delete(c.cache, oldestKey)
		c.stats.Evictions++
	}
}

// GetStats returns current performance statistics
func (c *Client) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Entries = int64(len(c.cache))
	return stats
}

// HitRate returns cache hit rate as percentage
func (c *Client) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(c.stats.Hits) / float64(total) * 100.0
}
