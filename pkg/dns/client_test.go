package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient(Config{})
	if client == nil {
		t.Fatal("NewClient returned nil")
	}

	if client.config.Timeout != 2*time.Second {
		t.Errorf("Expected default timeout 2s, got %v", client.config.Timeout)
	}
	if client.config.CacheSize != 1000 {
		t.Errorf("Expected default cache size 1000, got %d", client.config.CacheSize)
	}
	if client.config.CacheTTL != 30*time.Minute {
		t.Errorf("Expected default TTL 30m, got %v", client.config.CacheTTL)
	}

	client = NewClient(Config{Timeout: 500 * time.Millisecond, CacheSize: 5})
	if client.config.Timeout != 500*time.Millisecond {
		t.Errorf("Expected timeout 500ms, got %v", client.config.Timeout)
	}
}

func TestLookupEmptyDomain(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.LookupA(context.Background(), ""); !errors.Is(err, ErrEmptyDomain) {
		t.Errorf("Expected ErrEmptyDomain, got %v", err)
	}
}

func TestLookupServedFromCache(t *testing.T) {
	client := NewClient(Config{EnableCaching: true, CacheTTL: time.Minute})
	client.setInCache("cached.test", []net.IP{net.ParseIP("127.0.0.2").To4()})

	ips, err := client.LookupA(context.Background(), "cached.test")
	if err != nil {
		t.Fatalf("LookupA failed: %v", err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("127.0.0.2")) {
		t.Errorf("Unexpected cached IPs: %v", ips)
	}

	stats := client.GetStats()
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if client.HitRate() != 100.0 {
		t.Errorf("Expected 100%% hit rate, got %f", client.HitRate())
	}
}

func TestLookupCancelledContext(t *testing.T) {
	client := NewClient(Config{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.LookupA(ctx, "example.invalid"); err == nil {
		t.Error("Expected error for cancelled context")
	}
	if client.GetStats().Errors != 1 {
		t.Errorf("Expected 1 error, got %d", client.GetStats().Errors)
	}
}

func TestCacheExpiry(t *testing.T) {
	client := NewClient(Config{EnableCaching: true, CacheTTL: time.Minute})
	client.setInCache("expire.test", []net.IP{net.ParseIP("10.0.0.1")})

	client.mu.Lock()
	client.cache["expire.test"].ExpiresAt = time.Now().Add(-time.Minute)
	client.mu.Unlock()

	if _, ok := client.getFromCache("expire.test"); ok {
		t.Error("Expected expired entry to be ignored")
	}
}

func TestCacheEviction(t *testing.T) {
	client := NewClient(Config{EnableCaching: true, CacheSize: 2, CacheTTL: time.Minute})

	client.setInCache("one.test", nil)
	time.Sleep(time.Millisecond)
	client.setInCache("two.test", nil)
	time.Sleep(time.Millisecond)
	client.setInCache("three.test", nil)

	stats := client.GetStats()
	if stats.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", stats.Entries)
	}
	if stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evictions)
	}
	if _, ok := client.getFromCache("one.test"); ok {
		t.Error("Oldest entry should have been evicted")
	}
}

func TestErrorClassification(t *testing.T) {
	notFound := fmt.Errorf("lookup: %w", &net.DNSError{Err: "no such host", Name: "x.test", IsNotFound: true})
	timeout := &net.DNSError{Err: "i/o timeout", Name: "x.test", IsTimeout: true}

	if !IsNotFound(notFound) {
		t.Error("Expected wrapped NXDOMAIN to be classified as not found")
	}
	if IsNotFound(timeout) {
		t.Error("Timeout should not be classified as not found")
	}
	if !IsTimeout(timeout) {
		t.Error("Expected resolver timeout to be classified as timeout")
	}
	if !IsTimeout(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Error("Expected deadline exceeded to be classified as timeout")
	}
	if IsTimeout(errors.New("boom")) {
		t.Error("Plain error should not be a timeout")
	}
}
