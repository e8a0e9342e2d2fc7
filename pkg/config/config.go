package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents spamscore configuration
type Config struct {
	// Rule tables and scoring
	Detection DetectionConfig `yaml:"detection"`

	// Sender domain reputation (age + blocklist)
	Reputation ReputationConfig `yaml:"reputation"`

	// Batch processing settings
	Performance PerformanceConfig `yaml:"performance"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`

	// HTTP API settings
	Server ServerConfig `yaml:"server"`

	// Milter server settings
	Milter MilterConfig `yaml:"milter"`
}

// DetectionConfig contains the static rule tables and score mapping
type DetectionConfig struct {
	Keywords          []string `yaml:"keywords"`
	DisposableDomains []string `yaml:"disposable_domains"`
	ShortenerHints    []string `yaml:"shortener_hints"`

	// Category thresholds: score <= Suspicious is SAFE, score <= Spam is SUSPICIOUS
	Thresholds Thresholds `yaml:"thresholds"`
	MaxScore   int        `yaml:"max_score"`

	// Evaluate rules on separate goroutines
	ConcurrentRules bool `yaml:"concurrent_rules"`
}

// Thresholds maps a score onto a category
type Thresholds struct {
	Suspicious int `yaml:"suspicious"`
	Spam       int `yaml:"spam"`
}

// ReputationConfig contains sender domain reputation settings
type ReputationConfig struct {
	// Resolved addresses treated as listed
	BlocklistIPs []string `yaml:"blocklist_ips"`

	// Domains younger than or equal to this many days are new
	NewDomainMaxAgeDays int `yaml:"new_domain_max_age_days"`

	// Treat resolver failures as "not listed"
	FailOpen bool `yaml:"fail_open"`

	DNS     DNSConfig     `yaml:"dns"`
	Redis   RedisConfig   `yaml:"redis"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// DNSConfig contains resolver settings
type DNSConfig struct {
	TimeoutMs     int  `yaml:"timeout_ms"`
	EnableCaching bool `yaml:"enable_caching"`
	CacheSize     int  `yaml:"cache_size"`
	CacheTTLMin   int  `yaml:"cache_ttl_min"`
}

// RedisConfig contains the shared verdict cache settings
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisURL  string `yaml:"redis_url"`
	KeyPrefix string `yaml:"key_prefix"`
	TTL       string `yaml:"ttl"` // Duration string like "1h"
}

// BreakerConfig controls when blocklist lookups are suspended
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	CooldownMs       int `yaml:"cooldown_ms"`
	MaxCooldownMs    int `yaml:"max_cooldown_ms"`
}

// PerformanceConfig contains performance tuning
type PerformanceConfig struct {
	MaxConcurrentEmails int `yaml:"max_concurrent_emails"`
	TimeoutMs           int `yaml:"timeout_ms"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	ListenAddress     string   `yaml:"listen_address"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes"`
	ShutdownTimeoutMs int      `yaml:"shutdown_timeout_ms"`
}

// MilterConfig contains milter server settings
type MilterConfig struct {
	Network string `yaml:"network"` // "tcp" or "unix"
	Address string `yaml:"address"` // "127.0.0.1:7357" or "/tmp/spamscore.sock"

	ReadTimeoutMs           int `yaml:"read_timeout_ms"`
	WriteTimeoutMs          int `yaml:"write_timeout_ms"`
	GracefulShutdownTimeout int `yaml:"graceful_shutdown_timeout_ms"`

	// Header modifications
	AddSpamHeaders   bool   `yaml:"add_spam_headers"`
	SpamHeaderPrefix string `yaml:"spam_header_prefix"`

	// Messages in this category are rejected; empty disables rejection
	RejectCategory string `yaml:"reject_category"`
	RejectMessage  string `yaml:"reject_message"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			Keywords: []string{
				"viagra", "lottery", "casino", "free money", "claim now",
				"winner", "cheap meds", "make money fast", "limited offer",
			},
			DisposableDomains: []string{
				"mailinator.com", "tempmail.com", "10minutemail.com",
			},
			ShortenerHints: []string{"bit.ly", "tinyurl", "click"},
			Thresholds: Thresholds{
				Suspicious: 30,
				Spam:       60,
			},
			MaxScore:        100,
			ConcurrentRules: true,
		},
		Reputation: ReputationConfig{
			BlocklistIPs:        []string{"127.0.0.2", "127.0.0.3"},
			NewDomainMaxAgeDays: 30,
			FailOpen:            true,
			DNS: DNSConfig{
				TimeoutMs:     2000,
				EnableCaching: true,
				CacheSize:     1000,
				CacheTTLMin:   30,
			},
			Redis: RedisConfig{
				Enabled:   false,
				RedisURL:  "redis://localhost:6379",
				KeyPrefix: "spamscore:dnsbl",
				TTL:       "1h",
			},
			Breaker: BreakerConfig{
				FailureThreshold: 3,
				CooldownMs:       5000,
				MaxCooldownMs:    300000,
			},
		},
		Performance: PerformanceConfig{
			MaxConcurrentEmails: 10,
			TimeoutMs:           5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			ListenAddress:     "127.0.0.1:8000",
			AllowedOrigins:    []string{"*"},
			MaxBodyBytes:      10 << 20,
			ShutdownTimeoutMs: 10000,
		},
		Milter: MilterConfig{
			Network:                 "tcp",
			Address:                 "127.0.0.1:7357",
			ReadTimeoutMs:           10000,
			WriteTimeoutMs:          10000,
			GracefulShutdownTimeout: 10000,
			AddSpamHeaders:          true,
			SpamHeaderPrefix:        "X-Spamscore-",
			RejectCategory:          "",
			RejectMessage:           "",
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	d := c.Detection
	if d.MaxScore < 1 {
		return fmt.Errorf("max_score must be >= 1")
	}
	if d.Thresholds.Suspicious < 0 || d.Thresholds.Spam < d.Thresholds.Suspicious {
		return fmt.Errorf("thresholds must satisfy 0 <= suspicious <= spam")
	}
	if d.Thresholds.Spam > d.MaxScore {
		return fmt.Errorf("spam threshold must not exceed max_score")
	}

	if c.Reputation.DNS.TimeoutMs < 1 {
		return fmt.Errorf("reputation dns timeout_ms must be >= 1")
	}
	if c.Reputation.Redis.Enabled && c.Reputation.Redis.RedisURL == "" {
		return fmt.Errorf("reputation redis_url cannot be empty when enabled")
	}

	if c.Performance.MaxConcurrentEmails < 1 {
		return fmt.Errorf("max_concurrent_emails must be >= 1")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	validLevel := false
	for _, level := range validLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Milter.Network != "tcp" && c.Milter.Network != "unix" {
		return fmt.Errorf("milter network must be 'tcp' or 'unix'")
	}
	switch c.Milter.RejectCategory {
	case "", "SUSPICIOUS", "LIKELY_SPAM":
	default:
		return fmt.Errorf("milter reject_category must be empty, SUSPICIOUS or LIKELY_SPAM")
	}

	return nil
}
