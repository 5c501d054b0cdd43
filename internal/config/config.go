// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/jibmail/jib/internal/address"
	"github.com/jibmail/jib/internal/delivery"
)

// Config represents the application configuration.
type Config struct {
	// Server identification and routing
	Server struct {
		Hostname     string   `toml:"hostname"`
		LocalDomains []string `toml:"local_domains"`
	} `toml:"server"`

	// Outbound delivery settings. Timeouts are expressed in
	// milliseconds.
	Delivery struct {
		Port             int `toml:"port"`
		ConnectTimeoutMS int `toml:"connect_timeout_ms"`
		ReadTimeoutMS    int `toml:"read_timeout_ms"`
		DNSTimeoutMS     int `toml:"dns_timeout_ms"`
		DNSRetries       int `toml:"dns_retries"`
		DNSCacheSize     int `toml:"dns_cache_size"`
		DNSCacheTTLSec   int `toml:"dns_cache_ttl_sec"`
	} `toml:"delivery"`

	// Spool directory for locally handled messages (bounces)
	Spool struct {
		Dir string `toml:"dir"`
	} `toml:"spool"`

	// Logging configuration
	Logging struct {
		Level  string `toml:"level"`
		Format string `toml:"format"` // "text" or "json"
	} `toml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Hostname = "localhost"

	cfg.Delivery.Port = 25
	cfg.Delivery.ConnectTimeoutMS = 2500
	cfg.Delivery.ReadTimeoutMS = 30000
	cfg.Delivery.DNSTimeoutMS = 10000
	cfg.Delivery.DNSRetries = 3
	cfg.Delivery.DNSCacheSize = 1000
	cfg.Delivery.DNSCacheTTLSec = 3600

	cfg.Spool.Dir = "./spool"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// LoadConfig reads a TOML configuration file over the defaults. An empty
// path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run
// with.
func (c *Config) Validate() error {
	if _, err := address.ParseDomain(c.Server.Hostname); err != nil {
		return fmt.Errorf("invalid hostname: %w", err)
	}
	for _, domain := range c.Server.LocalDomains {
		if _, err := address.ParseDomain(domain); err != nil {
			return fmt.Errorf("invalid local domain %q: %w", domain, err)
		}
	}
	if c.Delivery.Port < 1 || c.Delivery.Port > 65535 {
		return fmt.Errorf("invalid delivery port %d", c.Delivery.Port)
	}
	if c.Delivery.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.Delivery.DNSRetries < 1 {
		return fmt.Errorf("dns retries must be at least 1")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// IsLocalDomain reports whether the named domain is one of this server's
// own. Comparison is case-insensitive.
func (c *Config) IsLocalDomain(domain string) bool {
	for _, local := range c.Server.LocalDomains {
		if strings.EqualFold(local, domain) {
			return true
		}
	}
	return false
}

// DeliveryConfig converts the file representation into the delivery
// engine's configuration.
func (c *Config) DeliveryConfig() *delivery.Config {
	dc := delivery.DefaultConfig()
	dc.Hostname = c.Server.Hostname
	dc.Port = c.Delivery.Port
	dc.ConnectTimeout = time.Duration(c.Delivery.ConnectTimeoutMS) * time.Millisecond
	dc.ReadTimeout = time.Duration(c.Delivery.ReadTimeoutMS) * time.Millisecond
	dc.DNSTimeout = time.Duration(c.Delivery.DNSTimeoutMS) * time.Millisecond
	dc.DNSRetries = c.Delivery.DNSRetries
	dc.DNSCacheSize = c.Delivery.DNSCacheSize
	dc.DNSCacheTTL = time.Duration(c.Delivery.DNSCacheTTLSec) * time.Second
	dc.LocalDomains = c.Server.LocalDomains
	return dc
}
