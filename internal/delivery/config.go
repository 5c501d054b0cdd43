package delivery

import "time"

// Config holds configuration for the delivery engine.
type Config struct {
	// Server identification, used in EHLO.
	Hostname string

	// Transport settings.
	Port           int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// DNS settings.
	DNSCacheSize int
	DNSCacheTTL  time.Duration
	DNSTimeout   time.Duration
	DNSRetries   int

	// Circuit breaker settings for the dial path.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// Routing settings.
	LocalDomains []string
}

// DefaultConfig returns sensible defaults. The 2500ms connect timeout is
// the bounded-connect reference value; everything else follows common
// outbound-MTA practice.
func DefaultConfig() *Config {
	return &Config{
		Hostname:       "localhost",
		Port:           25,
		ConnectTimeout: 2500 * time.Millisecond,
		ReadTimeout:    30 * time.Second,

		DNSCacheSize: 1000,
		DNSCacheTTL:  1 * time.Hour,
		DNSTimeout:   10 * time.Second,
		DNSRetries:   3,

		BreakerFailures: 3,
		BreakerCooldown: 30 * time.Second,
	}
}
