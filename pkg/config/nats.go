package config

import (
	"fmt"
	"strings"
	"time"
)

// NATSConfig configures the optional JetStream event publisher.
type NATSConfig struct {
	Enabled        bool                 `koanf:"enabled"`
	Url            string               `koanf:"url"`
	Timeout        time.Duration        `koanf:"timeout"`
	Stream         string               `koanf:"stream"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

// String returns a string representation of the NATS configuration.
func (c *NATSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	if !c.Enabled {
		return b.String()
	}
	b.WriteString(fmt.Sprintf("  url: %s\n", c.Url))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  stream: %s\n", c.Stream))
	b.WriteString(c.CircuitBreaker.String())
	return b.String()
}

func (c *NATSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Url == "" {
		return fmt.Errorf("NATS URL is not configured")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("nats dial timeout is not configured")
	}
	if c.Stream == "" {
		return fmt.Errorf("nats stream is not configured")
	}
	return c.CircuitBreaker.Validate()
}
