package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := c.Registry.validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if err := c.Activity.validate(); err != nil {
		return fmt.Errorf("activity: %w", err)
	}
	if err := c.Outbox.validate(); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}

func (r *RegistryConfig) validate() error {
	switch r.Driver {
	case "sqlite":
	case "postgres":
		if r.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when driver is postgres")
		}
		if r.Postgres.MaxConns <= 0 {
			return fmt.Errorf("postgres.max_conns must be > 0 (got %d)", r.Postgres.MaxConns)
		}
	default:
		return fmt.Errorf("driver must be sqlite or postgres (got %q)", r.Driver)
	}
	if r.Staleness <= 0 {
		return fmt.Errorf("staleness must be > 0 (got %s)", r.Staleness)
	}
	if r.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be > 0 (got %s)", r.SweepInterval)
	}
	return nil
}

func (a *ActivityConfig) validate() error {
	if a.BatchWindow <= 0 {
		return fmt.Errorf("batch_window must be > 0 (got %s)", a.BatchWindow)
	}
	if a.NameThreshold < 0 {
		return fmt.Errorf("name_threshold must be >= 0 (got %d)", a.NameThreshold)
	}
	if a.TeardownTimeout <= 0 {
		return fmt.Errorf("teardown_timeout must be > 0 (got %s)", a.TeardownTimeout)
	}
	if a.SinkRetryDelay < 0 {
		return fmt.Errorf("sink_retry_delay must be >= 0 (got %s)", a.SinkRetryDelay)
	}
	if a.DefaultLocale == "" {
		return fmt.Errorf("default_locale is required")
	}
	return nil
}

func (o *OutboxConfig) validate() error {
	if o.Interval <= 0 {
		return fmt.Errorf("interval must be > 0 (got %s)", o.Interval)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", o.BatchSize)
	}
	if o.MaxRetry <= 0 {
		return fmt.Errorf("max_retry must be > 0 (got %d)", o.MaxRetry)
	}
	if o.WebhookURL != "" {
		u, err := url.Parse(o.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook_url must be an absolute http(s) url (got %q)", o.WebhookURL)
		}
	}
	return nil
}
