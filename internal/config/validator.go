package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if net.ParseIP(c.Listen.Address) == nil {
		errs = append(errs, fmt.Sprintf("listen.address must be a valid IP address, got %q", c.Listen.Address))
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Sprintf("listen.port must be between 1 and 65535, got %d", c.Listen.Port))
	}

	if c.Datapath.Mode != "simulated" && c.Datapath.Mode != "gtp5g" {
		errs = append(errs, fmt.Sprintf("datapath.mode must be 'simulated' or 'gtp5g', got %q", c.Datapath.Mode))
	}
	if c.Datapath.Interface == "" {
		errs = append(errs, "datapath.interface must be specified")
	}

	if c.Session.SEIDStrategy != "sequential" && c.Session.SEIDStrategy != "random" {
		errs = append(errs, fmt.Sprintf("session.seid_strategy must be 'sequential' or 'random', got %q", c.Session.SEIDStrategy))
	}

	if c.Transaction.DedupTTLMs <= 0 {
		errs = append(errs, "transaction.dedup_ttl_ms must be > 0")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
	}
	if c.Admin.Enabled && (c.Admin.Port <= 0 || c.Admin.Port > 65535) {
		errs = append(errs, fmt.Sprintf("admin.port must be between 1 and 65535, got %d", c.Admin.Port))
	}
	if c.Metrics.Enabled && c.Admin.Enabled && c.Metrics.Port == c.Admin.Port {
		errs = append(errs, "metrics.port and admin.port must differ")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
