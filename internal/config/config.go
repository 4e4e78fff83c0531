package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the N4 core.
type Config struct {
	Listen      ListenConfig      `yaml:"listen"      mapstructure:"listen"`
	Datapath    DatapathConfig    `yaml:"datapath"     mapstructure:"datapath"`
	Session     SessionConfig     `yaml:"session"      mapstructure:"session"`
	Transaction TransactionConfig `yaml:"transaction"  mapstructure:"transaction"`
	Metrics     MetricsConfig     `yaml:"metrics"      mapstructure:"metrics"`
	Admin       AdminConfig       `yaml:"admin"        mapstructure:"admin"`
	Logging     LoggingConfig     `yaml:"logging"      mapstructure:"logging"`
}

type ListenConfig struct {
	Address string `yaml:"address" mapstructure:"address"`
	Port    int    `yaml:"port"    mapstructure:"port"`
}

type DatapathConfig struct {
	Mode      string `yaml:"mode"       mapstructure:"mode"` // simulated|gtp5g
	Interface string `yaml:"interface"  mapstructure:"interface"`
}

type SessionConfig struct {
	SEIDStart    uint64 `yaml:"seid_start"    mapstructure:"seid_start"`
	SEIDStrategy string `yaml:"seid_strategy" mapstructure:"seid_strategy"`
}

type TransactionConfig struct {
	DedupTTLMs int `yaml:"dedup_ttl_ms" mapstructure:"dedup_ttl_ms"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Port    int  `yaml:"port"    mapstructure:"port"`
}

type AdminConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Port    int  `yaml:"port"    mapstructure:"port"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"   mapstructure:"level"`
	File    string `yaml:"file"    mapstructure:"file"`
	Console bool   `yaml:"console" mapstructure:"console"`
}

// SetDefaults configures default values for the configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen.address", "0.0.0.0")
	v.SetDefault("listen.port", 8805)
	v.SetDefault("datapath.mode", "simulated")
	v.SetDefault("datapath.interface", "gtp5g0")
	v.SetDefault("session.seid_start", 1)
	v.SetDefault("session.seid_strategy", "sequential")
	v.SetDefault("transaction.dedup_ttl_ms", 30000)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9100)
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
}

// Load reads configuration from a YAML file and returns a Config.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithViper reads configuration using an existing viper instance (for CLI flag binding).
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Summary returns a human-readable summary of the configuration.
func (c *Config) Summary() string {
	var sb strings.Builder
	sb.WriteString("Configuration:\n")
	sb.WriteString(fmt.Sprintf("  Listen:       %s:%d\n", c.Listen.Address, c.Listen.Port))
	sb.WriteString(fmt.Sprintf("  Datapath:     mode=%s interface=%s\n", c.Datapath.Mode, c.Datapath.Interface))
	sb.WriteString(fmt.Sprintf("  SEID:         start=%d strategy=%s\n", c.Session.SEIDStart, c.Session.SEIDStrategy))
	sb.WriteString(fmt.Sprintf("  Dedup TTL:    %dms\n", c.Transaction.DedupTTLMs))
	sb.WriteString(fmt.Sprintf("  Metrics:      enabled=%v port=%d\n", c.Metrics.Enabled, c.Metrics.Port))
	sb.WriteString(fmt.Sprintf("  Admin:        enabled=%v port=%d\n", c.Admin.Enabled, c.Admin.Port))
	return sb.String()
}
