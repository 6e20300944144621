// Package config provides configuration management for the VPN orchestrator.
// It handles loading, saving, and managing application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// VPNBinary is the VPN client executable to spawn.
	VPNBinary string `yaml:"vpn_binary"`
	// AutoReconnect automatically reconnects when the connection is lost.
	AutoReconnect bool `yaml:"auto_reconnect"`
	// Management configures the VPN client's control channel endpoint.
	Management ManagementConfig `yaml:"management"`
	// Probe configures server latency probing.
	Probe ProbeConfig `yaml:"probe"`
	// Resilience configures the circuit breaker and bulkhead.
	Resilience ResilienceConfig `yaml:"resilience"`
	// LeakProtect configures the firewall kill switch.
	LeakProtect LeakProtectConfig `yaml:"leak_protect"`
}

// ManagementConfig holds control channel settings. The VPN client is
// told to listen here via --management; the supervisor dials it.
type ManagementConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// DialTimeout bounds one dial attempt against the management socket.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ProbeConfig holds server probing settings.
type ProbeConfig struct {
	// Attempts is the number of TCP connects per probe.
	Attempts int `yaml:"attempts"`
	// Spacing is the pause between attempts.
	Spacing time.Duration `yaml:"spacing"`
	// DialTimeout bounds a single connect attempt.
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// MaxPingMs and MaxLossPercent are the selection thresholds.
	MaxPingMs      float64 `yaml:"max_ping_ms"`
	MaxLossPercent float64 `yaml:"max_loss_percent"`
	// Concurrency bounds how many servers are probed at once.
	Concurrency int `yaml:"concurrency"`
}

// ResilienceConfig holds circuit breaker and bulkhead settings.
type ResilienceConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	MaxConcurrent    int           `yaml:"max_concurrent"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout"`
}

// LeakProtectConfig holds kill switch settings.
type LeakProtectConfig struct {
	// Enabled engages the kill switch around connections.
	Enabled bool `yaml:"enabled"`
	// AllowedHosts are endpoints reachable outside the tunnel,
	// typically the VPN server addresses.
	AllowedHosts []string `yaml:"allowed_hosts,omitempty"`
	// VPNDNSServers are pushed into the resolver while connected.
	VPNDNSServers []string `yaml:"vpn_dns_servers,omitempty"`
	// BackupDNSServers follow the VPN servers in resolver order.
	BackupDNSServers []string `yaml:"backup_dns_servers,omitempty"`
}

// DefaultConfig returns the default configuration.
// These are sensible defaults for most users.
func DefaultConfig() *Config {
	return &Config{
		VPNBinary:     "openvpn",
		AutoReconnect: true,
		Management: ManagementConfig{
			Host:        "127.0.0.1",
			Port:        7505,
			DialTimeout: common.ManagementTimeout,
		},
		Probe: ProbeConfig{
			Attempts:       common.ProbeAttempts,
			Spacing:        common.ProbeSpacing,
			DialTimeout:    common.ProbeDialTimeout,
			MaxPingMs:      300,
			MaxLossPercent: 10,
			Concurrency:    4,
		},
		Resilience: ResilienceConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			MaxConcurrent:    10,
			AcquireTimeout:   2 * time.Second,
		},
		LeakProtect: LeakProtectConfig{
			Enabled: false,
		},
	}
}

// Load loads the configuration from the config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	// If it doesn't exist, return default configuration
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Save(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	var config Config
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	// Validate values
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate verifies that configuration values are valid
func (c *Config) validate() error {
	def := DefaultConfig()

	if c.VPNBinary == "" {
		c.VPNBinary = def.VPNBinary
	}
	if c.Management.Host == "" {
		c.Management.Host = def.Management.Host
	}
	if c.Management.Port <= 0 || c.Management.Port > 65535 {
		c.Management.Port = def.Management.Port
	}
	if c.Management.DialTimeout <= 0 {
		c.Management.DialTimeout = def.Management.DialTimeout
	}
	if c.Probe.Attempts <= 0 {
		c.Probe.Attempts = def.Probe.Attempts
	}
	if c.Probe.Spacing <= 0 {
		c.Probe.Spacing = def.Probe.Spacing
	}
	if c.Probe.DialTimeout <= 0 {
		c.Probe.DialTimeout = def.Probe.DialTimeout
	}
	if c.Probe.MaxPingMs <= 0 {
		c.Probe.MaxPingMs = def.Probe.MaxPingMs
	}
	if c.Probe.MaxLossPercent < 0 || c.Probe.MaxLossPercent > 100 {
		c.Probe.MaxLossPercent = def.Probe.MaxLossPercent
	}
	if c.Probe.Concurrency <= 0 {
		c.Probe.Concurrency = def.Probe.Concurrency
	}
	if c.Resilience.FailureThreshold <= 0 {
		c.Resilience.FailureThreshold = def.Resilience.FailureThreshold
	}
	if c.Resilience.RecoveryTimeout <= 0 {
		c.Resilience.RecoveryTimeout = def.Resilience.RecoveryTimeout
	}
	if c.Resilience.MaxConcurrent <= 0 {
		c.Resilience.MaxConcurrent = def.Resilience.MaxConcurrent
	}
	if c.Resilience.AcquireTimeout <= 0 {
		c.Resilience.AcquireTimeout = def.Resilience.AcquireTimeout
	}
	return nil
}

// Save saves the configuration to the file
func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	return nil
}

func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", common.ConfigDirName, common.ConfigFileName), nil
}
