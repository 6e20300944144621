// Package vpn provides VPN connection supervision functionality.
// This file contains the Profile and ProfileManager types for managing
// VPN connection profiles.
package vpn

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrProfileNotFound = common.ErrProfileNotFound
	ErrInvalidConfig   = common.ErrInvalidConfig
	ErrDuplicateName   = common.ErrDuplicateName
)

// Profile represents a VPN connection profile.
// It contains all the necessary information to establish a VPN connection,
// including the path to the client configuration file and user credentials.
type Profile struct {
	// ID is a unique identifier for the profile (UUID format).
	ID string `json:"id" yaml:"id"`
	// Name is a human-readable name for the profile.
	Name string `json:"name" yaml:"name"`
	// ConfigPath is the path to the VPN client configuration file.
	ConfigPath string `json:"config_path" yaml:"config_path"`
	// TunDevice is the tunnel interface the client is expected to
	// bring up. Defaults to tun0.
	TunDevice string `json:"tun_device" yaml:"tun_device"`
	// Username is the optional username for authentication.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	// AutoConnect indicates whether to connect automatically on startup.
	AutoConnect bool `json:"auto_connect" yaml:"auto_connect"`
	// SavePassword indicates whether to save the password in the keyring.
	SavePassword bool `json:"save_password" yaml:"save_password"`
	// Created is the timestamp when the profile was created.
	Created time.Time `json:"created" yaml:"created"`
	// LastUsed is the timestamp when the profile was last used.
	LastUsed time.Time `json:"last_used,omitempty" yaml:"last_used,omitempty"`

	// DNSServers overrides the configured resolver servers for this
	// profile while its tunnel is up.
	DNSServers []string `json:"dns_servers,omitempty" yaml:"dns_servers,omitempty"`

	// Split Tunneling Configuration
	// SplitTunnelEnabled enables split tunneling for this profile.
	SplitTunnelEnabled bool `json:"split_tunnel_enabled" yaml:"split_tunnel_enabled"`
	// SplitTunnelMode defines the split tunnel behavior:
	// "include" - Only listed IPs/networks go through VPN
	// "exclude" - All traffic goes through VPN except listed IPs/networks
	SplitTunnelMode string `json:"split_tunnel_mode,omitempty" yaml:"split_tunnel_mode,omitempty"`
	// SplitTunnelRoutes contains the list of IP addresses or CIDR networks
	// Example: ["192.168.1.0/24", "10.0.0.0/8", "8.8.8.8"]
	SplitTunnelRoutes []string `json:"split_tunnel_routes,omitempty" yaml:"split_tunnel_routes,omitempty"`
}

// ProfileManager manages VPN profiles.
// It handles loading, saving, and manipulating profiles stored on disk.
// Safe for concurrent use.
type ProfileManager struct {
	mu         sync.RWMutex
	profiles   []*Profile
	configDir  string
	configFile string
}

// NewProfileManager creates a new ProfileManager instance.
// It initializes the configuration directory and loads existing profiles.
func NewProfileManager() (*ProfileManager, error) {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return NewProfileManagerAt(configDir)
}

// NewProfileManagerAt creates a ProfileManager rooted at the given
// directory. Used directly by tests.
func NewProfileManagerAt(configDir string) (*ProfileManager, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	pm := &ProfileManager{
		profiles:   make([]*Profile, 0),
		configDir:  configDir,
		configFile: filepath.Join(configDir, common.ProfilesFileName),
	}

	// Load existing profiles
	if err := pm.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	return pm, nil
}

// Load loads profiles from the configuration file.
// Returns nil if the file doesn't exist (no profiles yet).
func (pm *ProfileManager) Load() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	data, err := os.ReadFile(pm.configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read profiles file: %w", err)
	}

	if err := yaml.Unmarshal(data, &pm.profiles); err != nil {
		return fmt.Errorf("failed to parse profiles file: %w", err)
	}

	return nil
}

// save persists profiles to the configuration file. Callers hold the
// lock.
func (pm *ProfileManager) save() error {
	data, err := yaml.Marshal(&pm.profiles)
	if err != nil {
		return fmt.Errorf("failed to serialize profiles: %w", err)
	}

	if err := os.WriteFile(pm.configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}

	return nil
}

// Save persists profiles to the configuration file.
func (pm *ProfileManager) Save() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.save()
}

// Add adds a new profile to the manager.
// It validates the configuration file, generates a unique ID,
// and copies the config file to the application's directory.
func (pm *ProfileManager) Add(profile *Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	// Validate the configuration file
	if err := validateConfigFile(profile.ConfigPath); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.profiles {
		if p.Name == profile.Name {
			return ErrDuplicateName
		}
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.TunDevice == "" {
		profile.TunDevice = "tun0"
	}
	profile.Created = time.Now()

	// Create configs directory
	configsDir := filepath.Join(pm.configDir, "configs")
	if err := os.MkdirAll(configsDir, 0700); err != nil {
		return fmt.Errorf("failed to create configs directory: %w", err)
	}

	// Copy configuration file to app directory
	destPath := filepath.Join(configsDir, profile.ID+".ovpn")
	if err := copyFile(profile.ConfigPath, destPath); err != nil {
		return fmt.Errorf("failed to copy config file: %w", err)
	}

	profile.ConfigPath = destPath
	pm.profiles = append(pm.profiles, profile)

	return pm.save()
}

// Remove removes a profile by ID.
// It also deletes the copied configuration file.
func (pm *ProfileManager) Remove(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for i, profile := range pm.profiles {
		if profile.ID == id {
			if err := os.Remove(profile.ConfigPath); err != nil && !os.IsNotExist(err) {
				common.LogWarn("Could not remove config file %s: %v", profile.ConfigPath, err)
			}

			pm.profiles = append(pm.profiles[:i], pm.profiles[i+1:]...)
			return pm.save()
		}
	}
	return ErrProfileNotFound
}

// Get retrieves a profile by ID.
func (pm *ProfileManager) Get(id string) (*Profile, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, profile := range pm.profiles {
		if profile.ID == id {
			return profile, nil
		}
	}
	return nil, ErrProfileNotFound
}

// GetByName retrieves a profile by name.
func (pm *ProfileManager) GetByName(name string) (*Profile, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, profile := range pm.profiles {
		if profile.Name == name {
			return profile, nil
		}
	}
	return nil, ErrProfileNotFound
}

// List returns all profiles.
func (pm *ProfileManager) List() []*Profile {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]*Profile, len(pm.profiles))
	copy(out, pm.profiles)
	return out
}

// Update updates an existing profile.
func (pm *ProfileManager) Update(profile *Profile) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for i, p := range pm.profiles {
		if p.ID == profile.ID {
			pm.profiles[i] = profile
			return pm.save()
		}
	}
	return ErrProfileNotFound
}

// MarkUsed updates the LastUsed timestamp for a profile.
func (pm *ProfileManager) MarkUsed(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, profile := range pm.profiles {
		if profile.ID == id {
			profile.LastUsed = time.Now()
			return pm.save()
		}
	}
	return ErrProfileNotFound
}

// validateConfigFile checks if the given file is a valid OpenVPN configuration.
func validateConfigFile(path string) error {
	// Check file exists
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	// Check it's a regular file
	if info.IsDir() {
		return ErrInvalidConfig
	}

	// Check file extension
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ovpn" && ext != ".conf" {
		return fmt.Errorf("%w: expected .ovpn or .conf extension", ErrInvalidConfig)
	}

	// Read and validate file content
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	content := string(data)
	// Check for common OpenVPN directives
	requiredDirectives := []string{"remote", "client"}
	hasRequired := false
	for _, directive := range requiredDirectives {
		if strings.Contains(content, directive) {
			hasRequired = true
			break
		}
	}

	if !hasRequired {
		return fmt.Errorf("%w: missing required OpenVPN directives", ErrInvalidConfig)
	}

	return nil
}

// copyFile copies a file from src to dst with secure permissions.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("failed to write destination file: %w", err)
	}
	return nil
}

// AddRoute adds a split tunnel route to the profile if absent.
// Reports whether the route was added.
func (p *Profile) AddRoute(route string) bool {
	if common.StringInSlice(route, p.SplitTunnelRoutes) {
		return false
	}
	p.SplitTunnelRoutes = append(p.SplitTunnelRoutes, route)
	return true
}

// RemoveRoute drops a split tunnel route from the profile.
func (p *Profile) RemoveRoute(route string) {
	p.SplitTunnelRoutes = common.RemoveFromSlice(p.SplitTunnelRoutes, route)
}

// ToJSON converts the profile to a JSON string.
// Useful for debugging and logging.
func (p *Profile) ToJSON() string {
	data, _ := json.MarshalIndent(p, "", "  ")
	return string(data)
}

// Validate checks if the profile has all required fields.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if p.ConfigPath == "" {
		return errors.New("config path is required")
	}
	if p.SplitTunnelEnabled {
		switch p.SplitTunnelMode {
		case common.SplitTunnelModeInclude, common.SplitTunnelModeExclude:
		default:
			return fmt.Errorf("%w: unknown split tunnel mode %q", common.ErrInvalidProfile, p.SplitTunnelMode)
		}
	}
	return nil
}
