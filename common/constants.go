// Package common provides shared constants, types, and utilities
// used across the VPN orchestrator.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.secondbrain.vpnctl"
	// AppName is the display name of the application.
	AppName = "vpnctl"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "vpnctl"
)

// File names used by the application.
const (
	ProfilesFileName    = "profiles.yaml"
	ServersFileName     = "servers.yaml"
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	LogFileName         = "vpnctl.log"
)

// Default timeouts and intervals.
const (
	// ConnectTimeout is the maximum time to wait for the tunnel
	// interface to appear after spawning the VPN client.
	ConnectTimeout = 30 * time.Second
	// TunnelPollInterval is how often to check for the tunnel interface
	// while a connection is being established.
	TunnelPollInterval = 1 * time.Second
	// MonitorInterval is how often the supervisor queries connection
	// statistics over the control channel.
	MonitorInterval = 5 * time.Second
	// TerminateGrace is how long to wait after SIGTERM before the VPN
	// client process is force killed.
	TerminateGrace = 5 * time.Second
	// ManagementTimeout is the timeout for control channel commands.
	ManagementTimeout = 5 * time.Second
	// ManagementDialWindow bounds the retry window for reaching the
	// control channel right after the VPN client starts. The management
	// socket comes up asynchronously with the process.
	ManagementDialWindow = 10 * time.Second
)

// Server probing defaults.
const (
	// ProbeAttempts is the number of TCP connect attempts per probe.
	ProbeAttempts = 5
	// ProbeSpacing is the pause between consecutive probe attempts.
	ProbeSpacing = 200 * time.Millisecond
	// ProbeDialTimeout bounds a single probe connect attempt.
	ProbeDialTimeout = 2 * time.Second
	// QualityHistorySize is how many samples the quality monitor keeps.
	QualityHistorySize = 10
	// DegradedStreak is how many consecutive bad samples trigger a
	// server switch recommendation.
	DegradedStreak = 3
)

// Split tunnel modes.
const (
	SplitTunnelModeInclude = "include"
	SplitTunnelModeExclude = "exclude"
)
