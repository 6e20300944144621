// Package common provides shared constants, types, and utilities
// used across the VPN orchestrator.
package common

import (
	"context"
	"time"
)

// Tunnel represents the interface for a supervised VPN tunnel.
// This abstraction allows for different VPN client implementations.
type Tunnel interface {
	// Connect establishes the tunnel for the given profile ID.
	Connect(ctx context.Context, profileID string) error
	// Disconnect tears the tunnel down. Safe to call when not connected.
	Disconnect() error
	// Status returns the current connection status.
	Status() ConnectionStatus
	// IsConnected reports whether the tunnel is fully established.
	IsConnected() bool
}

// ConnectionStatus represents the state of a VPN connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusDisconnecting
	StatusFailed
)

// String returns a human-readable status string.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ConnectionStats holds the counters reported by the VPN client over
// its control channel. ConnectedSince is the zero value until the
// client reports an establishment time.
type ConnectionStats struct {
	BytesReceived  int64
	BytesSent      int64
	ConnectedSince time.Time
}

// CredentialStore defines the interface for credential storage.
// Implementations may use system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves credentials for a profile.
	Store(profileID, password string) error
	// Get retrieves credentials for a profile.
	Get(profileID string) (string, error)
	// Delete removes credentials for a profile.
	Delete(profileID string) error
	// Clear removes all stored credentials.
	Clear() error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
