// Package common provides shared constants, types, and utilities
// used across the VPN orchestrator.
package common

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for VPN operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection errors.
	ErrAlreadyConnected = errors.New("connection already active")
	ErrNotConnected     = errors.New("no active connection")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrCancelled        = errors.New("operation cancelled")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidConfig   = errors.New("invalid configuration file")
	ErrDuplicateName   = errors.New("profile name already exists")
	ErrInvalidProfile  = errors.New("invalid profile data")

	// Server registry errors.
	ErrServerNotFound  = errors.New("server not found")
	ErrNoViableServer  = errors.New("no server within quality thresholds")
	ErrDuplicateServer = errors.New("server already registered")
	ErrServerUnprobed  = errors.New("server has not been probed")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")
	ErrEncryption          = errors.New("encryption error")
	ErrDecryption          = errors.New("decryption error")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")

	// Permission errors.
	ErrPermissionDenied = errors.New("permission denied")
	ErrRootRequired     = errors.New("root privileges required")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}

// ProcessStartError reports that the VPN client process exited before the
// tunnel came up. Stderr carries whatever the process wrote before dying.
type ProcessStartError struct {
	Binary string
	Stderr string
	Err    error
}

func (e *ProcessStartError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited during startup: %s", e.Binary, e.Stderr)
	}
	return fmt.Sprintf("%s exited during startup", e.Binary)
}

func (e *ProcessStartError) Unwrap() error { return e.Err }

// ControlChannelError reports a failure talking to the VPN client's
// management interface.
type ControlChannelError struct {
	Op  string
	Err error
}

func (e *ControlChannelError) Error() string {
	return fmt.Sprintf("control channel %s: %v", e.Op, e.Err)
}

func (e *ControlChannelError) Unwrap() error { return e.Err }

// TunnelTimeoutError reports that the tunnel interface did not appear
// within the connect timeout.
type TunnelTimeoutError struct {
	Iface   string
	Timeout time.Duration
}

func (e *TunnelTimeoutError) Error() string {
	return fmt.Sprintf("tunnel interface %s did not appear within %s", e.Iface, e.Timeout)
}

func (e *TunnelTimeoutError) Unwrap() error { return ErrTimeout }

// FirewallError reports a leak protection failure.
type FirewallError struct {
	Op  string
	Err error
}

func (e *FirewallError) Error() string {
	return fmt.Sprintf("firewall %s: %v", e.Op, e.Err)
}

func (e *FirewallError) Unwrap() error { return e.Err }

// DNSError reports a resolver configuration failure.
type DNSError struct {
	Op  string
	Err error
}

func (e *DNSError) Error() string {
	return fmt.Sprintf("dns %s: %v", e.Op, e.Err)
}

func (e *DNSError) Unwrap() error { return e.Err }

// RouteError reports a routing table operation failure.
type RouteError struct {
	Dest string
	Op   string
	Err  error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("route %s %s: %v", e.Op, e.Dest, e.Err)
}

func (e *RouteError) Unwrap() error { return e.Err }

// DuplicateRouteError reports an AddRoute for a destination that is
// already tracked.
type DuplicateRouteError struct {
	Dest string
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("route already active for %s", e.Dest)
}

// CircuitOpenError reports a call rejected by an open circuit breaker.
type CircuitOpenError struct {
	Name  string
	Until time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %s open until %s", e.Name, e.Until.Format(time.RFC3339))
}

// BulkheadTimeoutError reports that no bulkhead slot became available
// within the configured wait.
type BulkheadTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *BulkheadTimeoutError) Error() string {
	return fmt.Sprintf("bulkhead %s: no slot within %s", e.Name, e.Timeout)
}

func (e *BulkheadTimeoutError) Unwrap() error { return ErrTimeout }
