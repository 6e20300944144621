// Package common provides shared constants, types, utilities, and interfaces
// used throughout the VPN orchestrator.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Application-wide constants like timeouts, file names, and probe defaults
//   - Errors: Sentinel errors and typed error kinds for consistent handling across packages
//   - Interfaces: Abstractions for tunnels, credential storage, and logging
//   - Logger: Structured logging with multiple output destinations
//   - Utils: Common utility functions for file operations and string manipulation
//
// # Usage
//
// Import the package to access shared functionality:
//
//	import "github.com/Njanja2025/SecondBrainApp-sub001/common"
//
//	// Use constants
//	timeout := common.ConnectTimeout
//
//	// Use logger
//	common.LogInfo("Starting connection to %s", profileName)
//
//	// Check errors
//	if errors.Is(err, common.ErrProfileNotFound) {
//	    // Handle missing profile
//	}
//
//	// Inspect typed error kinds
//	var pse *common.ProcessStartError
//	if errors.As(err, &pse) {
//	    // pse.Stderr holds the client's startup output
//	}
//
// # Design Principles
//
// This package follows several design principles:
//
//   - Single Responsibility: Each file handles one concern
//   - Interface Segregation: Small, focused interfaces
//   - Open/Closed: Extensible through interfaces, not modification
//   - Dependency Inversion: High-level modules depend on abstractions
package common
