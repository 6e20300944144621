// Package vpn supervises VPN client processes and their tunnels.
//
// This package implements the core connection functionality:
//
//   - Profile management: creating, updating, and deleting connection profiles
//   - Process supervision: spawning the VPN client and driving its lifecycle
//   - Control channel: querying live statistics over the management socket
//   - Split tunneling: per-profile route lists applied while the tunnel is up
//
// # Architecture
//
// The package is organized around three main types:
//
//   - Supervisor: drives one VPN client process through connect, monitor, and teardown
//   - ProfileManager: handles persistence and management of connection profiles
//   - ControlChannelClient: speaks the management protocol to the running client
//
// # Connection Flow
//
// A typical connection flow:
//
//  1. Caller invokes Supervisor.Connect() with a profile ID
//  2. Supervisor materializes credentials and spawns the VPN client
//  3. Supervisor polls until the tunnel interface appears
//  4. Supervisor dials the management socket and attaches the control channel
//  5. A monitor goroutine keeps statistics fresh and notices client death
//
// Any failure along the way rolls back whatever was already brought up, so
// a failed connect never leaks a process, a control channel, or an auth file.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The Supervisor
// serializes state transitions behind an internal mutex.
package vpn
