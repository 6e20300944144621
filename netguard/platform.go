// Package netguard provides the host-side network protections around a
// VPN tunnel: a firewall kill switch, DNS pinning, and split tunnel
// routes. Platform-specific behavior is isolated behind the Strategy
// interface; all external commands run through a small runner so tests
// can substitute fakes.
package netguard

import (
	"bytes"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// cmdRunner abstracts exec.Command for testability.
type cmdRunner interface {
	// Run executes a command and returns its combined output.
	Run(name string, args ...string) ([]byte, error)
	// RunInput executes a command with the given stdin.
	RunInput(input []byte, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

func (execRunner) RunInput(input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(input)
	return cmd.CombinedOutput()
}

// Strategy isolates the platform-specific pieces of network
// protection. The tunnel interface name is always passed in by the
// caller; strategies never detect it themselves.
type Strategy interface {
	// CaptureFirewall snapshots the current ruleset for later restore.
	CaptureFirewall() ([]byte, error)
	// EnableFirewall installs default-deny egress rules allowing
	// loopback, the tunnel interface, and the given hosts.
	EnableFirewall(tunnelIface string, allowedHosts []string) error
	// RestoreFirewall reinstates a captured ruleset.
	RestoreFirewall(snapshot []byte) error

	// CaptureDNS snapshots the resolver state.
	CaptureDNS() ([]byte, error)
	// WriteDNS replaces the resolver servers, first to last.
	WriteDNS(servers []string) error
	// RestoreDNS reinstates a resolver snapshot exactly as captured.
	RestoreDNS(snapshot []byte) error

	// AddRoute installs a host or network route. Gateway and interface
	// may each be empty when the other is enough to place the route.
	AddRoute(dest, gateway, iface string) error
	// DeleteRoute removes a route.
	DeleteRoute(dest string) error

	// TunnelPresent reports whether the named interface exists.
	TunnelPresent(iface string) bool
	// DefaultRoute discovers the non-VPN default gateway and interface.
	DefaultRoute() (gateway, iface string, err error)
}

// NewStrategy selects the strategy for the current platform. Called
// once at startup; components receive the result, never the GOOS.
func NewStrategy() (Strategy, error) {
	switch runtime.GOOS {
	case "linux":
		return newLinuxStrategy(nil), nil
	case "darwin":
		return newDarwinStrategy(nil), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// normalizeRoute normalizes a route destination.
// Converts "192.168.1.1/24" to "192.168.1.0/24" (correct network address)
// and "10.0.0.5" to "10.0.0.5/32" (individual host).
// Returns "" for unparseable input.
func normalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		return ""
	}

	if strings.Contains(route, "/") {
		_, ipNet, err := net.ParseCIDR(route)
		if err != nil {
			common.LogWarn("Invalid route %q: %v", route, err)
			return ""
		}
		ones, _ := ipNet.Mask.Size()
		return fmt.Sprintf("%s/%d", ipNet.IP.String(), ones)
	}

	if ip := net.ParseIP(route); ip != nil {
		return route + "/32"
	}

	common.LogWarn("Invalid route %q", route)
	return ""
}
