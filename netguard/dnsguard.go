package netguard

import (
	"sync"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// DNSGuard pins the system resolvers to the VPN-provided servers while
// the tunnel is up, preventing queries from leaking to the ISP. The
// pre-tunnel resolver state is snapshotted once and restored verbatim.
type DNSGuard struct {
	strategy Strategy

	mu       sync.Mutex
	applied  bool
	snapshot []byte
}

func NewDNSGuard(strategy Strategy) *DNSGuard {
	return &DNSGuard{strategy: strategy}
}

// Apply replaces the system resolvers with vpnServers followed by
// backupServers, in that order. The first call snapshots the current
// state; later calls rewrite the servers but keep the original
// snapshot so Restore always returns to the pre-tunnel state. If the
// rewrite fails the snapshot is restored before the error is returned.
func (g *DNSGuard) Apply(vpnServers, backupServers []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(vpnServers) == 0 {
		return &common.DNSError{Op: "apply", Err: common.ErrInvalidConfig}
	}

	if !g.applied {
		snapshot, err := g.strategy.CaptureDNS()
		if err != nil {
			return &common.DNSError{Op: "capture", Err: err}
		}
		g.snapshot = snapshot
	}

	servers := make([]string, 0, len(vpnServers)+len(backupServers))
	servers = append(servers, vpnServers...)
	servers = append(servers, backupServers...)

	if err := g.strategy.WriteDNS(servers); err != nil {
		if rerr := g.restoreLocked(); rerr != nil {
			common.LogError("DNS rollback failed: %v", rerr)
		}
		return &common.DNSError{Op: "write", Err: err}
	}

	common.LogInfo("DNS pinned to %v", servers)
	g.applied = true
	return nil
}

// Restore puts back the resolver state captured by the first Apply.
// Safe to call when nothing was applied.
func (g *DNSGuard) Restore() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.restoreLocked()
}

func (g *DNSGuard) restoreLocked() error {
	if g.snapshot == nil {
		g.applied = false
		return nil
	}

	if err := g.strategy.RestoreDNS(g.snapshot); err != nil {
		return &common.DNSError{Op: "restore", Err: err}
	}

	common.LogInfo("DNS configuration restored")
	g.snapshot = nil
	g.applied = false
	return nil
}

// Applied reports whether guard servers are currently in place.
func (g *DNSGuard) Applied() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applied
}
