package netguard

import (
	"sync"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// KillSwitch blocks all egress except loopback, the tunnel interface,
// and an allow-list of hosts. Enable snapshots the live ruleset first
// so Disable can put the system back exactly as it was found.
type KillSwitch struct {
	strategy Strategy

	mu       sync.Mutex
	active   bool
	snapshot []byte
}

func NewKillSwitch(strategy Strategy) *KillSwitch {
	return &KillSwitch{strategy: strategy}
}

// Enable engages the default-deny ruleset. A second call while active
// is a no-op. If engaging fails partway through, the captured ruleset
// is restored before the error is returned, so a failed enable never
// leaves traffic blocked.
func (k *KillSwitch) Enable(tunnelIface string, allowedHosts []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.active {
		return nil
	}

	snapshot, err := k.strategy.CaptureFirewall()
	if err != nil {
		return &common.FirewallError{Op: "capture", Err: err}
	}
	k.snapshot = snapshot

	if err := k.strategy.EnableFirewall(tunnelIface, allowedHosts); err != nil {
		if rerr := k.disableLocked(); rerr != nil {
			common.LogError("Kill switch rollback failed: %v", rerr)
		}
		return &common.FirewallError{Op: "enable", Err: err}
	}

	common.LogInfo("Kill switch enabled on %s (%d allowed hosts)", tunnelIface, len(allowedHosts))
	k.active = true
	return nil
}

// Disable restores the ruleset captured by Enable. Safe to call when
// already disabled.
func (k *KillSwitch) Disable() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.disableLocked()
}

func (k *KillSwitch) disableLocked() error {
	if k.snapshot == nil {
		k.active = false
		return nil
	}

	if err := k.strategy.RestoreFirewall(k.snapshot); err != nil {
		return &common.FirewallError{Op: "restore", Err: err}
	}

	common.LogInfo("Kill switch disabled, previous firewall state restored")
	k.snapshot = nil
	k.active = false
	return nil
}

// Active reports whether the kill switch is currently engaged.
func (k *KillSwitch) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}
