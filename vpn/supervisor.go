// Package vpn provides VPN connection supervision functionality.
// This file contains the Supervisor type which drives an external VPN
// client process through its lifecycle: spawn, wait for the tunnel,
// monitor statistics, tear down.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrAlreadyConnected = common.ErrAlreadyConnected
	ErrNotConnected     = common.ErrNotConnected
	ErrConnectionFailed = common.ErrConnectionFailed
)

// SupervisorConfig holds tunnel supervision settings.
type SupervisorConfig struct {
	// Binary is the VPN client executable to spawn.
	Binary string
	// ManagementHost and ManagementPort locate the control channel the
	// client is told to expose.
	ManagementHost string
	ManagementPort int
	// DialTimeout bounds one control channel dial attempt.
	DialTimeout time.Duration
	// ConnectTimeout bounds how long the tunnel interface may take to
	// appear after the client starts.
	ConnectTimeout time.Duration
	// PollInterval is the cadence of tunnel interface checks while
	// connecting.
	PollInterval time.Duration
	// MonitorInterval is the cadence of stats queries while connected.
	MonitorInterval time.Duration
	// TerminateGrace is how long the client gets to exit after SIGTERM
	// before it is killed.
	TerminateGrace time.Duration
	// AutoReconnect re-establishes the tunnel after an unexpected exit.
	AutoReconnect bool
	// MaxReconnectAttempts bounds reconnection tries per failure.
	MaxReconnectAttempts int
	// ReconnectDelay is the pause before each reconnection attempt.
	ReconnectDelay time.Duration
}

// DefaultSupervisorConfig returns supervision defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Binary:               "openvpn",
		ManagementHost:       "127.0.0.1",
		ManagementPort:       7505,
		DialTimeout:          common.ManagementTimeout,
		ConnectTimeout:       common.ConnectTimeout,
		PollInterval:         common.TunnelPollInterval,
		MonitorInterval:      common.MonitorInterval,
		TerminateGrace:       common.TerminateGrace,
		AutoReconnect:        false,
		MaxReconnectAttempts: 3,
		ReconnectDelay:       5 * time.Second,
	}
}

// controlChannel is the slice of the management client the supervisor
// depends on, extracted so tests can substitute a fake.
type controlChannel interface {
	QueryStats() (common.ConnectionStats, error)
	Close() error
}

// Supervisor supervises one VPN client process and its tunnel.
// All state transitions happen under the internal mutex; the public
// methods are safe for concurrent use.
type Supervisor struct {
	cfg      SupervisorConfig
	profiles *ProfileManager
	creds    common.CredentialStore

	launch      func(binary string, args []string) tunnelProcess
	probeIface  func(name string) bool
	dialChannel func(ctx context.Context) (controlChannel, error)

	mu            sync.RWMutex
	status        common.ConnectionStatus
	stats         common.ConnectionStats
	proc          tunnelProcess
	channel       controlChannel
	profileID     string
	credFile      string
	lastErr       error
	stopChan      chan struct{}
	doneChan      chan struct{}
	cancelConnect context.CancelFunc
	connectDone   chan struct{}
}

// NewSupervisor creates a tunnel supervisor. The credential store may
// be nil, in which case connections never carry an auth file.
func NewSupervisor(cfg SupervisorConfig, profiles *ProfileManager, creds common.CredentialStore) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		profiles: profiles,
		creds:    creds,
		status:   common.StatusDisconnected,
	}
	s.launch = newExecProcess
	s.probeIface = ifaceExists
	s.dialChannel = s.dialControl
	return s
}

// Connect establishes the tunnel for the given profile. It spawns the
// VPN client, waits for the tunnel interface, attaches the control
// channel, and starts the stats monitor. Only one connection may be
// active at a time.
func (s *Supervisor) Connect(ctx context.Context, profileID string) error {
	s.mu.Lock()
	switch s.status {
	case common.StatusConnecting, common.StatusConnected, common.StatusDisconnecting:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}

	profile, err := s.profiles.Get(profileID)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.status = common.StatusConnecting
	s.stats = common.ConnectionStats{}
	s.lastErr = nil
	s.profileID = profileID
	s.cancelConnect = cancel
	s.connectDone = make(chan struct{})
	connectDone := s.connectDone
	s.mu.Unlock()

	err = s.establish(connectCtx, profile)

	s.mu.Lock()
	s.cancelConnect = nil
	s.connectDone = nil
	s.mu.Unlock()
	close(connectDone)

	if err == nil {
		_ = s.profiles.MarkUsed(profileID)
	}
	return err
}

// establish performs the connection sequence. On any failure it rolls
// back whatever was already brought up.
func (s *Supervisor) establish(ctx context.Context, profile *Profile) error {
	common.LogInfo("Connecting profile %s (%s)", profile.Name, profile.ConfigPath)

	credFile, err := s.writeAuthFile(profile)
	if err != nil {
		return s.failConnect(nil, "", common.WrapError(err, "failed to write auth file"))
	}

	proc := s.launch(s.cfg.Binary, s.buildArgs(profile, credFile))
	if err := proc.Start(); err != nil {
		return s.failConnect(nil, credFile, &common.ProcessStartError{Binary: s.cfg.Binary, Err: err})
	}
	common.LogInfo("%s started with PID %d", s.cfg.Binary, proc.Pid())

	if err := s.awaitTunnel(ctx, proc, profile.TunDevice); err != nil {
		return s.failConnect(proc, credFile, err)
	}

	channel, err := s.dialChannel(ctx)
	if err != nil {
		return s.failConnect(proc, credFile, err)
	}

	s.mu.Lock()
	s.proc = proc
	s.channel = channel
	s.credFile = credFile
	s.status = common.StatusConnected
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	go s.monitor(proc, channel, stop, done)

	common.LogInfo("Tunnel established on %s", profile.TunDevice)
	return nil
}

// awaitTunnel polls for the tunnel interface until it appears, the
// client dies, or the connect timeout expires.
func (s *Supervisor) awaitTunnel(ctx context.Context, proc tunnelProcess, iface string) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(s.cfg.ConnectTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return common.WrapError(common.ErrCancelled, "connect aborted")
		case <-proc.Done():
			return &common.ProcessStartError{
				Binary: s.cfg.Binary,
				Stderr: proc.Stderr(),
				Err:    proc.ExitErr(),
			}
		case <-deadline.C:
			return &common.TunnelTimeoutError{Iface: iface, Timeout: s.cfg.ConnectTimeout}
		case <-ticker.C:
			if s.probeIface(iface) {
				return nil
			}
		}
	}
}

// failConnect rolls a partial connection back and records the failure.
// A cancelled connect lands in Disconnected, everything else in Failed.
func (s *Supervisor) failConnect(proc tunnelProcess, credFile string, err error) error {
	if proc != nil {
		s.stopProcess(proc)
	}
	removeAuthFile(credFile)

	status := common.StatusFailed
	if errors.Is(err, common.ErrCancelled) {
		status = common.StatusDisconnected
	}

	s.mu.Lock()
	s.status = status
	s.lastErr = err
	s.mu.Unlock()

	common.LogError("Connect failed: %v", err)
	return err
}

// Disconnect tears the tunnel down. Safe to call in any state; calling
// it when already disconnected is a no-op.
func (s *Supervisor) Disconnect() error {
	s.mu.Lock()

	switch s.status {
	case common.StatusDisconnected, common.StatusDisconnecting:
		s.mu.Unlock()
		return nil

	case common.StatusFailed:
		// Resources were already released when the failure was handled.
		s.status = common.StatusDisconnected
		s.mu.Unlock()
		return nil

	case common.StatusConnecting:
		cancel := s.cancelConnect
		wait := s.connectDone
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if wait != nil {
			<-wait
		}

		// The connect may have completed just before the cancel landed.
		s.mu.Lock()
		if s.status == common.StatusConnected {
			s.mu.Unlock()
			return s.Disconnect()
		}
		s.status = common.StatusDisconnected
		s.mu.Unlock()
		return nil
	}

	s.status = common.StatusDisconnecting
	stop := s.stopChan
	done := s.doneChan
	proc := s.proc
	channel := s.channel
	credFile := s.credFile
	s.stopChan = nil
	s.doneChan = nil
	s.proc = nil
	s.channel = nil
	s.credFile = ""
	s.mu.Unlock()

	// Stop the monitor first so nothing races the teardown.
	if stop != nil {
		close(stop)
	}
	if done != nil {
		<-done
	}

	if proc != nil {
		s.stopProcess(proc)
	}
	if channel != nil {
		channel.Close()
	}
	removeAuthFile(credFile)

	s.mu.Lock()
	s.status = common.StatusDisconnected
	s.stats = common.ConnectionStats{}
	s.mu.Unlock()

	common.LogInfo("Disconnected")
	return nil
}

// stopProcess terminates the client, escalating to SIGKILL when it
// ignores SIGTERM past the grace period.
func (s *Supervisor) stopProcess(proc tunnelProcess) {
	select {
	case <-proc.Done():
		return
	default:
	}

	if err := proc.Terminate(); err != nil {
		common.LogWarn("SIGTERM failed: %v", err)
	}

	select {
	case <-proc.Done():
	case <-time.After(s.cfg.TerminateGrace):
		common.LogWarn("%s ignored SIGTERM, killing", s.cfg.Binary)
		proc.Kill()
		<-proc.Done()
	}
}

// monitor keeps connection statistics fresh and notices client death.
// It exits when stop is closed or the process ends.
func (s *Supervisor) monitor(proc tunnelProcess, channel controlChannel, stop, done chan struct{}) {
	defer close(done)

	s.refreshStats(channel)

	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-proc.Done():
			s.handleProcessDeath(proc)
			return
		case <-ticker.C:
			s.refreshStats(channel)
		}
	}
}

// refreshStats queries the control channel and stores the snapshot.
// Query errors are logged, not fatal.
func (s *Supervisor) refreshStats(channel controlChannel) {
	stats, err := channel.QueryStats()
	if err != nil {
		common.LogWarn("Stats query failed: %v", err)
		return
	}

	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// handleProcessDeath releases resources after the client exits on its
// own while connected.
func (s *Supervisor) handleProcessDeath(proc tunnelProcess) {
	s.mu.Lock()
	if s.status != common.StatusConnected {
		s.mu.Unlock()
		return
	}

	err := proc.ExitErr()
	if err == nil {
		err = ErrConnectionFailed
	}

	s.status = common.StatusFailed
	s.lastErr = common.WrapError(err, "vpn client exited")
	channel := s.channel
	credFile := s.credFile
	profileID := s.profileID
	s.channel = nil
	s.proc = nil
	s.credFile = ""
	s.stopChan = nil
	s.doneChan = nil
	s.mu.Unlock()

	if channel != nil {
		channel.Close()
	}
	removeAuthFile(credFile)
	common.LogError("VPN client exited unexpectedly: %v", proc.ExitErr())

	if s.cfg.AutoReconnect {
		go s.reconnect(profileID)
	}
}

// reconnect retries the last profile after an unexpected exit. It
// gives up once the status changes or the attempts are exhausted.
func (s *Supervisor) reconnect(profileID string) {
	for attempt := 1; attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		time.Sleep(s.cfg.ReconnectDelay)

		if s.Status() != common.StatusFailed {
			return
		}

		common.LogInfo("Reconnect attempt %d/%d for profile %s", attempt, s.cfg.MaxReconnectAttempts, profileID)
		err := s.Connect(context.Background(), profileID)
		if err == nil {
			return
		}
		common.LogWarn("Reconnect attempt %d failed: %v", attempt, err)
	}
	common.LogError("Giving up after %d reconnect attempts", s.cfg.MaxReconnectAttempts)
}

// Status returns the current connection status.
func (s *Supervisor) Status() common.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Stats returns a snapshot of the latest connection statistics.
func (s *Supervisor) Stats() common.ConnectionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// LastError returns the error behind a Failed status.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ActiveProfile returns the profile ID of the current or most recent
// connection.
func (s *Supervisor) ActiveProfile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileID
}

// IsConnected reports whether the tunnel is fully established: the
// client process is alive, the control channel is open, and the
// client has reported an establishment time.
func (s *Supervisor) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != common.StatusConnected || s.proc == nil || s.channel == nil {
		return false
	}

	select {
	case <-s.proc.Done():
		return false
	default:
	}

	return !s.stats.ConnectedSince.IsZero()
}

// Uptime returns how long the tunnel has been established.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != common.StatusConnected || s.stats.ConnectedSince.IsZero() {
		return 0
	}
	return time.Since(s.stats.ConnectedSince)
}

// writeAuthFile materializes client credentials for --auth-user-pass.
// Returns an empty path when the profile carries no username or no
// stored password exists.
func (s *Supervisor) writeAuthFile(profile *Profile) (string, error) {
	if profile.Username == "" || s.creds == nil {
		return "", nil
	}

	password, err := s.creds.Get(profile.ID)
	if err != nil {
		common.LogWarn("No stored credential for %s: %v", profile.Name, err)
		return "", nil
	}

	tmpDir := filepath.Join(os.TempDir(), common.ConfigDirName)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", err
	}

	path := filepath.Join(tmpDir, fmt.Sprintf("auth-%d", time.Now().UnixNano()))
	content := fmt.Sprintf("%s\n%s\n", profile.Username, password)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", err
	}
	return path, nil
}

// removeAuthFile deletes a materialized credentials file.
func removeAuthFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		common.LogWarn("Could not remove auth file: %v", err)
	}
}

// buildArgs assembles the client command line: config file, management
// endpoint, optional auth file.
func (s *Supervisor) buildArgs(profile *Profile, credFile string) []string {
	args := []string{
		"--config", profile.ConfigPath,
		"--management", s.cfg.ManagementHost, strconv.Itoa(s.cfg.ManagementPort),
	}
	if credFile != "" {
		args = append(args, "--auth-user-pass", credFile)
	}
	return args
}

// dialControl reaches the management socket, retrying while the
// client brings it up. The socket appears asynchronously some time
// after the process starts.
func (s *Supervisor) dialControl(ctx context.Context) (controlChannel, error) {
	client := NewControlChannelClient(s.cfg.ManagementHost, s.cfg.ManagementPort, s.cfg.DialTimeout)

	attempts := uint(common.ManagementDialWindow / time.Second)
	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error { return client.Dial(ctx) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ifaceExists reports whether a network interface with the given name
// is present.
func ifaceExists(name string) bool {
	_, err := net.InterfaceByName(name)
	return err == nil
}
