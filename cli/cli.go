// Package cli provides the command-line surface of the VPN
// orchestrator: profile management, foreground connections with leak
// protection, server probing, and link quality watching.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
	"github.com/Njanja2025/SecondBrainApp-sub001/config"
	"github.com/Njanja2025/SecondBrainApp-sub001/keyring"
	"github.com/Njanja2025/SecondBrainApp-sub001/netguard"
	"github.com/Njanja2025/SecondBrainApp-sub001/servers"
	"github.com/Njanja2025/SecondBrainApp-sub001/vpn"
)

// CLI wires the orchestrator components behind the command flags.
type CLI struct {
	cfg        *config.Config
	profiles   *vpn.ProfileManager
	supervisor *vpn.Supervisor
	creds      common.CredentialStore
	registry   *servers.Registry
	store      *servers.FileStore

	// reconnectBudget bounds how long a foreground session tolerates a
	// Failed status while auto-reconnect is working on it.
	reconnectBudget time.Duration
}

// New creates a CLI instance: configuration, profile store, credential
// store, supervisor, and the server registry loaded from disk.
func New() (*CLI, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	profiles, err := vpn.NewProfileManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profile manager: %w", err)
	}

	creds := keyring.SystemStore{}

	supCfg := vpn.DefaultSupervisorConfig()
	supCfg.Binary = cfg.VPNBinary
	supCfg.ManagementHost = cfg.Management.Host
	supCfg.ManagementPort = cfg.Management.Port
	supCfg.DialTimeout = cfg.Management.DialTimeout
	supCfg.AutoReconnect = cfg.AutoReconnect

	registry := servers.NewRegistry(servers.RegistryConfig{
		Attempts:    cfg.Probe.Attempts,
		Spacing:     cfg.Probe.Spacing,
		DialTimeout: cfg.Probe.DialTimeout,
		Concurrency: cfg.Probe.Concurrency,
	})

	configDir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	store := servers.NewFileStore(filepath.Join(configDir, common.ServersFileName))
	known, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, srv := range known {
		if _, err := registry.AddServer(srv); err != nil {
			common.LogWarn("Skipping server %s from store: %v", srv.Name, err)
		}
	}

	budget := time.Duration(supCfg.MaxReconnectAttempts) *
		(supCfg.ReconnectDelay + supCfg.ConnectTimeout + common.ManagementDialWindow)

	return &CLI{
		cfg:             cfg,
		profiles:        profiles,
		supervisor:      vpn.NewSupervisor(supCfg, profiles, creds),
		creds:           creds,
		registry:        registry,
		store:           store,
		reconnectBudget: budget,
	}, nil
}

// ListProfiles lists all configured profiles.
func (c *CLI) ListProfiles() error {
	profiles := c.profiles.List()

	if len(profiles) == 0 {
		fmt.Println("No VPN profiles configured.")
		fmt.Printf("Add one: %s -add NAME -config FILE.ovpn\n", common.AppName)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTUN\tAUTO-CONNECT\tSPLIT\tLAST USED")
	fmt.Fprintln(w, "--\t----\t---\t------------\t-----\t---------")

	for _, profile := range profiles {
		autoConnect := "No"
		if profile.AutoConnect {
			autoConnect = "Yes"
		}

		split := "-"
		if profile.SplitTunnelEnabled {
			split = profile.SplitTunnelMode
		}

		lastUsed := "never"
		if !profile.LastUsed.IsZero() {
			lastUsed = profile.LastUsed.Format("2006-01-02 15:04")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(profile.ID), profile.Name, profile.TunDevice, autoConnect, split, lastUsed)
	}

	w.Flush()
	return nil
}

// AddProfileOptions captures the flag set of the add command.
type AddProfileOptions struct {
	Name         string
	ConfigPath   string
	Username     string
	TunDevice    string
	DNSServers   []string
	SplitMode    string
	SplitRoutes  []string
	SavePassword bool
	AutoConnect  bool
}

// AddProfile registers a new profile and optionally stores its
// password in the credential store.
func (c *CLI) AddProfile(opts AddProfileOptions) error {
	if opts.ConfigPath == "" {
		return fmt.Errorf("a client config file is required (-config FILE.ovpn)")
	}

	profile := &vpn.Profile{
		Name:         opts.Name,
		ConfigPath:   opts.ConfigPath,
		Username:     opts.Username,
		TunDevice:    opts.TunDevice,
		DNSServers:   opts.DNSServers,
		SavePassword: opts.SavePassword,
		AutoConnect:  opts.AutoConnect,
	}
	if opts.SplitMode != "" {
		profile.SplitTunnelEnabled = true
		profile.SplitTunnelMode = opts.SplitMode
		profile.SplitTunnelRoutes = opts.SplitRoutes
	}

	if err := c.profiles.Add(profile); err != nil {
		return err
	}

	if opts.SavePassword {
		password, err := promptPassword(fmt.Sprintf("Password for %s: ", profile.Name))
		if err != nil {
			return err
		}
		if err := c.creds.Store(profile.ID, password); err != nil {
			fmt.Printf("  Warning: password not stored: %v\n", err)
		}
	}

	fmt.Printf("✓ Profile %s added (%s)\n", profile.Name, shortID(profile.ID))
	return nil
}

// RemoveProfile removes a profile and its stored credentials.
func (c *CLI) RemoveProfile(nameOrID string) error {
	profile := c.findProfile(nameOrID)
	if profile == nil {
		return fmt.Errorf("profile not found: %s", nameOrID)
	}

	if err := c.profiles.Remove(profile.ID); err != nil {
		return err
	}
	if err := c.creds.Delete(profile.ID); err != nil && !errors.Is(err, common.ErrCredentialsNotFound) {
		common.LogWarn("Could not remove credentials for %s: %v", profile.Name, err)
	}

	fmt.Printf("✓ Profile %s removed\n", profile.Name)
	return nil
}

// Connect establishes a foreground VPN session: leak protection and
// split tunnel routes are engaged around the tunnel, and everything is
// unwound when the context is cancelled (SIGINT/SIGTERM) or the
// connection is lost for good.
func (c *CLI) Connect(ctx context.Context, nameOrID string) error {
	profile := c.findProfile(nameOrID)
	if profile == nil {
		return fmt.Errorf("profile not found: %s", nameOrID)
	}

	if _, err := exec.LookPath(c.cfg.VPNBinary); err != nil {
		return fmt.Errorf("%s is not installed (not found in PATH)", c.cfg.VPNBinary)
	}

	if err := c.stageCredentials(profile); err != nil {
		return err
	}
	if profile.Username != "" && !profile.SavePassword {
		defer c.creds.Delete(profile.ID)
	}

	vpnDNS := profile.DNSServers
	if len(vpnDNS) == 0 {
		vpnDNS = c.cfg.LeakProtect.VPNDNSServers
	}
	splitRoutes := profile.SplitTunnelEnabled && len(profile.SplitTunnelRoutes) > 0

	var strategy netguard.Strategy
	if c.cfg.LeakProtect.Enabled || splitRoutes || len(vpnDNS) > 0 {
		var err error
		strategy, err = netguard.NewStrategy()
		if err != nil {
			return err
		}
	}

	// The pre-tunnel gateway keeps carrying excluded destinations.
	var gatewayIP string
	if splitRoutes && profile.SplitTunnelMode == common.SplitTunnelModeExclude {
		gw, _, err := netguard.DefaultGateway(strategy)
		if err != nil {
			return fmt.Errorf("default gateway discovery failed: %w", err)
		}
		gatewayIP = gw
	}

	var kill *netguard.KillSwitch
	if c.cfg.LeakProtect.Enabled {
		kill = netguard.NewKillSwitch(strategy)
		if err := kill.Enable(profile.TunDevice, c.cfg.LeakProtect.AllowedHosts); err != nil {
			return err
		}
		fmt.Println("Kill switch engaged.")
	}

	fmt.Printf("Connecting to %s...\n", profile.Name)
	if err := c.supervisor.Connect(ctx, profile.ID); err != nil {
		c.teardown(nil, nil, kill)
		return fmt.Errorf("connection failed: %w", err)
	}

	var dns *netguard.DNSGuard
	if len(vpnDNS) > 0 {
		dns = netguard.NewDNSGuard(strategy)
		if err := dns.Apply(vpnDNS, c.cfg.LeakProtect.BackupDNSServers); err != nil {
			c.teardown(nil, nil, kill)
			return err
		}
	}

	var router *netguard.Router
	if splitRoutes {
		router = netguard.NewRouter(strategy)
		for _, route := range profile.SplitTunnelRoutes {
			var err error
			if profile.SplitTunnelMode == common.SplitTunnelModeInclude {
				err = router.AddRoute(route, "", profile.TunDevice)
			} else {
				err = router.AddRoute(route, gatewayIP, "")
			}
			if err != nil {
				c.teardown(router, dns, kill)
				return err
			}
		}
		fmt.Printf("Split tunnel: %d %s routes applied.\n",
			len(profile.SplitTunnelRoutes), profile.SplitTunnelMode)
	}

	fmt.Printf("✓ Connected to %s on %s\n", profile.Name, profile.TunDevice)
	fmt.Println("Press Ctrl-C to disconnect.")

	err := c.waitForSession(ctx)

	fmt.Println("Disconnecting...")
	c.teardown(router, dns, kill)
	fmt.Println("✓ Disconnected")
	return err
}

// waitForSession blocks until the context is cancelled or the tunnel
// is lost beyond recovery.
func (c *CLI) waitForSession(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var failedSince time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.supervisor.Status() != common.StatusFailed {
				failedSince = time.Time{}
				continue
			}
			if !c.cfg.AutoReconnect {
				return fmt.Errorf("connection lost: %v", c.supervisor.LastError())
			}
			if failedSince.IsZero() {
				failedSince = time.Now()
				fmt.Println("Connection lost, reconnecting...")
			} else if time.Since(failedSince) > c.reconnectBudget {
				return fmt.Errorf("reconnect attempts exhausted: %v", c.supervisor.LastError())
			}
		}
	}
}

// teardown unwinds a session in reverse order. Nil guards are skipped.
// The kill switch goes last so traffic stays contained until the
// original state is restored.
func (c *CLI) teardown(router *netguard.Router, dns *netguard.DNSGuard, kill *netguard.KillSwitch) {
	if router != nil {
		if err := router.Flush(); err != nil {
			fmt.Printf("  Warning: split tunnel routes: %v\n", err)
		}
	}
	if dns != nil {
		if err := dns.Restore(); err != nil {
			fmt.Printf("  Warning: resolver restore: %v\n", err)
		}
	}
	if err := c.supervisor.Disconnect(); err != nil {
		fmt.Printf("  Warning: disconnect: %v\n", err)
	}
	if kill != nil {
		if err := kill.Disable(); err != nil {
			fmt.Printf("  Warning: kill switch: %v\n", err)
		}
	}
}

// stageCredentials makes sure the credential store can satisfy the
// supervisor's auth file lookup, prompting once when nothing is saved.
func (c *CLI) stageCredentials(profile *vpn.Profile) error {
	if profile.Username == "" {
		return nil
	}
	if _, err := c.creds.Get(profile.ID); err == nil {
		return nil
	}

	password, err := promptPassword(fmt.Sprintf("Password for %s@%s: ", profile.Username, profile.Name))
	if err != nil {
		return err
	}
	if err := c.creds.Store(profile.ID, password); err != nil {
		return fmt.Errorf("failed to stage credentials: %w", err)
	}
	return nil
}

// Disconnect stops a VPN client owned by another process through its
// management interface.
func (c *CLI) Disconnect() error {
	client := vpn.NewControlChannelClient(
		c.cfg.Management.Host, c.cfg.Management.Port, c.cfg.Management.DialTimeout)

	if err := client.Dial(context.Background()); err != nil {
		fmt.Println("No active VPN connection.")
		return nil
	}
	defer client.Close()

	if err := client.SendSignal("SIGTERM"); err != nil {
		return fmt.Errorf("failed to stop the VPN client: %w", err)
	}

	fmt.Println("✓ Stop signal delivered; the client is shutting down")
	return nil
}

// Status reports on the running VPN client, if any, by querying its
// management interface.
func (c *CLI) Status() error {
	client := vpn.NewControlChannelClient(
		c.cfg.Management.Host, c.cfg.Management.Port, c.cfg.Management.DialTimeout)

	if err := client.Dial(context.Background()); err != nil {
		fmt.Println("No active VPN connection.")
		return nil
	}
	defer client.Close()

	stats, err := client.QueryStats()
	if err != nil {
		return fmt.Errorf("status query failed: %w", err)
	}

	uptime := "-"
	since := "-"
	if !stats.ConnectedSince.IsZero() {
		uptime = formatDuration(time.Since(stats.ConnectedSince))
		since = stats.ConnectedSince.Format("2006-01-02 15:04:05")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tSINCE\tUPTIME\tRECEIVED\tSENT")
	fmt.Fprintln(w, "------\t-----\t------\t--------\t----")
	fmt.Fprintf(w, "Connected\t%s\t%s\t%s\t%s\n",
		since, uptime, formatBytes(stats.BytesReceived), formatBytes(stats.BytesSent))
	w.Flush()
	return nil
}

// Servers probes every registered server and prints the results.
func (c *CLI) Servers(ctx context.Context) error {
	list := c.registry.List()
	if len(list) == 0 {
		fmt.Println("No servers registered.")
		fmt.Printf("Add one: %s -server-add HOST:PORT -name NAME\n", common.AppName)
		return nil
	}

	fmt.Printf("Probing %d servers...\n", len(list))
	if err := c.registry.ProbeAll(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDRESS\tREGION\tPING\tLOSS\tSCORE")
	fmt.Fprintln(w, "--\t----\t-------\t------\t----\t----\t-----")

	for _, srv := range c.registry.List() {
		region := srv.Region
		if region == "" {
			region = "-"
		}

		ping, loss, score := "-", "-", "-"
		if srv.LastResult != nil {
			loss = fmt.Sprintf("%.0f%%", srv.LastResult.LossPercent)
			if srv.LastResult.Reachable {
				ping = fmt.Sprintf("%.0f ms", srv.LastResult.PingMs())
			}
		}
		if v, err := srv.Score(); err == nil {
			score = fmt.Sprintf("%.1f", v)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(srv.ID), srv.Name, srv.Addr(), region, ping, loss, score)
	}

	w.Flush()
	return nil
}

// BestServer probes all servers and reports the best one within the
// configured thresholds.
func (c *CLI) BestServer(ctx context.Context) error {
	list := c.registry.List()
	if len(list) == 0 {
		fmt.Println("No servers registered.")
		return nil
	}

	fmt.Printf("Probing %d servers...\n", len(list))
	if err := c.registry.ProbeAll(ctx); err != nil {
		return err
	}

	best, err := c.registry.SelectBest(c.cfg.Probe.MaxPingMs, c.cfg.Probe.MaxLossPercent)
	if err != nil {
		if errors.Is(err, common.ErrNoViableServer) {
			return fmt.Errorf("no server within %.0f ms / %.0f%% loss",
				c.cfg.Probe.MaxPingMs, c.cfg.Probe.MaxLossPercent)
		}
		return err
	}

	score, _ := best.Score()
	fmt.Printf("✓ Best server: %s (%s) ping %.0f ms, loss %.0f%%, score %.1f\n",
		best.Name, best.Addr(), best.LastResult.PingMs(), best.LastResult.LossPercent, score)
	return nil
}

// AddServer registers a server endpoint and persists it.
func (c *CLI) AddServer(addr, name, region string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("expected HOST:PORT, got %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("bad port in %q", addr)
	}
	if name == "" {
		name = host
	}

	id, err := c.registry.AddServer(servers.Server{
		Name:   name,
		Host:   host,
		Port:   port,
		Region: region,
	})
	if err != nil {
		return err
	}

	if err := c.store.Save(c.registry.List()); err != nil {
		return err
	}

	fmt.Printf("✓ Server %s added (%s)\n", name, shortID(id))
	return nil
}

// RemoveServer removes a server by name or ID and persists the change.
func (c *CLI) RemoveServer(nameOrID string) error {
	srv := c.findServer(nameOrID)
	if srv == nil {
		return fmt.Errorf("server not found: %s", nameOrID)
	}

	if err := c.registry.RemoveServer(srv.ID); err != nil {
		return err
	}
	if err := c.store.Save(c.registry.List()); err != nil {
		return err
	}

	fmt.Printf("✓ Server %s removed\n", srv.Name)
	return nil
}

// Watch probes a server on the monitor interval and reports quality
// band transitions until the context is cancelled.
func (c *CLI) Watch(ctx context.Context, target string) error {
	srv, err := c.resolveWatchTarget(target)
	if err != nil {
		return err
	}

	monitor := servers.NewQualityMonitor(c.cfg.Probe.MaxPingMs, c.cfg.Probe.MaxLossPercent)
	fmt.Printf("Watching %s (%s) every %s. Press Ctrl-C to stop.\n",
		srv.Name, srv.Addr(), common.MonitorInterval)

	ticker := time.NewTicker(common.MonitorInterval)
	defer ticker.Stop()

	lastBand := servers.BandUnknown
	for {
		res, err := c.registry.Probe(ctx, srv.ID)
		if err != nil {
			if errors.Is(err, common.ErrCancelled) {
				return nil
			}
			return err
		}

		monitor.RecordResult(res)
		if band := monitor.Band(); band != lastBand {
			fmt.Printf("%s  %s: ping %.0f ms, loss %.0f%%\n",
				time.Now().Format("15:04:05"), band, res.PingMs(), res.LossPercent)
			lastBand = band
		}
		if monitor.RecommendSwitch() {
			fmt.Printf("%s  link degraded, consider switching servers (%s -best)\n",
				time.Now().Format("15:04:05"), common.AppName)
			monitor.Reset()
			lastBand = servers.BandUnknown
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// resolveWatchTarget accepts a registered server name or ID, or a bare
// host:port which is added to the registry for the session.
func (c *CLI) resolveWatchTarget(target string) (servers.Server, error) {
	if srv := c.findServer(target); srv != nil {
		return *srv, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return servers.Server{}, fmt.Errorf("unknown server %q (use a registered name or HOST:PORT)", target)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return servers.Server{}, fmt.Errorf("bad port in %q", target)
	}

	id, err := c.registry.AddServer(servers.Server{Name: target, Host: host, Port: port})
	if err != nil {
		return servers.Server{}, err
	}
	return c.registry.Get(id)
}

// findProfile finds a profile by name, ID, or ID prefix
// (case-insensitive).
func (c *CLI) findProfile(nameOrID string) *vpn.Profile {
	nameOrID = strings.ToLower(strings.TrimSpace(nameOrID))

	for _, profile := range c.profiles.List() {
		if strings.ToLower(profile.Name) == nameOrID ||
			strings.ToLower(profile.ID) == nameOrID ||
			strings.HasPrefix(strings.ToLower(profile.ID), nameOrID) {
			return profile
		}
	}

	return nil
}

// findServer finds a server by name, ID, or ID prefix.
func (c *CLI) findServer(nameOrID string) *servers.Server {
	nameOrID = strings.ToLower(strings.TrimSpace(nameOrID))

	for _, srv := range c.registry.List() {
		if strings.ToLower(srv.Name) == nameOrID ||
			strings.ToLower(srv.ID) == nameOrID ||
			strings.HasPrefix(strings.ToLower(srv.ID), nameOrID) {
			found := srv
			return &found
		}
	}

	return nil
}

// promptPassword reads a password without echo. Piped input falls back
// to a plain line read.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	password, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// shortID truncates an ID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Printf(`%s - VPN connection orchestrator

Usage:
  %s [OPTIONS]

Profiles:
  -list                 List all VPN profiles
  -add NAME             Add a profile (requires -config)
    -config FILE        Client configuration file (.ovpn or .conf)
    -username USER      Username for authentication
    -tun DEV            Tunnel interface (default tun0)
    -dns IP[,IP]        DNS servers to apply while connected
    -split-mode MODE    Split tunnel mode: include or exclude
    -routes CIDR[,...]  Split tunnel routes
    -save-password      Prompt for a password and store it
    -auto-connect       Mark the profile for automatic connection
  -remove NAME          Remove a profile

Connection:
  -connect NAME         Connect in the foreground (Ctrl-C disconnects)
  -disconnect           Stop a running VPN client
  -status               Show current connection status

Servers:
  -servers              Probe all registered servers
  -best                 Pick the best server within thresholds
  -server-add HOST:PORT Register a server
    -name NAME          Display name for -server-add
    -region REGION      Region label for -server-add
  -server-remove NAME   Remove a server
  -watch TARGET         Watch link quality (server name or HOST:PORT)

General:
  -version              Show version and exit
  -verbose              Enable verbose logging
  -help                 Show this help message

Examples:
  %s -add work -config ~/work.ovpn -username alice -save-password
  %s -connect work
  %s -server-add de1.vpn.example.com:1194 -name frankfurt -region eu
  %s -best
`, common.AppName, common.AppName, common.AppName, common.AppName, common.AppName, common.AppName)
}
