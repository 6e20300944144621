// Package main provides the entry point for vpnctl, a command-line
// OpenVPN connection orchestrator for Linux.
//
// Features:
//   - Profile management for multiple VPN configurations
//   - Secure credential storage using the system keyring
//   - Kill switch, DNS enforcement, and split tunneling around connections
//   - Server endpoint probing and quality-based selection
//
// Usage:
//
//	vpnctl [options]
//
// Environment:
//
//	Connecting requires the configured OpenVPN binary to be installed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Njanja2025/SecondBrainApp-sub001/cli"
	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	// General flags
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp    = flag.Bool("help", false, "Show help message")

	// Profile flags
	listProfiles  = flag.Bool("list", false, "List all VPN profiles")
	addProfile    = flag.String("add", "", "Add a VPN profile with the given name")
	removeProfile = flag.String("remove", "", "Remove a VPN profile by name or ID")
	configPath    = flag.String("config", "", "Client configuration file for -add")
	username      = flag.String("username", "", "Username for -add")
	tunDevice     = flag.String("tun", "", "Tunnel interface for -add (default tun0)")
	dnsServers    = flag.String("dns", "", "Comma-separated DNS servers for -add")
	splitMode     = flag.String("split-mode", "", "Split tunnel mode for -add: include or exclude")
	splitRoutes   = flag.String("routes", "", "Comma-separated split tunnel routes for -add")
	savePassword  = flag.Bool("save-password", false, "Prompt for a password during -add and store it")
	autoConnect   = flag.Bool("auto-connect", false, "Mark the profile added with -add for automatic connection")

	// Connection flags
	connectProfile = flag.String("connect", "", "Connect to a VPN profile by name or ID")
	disconnectVPN  = flag.Bool("disconnect", false, "Stop a running VPN client")
	showStatus     = flag.Bool("status", false, "Show current connection status")

	// Server flags
	probeServers = flag.Bool("servers", false, "Probe all registered servers")
	bestServer   = flag.Bool("best", false, "Pick the best server within the configured thresholds")
	serverAdd    = flag.String("server-add", "", "Register a server endpoint (HOST:PORT)")
	serverRemove = flag.String("server-remove", "", "Remove a server by name or ID")
	serverName   = flag.String("name", "", "Display name for -server-add")
	serverRegion = flag.String("region", "", "Region label for -server-add")
	watchTarget  = flag.String("watch", "", "Watch link quality of a server (name or HOST:PORT)")
)

func main() {
	flag.Parse()

	// Handle help flag
	if *showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}

	// Handle version flag
	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	// Initialize logger with structured logging and file output
	logLevel := common.LevelInfo
	if *verbose {
		logLevel = common.LevelDebug
	}

	if err := common.InitLogger(common.LogConfig{
		Level:       logLevel,
		EnableFile:  true,
		MaxFileSize: 5 * 1024 * 1024, // 5MB
		MaxBackups:  5,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals (SIGINT, SIGTERM)
	setupSignalHandler(cancel)

	if !anyCommand() {
		cli.PrintHelp()
		return
	}

	runCLI(ctx)
}

// anyCommand reports whether at least one command flag was given.
func anyCommand() bool {
	return *listProfiles || *addProfile != "" || *removeProfile != "" ||
		*connectProfile != "" || *disconnectVPN || *showStatus ||
		*probeServers || *bestServer || *serverAdd != "" ||
		*serverRemove != "" || *watchTarget != ""
}

// runCLI handles command-line interface operations.
// It accepts a context for graceful shutdown support.
func runCLI(ctx context.Context) {
	cliApp, err := cli.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Check if context is already cancelled before proceeding
	select {
	case <-ctx.Done():
		common.LogInfo("Operation cancelled before execution")
		return
	default:
	}

	var cliErr error

	switch {
	case *listProfiles:
		cliErr = cliApp.ListProfiles()
	case *addProfile != "":
		cliErr = cliApp.AddProfile(cli.AddProfileOptions{
			Name:         *addProfile,
			ConfigPath:   *configPath,
			Username:     *username,
			TunDevice:    *tunDevice,
			DNSServers:   splitList(*dnsServers),
			SplitMode:    *splitMode,
			SplitRoutes:  splitList(*splitRoutes),
			SavePassword: *savePassword,
			AutoConnect:  *autoConnect,
		})
	case *removeProfile != "":
		cliErr = cliApp.RemoveProfile(*removeProfile)
	case *connectProfile != "":
		cliErr = cliApp.Connect(ctx, *connectProfile)
	case *disconnectVPN:
		cliErr = cliApp.Disconnect()
	case *showStatus:
		cliErr = cliApp.Status()
	case *probeServers:
		cliErr = cliApp.Servers(ctx)
	case *bestServer:
		cliErr = cliApp.BestServer(ctx)
	case *serverAdd != "":
		cliErr = cliApp.AddServer(*serverAdd, *serverName, *serverRegion)
	case *serverRemove != "":
		cliErr = cliApp.RemoveServer(*serverRemove)
	case *watchTarget != "":
		cliErr = cliApp.Watch(ctx, *watchTarget)
	}

	if cliErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cliErr)
		os.Exit(1)
	}
}

// splitList parses a comma-separated flag value into a slice,
// dropping empty entries.
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setupSignalHandler configures graceful shutdown on SIGINT/SIGTERM.
// When a signal is received, it cancels the context to allow cleanup.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()
}
