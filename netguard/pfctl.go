package netguard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// pfAnchor is the pf anchor that holds every rule this process loads,
// so a flush of the anchor removes exactly our rules and nothing else.
const pfAnchor = common.AppID

// darwinStrategy drives pfctl, networksetup, and route.
type darwinStrategy struct {
	r cmdRunner
}

func newDarwinStrategy(r cmdRunner) *darwinStrategy {
	if r == nil {
		r = execRunner{}
	}
	return &darwinStrategy{r: r}
}

// CaptureFirewall records whether pf was enabled before we touched it.
// Rules live in our own anchor, so the prior ruleset needs no copy.
func (s *darwinStrategy) CaptureFirewall() ([]byte, error) {
	out, err := s.r.Run("pfctl", "-s", "info")
	if err != nil {
		return nil, fmt.Errorf("pfctl -s info: %s", strings.TrimSpace(string(out)))
	}
	state := "disabled"
	if strings.Contains(string(out), "Status: Enabled") {
		state = "enabled"
	}
	return []byte(state + "\n"), nil
}

func (s *darwinStrategy) EnableFirewall(tunnelIface string, allowedHosts []string) error {
	var b strings.Builder
	b.WriteString("block drop out all\n")
	b.WriteString("pass out quick on lo0 all\n")
	fmt.Fprintf(&b, "pass out quick on %s all\n", tunnelIface)
	for _, host := range allowedHosts {
		fmt.Fprintf(&b, "pass out quick to %s\n", host)
	}

	if out, err := s.r.RunInput([]byte(b.String()), "pfctl", "-a", pfAnchor, "-f", "-"); err != nil {
		return fmt.Errorf("pfctl load anchor %s: %s", pfAnchor, strings.TrimSpace(string(out)))
	}

	if out, err := s.r.Run("pfctl", "-e"); err != nil {
		// pfctl exits nonzero when pf is already running.
		if !strings.Contains(string(out), "already enabled") {
			return fmt.Errorf("pfctl -e: %s", strings.TrimSpace(string(out)))
		}
	}
	return nil
}

func (s *darwinStrategy) RestoreFirewall(snapshot []byte) error {
	if out, err := s.r.Run("pfctl", "-a", pfAnchor, "-F", "all"); err != nil {
		return fmt.Errorf("pfctl flush anchor %s: %s", pfAnchor, strings.TrimSpace(string(out)))
	}

	if strings.TrimSpace(string(snapshot)) == "disabled" {
		if out, err := s.r.Run("pfctl", "-d"); err != nil {
			if !strings.Contains(string(out), "not enabled") {
				return fmt.Errorf("pfctl -d: %s", strings.TrimSpace(string(out)))
			}
		}
	}
	return nil
}

// CaptureDNS serializes the resolver list of every active network
// service, one "service\tservers" line each. Services with no custom
// resolvers record the literal "Empty", which networksetup accepts
// back as the clear command.
func (s *darwinStrategy) CaptureDNS() ([]byte, error) {
	services, err := s.listNetworkServices()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, svc := range services {
		out, err := s.r.Run("networksetup", "-getdnsservers", svc)
		if err != nil {
			continue
		}
		servers := "Empty"
		text := strings.TrimSpace(string(out))
		if !strings.Contains(text, "There aren't any DNS Servers set") {
			servers = strings.Join(strings.Fields(text), " ")
		}
		fmt.Fprintf(&b, "%s\t%s\n", svc, servers)
	}
	return []byte(b.String()), nil
}

func (s *darwinStrategy) WriteDNS(servers []string) error {
	services, err := s.listNetworkServices()
	if err != nil {
		return err
	}

	for _, svc := range services {
		args := append([]string{"-setdnsservers", svc}, servers...)
		if out, err := s.r.Run("networksetup", args...); err != nil {
			return fmt.Errorf("networksetup -setdnsservers %s: %s", svc, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

func (s *darwinStrategy) RestoreDNS(snapshot []byte) error {
	for _, line := range strings.Split(string(snapshot), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}

		args := append([]string{"-setdnsservers", parts[0]}, strings.Fields(parts[1])...)
		if out, err := s.r.Run("networksetup", args...); err != nil {
			return fmt.Errorf("networksetup -setdnsservers %s: %s", parts[0], strings.TrimSpace(string(out)))
		}
	}
	return nil
}

func (s *darwinStrategy) listNetworkServices() ([]string, error) {
	out, err := s.r.Run("networksetup", "-listallnetworkservices")
	if err != nil {
		return nil, fmt.Errorf("networksetup -listallnetworkservices: %s", strings.TrimSpace(string(out)))
	}

	var services []string
	for i, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		// The first line is a legend, and disabled services carry a
		// leading asterisk.
		if i == 0 || line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		services = append(services, line)
	}
	return services, nil
}

func (s *darwinStrategy) AddRoute(dest, gateway, iface string) error {
	args := []string{"-n", "add", "-net", dest}
	if gateway != "" {
		args = append(args, gateway)
	} else if iface != "" {
		args = append(args, "-interface", iface)
	}

	out, err := s.r.Run("route", args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		// The route is already present.
		if strings.Contains(msg, "File exists") {
			return nil
		}
		return fmt.Errorf("route %s: %s", strings.Join(args, " "), msg)
	}
	return nil
}

func (s *darwinStrategy) DeleteRoute(dest string) error {
	out, err := s.r.Run("route", "-n", "delete", "-net", dest)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if strings.Contains(msg, "not in table") {
			return nil
		}
		return fmt.Errorf("route -n delete -net %s: %s", dest, msg)
	}
	return nil
}

func (s *darwinStrategy) TunnelPresent(iface string) bool {
	_, err := s.r.Run("ifconfig", iface)
	return err == nil
}

func (s *darwinStrategy) DefaultRoute() (string, string, error) {
	out, err := s.r.Run("route", "-n", "get", "default")
	if err != nil {
		return "", "", fmt.Errorf("route -n get default: %s", strings.TrimSpace(string(out)))
	}

	var gw, dev string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "gateway:") {
			gw = strings.TrimSpace(strings.TrimPrefix(line, "gateway:"))
		}
		if strings.HasPrefix(line, "interface:") {
			dev = strings.TrimSpace(strings.TrimPrefix(line, "interface:"))
		}
	}

	if gw == "" {
		return "", "", errors.New("no default route found")
	}
	return gw, dev, nil
}
