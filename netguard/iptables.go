package netguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// linuxStrategy drives iptables, /etc/resolv.conf, and ip route.
type linuxStrategy struct {
	r            cmdRunner
	resolvPath   string
	netClassPath string
}

func newLinuxStrategy(r cmdRunner) *linuxStrategy {
	if r == nil {
		r = execRunner{}
	}
	return &linuxStrategy{
		r:            r,
		resolvPath:   "/etc/resolv.conf",
		netClassPath: "/sys/class/net",
	}
}

// ensureRule applies an iptables rule only when absent.
func (s *linuxStrategy) ensureRule(chain string, ruleArgs ...string) error {
	check := append([]string{"-C", chain}, ruleArgs...)
	if _, err := s.r.Run("iptables", check...); err == nil {
		return nil
	}

	add := append([]string{"-A", chain}, ruleArgs...)
	out, err := s.r.Run("iptables", add...)
	if err != nil {
		return fmt.Errorf("iptables -A %s %s: %s", chain, strings.Join(ruleArgs, " "), strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *linuxStrategy) CaptureFirewall() ([]byte, error) {
	out, err := s.r.Run("iptables-save")
	if err != nil {
		return nil, fmt.Errorf("iptables-save: %s", strings.TrimSpace(string(out)))
	}
	return out, nil
}

func (s *linuxStrategy) EnableFirewall(tunnelIface string, allowedHosts []string) error {
	// Allowances go in before the default-deny policy flips, so an
	// established session never hits a window with no escape rule.
	if err := s.ensureRule("OUTPUT", "-o", "lo", "-j", "ACCEPT"); err != nil {
		return err
	}
	if err := s.ensureRule("OUTPUT", "-o", tunnelIface, "-j", "ACCEPT"); err != nil {
		return err
	}
	for _, host := range allowedHosts {
		if err := s.ensureRule("OUTPUT", "-d", host, "-j", "ACCEPT"); err != nil {
			return err
		}
	}

	out, err := s.r.Run("iptables", "-P", "OUTPUT", "DROP")
	if err != nil {
		return fmt.Errorf("iptables -P OUTPUT DROP: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *linuxStrategy) RestoreFirewall(snapshot []byte) error {
	out, err := s.r.RunInput(snapshot, "iptables-restore")
	if err != nil {
		return fmt.Errorf("iptables-restore: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *linuxStrategy) CaptureDNS() ([]byte, error) {
	return os.ReadFile(s.resolvPath)
}

func (s *linuxStrategy) WriteDNS(servers []string) error {
	var b strings.Builder
	for _, srv := range servers {
		fmt.Fprintf(&b, "nameserver %s\n", srv)
	}
	return os.WriteFile(s.resolvPath, []byte(b.String()), 0644)
}

func (s *linuxStrategy) RestoreDNS(snapshot []byte) error {
	return os.WriteFile(s.resolvPath, snapshot, 0644)
}

func (s *linuxStrategy) AddRoute(dest, gateway, iface string) error {
	args := []string{"route", "replace", dest}
	if gateway != "" {
		args = append(args, "via", gateway)
	}
	if iface != "" {
		args = append(args, "dev", iface)
	}

	out, err := s.r.Run("ip", args...)
	if err != nil {
		return fmt.Errorf("ip %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *linuxStrategy) DeleteRoute(dest string) error {
	out, err := s.r.Run("ip", "route", "del", dest)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		// The route is already gone.
		if strings.Contains(msg, "No such process") {
			return nil
		}
		return fmt.Errorf("ip route del %s: %s", dest, msg)
	}
	return nil
}

func (s *linuxStrategy) TunnelPresent(iface string) bool {
	_, err := os.Stat(filepath.Join(s.netClassPath, iface))
	return err == nil
}

func (s *linuxStrategy) DefaultRoute() (string, string, error) {
	out, err := s.r.Run("ip", "route", "show", "default")
	if err != nil {
		return "", "", fmt.Errorf("ip route show default: %s", strings.TrimSpace(string(out)))
	}

	// Prefer a default route that is not through the tunnel.
	var gw, dev string
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "default") || strings.Contains(line, "tun") {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			switch f {
			case "via":
				if i+1 < len(fields) {
					gw = fields[i+1]
				}
			case "dev":
				if i+1 < len(fields) {
					dev = fields[i+1]
				}
			}
		}
		if gw != "" {
			break
		}
	}

	if gw == "" {
		return "", "", errors.New("no default route found")
	}
	return gw, dev, nil
}
