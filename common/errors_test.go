package common

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProcessStartError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ProcessStartError{Binary: "openvpn", Stderr: "Options error: bad directive", Err: cause}

	if !strings.Contains(err.Error(), "Options error") {
		t.Errorf("ProcessStartError.Error() = %v, want stderr text included", err.Error())
	}

	if !errors.Is(err, cause) {
		t.Error("ProcessStartError should unwrap to its cause")
	}

	var pse *ProcessStartError
	if !errors.As(error(err), &pse) {
		t.Error("errors.As should match *ProcessStartError")
	}
}

func TestProcessStartError_NoStderr(t *testing.T) {
	err := &ProcessStartError{Binary: "openvpn"}
	if strings.Contains(err.Error(), ": ") && strings.HasSuffix(err.Error(), ": ") {
		t.Errorf("ProcessStartError.Error() = %q, should not trail an empty stderr", err.Error())
	}
}

func TestTunnelTimeoutError(t *testing.T) {
	err := &TunnelTimeoutError{Iface: "tun0", Timeout: 30 * time.Second}

	if !errors.Is(err, ErrTimeout) {
		t.Error("TunnelTimeoutError should match ErrTimeout")
	}

	if !strings.Contains(err.Error(), "tun0") {
		t.Errorf("TunnelTimeoutError.Error() = %v, want interface name included", err.Error())
	}
}

func TestWrappedKinds(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
	}{
		{"control channel", &ControlChannelError{Op: "dial", Err: cause}},
		{"firewall", &FirewallError{Op: "enable", Err: cause}},
		{"dns", &DNSError{Op: "apply", Err: cause}},
		{"route", &RouteError{Dest: "10.0.0.0/24", Op: "add", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, cause) {
				t.Errorf("%T should unwrap to its cause", tt.err)
			}
			if !strings.Contains(tt.err.Error(), "boom") {
				t.Errorf("%T.Error() = %v, want cause message included", tt.err, tt.err.Error())
			}
		})
	}
}

func TestDuplicateRouteError(t *testing.T) {
	err := &DuplicateRouteError{Dest: "192.168.1.0/24"}

	var dre *DuplicateRouteError
	if !errors.As(error(err), &dre) {
		t.Error("errors.As should match *DuplicateRouteError")
	}
	if dre.Dest != "192.168.1.0/24" {
		t.Errorf("DuplicateRouteError.Dest = %v, want 192.168.1.0/24", dre.Dest)
	}
}

func TestBulkheadTimeoutError(t *testing.T) {
	err := &BulkheadTimeoutError{Name: "probes", Timeout: time.Second}

	if !errors.Is(err, ErrTimeout) {
		t.Error("BulkheadTimeoutError should match ErrTimeout")
	}
}
