package netguard

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

func TestDNSGuardAppliesVPNThenBackup(t *testing.T) {
	fs := newFakeStrategy()
	g := NewDNSGuard(fs)

	err := g.Apply([]string{"10.8.0.1"}, []string{"1.1.1.1", "9.9.9.9"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !g.Applied() {
		t.Fatal("expected guard applied")
	}

	want := []string{"10.8.0.1", "1.1.1.1", "9.9.9.9"}
	if len(fs.dnsWrites) != 1 || !reflect.DeepEqual(fs.dnsWrites[0], want) {
		t.Fatalf("writes = %v, want one write of %v", fs.dnsWrites, want)
	}
}

func TestDNSGuardRestoreIsByteExact(t *testing.T) {
	fs := newFakeStrategy()
	original := append([]byte(nil), fs.dnsState...)
	g := NewDNSGuard(fs)

	if err := g.Apply([]string{"10.8.0.1"}, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if reflect.DeepEqual(fs.dnsState, original) {
		t.Fatal("expected resolver state replaced")
	}

	if err := g.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(fs.dnsState, original) {
		t.Fatalf("restore not byte-exact: %q != %q", fs.dnsState, original)
	}
	if g.Applied() {
		t.Fatal("expected guard released after Restore")
	}
}

func TestDNSGuardKeepsFirstSnapshot(t *testing.T) {
	fs := newFakeStrategy()
	original := append([]byte(nil), fs.dnsState...)
	g := NewDNSGuard(fs)

	if err := g.Apply([]string{"10.8.0.1"}, nil); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if err := g.Apply([]string{"10.9.0.1"}, nil); err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	if err := g.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(fs.dnsState, original) {
		t.Fatalf("expected pre-tunnel state back, got %q", fs.dnsState)
	}
}

func TestDNSGuardRejectsEmptyVPNServers(t *testing.T) {
	fs := newFakeStrategy()
	g := NewDNSGuard(fs)

	err := g.Apply(nil, []string{"1.1.1.1"})
	var dnsErr *common.DNSError
	if !errors.As(err, &dnsErr) {
		t.Fatalf("expected DNS error, got %v", err)
	}
	if g.Applied() {
		t.Fatal("guard must not apply without VPN servers")
	}
}

func TestDNSGuardRollbackOnWriteFailure(t *testing.T) {
	fs := newFakeStrategy()
	fs.writeErr = errors.New("resolver locked")
	original := append([]byte(nil), fs.dnsState...)
	g := NewDNSGuard(fs)

	err := g.Apply([]string{"10.8.0.1"}, nil)
	var dnsErr *common.DNSError
	if !errors.As(err, &dnsErr) || dnsErr.Op != "write" {
		t.Fatalf("expected DNS write error, got %v", err)
	}
	if g.Applied() {
		t.Fatal("guard must not report applied after failed write")
	}
	if !reflect.DeepEqual(fs.dnsState, original) {
		t.Fatalf("expected resolver state rolled back, got %q", fs.dnsState)
	}
}

func TestDNSGuardRestoreIdempotent(t *testing.T) {
	fs := newFakeStrategy()
	g := NewDNSGuard(fs)

	if err := g.Restore(); err != nil {
		t.Fatalf("Restore before Apply: %v", err)
	}

	if err := g.Apply([]string{"10.8.0.1"}, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := g.Restore(); err != nil {
		t.Fatalf("first Restore: %v", err)
	}
	if err := g.Restore(); err != nil {
		t.Fatalf("second Restore: %v", err)
	}
}
