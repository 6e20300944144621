package servers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "servers.yaml"))

	list, err := store.Load()
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Load() on missing file = %d servers, want 0", len(list))
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "servers.yaml"))

	in := []Server{
		{ID: "a1", Name: "frankfurt", Host: "de1.vpn.example.com", Port: 1194, Region: "eu"},
		{ID: "b2", Name: "newark", Host: "us1.vpn.example.com", Port: 443},
	}
	// Probe results must not survive the round trip.
	in[0].LastResult = &ProbeResult{Reachable: true, LossPercent: 0}

	if err := store.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Load() = %d servers, want 2", len(out))
	}

	if out[0].ID != "a1" || out[0].Name != "frankfurt" || out[0].Host != "de1.vpn.example.com" ||
		out[0].Port != 1194 || out[0].Region != "eu" {
		t.Errorf("Load()[0] = %+v, want the saved frankfurt entry", out[0])
	}
	if out[1].Name != "newark" || out[1].Port != 443 {
		t.Errorf("Load()[1] = %+v, want the saved newark entry", out[1])
	}
	if out[0].LastResult != nil {
		t.Errorf("Load()[0].LastResult = %+v, want nil", out[0].LastResult)
	}
}

func TestFileStore_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "servers.yaml")
	store := NewFileStore(path)

	if err := store.Save([]Server{{ID: "x", Name: "solo", Host: "host", Port: 1194}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("servers file not created: %v", err)
	}
}

func TestFileStore_LoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(path).Load(); err == nil {
		t.Error("Load() on malformed file expected error, got nil")
	}
}
