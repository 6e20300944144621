package vpn

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

func newTestManager(t *testing.T) (*ProfileManager, string) {
	t.Helper()
	dir := t.TempDir()
	pm, err := NewProfileManagerAt(dir)
	if err != nil {
		t.Fatalf("NewProfileManagerAt: %v", err)
	}
	return pm, dir
}

func TestProfileManager_AddAndGet(t *testing.T) {
	pm, dir := newTestManager(t)
	src := writeTestConfig(t, dir)

	profile := &Profile{Name: "work", ConfigPath: src, Username: "alice"}
	if err := pm.Add(profile); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if profile.ID == "" {
		t.Error("Add did not assign an ID")
	}
	if profile.TunDevice != "tun0" {
		t.Errorf("TunDevice = %q, want tun0 default", profile.TunDevice)
	}
	if profile.Created.IsZero() {
		t.Error("Created not stamped")
	}
	if profile.ConfigPath == src {
		t.Error("config file not copied into the managed directory")
	}
	if _, err := os.Stat(profile.ConfigPath); err != nil {
		t.Errorf("managed config copy missing: %v", err)
	}
	if !strings.HasSuffix(profile.ConfigPath, profile.ID+".ovpn") {
		t.Errorf("managed config path = %q, want <id>.ovpn name", profile.ConfigPath)
	}

	got, err := pm.Get(profile.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "work" {
		t.Errorf("Get Name = %q, want work", got.Name)
	}

	byName, err := pm.GetByName("work")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if byName.ID != profile.ID {
		t.Errorf("GetByName ID = %q, want %q", byName.ID, profile.ID)
	}

	if _, err := pm.Get("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Get(missing) = %v, want %v", err, ErrProfileNotFound)
	}
	if _, err := pm.GetByName("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetByName(missing) = %v, want %v", err, ErrProfileNotFound)
	}
}

func TestProfileManager_AddRejectsDuplicateName(t *testing.T) {
	pm, dir := newTestManager(t)
	src := writeTestConfig(t, dir)

	if err := pm.Add(&Profile{Name: "work", ConfigPath: src}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := pm.Add(&Profile{Name: "work", ConfigPath: src})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Add duplicate = %v, want %v", err, ErrDuplicateName)
	}
}

func TestProfileManager_AddValidates(t *testing.T) {
	pm, dir := newTestManager(t)
	src := writeTestConfig(t, dir)

	tests := []struct {
		name    string
		profile *Profile
	}{
		{"missing name", &Profile{ConfigPath: src}},
		{"missing config path", &Profile{Name: "work"}},
		{"bad split tunnel mode", &Profile{
			Name:               "work",
			ConfigPath:         src,
			SplitTunnelEnabled: true,
			SplitTunnelMode:    "sideways",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := pm.Add(tt.profile); err == nil {
				t.Error("Add accepted an invalid profile")
			}
		})
	}
}

func TestProfileManager_Remove(t *testing.T) {
	pm, dir := newTestManager(t)
	src := writeTestConfig(t, dir)

	profile := &Profile{Name: "work", ConfigPath: src}
	if err := pm.Add(profile); err != nil {
		t.Fatalf("Add: %v", err)
	}
	managed := profile.ConfigPath

	if err := pm.Remove(profile.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := pm.Get(profile.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Get after Remove = %v, want %v", err, ErrProfileNotFound)
	}
	if _, err := os.Stat(managed); !os.IsNotExist(err) {
		t.Error("managed config copy survived Remove")
	}

	if err := pm.Remove("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Remove(missing) = %v, want %v", err, ErrProfileNotFound)
	}
}

func TestProfileManager_PersistsAcrossInstances(t *testing.T) {
	pm, dir := newTestManager(t)
	src := writeTestConfig(t, dir)

	profile := &Profile{
		Name:               "work",
		ConfigPath:         src,
		Username:           "alice",
		DNSServers:         []string{"10.8.0.1"},
		SplitTunnelEnabled: true,
		SplitTunnelMode:    common.SplitTunnelModeInclude,
		SplitTunnelRoutes:  []string{"192.168.1.0/24"},
	}
	if err := pm.Add(profile); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reloaded, err := NewProfileManagerAt(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := reloaded.Get(profile.ID)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.Username)
	}
	if len(got.DNSServers) != 1 || got.DNSServers[0] != "10.8.0.1" {
		t.Errorf("DNSServers = %v, want [10.8.0.1]", got.DNSServers)
	}
	if !got.SplitTunnelEnabled || got.SplitTunnelMode != common.SplitTunnelModeInclude {
		t.Errorf("split tunnel config lost: %+v", got)
	}
	if len(got.SplitTunnelRoutes) != 1 || got.SplitTunnelRoutes[0] != "192.168.1.0/24" {
		t.Errorf("SplitTunnelRoutes = %v, want [192.168.1.0/24]", got.SplitTunnelRoutes)
	}
}

func TestProfileManager_Update(t *testing.T) {
	pm, dir := newTestManager(t)
	src := writeTestConfig(t, dir)

	profile := &Profile{Name: "work", ConfigPath: src}
	if err := pm.Add(profile); err != nil {
		t.Fatalf("Add: %v", err)
	}

	profile.Username = "bob"
	if err := pm.Update(profile); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, err := NewProfileManagerAt(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := reloaded.Get(profile.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Username != "bob" {
		t.Errorf("Username = %q, want bob", got.Username)
	}

	if err := pm.Update(&Profile{ID: "missing"}); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Update(missing) = %v, want %v", err, ErrProfileNotFound)
	}
}

func TestProfileManager_MarkUsed(t *testing.T) {
	pm, dir := newTestManager(t)
	src := writeTestConfig(t, dir)

	profile := &Profile{Name: "work", ConfigPath: src}
	if err := pm.Add(profile); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !profile.LastUsed.IsZero() {
		t.Fatal("LastUsed set before first use")
	}

	if err := pm.MarkUsed(profile.ID); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	got, _ := pm.Get(profile.ID)
	if got.LastUsed.IsZero() {
		t.Error("LastUsed not stamped")
	}

	if err := pm.MarkUsed("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("MarkUsed(missing) = %v, want %v", err, ErrProfileNotFound)
	}
}

func TestProfileManager_List(t *testing.T) {
	pm, dir := newTestManager(t)
	src := writeTestConfig(t, dir)

	if got := pm.List(); len(got) != 0 {
		t.Fatalf("List on empty manager = %d profiles", len(got))
	}

	for _, name := range []string{"one", "two", "three"} {
		if err := pm.Add(&Profile{Name: name, ConfigPath: src}); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}
	if got := pm.List(); len(got) != 3 {
		t.Errorf("List = %d profiles, want 3", len(got))
	}
}

func TestValidateConfigFile(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"ovpn with client directive", write("a.ovpn", "client\ndev tun\n"), false},
		{"conf with remote directive", write("b.conf", "remote vpn.example.com 1194\n"), false},
		{"wrong extension", write("c.txt", "client\n"), true},
		{"no directives", write("d.ovpn", "verb 3\ncipher AES-256-GCM\n"), true},
		{"missing file", filepath.Join(dir, "nope.ovpn"), true},
		{"directory", dir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigFile(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfigFile(%q) = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"complete", Profile{Name: "work", ConfigPath: "/etc/work.ovpn"}, false},
		{"missing name", Profile{ConfigPath: "/etc/work.ovpn"}, true},
		{"missing config path", Profile{Name: "work"}, true},
		{
			"split tunnel include",
			Profile{
				Name: "work", ConfigPath: "/etc/work.ovpn",
				SplitTunnelEnabled: true,
				SplitTunnelMode:    common.SplitTunnelModeInclude,
			},
			false,
		},
		{
			"split tunnel exclude",
			Profile{
				Name: "work", ConfigPath: "/etc/work.ovpn",
				SplitTunnelEnabled: true,
				SplitTunnelMode:    common.SplitTunnelModeExclude,
			},
			false,
		},
		{
			"split tunnel without mode",
			Profile{
				Name: "work", ConfigPath: "/etc/work.ovpn",
				SplitTunnelEnabled: true,
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfile_RouteEditing(t *testing.T) {
	p := &Profile{Name: "work"}

	if !p.AddRoute("192.168.1.0/24") {
		t.Error("AddRoute(new) = false, want true")
	}
	if p.AddRoute("192.168.1.0/24") {
		t.Error("AddRoute(duplicate) = true, want false")
	}
	if !p.AddRoute("8.8.8.8") {
		t.Error("AddRoute(second) = false, want true")
	}
	if len(p.SplitTunnelRoutes) != 2 {
		t.Fatalf("routes = %v, want 2 entries", p.SplitTunnelRoutes)
	}

	p.RemoveRoute("192.168.1.0/24")
	if len(p.SplitTunnelRoutes) != 1 || p.SplitTunnelRoutes[0] != "8.8.8.8" {
		t.Errorf("routes after removal = %v, want [8.8.8.8]", p.SplitTunnelRoutes)
	}

	// Removing an absent route is a no-op.
	p.RemoveRoute("10.0.0.0/8")
	if len(p.SplitTunnelRoutes) != 1 {
		t.Errorf("routes = %v, want unchanged", p.SplitTunnelRoutes)
	}
}
