package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPaths(t *testing.T) {
	p := &Paths{HomeDir: "/home/test"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BaseDir", p.BaseDir(), "/home/test/.unitsynth"},
		{"ConfigFile", p.ConfigFile(), "/home/test/.unitsynth/config.yaml"},
		{"VoicesDir", p.VoicesDir(), "/home/test/.unitsynth/voices"},
		{"CacheDir", p.CacheDir(), "/home/test/.unitsynth/cache"},
		{"SnapshotDir", p.SnapshotDir("", "alice"), "/home/test/.unitsynth/cache/snapshots/alice"},
		{"SnapshotDir custom", p.SnapshotDir("/tmp/c", "bob"), "/tmp/c/snapshots/bob"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPaths_Resolve(t *testing.T) {
	p := &Paths{HomeDir: "/home/test"}
	voices, cache := p.Resolve(&Config{})
	if voices != "/home/test/.unitsynth/voices" || cache != "/home/test/.unitsynth/cache" {
		t.Errorf("defaults = %q, %q", voices, cache)
	}
	voices, cache = p.Resolve(&Config{VoicesDir: "/v", CacheDir: "/c"})
	if voices != "/v" || cache != "/c" {
		t.Errorf("configured = %q, %q", voices, cache)
	}
}

func TestNewPaths(t *testing.T) {
	p, err := NewPaths()
	if err != nil {
		t.Fatalf("NewPaths error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if p.HomeDir != home {
		t.Errorf("HomeDir = %q, want %q", p.HomeDir, home)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}
