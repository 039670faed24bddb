package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the unitsynth directory structure
type Paths struct {
	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a Paths rooted at the user's home directory
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base directory (~/.unitsynth)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.unitsynth/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// VoicesDir returns the default corpus directory (~/.unitsynth/voices)
func (p *Paths) VoicesDir() string {
	return filepath.Join(p.BaseDir(), "voices")
}

// CacheDir returns the cache directory (~/.unitsynth/cache)
func (p *Paths) CacheDir() string {
	return filepath.Join(p.BaseDir(), "cache")
}

// SnapshotDir returns the snapshot database of a voice under cacheDir, or
// under CacheDir when cacheDir is empty.
func (p *Paths) SnapshotDir(cacheDir, voice string) string {
	if cacheDir == "" {
		cacheDir = p.CacheDir()
	}
	return filepath.Join(cacheDir, "snapshots", voice)
}

// Resolve returns the configured directories with defaults filled in.
func (p *Paths) Resolve(cfg *Config) (voicesDir, cacheDir string) {
	voicesDir, cacheDir = cfg.VoicesDir, cfg.CacheDir
	if voicesDir == "" {
		voicesDir = p.VoicesDir()
	}
	if cacheDir == "" {
		cacheDir = p.CacheDir()
	}
	return voicesDir, cacheDir
}

// EnsureDir creates dir and its parents if they don't exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
