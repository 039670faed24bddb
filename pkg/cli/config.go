package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/unitsynth/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".unitsynth"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config holds the settings shared by all unitsynth commands. Flags override
// file values; zero values fall back to the package defaults of the
// component that reads them.
type Config struct {
	// VoicesDir holds one corpus directory per voice.
	VoicesDir string `yaml:"voices_dir,omitempty"`

	// CacheDir holds inventory snapshots. Defaults to ~/.unitsynth/cache.
	CacheDir string `yaml:"cache_dir,omitempty"`

	Strategy         string   `yaml:"strategy,omitempty"`
	Heuristic        string   `yaml:"heuristic,omitempty"`
	Crossfade        *bool    `yaml:"crossfade,omitempty"`
	CrossfadeOverlap *float64 `yaml:"crossfade_overlap,omitempty"`

	// AudioPolicy is "memory" or "disk".
	AudioPolicy string `yaml:"audio_policy,omitempty"`

	PhoneTier string `yaml:"phone_tier,omitempty"`
	WordTier  string `yaml:"word_tier,omitempty"`

	// Lexicon is a CMUdict file merged into the corpus lexicon.
	Lexicon string `yaml:"lexicon,omitempty"`

	// Taxonomy is a typeme YAML file replacing the built-in tree.
	Taxonomy string `yaml:"taxonomy,omitempty"`

	// Missing is "fail", "skip" or "silence".
	Missing string `yaml:"missing,omitempty"`

	SampleRate int `yaml:"sample_rate,omitempty"`

	// S3 reads corpora from a bucket instead of VoicesDir.
	S3 *storage.S3Config `yaml:"s3,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// LoadConfig loads the configuration from path, or from
// ~/.unitsynth/config.yaml when path is empty. A missing file yields an
// empty configuration; it is only created by Save.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := NewPaths()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = p.ConfigFile()
	}
	cfg := &Config{configPath: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.configPath = path
	return cfg, nil
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// CrossfadeOr returns the crossfade setting, or def when unset.
func (c *Config) CrossfadeOr(def bool) bool {
	if c.Crossfade == nil {
		return def
	}
	return *c.Crossfade
}

// OverlapOr returns the crossfade overlap, or def when unset.
func (c *Config) OverlapOr(def float64) float64 {
	if c.CrossfadeOverlap == nil {
		return def
	}
	return *c.CrossfadeOverlap
}

// Keys lists the keys accepted by Get and Set.
func Keys() []string {
	return []string{
		"voices_dir", "cache_dir", "strategy", "heuristic", "crossfade",
		"crossfade_overlap", "audio_policy", "phone_tier", "word_tier",
		"lexicon", "taxonomy", "missing", "sample_rate",
		"s3.bucket", "s3.prefix", "s3.region", "s3.endpoint", "s3.path_style",
	}
}

// Get returns the value of key as text; unset values are "".
func (c *Config) Get(key string) (string, error) {
	s := c.S3
	if s == nil {
		s = &storage.S3Config{}
	}
	switch key {
	case "voices_dir":
		return c.VoicesDir, nil
	case "cache_dir":
		return c.CacheDir, nil
	case "strategy":
		return c.Strategy, nil
	case "heuristic":
		return c.Heuristic, nil
	case "crossfade":
		if c.Crossfade == nil {
			return "", nil
		}
		return strconv.FormatBool(*c.Crossfade), nil
	case "crossfade_overlap":
		if c.CrossfadeOverlap == nil {
			return "", nil
		}
		return strconv.FormatFloat(*c.CrossfadeOverlap, 'g', -1, 64), nil
	case "audio_policy":
		return c.AudioPolicy, nil
	case "phone_tier":
		return c.PhoneTier, nil
	case "word_tier":
		return c.WordTier, nil
	case "lexicon":
		return c.Lexicon, nil
	case "taxonomy":
		return c.Taxonomy, nil
	case "missing":
		return c.Missing, nil
	case "sample_rate":
		if c.SampleRate == 0 {
			return "", nil
		}
		return strconv.Itoa(c.SampleRate), nil
	case "s3.bucket":
		return s.Bucket, nil
	case "s3.prefix":
		return s.Prefix, nil
	case "s3.region":
		return s.Region, nil
	case "s3.endpoint":
		return s.Endpoint, nil
	case "s3.path_style":
		return strconv.FormatBool(s.PathStyle), nil
	}
	return "", unknownKey(key)
}

// Set parses value and stores it under key. It does not save.
func (c *Config) Set(key, value string) error {
	if strings.HasPrefix(key, "s3.") && c.S3 == nil {
		c.S3 = &storage.S3Config{}
	}
	switch key {
	case "voices_dir":
		c.VoicesDir = value
	case "cache_dir":
		c.CacheDir = value
	case "strategy":
		c.Strategy = value
	case "heuristic":
		c.Heuristic = value
	case "crossfade":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("crossfade: %w", err)
		}
		c.Crossfade = &b
	case "crossfade_overlap":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("crossfade_overlap: %w", err)
		}
		c.CrossfadeOverlap = &v
	case "audio_policy":
		c.AudioPolicy = value
	case "phone_tier":
		c.PhoneTier = value
	case "word_tier":
		c.WordTier = value
	case "lexicon":
		c.Lexicon = value
	case "taxonomy":
		c.Taxonomy = value
	case "missing":
		c.Missing = value
	case "sample_rate":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		c.SampleRate = n
	case "s3.bucket":
		c.S3.Bucket = value
	case "s3.prefix":
		c.S3.Prefix = value
	case "s3.region":
		c.S3.Region = value
	case "s3.endpoint":
		c.S3.Endpoint = value
	case "s3.path_style":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("s3.path_style: %w", err)
		}
		c.S3.PathStyle = b
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key string) error {
	keys := Keys()
	slices.Sort(keys)
	return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(keys, ", "))
}
