package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"daygrid/internal/layout"
)

// ICSConfig describes a single calendar source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint. file:// URLs and bare paths
	// are read from disk.
	URL string `yaml:"url" json:"url"`
	// ID identifies the source in merged events and logs.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LayoutConfig mirrors layout.Options in YAML-friendly units.
type LayoutConfig struct {
	PxPerHour              float64  `yaml:"px_per_hour" json:"px_per_hour"`
	MergeThreshold         float64  `yaml:"merge_threshold" json:"merge_threshold"`
	BackgroundMinMinutes   int      `yaml:"background_min_minutes" json:"background_min_minutes"`
	MinIntervalMinutes     int      `yaml:"min_interval_minutes" json:"min_interval_minutes"`
	DefaultDurationMinutes int      `yaml:"default_duration_minutes" json:"default_duration_minutes"`
	MinHeightFactor        float64  `yaml:"min_height_factor" json:"min_height_factor"`
	MaxColumnStep          float64  `yaml:"max_column_step" json:"max_column_step"`
	CascadeSpan            float64  `yaml:"cascade_span" json:"cascade_span"`
	BackgroundPatterns     []string `yaml:"background_patterns" json:"background_patterns"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone days are laid out in (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron spec (e.g. "*/15 * * * *") for re-warming
	// today's layout.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds fetched ICS bodies and HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ICS is the list of calendar sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	Layout LayoutConfig `yaml:"layout" json:"layout"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

func defaultLayout() LayoutConfig {
	return LayoutConfig{
		PxPerHour:              layout.DefaultPxPerHour,
		MergeThreshold:         layout.DefaultMergeThreshold,
		BackgroundMinMinutes:   int(layout.DefaultBackgroundMinDuration / time.Minute),
		MinIntervalMinutes:     layout.DefaultMinIntervalMinutes,
		DefaultDurationMinutes: int(layout.DefaultEventDuration / time.Minute),
		MinHeightFactor:        layout.DefaultMinHeightFactor,
		MaxColumnStep:          layout.DefaultMaxColumnStep,
		CascadeSpan:            layout.DefaultCascadeSpan,
		BackgroundPatterns:     append([]string(nil), layout.DefaultBackgroundPatterns...),
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "UTC",
		RefreshCron: "*/15 * * * *",
		CacheDir:    "./var/ics-cache",
		ICS:         []ICSConfig{},
		Layout:      defaultLayout(),
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave like the defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}

	l := &c.Layout
	if l.PxPerHour <= 0 {
		l.PxPerHour = def.Layout.PxPerHour
	}
	if l.MergeThreshold <= 0 || l.MergeThreshold > 1 {
		l.MergeThreshold = def.Layout.MergeThreshold
	}
	if l.BackgroundMinMinutes <= 0 {
		l.BackgroundMinMinutes = def.Layout.BackgroundMinMinutes
	}
	if l.MinIntervalMinutes <= 0 {
		l.MinIntervalMinutes = def.Layout.MinIntervalMinutes
	}
	if l.DefaultDurationMinutes <= 0 {
		l.DefaultDurationMinutes = def.Layout.DefaultDurationMinutes
	}
	if l.MinHeightFactor <= 0 {
		l.MinHeightFactor = def.Layout.MinHeightFactor
	}
	if l.MaxColumnStep <= 0 || l.MaxColumnStep > 100 {
		l.MaxColumnStep = def.Layout.MaxColumnStep
	}
	if l.CascadeSpan <= 0 || l.CascadeSpan > 100 {
		l.CascadeSpan = def.Layout.CascadeSpan
	}
	// An explicit empty list disables keyword matching; only nil means unset.
	if l.BackgroundPatterns == nil {
		l.BackgroundPatterns = def.Layout.BackgroundPatterns
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

// LayoutOptions converts the layout section into engine options.
func (c *Config) LayoutOptions() layout.Options {
	l := c.Layout
	return layout.Options{
		PxPerHour:             l.PxPerHour,
		MergeThreshold:        l.MergeThreshold,
		BackgroundMinDuration: time.Duration(l.BackgroundMinMinutes) * time.Minute,
		MinIntervalMinutes:    l.MinIntervalMinutes,
		DefaultDuration:       time.Duration(l.DefaultDurationMinutes) * time.Minute,
		MinHeightFactor:       l.MinHeightFactor,
		MaxColumnStep:         l.MaxColumnStep,
		CascadeSpan:           l.CascadeSpan,
		BackgroundPatterns:    l.BackgroundPatterns,
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".daygrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
