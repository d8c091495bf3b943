package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/gobwas/glob"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	hlberrors "hlb/internal/errors"
	"hlb/internal/retention"
)

// AppName names the config and state directories.
const AppName = "hlb"

// Destination is where a target's snapshots live. An empty Host means the
// local filesystem; otherwise Host is an SSH destination such as user@nas.
type Destination struct {
	Path string `yaml:"path"`
	Host string `yaml:"host,omitempty"`
}

// Remote reports whether the destination is reached over SSH.
func (d Destination) Remote() bool {
	return d.Host != ""
}

func (d Destination) String() string {
	if d.Remote() {
		return d.Host + ":" + d.Path
	}
	return d.Path
}

type Target struct {
	Name        string           `yaml:"name"`
	Source      string           `yaml:"source"`
	Destination Destination      `yaml:"destination"`
	Exclude     []string         `yaml:"exclude,omitempty"`
	Retention   retention.Policy `yaml:"retention"`
	Schedule    string           `yaml:"schedule,omitempty"`
	RsyncArgs   []string         `yaml:"rsync_args,omitempty"`

	excludes []glob.Glob
}

type S3Config struct {
	Enabled      bool               `yaml:"enabled"`
	Bucket       string             `yaml:"bucket"`
	Prefix       string             `yaml:"prefix"`
	Region       string             `yaml:"region"`
	Endpoint     string             `yaml:"endpoint"`
	StorageClass types.StorageClass `yaml:"storage_class"`
	Retry        struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"retry,omitempty"`
}

type Config struct {
	StateDir     string   `yaml:"state_dir"`
	LogLevel     string   `yaml:"log_level"`
	AgePublicKey string   `yaml:"age_public_key,omitempty"`
	S3           S3Config `yaml:"s3"`
	Targets      []Target `yaml:"targets"`
}

// DefaultPath is the config file used when --config is not given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads, defaults and validates the config file. Every failure is a
// configuration error.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "reading config file"), hlberrors.ErrConfiguration)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parsing config file"), hlberrors.ErrConfiguration)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StateDir == "" {
		c.StateDir = filepath.Join(xdg.StateHome, AppName)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.S3.StorageClass == "" {
		c.S3.StorageClass = types.StorageClassStandard
	}
	for i := range c.Targets {
		c.Targets[i].Retention = c.Targets[i].Retention.WithDefaults()
	}
}

func (c *Config) Validate() error {
	if c.StateDir == "" {
		return hlberrors.Configf("state_dir is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.AgePublicKey != "" && !strings.HasPrefix(c.AgePublicKey, "age1") {
		return hlberrors.Configf("age_public_key must start with 'age1'")
	}

	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if err := t.validate(i); err != nil {
			return err
		}
		if seen[t.Name] {
			return hlberrors.Configf("targets[%d].name %q is declared twice", i, t.Name)
		}
		seen[t.Name] = true
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return hlberrors.Configf("s3.bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" {
			return hlberrors.Configf("s3.region is required when s3 is enabled")
		}
	}
	return nil
}

func (t *Target) validate(i int) error {
	if t.Name == "" {
		return hlberrors.Configf("targets[%d].name is required", i)
	}
	if t.Source == "" {
		return hlberrors.Configf("targets[%d].source is required", i)
	}
	if t.Destination.Path == "" {
		return hlberrors.Configf("targets[%d].destination.path is required", i)
	}
	if !filepath.IsAbs(t.Destination.Path) {
		return hlberrors.Configf("targets[%d].destination.path must be absolute, got %q", i, t.Destination.Path)
	}
	if err := t.Retention.Validate(); err != nil {
		return errors.Wrapf(err, "target %s", t.Name)
	}
	if t.Schedule != "" {
		if _, err := cron.ParseStandard(t.Schedule); err != nil {
			return errors.Mark(errors.Wrapf(err, "targets[%d].schedule", i), hlberrors.ErrConfiguration)
		}
	}

	t.excludes = t.excludes[:0]
	for _, pattern := range t.Exclude {
		g, err := compileExclude(pattern)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "targets[%d].exclude %q", i, pattern), hlberrors.ErrConfiguration)
		}
		t.excludes = append(t.excludes, g)
	}
	return nil
}

// Resolve returns the named target, or the first declared target when name
// is empty.
func (c *Config) Resolve(name string) (*Target, error) {
	if len(c.Targets) == 0 {
		return nil, errors.Mark(hlberrors.Configf("no targets defined in config"), hlberrors.ErrNoTargets)
	}
	if name == "" {
		return &c.Targets[0], nil
	}
	for i := range c.Targets {
		if c.Targets[i].Name == name {
			return &c.Targets[i], nil
		}
	}
	return nil, errors.Mark(hlberrors.Configf("target not found: %s", name), hlberrors.ErrTargetNotFound)
}

// S3RetryAttempts returns the configured retry attempts, 3 by default.
func (c *Config) S3RetryAttempts() int {
	if c.S3.Retry.MaxAttempts > 0 {
		return c.S3.Retry.MaxAttempts
	}
	return 3
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, hlberrors.Configf("log_level must be one of debug, info, warn, error, got %q", s)
}
