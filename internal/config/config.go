package config

import (
	"time"
)

const (
	// FileName is the configuration file looked up at the repository root.
	FileName = ".gsb.config.toml"

	DefaultSyncInterval = 3600 * time.Second
	DefaultRemote       = "origin"
	DefaultBranch       = "main"
	DefaultWorkers      = 4
	DefaultAuthorName   = "gsb"
	DefaultAuthorEmail  = "gsb@localhost"
)

// AlternateFileNames are accepted when FileName is absent.
var AlternateFileNames = []string{".gsb.config.yaml", ".gsb.config.yml"}

// Config represents the application configuration
type Config struct {
	Version string `toml:"version" yaml:"version"`
	// SyncInterval is expressed in seconds.
	SyncInterval int64             `toml:"sync_interval,omitempty" yaml:"sync_interval,omitempty"`
	Workers      int               `toml:"workers,omitempty" yaml:"workers,omitempty"`
	Git          GitConfig         `toml:"git" yaml:"git"`
	Aliases      map[string]string `toml:"aliases,omitempty" yaml:"aliases,omitempty"`
	Daemon       DaemonConfig      `toml:"daemon" yaml:"daemon" comment:"collect_interval commits locally and the commits are never pushed.\nOnce the remote also moves, sync fails until the branch is pushed or reset."`
	Items        []Item            `toml:"item" yaml:"item"`

	path string
}

// GitConfig names the remote and branch the daemon follows.
type GitConfig struct {
	Remote      string `toml:"remote,omitempty" yaml:"remote,omitempty"`
	Branch      string `toml:"branch,omitempty" yaml:"branch,omitempty"`
	AuthorName  string `toml:"author_name,omitempty" yaml:"author_name,omitempty"`
	AuthorEmail string `toml:"author_email,omitempty" yaml:"author_email,omitempty"`
}

// DaemonConfig holds settings used only by `gsb sync`.
type DaemonConfig struct {
	// CollectInterval in seconds; zero disables periodic collection. The
	// resulting commits stay local, so a remote that also moves makes later
	// sync cycles fail with a diverged branch until they are pushed.
	CollectInterval int64  `toml:"collect_interval,omitempty" yaml:"collect_interval,omitempty"`
	MetricsAddr     string `toml:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	WatchConfig     *bool  `toml:"watch_config,omitempty" yaml:"watch_config,omitempty"`
}

// Item is one configured file or folder.
type Item struct {
	PathInRepo    string            `toml:"path_in_repo" yaml:"path_in_repo"`
	DefaultSource string            `toml:"default_source,omitempty" yaml:"default_source,omitempty"`
	Sources       map[string]string `toml:"sources,omitempty" yaml:"sources,omitempty"`
	IsHardlink    bool              `toml:"is_hardlink,omitempty" yaml:"is_hardlink,omitempty"`
	IgnoreCollect []string          `toml:"ignore_collect,omitempty" yaml:"ignore_collect,omitempty"`
	IgnoreRestore []string          `toml:"ignore_restore,omitempty" yaml:"ignore_restore,omitempty"`
	Ignore        []string          `toml:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// SyncConfig is the immutable per-run view of the sync settings.
type SyncConfig struct {
	Interval time.Duration
	Remote   string
	Branch   string
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string { return c.path }

// Sync returns the sync settings with defaults applied.
func (c *Config) Sync() SyncConfig {
	return SyncConfig{
		Interval: c.SyncIntervalDuration(),
		Remote:   c.Git.Remote,
		Branch:   c.Git.Branch,
	}
}

// SyncIntervalDuration converts the configured seconds into a duration.
func (c *Config) SyncIntervalDuration() time.Duration {
	if c.SyncInterval <= 0 {
		return DefaultSyncInterval
	}
	return time.Duration(c.SyncInterval) * time.Second
}

// CollectIntervalDuration returns zero when periodic collection is disabled.
func (d DaemonConfig) CollectIntervalDuration() time.Duration {
	if d.CollectInterval <= 0 {
		return 0
	}
	return time.Duration(d.CollectInterval) * time.Second
}

// WatchEnabled defaults to true.
func (d DaemonConfig) WatchEnabled() bool {
	return d.WatchConfig == nil || *d.WatchConfig
}

// applyDefaults fills zero values with defaults.
func (c *Config) applyDefaults() {
	if c.SyncInterval <= 0 {
		c.SyncInterval = int64(DefaultSyncInterval / time.Second)
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Git.Remote == "" {
		c.Git.Remote = DefaultRemote
	}
	if c.Git.Branch == "" {
		c.Git.Branch = DefaultBranch
	}
	if c.Git.AuthorName == "" {
		c.Git.AuthorName = DefaultAuthorName
	}
	if c.Git.AuthorEmail == "" {
		c.Git.AuthorEmail = DefaultAuthorEmail
	}
}
