package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Init creates a new configuration file with example content. When deviceID
// is non-empty the current device is registered under the alias "this-device".
func Init(configPath string, force bool, deviceID string) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Example(deviceID)

	var (
		data []byte
		err  error
	)
	switch formatFor(configPath) {
	case FormatYAML:
		data, err = yaml.Marshal(exampleConfig)
	default:
		data, err = toml.Marshal(exampleConfig)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Example returns the configuration written by Init.
func Example(deviceID string) *Config {
	watch := true
	cfg := &Config{
		Version:      "1",
		SyncInterval: int64(DefaultSyncInterval.Seconds()),
		Workers:      DefaultWorkers,
		Git: GitConfig{
			Remote: DefaultRemote,
			Branch: DefaultBranch,
		},
		Daemon: DaemonConfig{WatchConfig: &watch},
		Items: []Item{
			{
				PathInRepo:    "shell/zshrc",
				DefaultSource: "~/.zshrc",
			},
			{
				PathInRepo:    "git/gitconfig",
				DefaultSource: "~/.gitconfig",
				IsHardlink:    true,
			},
		},
	}
	if deviceID != "" {
		cfg.Aliases = map[string]string{"this-device": deviceID}
		cfg.Items[0].Sources = map[string]string{"this-device": "~/.zshrc"}
	}
	return cfg
}
