package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
)

// Load loads configuration from the specified file, applies defaults, expands
// local paths and runs the validation gate. Any validation failure rejects the
// whole file.
func Load(configPath string) (*Config, error) {
	if envPath, err := loadEnvFile(filepath.Dir(configPath), "."); err == nil {
		slog.Debug("Loaded environment variables", logfields.Path(envPath))
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gsberrors.ConfigNotFound(configPath)
		}
		return nil, gsberrors.ConfigInvalid(configPath, err)
	}

	cfg, err := Parse(data, formatFor(configPath))
	if err != nil {
		return nil, gsberrors.ConfigInvalid(configPath, err)
	}
	cfg.path = configPath

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("Configuration loaded",
		logfields.Path(configPath),
		slog.Int("items", len(cfg.Items)),
		slog.Int("aliases", len(cfg.Aliases)))
	return cfg, nil
}

// Format identifies a configuration encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Parse decodes raw configuration bytes and applies defaults. Paths are not
// expanded and the result is not validated.
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// expandPaths resolves ~ and $VAR references in local paths.
func (c *Config) expandPaths() error {
	for i := range c.Items {
		it := &c.Items[i]
		if it.DefaultSource != "" {
			p, err := ExpandPath(it.DefaultSource)
			if err != nil {
				return gsberrors.InvalidItem(it.PathInRepo, err.Error())
			}
			it.DefaultSource = p
		}
		for token, src := range it.Sources {
			p, err := ExpandPath(src)
			if err != nil {
				return gsberrors.InvalidItem(it.PathInRepo, err.Error())
			}
			it.Sources[token] = p
		}
	}
	return nil
}

// ExpandPath expands a leading ~ and environment variables, then cleans the result.
func ExpandPath(p string) (string, error) {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", p, err)
		}
		p = filepath.Join(home, p[1:])
	}
	return filepath.Clean(p), nil
}
