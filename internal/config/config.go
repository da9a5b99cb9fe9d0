package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models careboard.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	UI struct {
		Theme string `yaml:"theme"`
	} `yaml:"ui"`
	Expertise struct {
		Catalog []string `yaml:"catalog"`
	} `yaml:"expertise"`
}

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Load reads and validates config from the workspace. Missing file yields defaults.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.UI.Theme != ThemeLight && c.UI.Theme != ThemeDark {
		return fmt.Errorf("config.ui.theme must be %q or %q", ThemeLight, ThemeDark)
	}
	for _, label := range c.Expertise.Catalog {
		if label == "" {
			return fmt.Errorf("config.expertise.catalog contains empty label")
		}
	}
	return nil
}

// KnowsExpertise reports whether a label is in the catalog. An empty catalog
// accepts any label; the vocabulary is then supplied by the remote store.
func (c *Config) KnowsExpertise(label string) bool {
	if len(c.Expertise.Catalog) == 0 {
		return true
	}
	for _, known := range c.Expertise.Catalog {
		if known == label {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "careboard.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the default config file into the workspace if absent.
func WriteDefault(workspace string) error {
	path := Path(workspace)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o644)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0

ui:
  theme: light

expertise:
  catalog:
    - cardiology
    - dermatology
    - general
    - neurology
    - oncology
    - pediatrics
    - psychiatry
    - radiology
`
