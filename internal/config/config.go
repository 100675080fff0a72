// Package config resolves client configuration from defaults, the
// optional ~/.mfalite/config.yaml file, and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultServer   = "http://localhost:8080"
	DefaultBasePath = "/v1"
	DefaultTimeout  = 30 * time.Second
)

// EnvServer overrides the server URL when set.
const EnvServer = "MFALITE_SERVER"

// Config holds client settings.
type Config struct {
	Server          string        `yaml:"server"`           // backend origin, e.g. https://mfa.example.com
	BasePath        string        `yaml:"base_path"`        // API base path, default /v1
	Timeout         time.Duration `yaml:"timeout"`          // per-request timeout
	CredentialsFile string        `yaml:"credentials_file"` // persisted identity record
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// Default returns the built-in settings. The credentials file lives next
// to the config file under ~/.mfalite.
func Default() Config {
	return Config{
		Server:          DefaultServer,
		BasePath:        DefaultBasePath,
		Timeout:         DefaultTimeout,
		CredentialsFile: filepath.Join(configDir(), "credentials.json"),
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// UnmarshalYAML overlays file values onto whatever the Config already
// holds; absent keys keep their current value. Timeout is written as a Go
// duration string ("30s", "2m").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Server          string `yaml:"server"`
		BasePath        string `yaml:"base_path"`
		Timeout         string `yaml:"timeout"`
		CredentialsFile string `yaml:"credentials_file"`
		LogLevel        string `yaml:"log_level"`
		LogFormat       string `yaml:"log_format"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Server != "" {
		c.Server = raw.Server
	}
	if raw.BasePath != "" {
		c.BasePath = raw.BasePath
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	if raw.CredentialsFile != "" {
		c.CredentialsFile = raw.CredentialsFile
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.LogFormat != "" {
		c.LogFormat = raw.LogFormat
	}
	return nil
}

// Load reads the YAML config at path, overlaying it on the defaults and
// then applying environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if s := os.Getenv(EnvServer); s != "" {
		cfg.Server = s
	}
	return cfg, nil
}

// DefaultPath returns the standard config file location,
// ~/.mfalite/config.yaml.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// BaseURL joins the server origin and API base path.
func (c Config) BaseURL() string {
	return strings.TrimRight(c.Server, "/") + c.BasePath
}

// WithServer returns a copy of the config pointing at a different server.
func (c Config) WithServer(server string) Config {
	c.Server = server
	return c
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mfalite"
	}
	return filepath.Join(home, ".mfalite")
}
