// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Keyring backends.
const (
	// KeyringOS stores passwords in the desktop secret service
	// (libsecret, macOS Keychain, Windows Credential Manager).
	KeyringOS = "os"

	// KeyringFile stores passwords as age-sealed files in the state
	// directory, for headless machines without a secret service.
	KeyringFile = "file"
)

// Settings is the daemon configuration.
type Settings struct {
	// ConfigPath is the vault document managed by [Store].
	ConfigPath string `yaml:"config_path"`

	// SocketPath is the control socket.
	SocketPath string `yaml:"socket_path"`

	// StateDir holds the audit log and the sealed keyring.
	StateDir string `yaml:"state_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Keyring KeyringSettings `yaml:"keyring"`
	Mount   MountSettings   `yaml:"mount"`

	// ShutdownTimeout bounds how long the daemon spends locking
	// unlocked vaults on exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// KeyringSettings selects where vault passwords are stored.
type KeyringSettings struct {
	// Backend is KeyringOS or KeyringFile.
	Backend string `yaml:"backend"`

	// Service is the OS keyring service name entries are filed under.
	Service string `yaml:"service"`
}

// MountSettings are passed to every FUSE mount.
type MountSettings struct {
	AllowRoot  bool `yaml:"allow_root"`
	AllowOther bool `yaml:"allow_other"`
	DirectIO   bool `yaml:"direct_io"`
	Suid       bool `yaml:"suid"`
}

// DefaultSettings derives paths from the XDG base directories.
func DefaultSettings() *Settings {
	return &Settings{
		ConfigPath: DefaultConfigPath(),
		SocketPath: defaultSocketPath(),
		StateDir:   defaultStateDir(),
		LogLevel:   "info",
		Keyring: KeyringSettings{
			Backend: KeyringOS,
			Service: "vaultd",
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/vaultd/config.yaml.
func DefaultConfigPath() string {
	directory, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		directory = filepath.Join(home, ".config")
	}
	return filepath.Join(directory, "vaultd", "config.yaml")
}

// DefaultSocketPath is the socket vaultctl dials when neither a flag
// nor VAULTD_SOCKET names one.
func DefaultSocketPath() string {
	if path := os.Getenv("VAULTD_SOCKET"); path != "" {
		return path
	}
	return defaultSocketPath()
}

func defaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "vaultd", "control.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("vaultd-%d", os.Getuid()), "control.sock")
}

func defaultStateDir() string {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, "vaultd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "vaultd")
}

// LoadSettings reads path over DefaultSettings. Fields absent from the
// file keep their defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so the yaml tags serve both.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}

	settings.expandVariables()
	return settings, nil
}

func (s *Settings) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	s.StateDir = expandVars(s.StateDir, vars)
	vars["VAULTD_STATE"] = s.StateDir

	s.ConfigPath = expandVars(s.ConfigPath, vars)
	s.SocketPath = expandVars(s.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. vars takes
// precedence over the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the settings for errors.
func (s *Settings) Validate() error {
	var errs []error

	for name, path := range map[string]string{
		"config_path": s.ConfigPath,
		"socket_path": s.SocketPath,
		"state_dir":   s.StateDir,
	} {
		if path == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		} else if !filepath.IsAbs(path) {
			errs = append(errs, fmt.Errorf("%s must be absolute, got %q", name, path))
		}
	}

	switch s.Keyring.Backend {
	case KeyringOS:
		if s.Keyring.Service == "" {
			errs = append(errs, fmt.Errorf("keyring.service is required for the os backend"))
		}
	case KeyringFile:
	default:
		errs = append(errs, fmt.Errorf("keyring.backend must be one of: %s, %s", KeyringOS, KeyringFile))
	}

	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of: debug, info, warn, error"))
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// EnsureDirectories creates the state directory and the parents of
// the socket and config paths, all mode 0700.
func (s *Settings) EnsureDirectories() error {
	for _, directory := range []string{
		s.StateDir,
		filepath.Dir(s.SocketPath),
		filepath.Dir(s.ConfigPath),
	} {
		if err := os.MkdirAll(directory, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}
