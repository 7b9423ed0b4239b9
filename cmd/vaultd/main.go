// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/vaultd/lib/audit"
	"github.com/bureau-foundation/vaultd/lib/clock"
	"github.com/bureau-foundation/vaultd/lib/config"
	"github.com/bureau-foundation/vaultd/lib/cryptfs"
	"github.com/bureau-foundation/vaultd/lib/keyring"
	"github.com/bureau-foundation/vaultd/lib/process"
	"github.com/bureau-foundation/vaultd/lib/service"
	"github.com/bureau-foundation/vaultd/lib/version"
	"github.com/bureau-foundation/vaultd/lifecycle"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		settingsPath string
		configPath   string
		socketPath   string
		logLevel     string
		showVersion  bool
	)
	flags := pflag.NewFlagSet("vaultd", pflag.ContinueOnError)
	flags.StringVar(&settingsPath, "settings", "", "daemon settings file (YAML, or JSON/JSONC by extension)")
	flags.StringVar(&configPath, "config", "", "vault config document (overrides settings)")
	flags.StringVar(&socketPath, "socket", "", "control socket path (overrides settings)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides settings)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("vaultd %s\n", version.Info())
		return nil
	}

	settings, err := loadSettings(settingsPath)
	if err != nil {
		return err
	}
	if configPath != "" {
		settings.ConfigPath = configPath
	}
	if socketPath != "" {
		settings.SocketPath = socketPath
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := settings.EnsureDirectories(); err != nil {
		return err
	}

	level, err := service.ParseLevel(settings.LogLevel)
	if err != nil {
		return err
	}
	logger := service.NewLogger(os.Stderr, level)

	clk := clock.Real()

	passwords, err := openKeyring(settings)
	if err != nil {
		return err
	}
	if closer, ok := passwords.(io.Closer); ok {
		defer closer.Close()
	}

	auditLog, err := audit.Open(filepath.Join(settings.StateDir, "audit.db"), clk)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	store := config.NewStore(settings.ConfigPath)
	store.SetLogger(logger.With("component", "config"))

	manager, err := lifecycle.NewManager(lifecycle.Config{
		Store:   store,
		Engine:  mountEngine{engine: cryptfs.NewEngine(logger.With("component", "cryptfs"))},
		Keyring: passwords,
		Auditor: auditLog,
		MountOptions: lifecycle.MountOptions{
			AllowRoot:  settings.Mount.AllowRoot,
			AllowOther: settings.Mount.AllowOther,
			DirectIO:   settings.Mount.DirectIO,
			Suid:       settings.Mount.Suid,
		},
		Clock:  clk,
		Logger: logger.With("component", "lifecycle"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := service.NewSocketServer(settings.SocketPath, logger)
	control := newControlService(manager, auditLog, clk)
	control.register(server)

	logger.Info("vaultd starting",
		"version", version.Short(),
		"socket", settings.SocketPath,
		"config", settings.ConfigPath,
		"keyring", settings.Keyring.Backend,
		"vaults", len(manager.List()),
	)

	serveErr := server.Serve(ctx)
	if serveErr != nil {
		logger.Error("control socket failed", "error", serveErr)
	}

	logger.Info("shutting down, locking vaults", "timeout", settings.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()
	shutdownErr := manager.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		logger.Error("vaults left unlocked at exit", "error", shutdownErr)
	}
	return errors.Join(serveErr, shutdownErr)
}

// loadSettings reads path, or the defaults when path is empty.
func loadSettings(path string) (*config.Settings, error) {
	if path == "" {
		return config.DefaultSettings(), nil
	}
	return config.LoadSettings(path)
}

func openKeyring(settings *config.Settings) (keyring.Keyring, error) {
	switch settings.Keyring.Backend {
	case config.KeyringOS:
		return keyring.NewOS(settings.Keyring.Service), nil
	case config.KeyringFile:
		directory := filepath.Join(settings.StateDir, "keyring")
		if err := os.MkdirAll(directory, 0o700); err != nil {
			return nil, fmt.Errorf("creating keyring directory: %w", err)
		}
		return keyring.NewFile(directory), nil
	default:
		return nil, fmt.Errorf("unknown keyring backend %q", settings.Keyring.Backend)
	}
}
