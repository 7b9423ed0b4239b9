// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/vaultd/lib/secret"
	"github.com/bureau-foundation/vaultd/lib/vault"
)

// Options are the per-mount FUSE options.
type Options struct {
	// AllowRoot lets root access the mount in addition to the owner.
	AllowRoot bool

	// AllowOther lets every user access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// DirectIO bypasses the kernel page cache.
	DirectIO bool

	// Suid honors setuid bits on the mount.
	Suid bool
}

// Request describes one attach.
type Request struct {
	DataDir    string
	MountPoint string

	// Password is borrowed; the engine does not close it.
	Password *secret.Buffer

	// Cipher and Rounds are used when the data directory is
	// initialized. An existing directory must match them.
	Cipher vault.Cipher
	Rounds uint32

	Options Options
}

// Engine mounts data directories. One Engine serves every vault.
type Engine struct {
	logger *slog.Logger
	uid    uint32
	gid    uint32
}

// NewEngine returns an engine that presents files as owned by the
// calling process's user. A nil logger discards.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		logger: logger,
		uid:    uint32(unix.Getuid()),
		gid:    uint32(unix.Getgid()),
	}
}

// Probe reports whether dataDir can back a vault: an existing vault
// data directory, an empty directory, or a missing directory whose
// parent exists.
func (e *Engine) Probe(dataDir string) error {
	_, err := probe(dataDir)
	return err
}

// probe returns the existing header, or nil when the directory is
// missing or empty and would be initialized.
func probe(dataDir string) (*Header, error) {
	info, err := os.Stat(dataDir)
	if errors.Is(err, os.ErrNotExist) {
		parent, parentErr := os.Stat(filepath.Dir(dataDir))
		if parentErr != nil || !parent.IsDir() {
			return nil, vault.Errorf(vault.KindDataDir, "data dir %s does not exist and its parent is not a directory", dataDir)
		}
		return nil, nil
	}
	if err != nil {
		return nil, vault.Errorf(vault.KindDataDir, "data dir %s: %w", dataDir, err)
	}
	if !info.IsDir() {
		return nil, vault.Errorf(vault.KindDataDir, "data dir %s is not a directory", dataDir)
	}

	header, err := ReadHeader(dataDir)
	if err == nil {
		return header, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		if vault.KindOf(err) == vault.KindDataDir {
			return nil, err
		}
		return nil, vault.Errorf(vault.KindDataDir, "reading %s header: %w", dataDir, err)
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, vault.Errorf(vault.KindDataDir, "listing data dir %s: %w", dataDir, err)
	}
	if len(entries) > 0 {
		return nil, vault.Errorf(vault.KindDataDir, "data dir %s is not empty and has no %s", dataDir, HeaderName)
	}
	return nil, nil
}

// unlockKey validates or initializes the data directory and returns
// the verified volume key and the header in force.
func unlockKey(ctx context.Context, request Request) (*Header, *secret.Buffer, error) {
	header, err := probe(request.DataDir)
	if err != nil {
		return nil, nil, err
	}

	if header != nil {
		if header.Cipher != request.Cipher || header.Rounds != request.Rounds {
			return nil, nil, vault.Errorf(vault.KindDataDir,
				"data dir %s uses %s with %d rounds, vault record says %s with %d",
				request.DataDir, header.Cipher, header.Rounds, request.Cipher, request.Rounds)
		}
		key, err := deriveKey(request.Password, header)
		if err != nil {
			return nil, nil, err
		}
		if !header.verify(key) {
			key.Close()
			return nil, nil, vault.Errorf(vault.KindBadPassword, "password does not unlock %s", request.DataDir)
		}
		return header, key, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	header, err = newHeader(request.Cipher, request.Rounds)
	if err != nil {
		return nil, nil, err
	}
	key, err := deriveKey(request.Password, header)
	if err != nil {
		return nil, nil, err
	}
	header.Verifier = keyVerifier(key)

	if err := os.MkdirAll(request.DataDir, 0o700); err != nil {
		key.Close()
		return nil, nil, vault.Errorf(vault.KindDataDir, "creating data dir: %w", err)
	}
	if err := writeHeader(request.DataDir, header); err != nil {
		key.Close()
		return nil, nil, vault.Errorf(vault.KindDataDir, "initializing data dir: %w", err)
	}
	return header, key, nil
}

// checkMountPoint creates a missing mount point and rejects one that
// has entries or is already a mount.
func checkMountPoint(mountPoint, dataDir string) error {
	if isWithin(mountPoint, dataDir) || isWithin(dataDir, mountPoint) {
		return vault.Errorf(vault.KindMountFailed, "mount point %s and data dir %s overlap", mountPoint, dataDir)
	}
	if err := os.MkdirAll(mountPoint, 0o700); err != nil {
		return vault.Errorf(vault.KindMountFailed, "creating mount point: %w", err)
	}

	var self, parent unix.Stat_t
	if err := unix.Stat(mountPoint, &self); err != nil {
		return vault.Errorf(vault.KindMountFailed, "stat mount point: %w", err)
	}
	if err := unix.Stat(filepath.Dir(mountPoint), &parent); err != nil {
		return vault.Errorf(vault.KindMountFailed, "stat mount point parent: %w", err)
	}
	if self.Dev != parent.Dev {
		return vault.Errorf(vault.KindMountFailed, "%s is already a mount point", mountPoint)
	}

	entries, err := os.ReadDir(mountPoint)
	if err != nil {
		return vault.Errorf(vault.KindMountFailed, "reading mount point: %w", err)
	}
	if len(entries) > 0 {
		return vault.Errorf(vault.KindMountFailed, "mount point %s is not empty", mountPoint)
	}
	return nil
}

func isWithin(path, root string) bool {
	relative, err := filepath.Rel(root, path)
	return err == nil && relative != ".." && !strings.HasPrefix(relative, "../")
}

// Attach mounts the data directory at the mount point. Nothing stays
// mounted when it fails.
func (e *Engine) Attach(ctx context.Context, request Request) (*Session, error) {
	if request.Password == nil || request.Password.Len() == 0 {
		return nil, vault.Errorf(vault.KindBadPassword, "empty password")
	}
	dataDir := filepath.Clean(request.DataDir)
	mountPoint := filepath.Clean(request.MountPoint)
	request.DataDir, request.MountPoint = dataDir, mountPoint

	if err := checkMountPoint(mountPoint, dataDir); err != nil {
		return nil, err
	}

	header, key, err := unlockKey(ctx, request)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		key.Close()
		return nil, err
	}

	filesystem := &filesystem{
		dataDir: dataDir,
		sealer:  &sealer{cipher: header.Cipher, key: key},
		options: request.Options,
		uid:     e.uid,
		gid:     e.gid,
		logger:  e.logger.With("data_dir", dataDir),
	}

	entryTimeout := time.Second
	attrTimeout := time.Second
	mountOptions := fuse.MountOptions{
		FsName:     dataDir,
		Name:       "vaultd",
		AllowOther: request.Options.AllowOther || request.Options.AllowRoot,
	}
	if request.Options.Suid {
		mountOptions.Options = append(mountOptions.Options, "suid")
	}

	server, err := gofuse.Mount(mountPoint, filesystem.root(), &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: mountOptions,
		UID:          e.uid,
		GID:          e.gid,
	})
	if err != nil {
		key.Close()
		return nil, vault.Errorf(vault.KindMountFailed, "mounting %s: %w", mountPoint, err)
	}

	e.logger.Info("vault mounted", "mount_point", mountPoint, "data_dir", dataDir, "cipher", header.Cipher.String())
	return &Session{
		server:     server,
		key:        key,
		mountPoint: mountPoint,
		logger:     e.logger,
	}, nil
}

// Session is one live mount.
type Session struct {
	server     *fuse.Server
	key        *secret.Buffer
	mountPoint string
	logger     *slog.Logger

	mu       sync.Mutex
	detached bool
}

// MountPoint returns where the session is mounted.
func (s *Session) MountPoint() string {
	return s.mountPoint
}

// Detach unmounts. If the mount point is busy the error has kind
// detach_failed and the session stays mounted and usable. Detach after
// a successful Detach is a no-op.
func (s *Session) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return nil
	}

	if err := s.server.Unmount(); err != nil {
		return vault.Errorf(vault.KindDetachFailed, "unmounting %s: %w", s.mountPoint, err)
	}
	s.server.Wait()
	s.detached = true

	if err := s.key.Close(); err != nil {
		s.logger.Warn("releasing volume key failed", "mount_point", s.mountPoint, "error", err)
	}
	s.logger.Info("vault unmounted", "mount_point", s.mountPoint)
	return nil
}

// String identifies the session in logs.
func (s *Session) String() string {
	return fmt.Sprintf("cryptfs session at %s", s.mountPoint)
}
