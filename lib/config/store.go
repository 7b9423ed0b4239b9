// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/vaultd/lib/vault"
)

var (
	// ErrNotFound is returned by Load when the document does not
	// exist. It wraps os.ErrNotExist.
	ErrNotFound = fmt.Errorf("config document not found: %w", os.ErrNotExist)

	// ErrMalformed is returned by Load when the document cannot be
	// parsed or holds an invalid record.
	ErrMalformed = errors.New("config document malformed")

	// ErrWrite wraps every Save failure.
	ErrWrite = errors.New("config document not written")
)

// DocumentVersion is written into every saved document.
const DocumentVersion = 1

// Document is the persisted set of vault records.
type Document struct {
	Version int           `yaml:"version"`
	Vaults  []vault.Vault `yaml:"vaults"`
}

// Clone returns a deep copy. Vault records hold no reference types, so
// copying the slice suffices.
func (d *Document) Clone() *Document {
	clone := &Document{Version: d.Version}
	if d.Vaults != nil {
		clone.Vaults = make([]vault.Vault, len(d.Vaults))
		copy(clone.Vaults, d.Vaults)
	}
	return clone
}

// Find returns the index of the record with id, or -1.
func (d *Document) Find(id string) int {
	for index := range d.Vaults {
		if d.Vaults[index].ID == id {
			return index
		}
	}
	return -1
}

// Validate checks every record and id uniqueness.
func (d *Document) Validate() error {
	seen := make(map[string]bool, len(d.Vaults))
	for index := range d.Vaults {
		record := &d.Vaults[index]
		if err := record.Validate(); err != nil {
			return fmt.Errorf("vault %d (%q): %w", index, record.ID, err)
		}
		if seen[record.ID] {
			return fmt.Errorf("duplicate vault id %q", record.ID)
		}
		seen[record.ID] = true
	}
	return nil
}

// Store reads and writes the document at one path.
type Store struct {
	path string

	// mu makes Save single-writer so temp files and renames from
	// concurrent callers never interleave.
	mu sync.Mutex

	logger *slog.Logger
}

// NewStore returns a store for path. Nothing is read until Load.
func NewStore(path string) *Store {
	return &Store{path: path, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// SetLogger sets where post-commit warnings go. A nil logger is
// ignored.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the document.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var document Document
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	if document.Version > DocumentVersion {
		return nil, fmt.Errorf("%w: %s: version %d is newer than supported version %d",
			ErrMalformed, s.path, document.Version, DocumentVersion)
	}
	for index := range document.Vaults {
		document.Vaults[index].Normalize()
	}
	if err := document.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	return &document, nil
}

// Save atomically replaces the document on disk with document. Once
// the rename has happened the save counts as committed: a failure to
// fsync the parent directory afterwards is logged, not returned, since
// the new document is already what Load will read.
func (s *Store) Save(document *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	toWrite := *document
	toWrite.Version = DocumentVersion
	data, err := yaml.Marshal(&toWrite)
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrWrite, err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := syncDir(filepath.Dir(s.path)); err != nil {
		s.logger.Warn("config document renamed into place but directory sync failed",
			"path", s.path, "error", err)
	}
	return nil
}

// syncDir is replaced in tests to simulate a failing directory fsync.
var syncDir = syncDirectory

// writeFileAtomic writes data to a temp file beside path, fsyncs it and
// renames it over path. It does not sync the parent directory.
func writeFileAtomic(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}

	temporary, err := os.CreateTemp(directory, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	temporaryPath := temporary.Name()
	committed := false
	defer func() {
		if !committed {
			temporary.Close()
			os.Remove(temporaryPath)
		}
	}()

	if err := temporary.Chmod(0o600); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	committed = true
	return nil
}

func syncDirectory(directory string) error {
	handle, err := os.Open(directory)
	if err != nil {
		return fmt.Errorf("opening %s for sync: %w", directory, err)
	}
	defer handle.Close()
	if err := handle.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", directory, err)
	}
	return nil
}
