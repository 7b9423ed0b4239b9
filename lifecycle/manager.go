// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/vaultd/lib/clock"
	"github.com/bureau-foundation/vaultd/lib/config"
	"github.com/bureau-foundation/vaultd/lib/keyring"
	"github.com/bureau-foundation/vaultd/lib/secret"
	"github.com/bureau-foundation/vaultd/lib/vault"
)

// Operation names, used in errors, logs and audit events.
const (
	opUnlock           = "unlock"
	opLock             = "lock"
	opInsert           = "insert"
	opRemove           = "remove"
	opChangeMountPoint = "change-mount-point"
	opChangeDataDir    = "change-data-dir"
	opRename           = "rename"
	opSetPassword      = "set-password"
)

var errNoSuchVault = errors.New("no such vault")

// shutdownRetryInterval is how long Shutdown waits before retrying a
// vault that is busy or whose mount point is still in use.
const shutdownRetryInterval = 500 * time.Millisecond

// Config holds the manager's collaborators.
type Config struct {
	Store   DocumentStore
	Engine  MountEngine
	Keyring keyring.Keyring

	// Auditor is optional.
	Auditor Auditor

	// MountOptions are applied to every attach.
	MountOptions MountOptions

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to discarding.
	Logger *slog.Logger
}

// Status is a point-in-time view of one vault.
type Status struct {
	Vault vault.Vault     `cbor:"vault" json:"vault"`
	State vault.LockState `cbor:"state" json:"state"`

	// Operation is the in-flight operation, if any.
	Operation string `cbor:"operation,omitempty" json:"operation,omitempty"`

	// UnlockedAt is zero unless the vault is unlocked.
	UnlockedAt time.Time `cbor:"unlocked_at,omitempty" json:"unlocked_at,omitempty"`
}

// Manager serializes control operations per vault and keeps the config
// document in step with mount state.
type Manager struct {
	store        DocumentStore
	engine       MountEngine
	keyring      keyring.Keyring
	auditor      Auditor
	mountOptions MountOptions
	clock        clock.Clock
	logger       *slog.Logger

	// mu guards entries and claims. It is never held across I/O.
	mu      sync.Mutex
	entries map[string]*entry

	// claims maps the mount point and data dir of every Unlocking or
	// Unlocked vault to its id.
	claims map[string]string

	// configMu guards document, which always equals the last
	// successful save (or the loaded file).
	configMu sync.Mutex
	document *config.Document
}

// NewManager loads the document and reconciles it. A missing document
// starts an empty set of vaults; it is first written by the first
// mutating operation. Records persisted as unlocked (a previous daemon
// exited with mounts live) are reset to locked and saved, since no
// session survives a restart.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil || cfg.Engine == nil || cfg.Keyring == nil {
		return nil, errors.New("lifecycle: Store, Engine and Keyring are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	document, err := cfg.Store.Load()
	if errors.Is(err, config.ErrNotFound) {
		cfg.Logger.Info("no config document yet, starting with no vaults")
		document = &config.Document{Version: config.DocumentVersion}
	} else if err != nil {
		return nil, fmt.Errorf("loading config document: %w", err)
	}

	manager := &Manager{
		store:        cfg.Store,
		engine:       cfg.Engine,
		keyring:      cfg.Keyring,
		auditor:      cfg.Auditor,
		mountOptions: cfg.MountOptions,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		entries:      make(map[string]*entry),
		claims:       make(map[string]string),
		document:     document,
	}

	var stale []string
	for _, record := range document.Vaults {
		if !record.Locked {
			stale = append(stale, record.ID)
		}
	}
	if len(stale) > 0 {
		manager.logger.Warn("vaults recorded as unlocked at startup, marking locked", "vaults", stale)
		err := manager.commit(func(next *config.Document) error {
			for index := range next.Vaults {
				next.Vaults[index].Locked = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reconciling lock state: %w", err)
		}
	}
	return manager, nil
}

// commit applies mutate to a copy of the document, saves the copy, and
// swaps it in. Errors from mutate are returned as-is; a save failure
// has kind config_not_saved and leaves the document untouched.
func (m *Manager) commit(mutate func(*config.Document) error) error {
	m.configMu.Lock()
	defer m.configMu.Unlock()

	next := m.document.Clone()
	if err := mutate(next); err != nil {
		return err
	}
	if err := m.store.Save(next); err != nil {
		return vault.Errorf(vault.KindConfigNotSaved, "saving config document: %w", err)
	}
	m.document = next
	return nil
}

// updateRecord commits a change to one record.
func (m *Manager) updateRecord(id string, mutate func(*vault.Vault)) error {
	return m.commit(func(next *config.Document) error {
		index := next.Find(id)
		if index < 0 {
			return vault.Errorf(vault.KindNotFound, "%w", errNoSuchVault)
		}
		mutate(&next.Vaults[index])
		return nil
	})
}

// record returns a copy of the stored record.
func (m *Manager) record(id string) (vault.Vault, bool) {
	m.configMu.Lock()
	defer m.configMu.Unlock()
	index := m.document.Find(id)
	if index < 0 {
		return vault.Vault{}, false
	}
	return m.document.Vaults[index], true
}

// lookup returns the runtime entry for id, creating it on first
// reference to a stored vault.
func (m *Manager) lookup(operation, id string) (*entry, error) {
	if _, ok := m.record(id); !ok {
		return nil, &vault.Error{Kind: vault.KindNotFound, Op: operation, ID: id, Err: errNoSuchVault}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = newEntry(id)
		m.entries[id] = e
	}
	return e, nil
}

// begin looks up id and acquires its entry for operation, then reads
// the record. The record read happens after the acquire so a
// concurrent Remove cannot slip in between.
func (m *Manager) begin(operation, id string, required vault.LockState) (*entry, vault.Vault, error) {
	e, err := m.lookup(operation, id)
	if err != nil {
		return nil, vault.Vault{}, err
	}
	if err := e.acquire(operation, required); err != nil {
		return nil, vault.Vault{}, err
	}
	record, ok := m.record(id)
	if !ok {
		e.markRemoved()
		m.forget(e)
		return nil, vault.Vault{}, &vault.Error{Kind: vault.KindNotFound, Op: operation, ID: id, Err: errNoSuchVault}
	}
	return e, record, nil
}

// forget drops e from the map if it is still the entry for its id.
func (m *Manager) forget(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[e.id] == e {
		delete(m.entries, e.id)
	}
}

// claim reserves the mount point and data dir of a vault that is about
// to be mounted. A path reserved by another vault is a conflict.
func (m *Manager) claim(record vault.Vault) error {
	paths := []string{filepath.Clean(record.MountPoint), filepath.Clean(record.DataDir)}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range paths {
		if owner, ok := m.claims[path]; ok && owner != record.ID {
			return vault.Errorf(vault.KindConflict, "%s is in use by unlocked vault %s", path, owner)
		}
	}
	for _, path := range paths {
		m.claims[path] = record.ID
	}
	return nil
}

func (m *Manager) unclaim(record vault.Vault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range []string{filepath.Clean(record.MountPoint), filepath.Clean(record.DataDir)} {
		if m.claims[path] == record.ID {
			delete(m.claims, path)
		}
	}
}

// claimant returns the id of the unlocked vault using path, if any.
func (m *Manager) claimant(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.claims[filepath.Clean(path)]
	return owner, ok
}

// audit records an outcome. Audit failures never fail the operation.
func (m *Manager) audit(id, operation string, err error) {
	if m.auditor == nil || id == "" {
		return
	}
	if auditErr := m.auditor.Record(id, operation, string(vault.KindOf(err)), err); auditErr != nil {
		m.logger.Warn("recording audit event failed", "vault", id, "action", operation, "error", auditErr)
	}
}

// finish logs and audits the outcome of operation and returns err.
func (m *Manager) finish(id, operation string, err error) error {
	m.audit(id, operation, err)
	if err != nil {
		kind := vault.KindOf(err)
		if kind.IsBusy() || kind.IsClientError() {
			m.logger.Debug("operation rejected", "vault", id, "action", operation, "kind", string(kind), "error", err)
		} else {
			m.logger.Warn("operation failed", "vault", id, "action", operation, "kind", string(kind), "error", err)
		}
	}
	return err
}

func (m *Manager) mountRequest(record vault.Vault, password *secret.Buffer) MountRequest {
	return MountRequest{
		VaultID:    record.ID,
		DataDir:    record.DataDir,
		MountPoint: record.MountPoint,
		Password:   password,
		Cipher:     record.Cipher,
		Rounds:     record.DeriveKeyHashRounds,
		Options:    m.mountOptions,
	}
}

// attach fetches the password and mounts record.
func (m *Manager) attach(ctx context.Context, record vault.Vault) (Session, error) {
	password, err := m.keyring.Get(record.ID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, vault.Errorf(vault.KindKeyring, "no password stored for vault: %w", err)
		}
		return nil, vault.Errorf(vault.KindKeyring, "fetching password: %w", err)
	}
	defer password.Close()

	session, err := m.engine.Attach(ctx, m.mountRequest(record, password))
	if err != nil {
		return nil, vault.Wrap(vault.KindMountFailed, "", "", err)
	}
	return session, nil
}

// Unlock mounts a locked vault.
func (m *Manager) Unlock(ctx context.Context, id string) error {
	return m.finish(id, opUnlock, m.unlock(ctx, id))
}

func (m *Manager) unlock(ctx context.Context, id string) error {
	e, record, err := m.begin(opUnlock, id, vault.Locked)
	if err != nil {
		return err
	}

	if err := m.claim(record); err != nil {
		e.settleLocked()
		return vault.Wrap(vault.KindConflict, opUnlock, id, err)
	}

	session, err := m.attach(ctx, record)
	if err != nil {
		m.unclaim(record)
		e.settleLocked()
		return vault.Wrap(vault.KindMountFailed, opUnlock, id, err)
	}

	saveErr := m.updateRecord(id, func(v *vault.Vault) { v.Locked = false })
	if saveErr == nil {
		e.settleUnlocked(session, m.clock.Now())
		m.logger.Info("vault unlocked", "vault", id, "mount_point", record.MountPoint)
		return nil
	}

	if detachErr := session.Detach(); detachErr != nil {
		// The mount is live and the document says locked. Keep the
		// session so a later Lock can still release it.
		m.logger.Error("vault state diverged from config",
			"vault", id, "runtime", vault.Unlocked.String(), "persisted", vault.Locked.String(),
			"save_error", saveErr, "rollback_error", detachErr)
		e.settleUnlocked(session, m.clock.Now())
		return vault.Wrap(vault.KindConfigNotSaved, opUnlock, id, errors.Join(saveErr, detachErr))
	}
	m.unclaim(record)
	e.settleLocked()
	return vault.Wrap(vault.KindConfigNotSaved, opUnlock, id, saveErr)
}

// Lock unmounts an unlocked vault. A busy mount point leaves the vault
// unlocked with its session intact.
func (m *Manager) Lock(ctx context.Context, id string) error {
	return m.finish(id, opLock, m.lock(ctx, id))
}

func (m *Manager) lock(ctx context.Context, id string) error {
	e, record, err := m.begin(opLock, id, vault.Unlocked)
	if err != nil {
		return err
	}

	session := e.held()
	if err := session.Detach(); err != nil {
		e.settle(vault.Unlocked)
		return vault.Wrap(vault.KindDetachFailed, opLock, id, err)
	}

	saveErr := m.updateRecord(id, func(v *vault.Vault) { v.Locked = true })
	if saveErr == nil {
		m.unclaim(record)
		e.settleLocked()
		m.logger.Info("vault locked", "vault", id, "mount_point", record.MountPoint)
		return nil
	}

	remounted, attachErr := m.attach(ctx, record)
	if attachErr != nil {
		m.logger.Error("vault state diverged from config",
			"vault", id, "runtime", vault.Locked.String(), "persisted", vault.Unlocked.String(),
			"save_error", saveErr, "rollback_error", attachErr)
		m.unclaim(record)
		e.settleLocked()
		return vault.Wrap(vault.KindConfigNotSaved, opLock, id, errors.Join(saveErr, attachErr))
	}
	e.settleUnlocked(remounted, m.clock.Now())
	return vault.Wrap(vault.KindConfigNotSaved, opLock, id, saveErr)
}

// validatePath checks a replacement mount point or data dir.
func validatePath(field, path string) (string, error) {
	if path == "" {
		return "", vault.Errorf(vault.KindInvalidArgument, "%s is required", field)
	}
	if !filepath.IsAbs(path) {
		return "", vault.Errorf(vault.KindInvalidArgument, "%s %q must be an absolute path", field, path)
	}
	return filepath.Clean(path), nil
}

// ChangeMountPoint moves a locked vault's mount point from oldPath to
// newPath. oldPath must match the stored value.
func (m *Manager) ChangeMountPoint(ctx context.Context, id, oldPath, newPath string) error {
	return m.finish(id, opChangeMountPoint, m.changePath(ctx, id, oldPath, newPath, opChangeMountPoint))
}

// ChangeDataDir moves a locked vault's data directory from oldPath to
// newPath. The engine must accept newPath as a backing store. Contents
// are not moved.
func (m *Manager) ChangeDataDir(ctx context.Context, id, oldPath, newPath string) error {
	return m.finish(id, opChangeDataDir, m.changePath(ctx, id, oldPath, newPath, opChangeDataDir))
}

func (m *Manager) changePath(ctx context.Context, id, oldPath, newPath, operation string) error {
	field := "mount point"
	if operation == opChangeDataDir {
		field = "data dir"
	}
	cleaned, err := validatePath("new "+field, newPath)
	if err != nil {
		return vault.Wrap(vault.KindInvalidArgument, operation, id, err)
	}

	e, record, err := m.begin(operation, id, vault.Locked)
	if err != nil {
		return err
	}
	defer e.release()

	current, other := record.MountPoint, record.DataDir
	if operation == opChangeDataDir {
		current, other = record.DataDir, record.MountPoint
	}
	if !vault.SamePath(current, oldPath) {
		return vault.Wrap(vault.KindConflict, operation, id,
			vault.Errorf(vault.KindConflict, "stale update: %s is %s, request expected %s", field, current, oldPath))
	}
	if vault.SamePath(cleaned, other) {
		return vault.Wrap(vault.KindInvalidArgument, operation, id,
			vault.Errorf(vault.KindInvalidArgument, "mount point and data dir must differ"))
	}
	if owner, ok := m.claimant(cleaned); ok && owner != id {
		return vault.Wrap(vault.KindConflict, operation, id,
			vault.Errorf(vault.KindConflict, "%s is in use by unlocked vault %s", cleaned, owner))
	}
	if operation == opChangeDataDir {
		if err := m.engine.Probe(cleaned); err != nil {
			return vault.Wrap(vault.KindDataDir, operation, id, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return vault.Wrap(vault.KindInternal, operation, id, err)
	}

	err = m.updateRecord(id, func(v *vault.Vault) {
		if operation == opChangeDataDir {
			v.DataDir = cleaned
		} else {
			v.MountPoint = cleaned
		}
	})
	if err != nil {
		return vault.Wrap(vault.KindConfigNotSaved, operation, id, err)
	}
	m.logger.Info("vault path changed", "vault", id, "action", operation, "old", current, "new", cleaned)
	return nil
}

// Insert stores a new vault, locked. An empty ID is assigned; a zero
// DeriveKeyHashRounds takes the default. The stored record is
// returned.
func (m *Manager) Insert(ctx context.Context, record vault.Vault) (vault.Vault, error) {
	return m.InsertWithPassword(ctx, record, nil)
}

// InsertWithPassword is Insert that also stores password in the
// keyring. The password is stored before the record is saved, so a
// keyring failure leaves nothing behind; a save failure removes the
// stored password again. A nil password behaves like Insert.
func (m *Manager) InsertWithPassword(ctx context.Context, record vault.Vault, password *secret.Buffer) (vault.Vault, error) {
	stored, err := m.insert(ctx, record, password)
	return stored, m.finish(stored.ID, opInsert, err)
}

func (m *Manager) insert(ctx context.Context, record vault.Vault, password *secret.Buffer) (vault.Vault, error) {
	if record.ID == "" {
		record.ID = vault.NewID()
	}
	if record.DeriveKeyHashRounds == 0 {
		record.DeriveKeyHashRounds = vault.DefaultDeriveKeyHashRounds
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.clock.Now().UTC()
	}
	record.Locked = true
	record.Normalize()
	if err := record.Validate(); err != nil {
		return record, vault.Wrap(vault.KindInvalidArgument, opInsert, record.ID, err)
	}
	if password != nil && password.Len() == 0 {
		return record, &vault.Error{Kind: vault.KindInvalidArgument, Op: opInsert, ID: record.ID, Err: errors.New("password is empty")}
	}
	if err := ctx.Err(); err != nil {
		return record, vault.Wrap(vault.KindInternal, opInsert, record.ID, err)
	}
	if _, exists := m.record(record.ID); exists {
		return record, &vault.Error{Kind: vault.KindAlreadyExists, Op: opInsert, ID: record.ID, Err: errors.New("vault id already exists")}
	}

	if password != nil {
		if err := m.keyring.Set(record.ID, password); err != nil {
			return record, vault.Wrap(vault.KindKeyring, opInsert, record.ID, err)
		}
	}

	err := m.commit(func(next *config.Document) error {
		if next.Find(record.ID) >= 0 {
			return vault.Errorf(vault.KindAlreadyExists, "vault id already exists")
		}
		next.Vaults = append(next.Vaults, record)
		return nil
	})
	if err != nil {
		if password != nil {
			if deleteErr := m.keyring.Delete(record.ID); deleteErr != nil {
				m.logger.Warn("removing password of unsaved vault failed", "vault", record.ID, "error", deleteErr)
			}
		}
		return record, vault.Wrap(vault.KindConfigNotSaved, opInsert, record.ID, err)
	}

	// The record is visible from the swap onward, so a concurrent
	// operation may already have created the entry.
	m.mu.Lock()
	if _, ok := m.entries[record.ID]; !ok {
		m.entries[record.ID] = newEntry(record.ID)
	}
	m.mu.Unlock()

	m.logger.Info("vault inserted", "vault", record.ID, "name", record.Name,
		"mount_point", record.MountPoint, "data_dir", record.DataDir, "cipher", record.Cipher.String())
	return record, nil
}

// Remove deletes a locked vault's record, runtime entry, stored
// password and history. The data directory is left alone.
func (m *Manager) Remove(ctx context.Context, id string) error {
	err := m.remove(ctx, id)
	if err != nil {
		return m.finish(id, opRemove, err)
	}
	if m.auditor != nil {
		if forgetErr := m.auditor.Forget(id); forgetErr != nil {
			m.logger.Warn("dropping audit history failed", "vault", id, "error", forgetErr)
		}
	}
	return nil
}

func (m *Manager) remove(ctx context.Context, id string) error {
	e, _, err := m.begin(opRemove, id, vault.Locked)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		e.release()
		return vault.Wrap(vault.KindInternal, opRemove, id, err)
	}

	err = m.commit(func(next *config.Document) error {
		index := next.Find(id)
		if index < 0 {
			return vault.Errorf(vault.KindNotFound, "%w", errNoSuchVault)
		}
		next.Vaults = append(next.Vaults[:index], next.Vaults[index+1:]...)
		return nil
	})
	if err != nil {
		e.release()
		return vault.Wrap(vault.KindConfigNotSaved, opRemove, id, err)
	}

	e.markRemoved()
	m.forget(e)

	if err := m.keyring.Delete(id); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		m.logger.Warn("deleting stored password failed", "vault", id, "error", err)
	}
	m.logger.Info("vault removed", "vault", id)
	return nil
}

// Rename changes a vault's display name. Any stable state is fine.
func (m *Manager) Rename(ctx context.Context, id, name string) error {
	return m.finish(id, opRename, m.rename(ctx, id, name))
}

func (m *Manager) rename(_ context.Context, id, name string) error {
	e, _, err := m.begin(opRename, id, anyState)
	if err != nil {
		return err
	}
	defer e.release()

	if err := m.updateRecord(id, func(v *vault.Vault) { v.Name = name }); err != nil {
		return vault.Wrap(vault.KindConfigNotSaved, opRename, id, err)
	}
	return nil
}

// SetPassword stores the password used by later unlocks. The caller
// keeps ownership of password. A mounted vault keeps its current key
// until it is locked; the data directory's password is not changed.
func (m *Manager) SetPassword(ctx context.Context, id string, password *secret.Buffer) error {
	return m.finish(id, opSetPassword, m.setPassword(ctx, id, password))
}

func (m *Manager) setPassword(_ context.Context, id string, password *secret.Buffer) error {
	if password == nil || password.Len() == 0 {
		return &vault.Error{Kind: vault.KindInvalidArgument, Op: opSetPassword, ID: id, Err: errors.New("password is empty")}
	}
	e, _, err := m.begin(opSetPassword, id, anyState)
	if err != nil {
		return err
	}
	defer e.release()

	if err := m.keyring.Set(id, password); err != nil {
		return vault.Wrap(vault.KindKeyring, opSetPassword, id, err)
	}
	return nil
}

// State returns the runtime state of id. Vaults never referenced since
// startup, and unknown ids, are Locked.
func (m *Manager) State(id string) vault.LockState {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return vault.Locked
	}
	state, _, _ := e.snapshot()
	return state
}

// Get returns the status of one vault.
func (m *Manager) Get(id string) (Status, error) {
	record, ok := m.record(id)
	if !ok {
		return Status{}, &vault.Error{Kind: vault.KindNotFound, Op: "show", ID: id, Err: errNoSuchVault}
	}
	return m.status(record), nil
}

// List returns the status of every vault in document order.
func (m *Manager) List() []Status {
	m.configMu.Lock()
	records := m.document.Clone().Vaults
	m.configMu.Unlock()

	statuses := make([]Status, 0, len(records))
	for _, record := range records {
		statuses = append(statuses, m.status(record))
	}
	return statuses
}

func (m *Manager) status(record vault.Vault) Status {
	status := Status{Vault: record, State: vault.Locked}
	m.mu.Lock()
	e, ok := m.entries[record.ID]
	m.mu.Unlock()
	if ok {
		status.State, status.Operation, status.UnlockedAt = e.snapshot()
	}
	return status
}

// Shutdown locks every unlocked vault. Vaults that are busy or whose
// mount point is in use are retried until ctx is done. Failures are
// joined.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var failures []error
	for _, id := range ids {
		if err := m.lockForShutdown(ctx, id); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func (m *Manager) lockForShutdown(ctx context.Context, id string) error {
	for {
		state := m.State(id)
		if state == vault.Locked {
			return nil
		}
		err := m.Lock(ctx, id)
		kind := vault.KindOf(err)
		switch {
		case err == nil, kind == vault.KindNotFound:
			return nil
		case kind == vault.KindInvalidState && m.State(id) == vault.Locked:
			return nil
		case kind != vault.KindBusy && kind != vault.KindDetachFailed:
			return err
		}

		m.logger.Info("waiting to lock vault for shutdown", "vault", id, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("locking vault %s at shutdown: %w", id, errors.Join(err, ctx.Err()))
		case <-m.clock.After(shutdownRetryInterval):
		}
	}
}
