// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"sync"
	"time"

	"github.com/bureau-foundation/vaultd/lib/vault"
)

// anyState is passed to acquire by operations that do not care
// whether the vault is locked, only that nothing else holds it.
const anyState vault.LockState = -1

// entry is the runtime state of one vault.
type entry struct {
	id string

	mu sync.Mutex

	state vault.LockState

	// operation names the operation holding the entry, or "" when it
	// is idle.
	operation string

	// session is non-nil exactly when state is Unlocked, or while
	// Locking.
	session    Session
	unlockedAt time.Time

	// removed is set when Remove succeeds. An entry found in the map
	// after that is stale and reports not found.
	removed bool
}

func newEntry(id string) *entry {
	return &entry{id: id, state: vault.Locked}
}

// acquire is the per-vault check-and-set. It fails with busy if any
// operation holds the entry, and with invalid_state if the vault is
// not in the required state. On success the entry is held by
// operation; unlock and lock also move it to their transient state.
func (e *entry) acquire(operation string, required vault.LockState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return &vault.Error{Kind: vault.KindNotFound, Op: operation, ID: e.id, Err: errNoSuchVault}
	}
	if e.operation != "" {
		return vault.Wrap(vault.KindBusy, operation, e.id,
			vault.Errorf(vault.KindBusy, "%s in progress", e.operation))
	}
	if required != anyState && e.state != required {
		return vault.Wrap(vault.KindInvalidState, operation, e.id,
			vault.Errorf(vault.KindInvalidState, "vault is %s, must be %s", e.state, required))
	}

	e.operation = operation
	switch operation {
	case opUnlock:
		e.state = vault.Unlocking
	case opLock:
		e.state = vault.Locking
	}
	return nil
}

// settle ends the held operation in state.
func (e *entry) settle(state vault.LockState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.operation = ""
}

// release ends the held operation without changing state.
func (e *entry) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operation = ""
}

// snapshot returns the fields a status report needs.
func (e *entry) snapshot() (vault.LockState, string, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.operation, e.unlockedAt
}

// held returns the session. Only the operation holding the entry may
// call it.
func (e *entry) held() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// settleUnlocked ends the held operation with session attached.
func (e *entry) settleUnlocked(session Session, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = session
	e.unlockedAt = at
	e.state = vault.Unlocked
	e.operation = ""
}

// settleLocked ends the held operation with no session.
func (e *entry) settleLocked() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
	e.unlockedAt = time.Time{}
	e.state = vault.Locked
	e.operation = ""
}

// markRemoved ends the held operation and retires the entry.
func (e *entry) markRemoved() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	e.operation = ""
}
