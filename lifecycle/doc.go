// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle is the authority over vault state. A [Manager]
// owns the config document and one runtime entry per vault, and every
// control operation (unlock, lock, insert, remove, the path changes)
// goes through it.
//
// # State machine
//
// Each vault moves independently through
//
//	Locked --Unlock--> Unlocking --ok--> Unlocked
//	                             --fail--> Locked
//	Unlocked --Lock--> Locking --ok--> Locked
//	                           --fail--> Unlocked
//
// While a vault is Unlocking or Locking, or while any other operation
// holds it, further requests for the same id fail immediately with
// [vault.KindBusy]. Nothing is queued. Requests for other ids proceed in
// parallel: the map lock is held only to find an entry, never across a
// mount, unmount, keyring call or save.
//
// Requests that need a different stable state (Remove of an unlocked
// vault, Unlock of an unlocked one) fail with [vault.KindInvalidState].
//
// # Persistence
//
// Durable changes are made on a copy of the document, saved, and only
// then swapped in, so the in-memory document always equals the last
// successful save. When a save fails after the mount state already
// changed, the manager undoes the mount change (detach a fresh session,
// or re-attach after a lock) and reports [vault.KindConfigNotSaved]. If
// the undo also fails the divergence is logged at ERROR and the
// operation still fails.
//
// # Collaborators
//
// The manager consumes the mount engine through [MountEngine] and
// [Session], passwords through [keyring.Keyring], persistence through
// [DocumentStore], and records outcomes through an optional [Auditor].
package lifecycle
