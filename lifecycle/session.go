// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"

	"github.com/bureau-foundation/vaultd/lib/config"
	"github.com/bureau-foundation/vaultd/lib/secret"
	"github.com/bureau-foundation/vaultd/lib/vault"
)

// Session is one live mount. It is owned by exactly one runtime entry
// and must not be used after Detach succeeds.
type Session interface {
	// MountPoint returns where the decrypted view is attached.
	MountPoint() string

	// Detach unmounts. On failure the session stays attached and
	// valid, and Detach may be called again.
	Detach() error
}

// MountOptions are passed through to the engine on every attach.
type MountOptions struct {
	AllowRoot  bool
	AllowOther bool
	DirectIO   bool
	Suid       bool
}

// MountRequest is everything the engine needs to attach one vault.
type MountRequest struct {
	VaultID    string
	DataDir    string
	MountPoint string

	// Password is owned by the manager and closed after Attach
	// returns. Engines must not retain it.
	Password *secret.Buffer

	Cipher vault.Cipher
	Rounds uint32

	Options MountOptions
}

// MountEngine attaches sessions and validates data directories.
type MountEngine interface {
	// Attach is all or nothing: on error nothing is mounted.
	Attach(ctx context.Context, request MountRequest) (Session, error)

	// Probe reports whether dataDir can back a vault (an existing
	// data directory or a location that can be initialized).
	Probe(dataDir string) error
}

// DocumentStore persists the config document. [config.Store] is the
// production implementation.
type DocumentStore interface {
	Load() (*config.Document, error)
	Save(document *config.Document) error
}

// Auditor records operation outcomes. [audit.Log] implements it.
type Auditor interface {
	Record(vaultID, operation, kind string, opErr error) error

	// Forget drops a removed vault's history.
	Forget(vaultID string) error
}
