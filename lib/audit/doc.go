// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit keeps a per-vault history of lifecycle operations in a
// bbolt database.
//
// Each vault gets a nested bucket under "events", keyed by the
// bucket's big-endian sequence number so cursor order is insertion
// order. Values are CBOR-encoded [Event] records. The log is
// append-only apart from [Log.Forget], which drops a removed vault's
// history.
package audit
