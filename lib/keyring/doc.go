// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyring stores vault passwords, keyed by vault id.
//
// Three implementations satisfy [Keyring]:
//
//   - [NewOS] files entries in the desktop secret service through
//     github.com/zalando/go-keyring (libsecret over D-Bus on Linux).
//   - [NewFile] seals each password with age to an x25519 identity kept
//     in the daemon's state directory, for machines with no secret
//     service.
//   - [NewMemory] keeps entries in process memory, for tests.
//
// Passwords cross the interface as [secret.Buffer] values. Get returns
// a new buffer the caller must Close; Set copies from the buffer and
// leaves it open.
package keyring
