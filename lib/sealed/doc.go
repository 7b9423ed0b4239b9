// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed wraps filippo.io/age for the sealed-file keyring
// backend: generate an x25519 identity, seal a vault password to it,
// and open the sealed bytes again.
//
// Ciphertext is raw age binary format, written straight to disk.
// Identities and opened plaintext are returned as [secret.Buffer]
// values so they stay out of the Go heap and out of core dumps.
//
// Key exports:
//
//   - [GenerateKeypair] -- new x25519 identity in a secret.Buffer
//   - [Seal] / [Open] -- encrypt to recipients, decrypt with an identity
//   - [PublicKeyOf] -- derive the recipient string from an identity
//   - [ParsePublicKey] -- recipient validation
package sealed
