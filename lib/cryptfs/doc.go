// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cryptfs is vaultd's mount engine: it presents an encrypted
// data directory as a plaintext FUSE filesystem.
//
// # Data directory layout
//
// The data directory mirrors the plaintext tree. Directory and file
// names are stored as-is; file contents are not. Each regular file is
// one sealed blob:
//
//	version (1) | flags (1) | plaintext size (8, big-endian) | file salt (16) | nonce | AEAD ciphertext
//
// The first 26 bytes are the AEAD's additional data, so the size and
// flags cannot be altered without detection. Every blob gets a fresh
// file salt; the blob key is HKDF-SHA256(volume key, file salt). When
// zstd makes the content smaller, it is compressed before sealing and
// flagged.
//
// The volume key is PBKDF2-SHA256 of the password with the salt and
// round count recorded in the ".vaultd-header" file (CBOR). The header
// also holds a BLAKE3 keyed hash of the key, which is how a wrong
// password is told apart from a damaged blob.
//
// # Sessions
//
// [Engine.Attach] is all or nothing: it validates (or initializes) the
// data directory, derives and verifies the key, checks the mount
// point, and mounts. On any failure nothing is left mounted. The
// returned [Session] stays valid until [Session.Detach] succeeds; a
// busy mount point makes Detach fail and the session remains mounted.
//
// Whole files are decrypted into memory on open and re-sealed on
// flush, so the engine suits documents and keys rather than large
// media.
package cryptfs
