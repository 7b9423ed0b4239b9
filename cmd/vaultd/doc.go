// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Vaultd is the vault lifecycle daemon. It owns the vault config
// document, mounts unlocked vaults through FUSE, and serves control
// requests on a Unix socket (CBOR, one request per connection).
//
// Usage:
//
//	vaultd [--settings path] [--config path] [--socket path] [--log-level level]
//
// Settings default to XDG locations; see lib/config. On SIGINT or
// SIGTERM the daemon stops accepting requests, then locks every
// unlocked vault before exiting, retrying busy mount points until the
// shutdown timeout.
//
// Control actions: status, list, show, insert, remove, lock, unlock,
// change-mount-point, change-data-dir, rename, set-password, history.
// Failures carry a machine-readable kind next to the message.
package main
