// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config holds the two files vaultd reads from disk.
//
// [Settings] is the daemon's own configuration: where the vault
// document lives, the control socket path, the state directory, the
// keyring backend, FUSE mount options and the log level. It is read
// once at startup by [LoadSettings] from YAML, or from JSON with
// comments when the file ends in .json or .jsonc. Path fields expand
// ${VAR} and ${VAR:-default}. With no settings file, [DefaultSettings]
// derives everything from the XDG base directories.
//
// [Store] persists the vault [Document] (the list of vault records) as
// YAML. [Store.Save] is atomic: the document is written to a temporary
// file in the same directory, fsynced, renamed over the target, and
// the directory is fsynced, so a crash leaves either the old or the
// new document and never a torn one. Saves are serialized by the
// store. [Store.Load] distinguishes a missing file ([ErrNotFound]) from
// one that cannot be parsed or holds invalid records ([ErrMalformed]).
package config
