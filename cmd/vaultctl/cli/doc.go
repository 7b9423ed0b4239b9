// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind vaultctl: a tree
// of [Command] values with pflag parsing, typo suggestions for unknown
// commands and flags, struct-tag flag binding ([FlagsFromParams]), a
// shared --json output mode ([JSONOutput]), and password input that
// never echoes or lands in swappable memory ([ReadPassword]).
//
// Errors returned from Run are not printed here. The caller (main)
// formats them and picks the exit code, so a kind reported by the
// daemon maps to the same exit status as a local argument error.
package cli
