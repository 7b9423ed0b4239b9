// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for vaultd packages.
//
// [SocketDir] creates a short directory in /tmp for control sockets.
// Unix socket paths are limited to 108 bytes and t.TempDir() can
// exceed that under nested test runners.
//
// [RequireFUSE] skips a test unless /dev/fuse and fusermount are
// present, so mount tests degrade gracefully in containers.
//
// [RequireReceive] and [RequireClosed] wrap the
// select-with-timeout pattern so tests that coordinate goroutines
// never hang. They are the only place tests touch the wall clock.
//
// [UniqueID] generates monotonically increasing identifiers.
//
// All helpers call t.Fatalf (or t.Skip) rather than returning errors.
package testutil
