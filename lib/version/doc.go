// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for vaultd and vaultctl.
//
// [Version], [GitCommit] and [BuildTime] are injected with -ldflags -X.
// When they are not, [Info] falls back to the VCS stamp the Go
// toolchain embeds in the binary.
//
// The status action returns [Short] so vaultctl can warn when it talks
// to a daemon from a different release.
package version
