// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by vaultd and
// vaultctl: reporting an error to stderr before (or instead of) the
// structured logger, and mapping an error's kind to a process exit
// code.
//
// Exit codes:
//
//   - 0: success
//   - 1: any other failure
//   - 2: the request was wrong (invalid_argument, not_found, already_exists)
//   - 3: the vault was busy or in the wrong state; retrying may succeed
package process
