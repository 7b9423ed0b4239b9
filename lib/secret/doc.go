// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds vault passwords and derived keys in memory the
// Go runtime never sees.
//
// A [Buffer] is an anonymous mmap region, mlock'd so it cannot be
// swapped and marked MADV_DONTDUMP so it never lands in a core dump.
// Close zeroes, unlocks and unmaps it. The keyring returns passwords as
// Buffers, the mount engine derives keys into Buffers, and the
// lifecycle manager closes both as soon as an attach completes.
//
// Constructors:
//
//   - [New] allocates a zero-filled buffer
//   - [NewFromBytes] copies into protected memory and zeroes the source
//   - [ReadLine] reads one line (a password piped on stdin)
//
// Access goes through [Buffer.Bytes] (a slice into the mapping) or
// [Buffer.String] (a heap copy, for APIs that insist on strings). Any
// access after Close panics; Close itself is idempotent.
package secret
