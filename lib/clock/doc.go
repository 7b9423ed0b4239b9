// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// vaultd reads time in three places: unlock timestamps on runtime
// entries, audit event timestamps, and the retry delay used when a
// mount point is still busy during shutdown. Each takes a [Clock];
// production code passes [Real], tests pass [Fake] and move time with
// [FakeClock.Advance].
//
// When a goroutine calls After on a FakeClock it registers a pending
// waiter. Tests call [FakeClock.WaitForTimers] before Advance so the
// advance cannot race the registration.
package clock
