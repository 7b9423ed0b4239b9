// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// fataler is the part of testing.TB the wait helpers need.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive waits up to timeout for one value on ch and returns
// it. A closed channel or an expired timeout fails the test.
//
//	err := testutil.RequireReceive(t, unlockDone, 5*time.Second, "unlock of %s", id)
func RequireReceive[T any](t fataler, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", describe(what))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", describe(what), timeout)
	}
	panic("unreachable")
}

// RequireClosed waits up to timeout for ch to close. Readiness
// channels such as the control server's Ready signal this way.
//
//	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "control socket ready")
func RequireClosed(t fataler, ch <-chan struct{}, timeout time.Duration, what ...any) {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: still open after %v", describe(what), timeout)
	}
}

// describe renders the optional label: a plain string, a format string
// with arguments, or any other value.
func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "wait"
	case len(what) == 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
