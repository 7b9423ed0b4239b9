// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/vaultd/lib/vault"
)

// Exit codes returned by ExitCode.
const (
	ExitFailure     = 1
	ExitClientError = 2
	ExitBusy        = 3
)

// kinded matches vault.Error and the socket client's ServiceError
// without importing the latter.
type kinded interface {
	ErrorKind() string
}

// ExitCode maps err to a process exit code. A nil error is 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var tagged kinded
	if !errors.As(err, &tagged) {
		return ExitFailure
	}
	kind := vault.ParseKind(tagged.ErrorKind())
	switch {
	case kind.IsClientError():
		return ExitClientError
	case kind.IsBusy():
		return ExitBusy
	default:
		return ExitFailure
	}
}

// Fatal writes "error: err" to stderr and exits with ExitCode(err).
// Use it in main() for errors from run(), where the structured logger
// may not exist.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(ExitCode(err))
}
