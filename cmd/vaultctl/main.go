// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// vaultctl is the command-line client for vaultd. Each subcommand is
// one request on the daemon's control socket. Failures exit with 2 for
// a bad request, 3 when the vault is busy or in the wrong state for
// the request, and 1 otherwise.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/vaultd/lib/clock"
	"github.com/bureau-foundation/vaultd/lib/process"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(ctx, os.Stdin, os.Stdout, os.Stderr, clock.Real()).root().Execute(os.Args[1:])
	stop()
	if err != nil {
		process.Fatal(err)
	}
}
