// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"time"

	"github.com/bureau-foundation/vaultd/cmd/vaultctl/cli"
	"github.com/bureau-foundation/vaultd/lib/clock"
	"github.com/bureau-foundation/vaultd/lib/config"
	"github.com/bureau-foundation/vaultd/lib/secret"
	"github.com/bureau-foundation/vaultd/lib/service"
)

// app holds what every command needs: where to read and write, and
// how to reach the daemon.
type app struct {
	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	clock  clock.Clock
}

func newApp(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, clk clock.Clock) *app {
	return &app{ctx: ctx, stdin: stdin, stdout: stdout, stderr: stderr, clock: clk}
}

// connection is embedded in every params struct that talks to the
// daemon.
type connection struct {
	Socket  string        `flag:"socket" desc:"daemon control socket (default $VAULTD_SOCKET or the runtime dir)"`
	Timeout time.Duration `flag:"timeout" desc:"give up on the request after this long" default:"2m"`
}

// call sends one request and decodes the response into result.
func (a *app) call(conn connection, action string, fields map[string]any, result any) error {
	socket := conn.Socket
	if socket == "" {
		socket = config.DefaultSocketPath()
	}
	ctx := a.ctx
	if conn.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conn.Timeout)
		defer cancel()
	}
	return service.NewServiceClient(socket).Call(ctx, action, fields, result)
}

// passwordInput selects where a new password comes from.
type passwordInput struct {
	Stdin  bool `flag:"password-stdin" desc:"read the password as one line from stdin"`
	Prompt bool `flag:"prompt-password" desc:"prompt for the password on the terminal"`
}

// read returns the password, or nil when neither flag was given and
// required is false.
func (p passwordInput) read(a *app, required bool) (*secret.Buffer, error) {
	if p.Stdin && p.Prompt {
		return nil, &cli.UsageError{Message: "--password-stdin and --prompt-password are mutually exclusive"}
	}
	if !p.Stdin && !p.Prompt && !required {
		return nil, nil
	}
	return cli.ReadPassword(a.stdin, a.stderr, !p.Stdin)
}
