// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/bureau-foundation/vaultd/lib/cryptfs"
	"github.com/bureau-foundation/vaultd/lifecycle"
)

// mountEngine adapts cryptfs to the lifecycle manager's engine
// interface.
type mountEngine struct {
	engine *cryptfs.Engine
}

func (m mountEngine) Attach(ctx context.Context, request lifecycle.MountRequest) (lifecycle.Session, error) {
	session, err := m.engine.Attach(ctx, cryptfs.Request{
		DataDir:    request.DataDir,
		MountPoint: request.MountPoint,
		Password:   request.Password,
		Cipher:     request.Cipher,
		Rounds:     request.Rounds,
		Options:    cryptfs.Options(request.Options),
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (m mountEngine) Probe(dataDir string) error {
	return m.engine.Probe(dataDir)
}
