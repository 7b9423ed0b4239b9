// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/bureau-foundation/vaultd/lib/audit"
	"github.com/bureau-foundation/vaultd/lib/clock"
	"github.com/bureau-foundation/vaultd/lib/codec"
	"github.com/bureau-foundation/vaultd/lib/secret"
	"github.com/bureau-foundation/vaultd/lib/service"
	"github.com/bureau-foundation/vaultd/lib/vault"
	"github.com/bureau-foundation/vaultd/lib/version"
	"github.com/bureau-foundation/vaultd/lifecycle"
)

// defaultHistoryLimit caps history responses when the client does not
// ask for a size.
const defaultHistoryLimit = 50

// historySource is the read side of the audit log.
type historySource interface {
	List(vaultID string, limit int) ([]audit.Event, error)
}

// controlService maps socket actions onto exactly one manager call
// each.
type controlService struct {
	manager   *lifecycle.Manager
	history   historySource
	clock     clock.Clock
	startedAt time.Time
}

func newControlService(manager *lifecycle.Manager, history historySource, clk clock.Clock) *controlService {
	return &controlService{
		manager:   manager,
		history:   history,
		clock:     clk,
		startedAt: clk.Now(),
	}
}

func (c *controlService) register(server *service.SocketServer) {
	server.Handle("status", c.handleStatus)
	server.Handle("list", c.handleList)
	server.Handle("show", c.handleShow)
	server.Handle("insert", c.handleInsert)
	server.Handle("remove", c.handleRemove)
	server.Handle("lock", c.handleLock)
	server.Handle("unlock", c.handleUnlock)
	server.Handle("change-mount-point", c.handleChangeMountPoint)
	server.Handle("change-data-dir", c.handleChangeDataDir)
	server.Handle("rename", c.handleRename)
	server.Handle("set-password", c.handleSetPassword)
	server.Handle("history", c.handleHistory)
}

// --- Request types ---

type idRequest struct {
	ID string `cbor:"id"`
}

type insertRequest struct {
	Name       string `cbor:"name"`
	MountPoint string `cbor:"mount_point"`
	DataDir    string `cbor:"data_dir"`
	Cipher     string `cbor:"cipher"`

	// Rounds is optional; when absent the daemon default applies. An
	// explicit zero is rejected.
	Rounds *uint32 `cbor:"derive_key_hash_rounds,omitempty"`

	// Password, when present, is stored in the keyring together with
	// the record: either both are kept or neither is.
	Password []byte `cbor:"password,omitempty"`
}

// changeRequest carries [old, new] in Value.
type changeRequest struct {
	ID    string   `cbor:"id"`
	Value []string `cbor:"value"`
}

type renameRequest struct {
	ID   string `cbor:"id"`
	Name string `cbor:"name"`
}

type setPasswordRequest struct {
	ID       string `cbor:"id"`
	Password []byte `cbor:"password"`
}

type historyRequest struct {
	ID    string `cbor:"id"`
	Limit int    `cbor:"limit,omitempty"`
}

// --- Response types ---

type statusResponse struct {
	Version   string    `cbor:"version"`
	StartedAt time.Time `cbor:"started_at"`
	UptimeSec int64     `cbor:"uptime_seconds"`
	Vaults    int       `cbor:"vaults"`
	Unlocked  int       `cbor:"unlocked"`
}

// decode unmarshals the request body. A body that does not fit the
// request type is the client's fault.
func decode(raw []byte, request any) error {
	if err := codec.Unmarshal(raw, request); err != nil {
		return vault.Errorf(vault.KindInvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func requireID(id string) error {
	if id == "" {
		return vault.Errorf(vault.KindInvalidArgument, "missing required field: id")
	}
	return nil
}

func decodeID(raw []byte) (string, error) {
	var request idRequest
	if err := decode(raw, &request); err != nil {
		return "", err
	}
	return request.ID, requireID(request.ID)
}

func (c *controlService) handleStatus(_ context.Context, _ []byte) (any, error) {
	statuses := c.manager.List()
	unlocked := 0
	for _, status := range statuses {
		if status.State == vault.Unlocked {
			unlocked++
		}
	}
	return statusResponse{
		Version:   version.Short(),
		StartedAt: c.startedAt,
		UptimeSec: int64(c.clock.Now().Sub(c.startedAt) / time.Second),
		Vaults:    len(statuses),
		Unlocked:  unlocked,
	}, nil
}

func (c *controlService) handleList(_ context.Context, _ []byte) (any, error) {
	return c.manager.List(), nil
}

func (c *controlService) handleShow(_ context.Context, raw []byte) (any, error) {
	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	return c.manager.Get(id)
}

// handleInsert creates a locked vault. derive_key_hash_rounds may be
// omitted to take vault.DefaultDeriveKeyHashRounds, but must be
// positive when sent.
func (c *controlService) handleInsert(ctx context.Context, raw []byte) (any, error) {
	var request insertRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	var rounds uint32
	if request.Rounds != nil {
		if *request.Rounds == 0 {
			secret.Zero(request.Password)
			return nil, vault.Errorf(vault.KindInvalidArgument, "derive_key_hash_rounds must be positive")
		}
		rounds = *request.Rounds
	}
	var password *secret.Buffer
	if len(request.Password) > 0 {
		var err error
		password, err = secret.NewFromBytes(request.Password)
		if err != nil {
			return nil, err
		}
		defer password.Close()
	}

	cipher, err := vault.ParseCipher(request.Cipher)
	if err != nil {
		return nil, err
	}
	return c.manager.InsertWithPassword(ctx, vault.Vault{
		Name:                request.Name,
		MountPoint:          request.MountPoint,
		DataDir:             request.DataDir,
		Cipher:              cipher,
		DeriveKeyHashRounds: rounds,
	}, password)
}

func (c *controlService) handleRemove(ctx context.Context, raw []byte) (any, error) {
	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	return nil, c.manager.Remove(ctx, id)
}

func (c *controlService) handleLock(ctx context.Context, raw []byte) (any, error) {
	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	return nil, c.manager.Lock(ctx, id)
}

func (c *controlService) handleUnlock(ctx context.Context, raw []byte) (any, error) {
	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	return nil, c.manager.Unlock(ctx, id)
}

// decodeChange validates the [old, new] pair. Any other argument
// count is a malformed request, not a lifecycle error.
func decodeChange(raw []byte) (id, oldValue, newValue string, err error) {
	var request changeRequest
	if err := decode(raw, &request); err != nil {
		return "", "", "", err
	}
	if err := requireID(request.ID); err != nil {
		return "", "", "", err
	}
	if len(request.Value) != 2 {
		return "", "", "", vault.Errorf(vault.KindInvalidArgument,
			"value must hold exactly two strings [old, new], got %d", len(request.Value))
	}
	return request.ID, request.Value[0], request.Value[1], nil
}

func (c *controlService) handleChangeMountPoint(ctx context.Context, raw []byte) (any, error) {
	id, oldPath, newPath, err := decodeChange(raw)
	if err != nil {
		return nil, err
	}
	return nil, c.manager.ChangeMountPoint(ctx, id, oldPath, newPath)
}

func (c *controlService) handleChangeDataDir(ctx context.Context, raw []byte) (any, error) {
	id, oldPath, newPath, err := decodeChange(raw)
	if err != nil {
		return nil, err
	}
	return nil, c.manager.ChangeDataDir(ctx, id, oldPath, newPath)
}

func (c *controlService) handleRename(ctx context.Context, raw []byte) (any, error) {
	var request renameRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	if err := requireID(request.ID); err != nil {
		return nil, err
	}
	return nil, c.manager.Rename(ctx, request.ID, request.Name)
}

func (c *controlService) handleSetPassword(ctx context.Context, raw []byte) (any, error) {
	var request setPasswordRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	if err := requireID(request.ID); err != nil {
		secret.Zero(request.Password)
		return nil, err
	}
	if len(request.Password) == 0 {
		return nil, vault.Errorf(vault.KindInvalidArgument, "missing required field: password")
	}
	password, err := secret.NewFromBytes(request.Password)
	if err != nil {
		return nil, err
	}
	defer password.Close()
	return nil, c.manager.SetPassword(ctx, request.ID, password)
}

func (c *controlService) handleHistory(_ context.Context, raw []byte) (any, error) {
	var request historyRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	if err := requireID(request.ID); err != nil {
		return nil, err
	}
	if _, err := c.manager.Get(request.ID); err != nil {
		return nil, err
	}
	limit := request.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	events, err := c.history.List(request.ID, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}
