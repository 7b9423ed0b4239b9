// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/bureau-foundation/vaultd/lib/secret"
)

// ErrNotFound is returned by Get when no password is stored for the id,
// and by Delete when there was nothing to delete.
var ErrNotFound = errors.New("no password stored for vault")

// Keyring stores one password per vault id.
type Keyring interface {
	Get(id string) (*secret.Buffer, error)
	Set(id string, password *secret.Buffer) error
	Delete(id string) error
}

// validateID rejects ids that cannot be used as a keyring account or
// file name.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("keyring: empty vault id")
	}
	if strings.ContainsAny(id, "/\\\x00") || strings.HasPrefix(id, ".") {
		return fmt.Errorf("keyring: vault id %q is not usable as a key name", id)
	}
	return nil
}

// OS is a Keyring backed by the operating system's secret service.
type OS struct {
	service string
}

// NewOS returns a keyring that files entries under service.
func NewOS(service string) *OS {
	return &OS{service: service}
}

func (k *OS) Get(id string) (*secret.Buffer, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	password, err := gokeyring.Get(k.service, id)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return nil, fmt.Errorf("%w %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading %s/%s from OS keyring: %w", k.service, id, err)
	}
	if password == "" {
		return nil, fmt.Errorf("%w %s", ErrNotFound, id)
	}
	return secret.NewFromBytes([]byte(password))
}

func (k *OS) Set(id string, password *secret.Buffer) error {
	if err := validateID(id); err != nil {
		return err
	}
	// go-keyring takes a string; the heap copy lives until GC.
	if err := gokeyring.Set(k.service, id, password.String()); err != nil {
		return fmt.Errorf("writing %s/%s to OS keyring: %w", k.service, id, err)
	}
	return nil
}

func (k *OS) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := gokeyring.Delete(k.service, id); err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return fmt.Errorf("%w %s", ErrNotFound, id)
		}
		return fmt.Errorf("deleting %s/%s from OS keyring: %w", k.service, id, err)
	}
	return nil
}

// Memory is an in-process Keyring.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemory returns an empty in-memory keyring.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (k *Memory) Get(id string) (*secret.Buffer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	stored, ok := k.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNotFound, id)
	}
	return secret.NewFromBytes(append([]byte(nil), stored...))
}

func (k *Memory) Set(id string, password *secret.Buffer) error {
	if err := validateID(id); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[id] = append([]byte(nil), password.Bytes()...)
	return nil
}

func (k *Memory) Delete(id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	stored, ok := k.entries[id]
	if !ok {
		return fmt.Errorf("%w %s", ErrNotFound, id)
	}
	secret.Zero(stored)
	delete(k.entries, id)
	return nil
}
