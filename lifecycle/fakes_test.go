// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/bureau-foundation/vaultd/lib/config"
	"github.com/bureau-foundation/vaultd/lib/vault"
)

// fakeEngine records attaches and can block or fail them per vault.
type fakeEngine struct {
	mu sync.Mutex

	attaches  int
	passwords []string

	// attachErr fails Attach for a vault id.
	attachErr map[string]error

	// gate blocks Attach for a vault id until the channel is closed.
	gate map[string]chan struct{}

	// entered receives the vault id whenever Attach starts.
	entered chan string

	// detachFailures is how many Detach calls fail on each new session.
	detachFailures int

	probeErr error

	sessions []*fakeSession
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		attachErr: make(map[string]error),
		gate:      make(map[string]chan struct{}),
		entered:   make(chan string, 16),
	}
}

func (f *fakeEngine) Attach(ctx context.Context, request MountRequest) (Session, error) {
	f.mu.Lock()
	f.attaches++
	f.passwords = append(f.passwords, request.Password.String())
	gate := f.gate[request.VaultID]
	err := f.attachErr[request.VaultID]
	failures := f.detachFailures
	f.mu.Unlock()

	select {
	case f.entered <- request.VaultID:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	session := &fakeSession{mountPoint: request.MountPoint, failures: failures}
	f.mu.Lock()
	f.sessions = append(f.sessions, session)
	f.mu.Unlock()
	return session, nil
}

func (f *fakeEngine) Probe(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeErr
}

func (f *fakeEngine) attachCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attaches
}

func (f *fakeEngine) lastSession() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

type fakeSession struct {
	mu         sync.Mutex
	mountPoint string
	failures   int
	detaches   int
	detached   bool
}

func (s *fakeSession) MountPoint() string { return s.mountPoint }

func (s *fakeSession) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detaches++
	if s.failures > 0 {
		s.failures--
		return vault.Errorf(vault.KindDetachFailed, "unmounting %s: device or resource busy", s.mountPoint)
	}
	s.detached = true
	return nil
}

func (s *fakeSession) isDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

func (s *fakeSession) setFailures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// memoryStore is a DocumentStore whose saves can be made to fail.
type memoryStore struct {
	mu       sync.Mutex
	document *config.Document
	saves    int
	saveErr  error
}

func (s *memoryStore) Load() (*config.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return nil, config.ErrNotFound
	}
	return s.document.Clone(), nil
}

func (s *memoryStore) Save(document *config.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.document = document.Clone()
	return nil
}

func (s *memoryStore) failSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// persisted returns the saved record for id.
func (s *memoryStore) persisted(id string) (vault.Vault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return vault.Vault{}, false
	}
	index := s.document.Find(id)
	if index < 0 {
		return vault.Vault{}, false
	}
	return s.document.Vaults[index], true
}

var errDiskFull = errors.New("write config.yaml: no space left on device")

type auditEvent struct {
	vaultID   string
	operation string
	kind      string
}

type fakeAuditor struct {
	mu        sync.Mutex
	events    []auditEvent
	forgotten []string
}

func (a *fakeAuditor) Record(vaultID, operation, kind string, _ error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, auditEvent{vaultID, operation, kind})
	return nil
}

func (a *fakeAuditor) Forget(vaultID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forgotten = append(a.forgotten, vaultID)
	return nil
}
