// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/bureau-foundation/vaultd/lib/secret"
)

func password(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(value))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

// exercise runs the behavior every backend must share.
func exercise(t *testing.T, keyring Keyring) {
	t.Helper()

	if _, err := keyring.Get("v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before Set: expected ErrNotFound, got %v", err)
	}

	if err := keyring.Set("v1", password(t, "hunter2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := keyring.Get("v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.String() != "hunter2" {
		t.Errorf("Get = %q, want hunter2", got.String())
	}
	got.Close()

	if err := keyring.Set("v1", password(t, "hunter3")); err != nil {
		t.Fatalf("Set (overwrite): %v", err)
	}
	got, err = keyring.Get("v1")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if got.String() != "hunter3" {
		t.Errorf("Get after overwrite = %q", got.String())
	}
	got.Close()

	if err := keyring.Delete("v1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := keyring.Get("v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: expected ErrNotFound, got %v", err)
	}
	if err := keyring.Delete("v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}

	if err := keyring.Set("../escape", password(t, "x")); err == nil {
		t.Error("Set should reject path-like ids")
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestOS(t *testing.T) {
	gokeyring.MockInit()
	exercise(t, NewOS("vaultd-test"))
}

func TestOSBackendError(t *testing.T) {
	gokeyring.MockInitWithError(errors.New("secret service unavailable"))
	t.Cleanup(gokeyring.MockInit)

	_, err := NewOS("vaultd-test").Get("v1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a backend error distinct from ErrNotFound, got %v", err)
	}
}

func TestFile(t *testing.T) {
	directory := filepath.Join(t.TempDir(), "keyring")
	keyring := NewFile(directory)
	t.Cleanup(func() { keyring.Close() })
	exercise(t, keyring)

	info, err := os.Stat(filepath.Join(directory, identityFile))
	if err != nil {
		t.Fatalf("identity not created: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("identity mode = %o, want 600", info.Mode().Perm())
	}
}

func TestFilePersistsAcrossInstances(t *testing.T) {
	directory := filepath.Join(t.TempDir(), "keyring")

	first := NewFile(directory)
	if err := first.Set("v1", password(t, "correct horse")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	first.Close()

	sealedBytes, err := os.ReadFile(filepath.Join(directory, "v1"+entrySuffix))
	if err != nil {
		t.Fatalf("reading entry: %v", err)
	}
	if bytes.Contains(sealedBytes, []byte("correct horse")) {
		t.Fatal("entry file contains the plaintext password")
	}

	second := NewFile(directory)
	t.Cleanup(func() { second.Close() })
	got, err := second.Get("v1")
	if err != nil {
		t.Fatalf("Get from a new instance: %v", err)
	}
	defer got.Close()
	if got.String() != "correct horse" {
		t.Errorf("Get = %q", got.String())
	}
}

func TestFileMissingIdentity(t *testing.T) {
	directory := filepath.Join(t.TempDir(), "keyring")
	first := NewFile(directory)
	if err := first.Set("v1", password(t, "pw")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	first.Close()
	if err := os.Remove(filepath.Join(directory, identityFile)); err != nil {
		t.Fatalf("Remove identity: %v", err)
	}

	_, err := NewFile(directory).Get("v1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected an identity error, got %v", err)
	}
}
