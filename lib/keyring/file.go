// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/vaultd/lib/sealed"
	"github.com/bureau-foundation/vaultd/lib/secret"
)

const (
	identityFile = "identity.age-key"
	entrySuffix  = ".age"
)

// File is a Keyring that seals each password to an age identity
// stored next to the sealed entries. The identity file is created on
// first use, mode 0600.
//
// This protects passwords at rest against anything that copies the
// entry files without the identity, and nothing more: whoever can read
// the directory can read the passwords.
type File struct {
	directory string

	mu         sync.Mutex
	privateKey *secret.Buffer
	publicKey  string
}

// NewFile returns a keyring rooted at directory. The directory is
// created when the first entry is written.
func NewFile(directory string) *File {
	return &File{directory: directory}
}

// Close releases the cached identity.
func (k *File) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.privateKey == nil {
		return nil
	}
	err := k.privateKey.Close()
	k.privateKey = nil
	return err
}

func (k *File) entryPath(id string) string {
	return filepath.Join(k.directory, id+entrySuffix)
}

// identity loads or creates the age identity. Callers hold k.mu.
func (k *File) identity(create bool) error {
	if k.privateKey != nil {
		return nil
	}
	path := filepath.Join(k.directory, identityFile)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		privateKey, err := secret.NewFromBytes(trimNewline(data))
		if err != nil {
			return fmt.Errorf("protecting keyring identity: %w", err)
		}
		publicKey, err := sealed.PublicKeyOf(privateKey)
		if err != nil {
			privateKey.Close()
			return fmt.Errorf("keyring identity %s: %w", path, err)
		}
		k.privateKey, k.publicKey = privateKey, publicKey
		return nil

	case errors.Is(err, os.ErrNotExist) && create:
		if err := os.MkdirAll(k.directory, 0o700); err != nil {
			return fmt.Errorf("creating keyring directory: %w", err)
		}
		keypair, err := sealed.GenerateKeypair()
		if err != nil {
			return err
		}
		// O_EXCL: never clobber an identity that sealed existing entries.
		handle, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			keypair.Close()
			return fmt.Errorf("creating keyring identity: %w", err)
		}
		_, writeErr := handle.Write(append(keypair.PrivateKey.Bytes(), '\n'))
		syncErr := handle.Sync()
		closeErr := handle.Close()
		if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
			keypair.Close()
			os.Remove(path)
			return fmt.Errorf("writing keyring identity: %w", err)
		}
		k.privateKey, k.publicKey = keypair.PrivateKey, keypair.PublicKey
		return nil

	case errors.Is(err, os.ErrNotExist):
		return os.ErrNotExist

	default:
		return fmt.Errorf("reading keyring identity: %w", err)
	}
}

func trimNewline(data []byte) []byte {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data
}

func (k *File) Get(id string) (*secret.Buffer, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	ciphertext, err := os.ReadFile(k.entryPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading sealed password: %w", err)
	}
	if err := k.identity(false); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("sealed password for %s exists but the keyring identity is missing", id)
		}
		return nil, err
	}
	password, err := sealed.Open(ciphertext, k.privateKey)
	if err != nil {
		return nil, fmt.Errorf("opening sealed password for %s: %w", id, err)
	}
	return password, nil
}

func (k *File) Set(id string, password *secret.Buffer) error {
	if err := validateID(id); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.identity(true); err != nil {
		return err
	}
	ciphertext, err := sealed.Seal(password.Bytes(), []string{k.publicKey})
	if err != nil {
		return fmt.Errorf("sealing password for %s: %w", id, err)
	}

	path := k.entryPath(id)
	temporary := path + ".tmp"
	if err := os.WriteFile(temporary, ciphertext, 0o600); err != nil {
		return fmt.Errorf("writing sealed password: %w", err)
	}
	if err := os.Rename(temporary, path); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("renaming sealed password: %w", err)
	}
	return nil
}

func (k *File) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.Remove(k.entryPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w %s", ErrNotFound, id)
		}
		return fmt.Errorf("deleting sealed password: %w", err)
	}
	return nil
}
