// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptfs

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/pbkdf2"

	"github.com/bureau-foundation/vaultd/lib/codec"
	"github.com/bureau-foundation/vaultd/lib/secret"
	"github.com/bureau-foundation/vaultd/lib/vault"
)

const (
	// HeaderName is the control file at the root of a data directory.
	HeaderName = ".vaultd-header"

	// controlPrefix marks names the filesystem hides and refuses to
	// create: the header and in-flight temp files.
	controlPrefix = ".vaultd-"

	headerVersion = 1
	keySize       = 32
	saltSize      = 32
)

var verifierDomain = []byte("vaultd.volume-key.verifier.v1")

// Header describes how a data directory's volume key is derived.
type Header struct {
	Version  int          `cbor:"version"`
	Cipher   vault.Cipher `cbor:"cipher"`
	Rounds   uint32       `cbor:"rounds"`
	Salt     []byte       `cbor:"salt"`
	Verifier []byte       `cbor:"verifier"`
}

// ReadHeader loads the header from dataDir. A missing header returns
// an error wrapping os.ErrNotExist.
func ReadHeader(dataDir string) (*Header, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, HeaderName))
	if err != nil {
		return nil, err
	}
	var header Header
	if err := codec.Unmarshal(data, &header); err != nil {
		return nil, vault.Errorf(vault.KindDataDir, "decoding %s header: %w", dataDir, err)
	}
	if err := header.validate(); err != nil {
		return nil, vault.Errorf(vault.KindDataDir, "%s header: %w", dataDir, err)
	}
	return &header, nil
}

func (h *Header) validate() error {
	switch {
	case h.Version != headerVersion:
		return fmt.Errorf("unsupported header version %d", h.Version)
	case !h.Cipher.Valid():
		return fmt.Errorf("unknown cipher %q", string(h.Cipher))
	case h.Rounds == 0:
		return errors.New("zero key derivation rounds")
	case len(h.Salt) != saltSize:
		return fmt.Errorf("salt is %d bytes, want %d", len(h.Salt), saltSize)
	case len(h.Verifier) != keySize:
		return fmt.Errorf("verifier is %d bytes, want %d", len(h.Verifier), keySize)
	}
	return nil
}

// newHeader creates a header with a fresh salt. The verifier is filled
// in once the key is derived.
func newHeader(cipher vault.Cipher, rounds uint32) (*Header, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return &Header{
		Version: headerVersion,
		Cipher:  cipher,
		Rounds:  rounds,
		Salt:    salt,
	}, nil
}

func writeHeader(dataDir string, header *Header) error {
	data, err := codec.Marshal(header)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	return writeFileAtomic(filepath.Join(dataDir, HeaderName), data, 0o600)
}

// deriveKey runs PBKDF2-SHA256 over the password.
func deriveKey(password *secret.Buffer, header *Header) (*secret.Buffer, error) {
	derived := pbkdf2.Key(password.Bytes(), header.Salt, int(header.Rounds), keySize, sha256.New)
	return secret.NewFromBytes(derived)
}

func keyVerifier(key *secret.Buffer) []byte {
	hasher, err := blake3.NewKeyed(key.Bytes())
	if err != nil {
		panic("cryptfs: BLAKE3 keyed hash initialization failed (key must be 32 bytes): " + err.Error())
	}
	hasher.Write(verifierDomain)
	return hasher.Sum(nil)
}

func (h *Header) verify(key *secret.Buffer) bool {
	return subtle.ConstantTimeCompare(keyVerifier(key), h.Verifier) == 1
}

// writeFileAtomic writes data beside path under a control-prefixed
// temp name, syncs it, and renames it into place.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), controlPrefix+"tmp-*")
	if err != nil {
		return err
	}
	temporaryPath := temporary.Name()
	committed := false
	defer func() {
		if !committed {
			temporary.Close()
			os.Remove(temporaryPath)
		}
	}()

	if err := temporary.Chmod(mode); err != nil {
		return err
	}
	if _, err := temporary.Write(data); err != nil {
		return err
	}
	if err := temporary.Sync(); err != nil {
		return err
	}
	if err := temporary.Close(); err != nil {
		return err
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		return err
	}
	committed = true
	return nil
}
