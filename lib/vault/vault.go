// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Vault is the durable definition of one vault, as stored in the
// config document and returned over the control socket.
type Vault struct {
	// ID is assigned at insert time and never changes.
	ID string `yaml:"id" cbor:"id" json:"id"`

	// Name is a display label. Not required to be unique.
	Name string `yaml:"name" cbor:"name" json:"name"`

	// MountPoint is where the decrypted view appears while unlocked.
	MountPoint string `yaml:"mount_point" cbor:"mount_point" json:"mount_point"`

	// DataDir holds the encrypted backing store.
	DataDir string `yaml:"data_dir" cbor:"data_dir" json:"data_dir"`

	// Cipher is fixed at creation.
	Cipher Cipher `yaml:"cipher" cbor:"cipher" json:"cipher"`

	// DeriveKeyHashRounds tunes the key derivation cost. Fixed at
	// creation.
	DeriveKeyHashRounds uint32 `yaml:"derive_key_hash_rounds" cbor:"derive_key_hash_rounds" json:"derive_key_hash_rounds"`

	// Locked is the last persisted lock state. While the daemon runs
	// the lifecycle manager's runtime entry is authoritative.
	Locked bool `yaml:"locked" cbor:"locked" json:"locked"`

	// CreatedAt is informational.
	CreatedAt time.Time `yaml:"created_at,omitempty" cbor:"created_at,omitempty" json:"created_at,omitempty"`
}

// DefaultDeriveKeyHashRounds is used when a client does not pick a
// key derivation cost (PBKDF2-SHA256, OWASP 2023 guidance).
const DefaultDeriveKeyHashRounds uint32 = 600000

// NewID returns a fresh vault identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the fields a record must carry before it can be
// stored. It does not check uniqueness, which needs the whole document.
func (v *Vault) Validate() error {
	if v.ID == "" {
		return Errorf(KindInvalidArgument, "vault id is required")
	}
	if v.MountPoint == "" {
		return Errorf(KindInvalidArgument, "mount point is required")
	}
	if !filepath.IsAbs(v.MountPoint) {
		return Errorf(KindInvalidArgument, "mount point %q must be an absolute path", v.MountPoint)
	}
	if v.DataDir == "" {
		return Errorf(KindInvalidArgument, "data dir is required")
	}
	if !filepath.IsAbs(v.DataDir) {
		return Errorf(KindInvalidArgument, "data dir %q must be an absolute path", v.DataDir)
	}
	if SamePath(v.MountPoint, v.DataDir) {
		return Errorf(KindInvalidArgument, "mount point and data dir must differ")
	}
	if !v.Cipher.Valid() {
		return Errorf(KindInvalidArgument, "unknown cipher %q", string(v.Cipher))
	}
	if v.DeriveKeyHashRounds == 0 {
		return Errorf(KindInvalidArgument, "derive_key_hash_rounds must be positive")
	}
	return nil
}

// Normalize cleans the path fields in place.
func (v *Vault) Normalize() {
	if v.MountPoint != "" {
		v.MountPoint = filepath.Clean(v.MountPoint)
	}
	if v.DataDir != "" {
		v.DataDir = filepath.Clean(v.DataDir)
	}
}

// SamePath reports whether two paths name the same location after
// lexical cleaning. Symlinks are not resolved: the mount point of a
// locked vault may not exist yet.
func SamePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// Cipher names one of the supported content encryption algorithms.
// The zero value is invalid.
type Cipher string

const (
	// ChaCha20Poly1305 is XChaCha20-Poly1305 with a 24-byte nonce.
	ChaCha20Poly1305 Cipher = "ChaCha20Poly1305"

	// Aes256Gcm is AES-256 in GCM mode.
	Aes256Gcm Cipher = "Aes256Gcm"
)

// Ciphers lists every recognized cipher in display order.
var Ciphers = []Cipher{ChaCha20Poly1305, Aes256Gcm}

// cipherAliases maps upper-cased accepted spellings to the canonical
// cipher. Canonical names are included so lookups need one map.
var cipherAliases = map[string]Cipher{
	"CHACHA20POLY1305":  ChaCha20Poly1305,
	"CHACHA20-POLY1305": ChaCha20Poly1305,
	"CHACHA20":          ChaCha20Poly1305,
	"AES256GCM":         Aes256Gcm,
	"AES-256-GCM":       Aes256Gcm,
	"AES256":            Aes256Gcm,
}

// ParseCipher resolves a cipher name case-insensitively. Unknown names
// fail with KindInvalidArgument.
func ParseCipher(name string) (Cipher, error) {
	cipher, ok := cipherAliases[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", Errorf(KindInvalidArgument, "unknown cipher %q (supported: %s)", name, cipherList())
	}
	return cipher, nil
}

func cipherList() string {
	names := make([]string, len(Ciphers))
	for index, cipher := range Ciphers {
		names[index] = string(cipher)
	}
	return strings.Join(names, ", ")
}

// Valid reports whether c is one of the recognized ciphers.
func (c Cipher) Valid() bool {
	return c == ChaCha20Poly1305 || c == Aes256Gcm
}

func (c Cipher) String() string { return string(c) }

// MarshalText emits the canonical name.
func (c Cipher) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown cipher %q", string(c))
	}
	return []byte(c), nil
}

// UnmarshalText accepts the canonical name or any alias.
func (c *Cipher) UnmarshalText(text []byte) error {
	parsed, err := ParseCipher(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// LockState is the runtime state of one vault.
type LockState int

const (
	Locked LockState = iota
	Unlocking
	Unlocked
	Locking
)

func (s LockState) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	case Unlocked:
		return "unlocked"
	case Locking:
		return "locking"
	default:
		return fmt.Sprintf("LockState(%d)", int(s))
	}
}

// Transient reports whether s is one of the guard states held while a
// mount or unmount is in progress.
func (s LockState) Transient() bool {
	return s == Unlocking || s == Locking
}

// MarshalText emits the lower-case state name.
func (s LockState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *LockState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "locked":
		*s = Locked
	case "unlocking":
		*s = Unlocking
	case "unlocked":
		*s = Unlocked
	case "locking":
		*s = Locking
	default:
		return fmt.Errorf("unknown lock state %q", string(text))
	}
	return nil
}
