// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptfs

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/vaultd/lib/secret"
	"github.com/bureau-foundation/vaultd/lib/vault"
)

const (
	blobVersion byte = 1

	flagCompressed byte = 1 << 0

	fileSaltSize   = 16
	blobPrefixSize = 1 + 1 + 8 + fileSaltSize

	// Below this size compression never pays for the zstd frame.
	minCompressSize = 128
)

var hkdfInfoFile = []byte("vaultd.file.v1")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cryptfs: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("cryptfs: zstd decoder initialization failed: " + err.Error())
	}
}

// errCorrupt reports a blob that fails authentication or parsing.
var errCorrupt = errors.New("sealed file is corrupt or was written with a different key")

// sealer seals and opens file blobs with one volume key. The key is
// borrowed; the owner closes it.
type sealer struct {
	cipher vault.Cipher
	key    *secret.Buffer
}

func (s *sealer) aead(fileSalt []byte) (cipher.AEAD, error) {
	subkey := make([]byte, keySize)
	defer secret.Zero(subkey)
	if _, err := io.ReadFull(hkdf.New(sha256.New, s.key.Bytes(), fileSalt, hkdfInfoFile), subkey); err != nil {
		return nil, fmt.Errorf("deriving file key: %w", err)
	}

	switch s.cipher {
	case vault.ChaCha20Poly1305:
		return chacha20poly1305.NewX(subkey)
	case vault.Aes256Gcm:
		block, err := aes.NewCipher(subkey)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("unsupported cipher %q", string(s.cipher))
	}
}

// seal encrypts plaintext into a new blob.
func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	prefix := make([]byte, blobPrefixSize)
	prefix[0] = blobVersion
	binary.BigEndian.PutUint64(prefix[2:10], uint64(len(plaintext)))
	if _, err := io.ReadFull(rand.Reader, prefix[10:]); err != nil {
		return nil, fmt.Errorf("generating file salt: %w", err)
	}

	payload := plaintext
	if len(plaintext) >= minCompressSize {
		compressed := zstdEncoder.EncodeAll(plaintext, nil)
		if len(compressed) < len(plaintext) {
			payload = compressed
			prefix[1] |= flagCompressed
			defer secret.Zero(compressed)
		}
	}

	aead, err := s.aead(prefix[10:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	output := make([]byte, 0, blobPrefixSize+len(nonce)+len(payload)+aead.Overhead())
	output = append(output, prefix...)
	output = append(output, nonce...)
	return aead.Seal(output, nonce, payload, prefix), nil
}

// open authenticates and decrypts a blob.
func (s *sealer) open(blob []byte) ([]byte, error) {
	size, err := plaintextSize(blob)
	if err != nil {
		return nil, err
	}
	prefix := blob[:blobPrefixSize]

	aead, err := s.aead(prefix[10:])
	if err != nil {
		return nil, err
	}
	rest := blob[blobPrefixSize:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, errCorrupt
	}
	payload, err := aead.Open(nil, rest[:aead.NonceSize()], rest[aead.NonceSize():], prefix)
	if err != nil {
		return nil, errCorrupt
	}

	if prefix[1]&flagCompressed == 0 {
		if uint64(len(payload)) != size {
			return nil, errCorrupt
		}
		return payload, nil
	}
	defer secret.Zero(payload)
	plaintext, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
	if err != nil || uint64(len(plaintext)) != size {
		secret.Zero(plaintext)
		return nil, errCorrupt
	}
	return plaintext, nil
}

// plaintextSize reads the recorded size without decrypting. The value
// is only trustworthy once open has authenticated the blob.
func plaintextSize(blob []byte) (uint64, error) {
	if len(blob) < blobPrefixSize {
		return 0, errCorrupt
	}
	if blob[0] != blobVersion {
		return 0, fmt.Errorf("sealed file version %d is not supported", blob[0])
	}
	return binary.BigEndian.Uint64(blob[2:10]), nil
}
