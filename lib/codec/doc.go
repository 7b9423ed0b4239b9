// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides vaultd's CBOR encoding configuration.
//
// vaultd uses two serialization formats with a clear boundary:
//
//   - YAML for files a person may read or edit: the vault config
//     document and the daemon settings file.
//   - CBOR for everything machine-to-machine: the control socket
//     protocol, the cryptfs data directory header, and audit records.
//
// Every package that speaks CBOR goes through this package so that the
// encoding options live in one place. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2), so the same logical value
// always produces identical bytes.
//
// For buffer-oriented operations (files, records):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types implementing encoding.TextMarshaler (vault.Cipher,
// vault.LockState) travel as CBOR text strings.
package codec
