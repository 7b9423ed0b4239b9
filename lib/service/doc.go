// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service is the control socket plumbing shared by vaultd and
// vaultctl.
//
// The protocol is one CBOR request and one CBOR response per Unix
// socket connection. A request is a map with an "action" string and
// action-specific fields; a response is a [Response] envelope. The
// server routes on the action name to a registered [ActionFunc].
//
// Errors keep their classification across the socket: when a handler
// returns an error implementing ErrorKind() string, the kind is copied
// into [Response].Kind and the client surfaces it again as
// [ServiceError].Kind. Untagged errors travel as kind "internal".
//
// The socket file is created mode 0600. Access control is the file
// system: only the user running vaultd can connect.
//
// [NewLogger] builds the JSON slog logger both binaries use.
package service
