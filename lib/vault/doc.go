// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault defines the shared vocabulary of vaultd: the durable
// [Vault] record, the closed [Cipher] set, the per-vault [LockState]
// machine, and the [Error] taxonomy that crosses the control socket.
//
// Every other package (the config store, the lifecycle manager, the
// mount engine, the control service and the CLI) speaks in these types.
// The package has no vaultd-internal dependencies.
//
// # Error kinds
//
// Errors that a client must be able to react to programmatically carry
// a [Kind]. Kinds are a closed enumeration with stable string values,
// so they survive serialization across the socket boundary unchanged:
//
//   - Client errors ([KindInvalidArgument], [KindNotFound],
//     [KindAlreadyExists]): fix the request, retrying will not help.
//   - Busy class ([KindBusy], [KindInvalidState]): another operation is
//     in flight, or the vault is in the wrong stable state for the
//     request. Retry once the in-flight operation completes, or after
//     the required lock/unlock.
//   - [KindConflict]: a stale old value or a path collision.
//   - Collaborator failures ([KindBadPassword], [KindKeyring],
//     [KindMountFailed], [KindDetachFailed], [KindDataDir]).
//   - [KindConfigNotSaved]: the config document could not be written
//     and the runtime transition was rolled back.
package vault
