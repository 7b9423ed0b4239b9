// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"errors"
	"fmt"
)

// Kind classifies an error so clients can decide between retrying,
// fixing the request, and surfacing the failure to a person.
type Kind string

const (
	// KindInvalidArgument: malformed request (wrong argument count,
	// unknown cipher, relative path).
	KindInvalidArgument Kind = "invalid_argument"

	// KindNotFound: the vault id is unknown.
	KindNotFound Kind = "not_found"

	// KindAlreadyExists: insert with an id that is already stored.
	KindAlreadyExists Kind = "already_exists"

	// KindBusy: another operation on the same vault is in flight.
	KindBusy Kind = "busy"

	// KindInvalidState: the vault is in the wrong stable state for the
	// request (unlock of an unlocked vault, remove of an unlocked
	// vault).
	KindInvalidState Kind = "invalid_state"

	// KindConflict: the request was based on a stale value, or a path
	// is in use by another unlocked vault.
	KindConflict Kind = "conflict"

	// KindBadPassword: the mount engine rejected the password.
	KindBadPassword Kind = "bad_password"

	// KindKeyring: the password could not be fetched or stored.
	KindKeyring Kind = "keyring"

	// KindMountFailed: the mount engine could not attach the session.
	KindMountFailed Kind = "mount_failed"

	// KindDetachFailed: the mount engine could not detach the session,
	// usually because the mount point is still in use.
	KindDetachFailed Kind = "detach_failed"

	// KindDataDir: the data directory is missing, unreadable, or not a
	// valid backing store.
	KindDataDir Kind = "data_dir"

	// KindConfigNotSaved: persisting the config document failed and
	// the runtime transition was rolled back.
	KindConfigNotSaved Kind = "config_not_saved"

	// KindInternal: anything else.
	KindInternal Kind = "internal"
)

// Kinds lists every kind. The set is closed.
var Kinds = []Kind{
	KindInvalidArgument, KindNotFound, KindAlreadyExists,
	KindBusy, KindInvalidState, KindConflict,
	KindBadPassword, KindKeyring, KindMountFailed, KindDetachFailed, KindDataDir,
	KindConfigNotSaved, KindInternal,
}

// ParseKind maps a wire string back to a Kind. Unknown strings (from a
// newer daemon, say) become KindInternal.
func ParseKind(text string) Kind {
	for _, kind := range Kinds {
		if string(kind) == text {
			return kind
		}
	}
	return KindInternal
}

// IsClientError reports whether the request itself was wrong.
func (k Kind) IsClientError() bool {
	return k == KindInvalidArgument || k == KindNotFound || k == KindAlreadyExists
}

// IsBusy reports whether retrying later, after the competing or
// prerequisite operation, may succeed.
func (k Kind) IsBusy() bool {
	return k == KindBusy || k == KindInvalidState
}

// Error is a kind-tagged error. Op and ID are optional context; Err
// carries the message and, for collaborator failures, the cause.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.ID != "":
		return fmt.Sprintf("%s vault %s: %v", e.Op, e.ID, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// ErrorKind returns the wire string of the kind. lib/service looks for
// this method to fill the response's kind field.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// Errorf creates a kind-tagged error with a formatted message. %w is
// honored.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind. If err already carries a kind, that kind
// wins so the most specific classification survives re-wrapping. A
// nil err returns nil.
func Wrap(kind Kind, op, id string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		kind = tagged.Kind
	}
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none. A nil error has no kind and returns
// the empty string.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
