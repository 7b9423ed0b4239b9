// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestParseCipher(t *testing.T) {
	tests := []struct {
		input string
		want  Cipher
	}{
		{"ChaCha20Poly1305", ChaCha20Poly1305},
		{"chacha20poly1305", ChaCha20Poly1305},
		{"CHACHA20-POLY1305", ChaCha20Poly1305},
		{"Aes256Gcm", Aes256Gcm},
		{"AES256", Aes256Gcm},
		{" aes-256-gcm ", Aes256Gcm},
	}
	for _, test := range tests {
		got, err := ParseCipher(test.input)
		if err != nil {
			t.Errorf("ParseCipher(%q): %v", test.input, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseCipher(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestParseCipherUnknown(t *testing.T) {
	_, err := ParseCipher("rot13")
	if err == nil {
		t.Fatal("expected error for unknown cipher")
	}
	if KindOf(err) != KindInvalidArgument {
		t.Errorf("kind = %q, want %q", KindOf(err), KindInvalidArgument)
	}
}

func TestCipherTextRoundTrip(t *testing.T) {
	for _, cipher := range Ciphers {
		text, err := cipher.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%q): %v", cipher, err)
		}
		var decoded Cipher
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if decoded != cipher {
			t.Errorf("round trip: got %q, want %q", decoded, cipher)
		}
	}

	if _, err := Cipher("").MarshalText(); err == nil {
		t.Error("MarshalText of the zero cipher should fail")
	}
}

func TestLockStateText(t *testing.T) {
	for _, state := range []LockState{Locked, Unlocking, Unlocked, Locking} {
		text, _ := state.MarshalText()
		var decoded LockState
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if decoded != state {
			t.Errorf("round trip: got %v, want %v", decoded, state)
		}
	}
	if !Unlocking.Transient() || !Locking.Transient() {
		t.Error("Unlocking and Locking must be transient")
	}
	if Locked.Transient() || Unlocked.Transient() {
		t.Error("Locked and Unlocked must not be transient")
	}
}

func validVault() Vault {
	return Vault{
		ID:                  "v1",
		Name:                "work",
		MountPoint:          "/mnt/a",
		DataDir:             "/data/a",
		Cipher:              Aes256Gcm,
		DeriveKeyHashRounds: 600000,
		Locked:              true,
	}
}

func TestValidate(t *testing.T) {
	good := validVault()
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate(valid): %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Vault)
	}{
		{"missing id", func(v *Vault) { v.ID = "" }},
		{"relative mount point", func(v *Vault) { v.MountPoint = "mnt/a" }},
		{"missing data dir", func(v *Vault) { v.DataDir = "" }},
		{"same paths", func(v *Vault) { v.DataDir = "/mnt/a/" }},
		{"unknown cipher", func(v *Vault) { v.Cipher = "rot13" }},
		{"zero rounds", func(v *Vault) { v.DeriveKeyHashRounds = 0 }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			record := validVault()
			test.mutate(&record)
			err := record.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if KindOf(err) != KindInvalidArgument {
				t.Errorf("kind = %q, want %q", KindOf(err), KindInvalidArgument)
			}
		})
	}
}

func TestErrorKindPropagation(t *testing.T) {
	cause := fmt.Errorf("opening data dir: %w", fs.ErrPermission)
	err := Wrap(KindDataDir, "unlock", "v1", cause)

	if KindOf(err) != KindDataDir {
		t.Errorf("kind = %q, want %q", KindOf(err), KindDataDir)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("cause lost through Wrap")
	}
	if got := err.Error(); got != "unlock vault v1: opening data dir: permission denied" {
		t.Errorf("message = %q", got)
	}

	// An inner kind is more specific than the outer one.
	inner := Errorf(KindBadPassword, "password verification failed")
	outer := Wrap(KindMountFailed, "unlock", "v1", fmt.Errorf("attach: %w", inner))
	if KindOf(outer) != KindBadPassword {
		t.Errorf("kind = %q, want %q", KindOf(outer), KindBadPassword)
	}

	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("untagged errors should be internal")
	}
	if KindOf(nil) != "" {
		t.Error("nil error should have no kind")
	}
	if Wrap(KindInternal, "x", "", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestParseKind(t *testing.T) {
	for _, kind := range Kinds {
		if ParseKind(string(kind)) != kind {
			t.Errorf("ParseKind(%q) did not round trip", kind)
		}
	}
	if ParseKind("something_new") != KindInternal {
		t.Error("unknown kind strings should map to internal")
	}
	if !KindBusy.IsBusy() || !KindInvalidState.IsBusy() || KindConflict.IsBusy() {
		t.Error("IsBusy classification wrong")
	}
	if !KindNotFound.IsClientError() || KindKeyring.IsClientError() {
		t.Error("IsClientError classification wrong")
	}
}
