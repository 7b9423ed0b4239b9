// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/vaultd/lib/vault"
)

type sampleRequest struct {
	Action string   `cbor:"action"`
	ID     string   `cbor:"id,omitempty"`
	Value  []string `cbor:"value,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRequest{
		Action: "change-mount-point",
		ID:     "3f1c",
		Value:  []string{"/mnt/old", "/mnt/new"},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Action != original.Action || decoded.ID != original.ID {
		t.Errorf("got %+v, want %+v", decoded, original)
	}
	if len(decoded.Value) != 2 || decoded.Value[1] != "/mnt/new" {
		t.Errorf("value: got %v", decoded.Value)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	message := map[string]any{"action": "unlock", "id": "a", "extra": 7}

	first, err := Marshal(message)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(message)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestVaultRecordRoundtrip(t *testing.T) {
	original := vault.Vault{
		ID:                  "3f1c",
		Name:                "work",
		MountPoint:          "/mnt/a",
		DataDir:             "/data/a",
		Cipher:              vault.Aes256Gcm,
		DeriveKeyHashRounds: 600000,
		Locked:              true,
		CreatedAt:           time.Date(2026, 3, 1, 9, 30, 0, 120, time.UTC),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded vault.Vault
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("created_at: got %v, want %v", decoded.CreatedAt, original.CreatedAt)
	}
	decoded.CreatedAt = original.CreatedAt
	if decoded != original {
		t.Errorf("got %+v, want %+v", decoded, original)
	}
}

func TestTextMarshalerTravelsAsText(t *testing.T) {
	data, err := Marshal(map[string]any{"state": vault.Unlocked})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"unlocked"`) {
		t.Errorf("lock state should encode as text, got %s", notation)
	}

	var decoded struct {
		State vault.LockState `cbor:"state"`
	}
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.State != vault.Unlocked {
		t.Errorf("state: got %v, want unlocked", decoded.State)
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	messages := []sampleRequest{
		{Action: "lock", ID: "a"},
		{Action: "unlock", ID: "b"},
		{Action: "status"},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, message := range messages {
		if err := encoder.Encode(message); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for index, want := range messages {
		var got sampleRequest
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode message %d: %v", index, err)
		}
		if got.Action != want.Action || got.ID != want.ID {
			t.Errorf("message %d: got %+v, want %+v", index, got, want)
		}
	}
}

func TestGenericMapsAreStringKeyed(t *testing.T) {
	data, err := Marshal(map[string]any{"nested": map[string]any{"id": "x"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded["nested"].(map[string]any); !ok {
		t.Errorf("nested map has type %T, want map[string]any", decoded["nested"])
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var message sampleRequest
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &message); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}
