// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bureau-foundation/vaultd/lib/vault"
)

func TestReadPasswordFromPipe(t *testing.T) {
	var prompt bytes.Buffer
	password, err := ReadPassword(strings.NewReader("  hunter2 \nignored\n"), &prompt, true)
	if err != nil {
		t.Fatalf("ReadPassword: %v", err)
	}
	defer password.Close()

	if password.String() != "hunter2" {
		t.Errorf("password = %q, want hunter2", password.String())
	}
	if prompt.Len() != 0 {
		t.Errorf("non-terminal input should not prompt, wrote %q", prompt.String())
	}
}

func TestReadPasswordEmpty(t *testing.T) {
	for _, input := range []string{"", "\n", "   \n"} {
		_, err := ReadPassword(strings.NewReader(input), &bytes.Buffer{}, false)
		if vault.KindOf(err) != vault.KindInvalidArgument {
			t.Errorf("ReadPassword(%q) kind = %q, want invalid_argument", input, vault.KindOf(err))
		}
	}
}
