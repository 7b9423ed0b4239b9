// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/vaultd/lib/secret"
	"github.com/bureau-foundation/vaultd/lib/vault"
)

// ReadPassword reads a password from input. A terminal gets an
// unechoed prompt on prompt (twice when confirm is set); anything else
// is read as a single line, which is how --password-stdin works with
// pipes.
func ReadPassword(input io.Reader, prompt io.Writer, confirm bool) (*secret.Buffer, error) {
	file, ok := input.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		password, err := secret.ReadLine(input)
		if err != nil {
			return nil, vault.Errorf(vault.KindInvalidArgument, "reading password: %w", err)
		}
		return password, nil
	}

	first, err := promptOnce(file, prompt, "Password: ")
	if err != nil {
		return nil, err
	}
	defer secret.Zero(first)
	if len(first) == 0 {
		return nil, vault.Errorf(vault.KindInvalidArgument, "password is empty")
	}

	if confirm {
		second, err := promptOnce(file, prompt, "Confirm password: ")
		if err != nil {
			return nil, err
		}
		defer secret.Zero(second)
		if !bytes.Equal(first, second) {
			return nil, vault.Errorf(vault.KindInvalidArgument, "passwords do not match")
		}
	}
	return secret.NewFromBytes(first)
}

func promptOnce(file *os.File, prompt io.Writer, label string) ([]byte, error) {
	fmt.Fprint(prompt, label)
	password, err := term.ReadPassword(int(file.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, fmt.Errorf("reading password from terminal: %w", err)
	}
	return password, nil
}
