// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type insertParams struct {
	JSONOutput
	Name    string        `flag:"name" desc:"display name"`
	Rounds  uint32        `flag:"rounds" desc:"key derivation rounds" default:"1000"`
	Limit   int           `flag:"limit,n" default:"20"`
	Timeout time.Duration `flag:"timeout" default:"30s"`
	Tags    []string      `flag:"tag" default:"a,b"`
	Stdin   bool          `flag:"password-stdin"`
	Ignored string
}

func TestFlagsFromParamsDefaults(t *testing.T) {
	var params insertParams
	flagSet := FlagsFromParams("insert", &params)
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.Rounds != 1000 || params.Limit != 20 || params.Timeout != 30*time.Second {
		t.Errorf("defaults = %+v", params)
	}
	if len(params.Tags) != 2 || params.Tags[0] != "a" {
		t.Errorf("Tags = %v, want [a b]", params.Tags)
	}
	if flagSet.Lookup("ignored") != nil {
		t.Error("untagged field should not become a flag")
	}
}

func TestFlagsFromParamsParse(t *testing.T) {
	var params insertParams
	flagSet := FlagsFromParams("insert", &params)
	err := flagSet.Parse([]string{"--name", "work", "--rounds=5", "-n", "3", "--json", "--password-stdin", "rest"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.Name != "work" || params.Rounds != 5 || params.Limit != 3 {
		t.Errorf("params = %+v", params)
	}
	if !params.OutputJSON || !params.Stdin {
		t.Error("bool flags not set")
	}
	if args := flagSet.Args(); len(args) != 1 || args[0] != "rest" {
		t.Errorf("Args = %v, want [rest]", args)
	}
}

func TestBindFlagsRejectsBadParams(t *testing.T) {
	var notStruct int
	if err := BindFlags(&notStruct, FlagsFromParams("x", &struct{}{})); err == nil {
		t.Error("expected error for non-struct params")
	}

	var unsupported struct {
		Ratio float32 `flag:"ratio"`
	}
	if err := BindFlags(&unsupported, FlagsFromParams("x", &struct{}{})); err == nil {
		t.Error("expected error for unsupported field type")
	}

	var badDefault struct {
		Rounds uint32 `flag:"rounds" default:"-1"`
	}
	if err := BindFlags(&badDefault, FlagsFromParams("x", &struct{}{})); err == nil {
		t.Error("expected error for an unparseable default")
	}
}

func TestEmitJSON(t *testing.T) {
	var buffer bytes.Buffer
	output := JSONOutput{}
	if done, err := output.EmitJSON(&buffer, []string{"a"}); done || err != nil {
		t.Fatalf("EmitJSON without --json = (%v, %v), want (false, nil)", done, err)
	}

	output.OutputJSON = true
	var empty []string
	done, err := output.EmitJSON(&buffer, empty)
	if !done || err != nil {
		t.Fatalf("EmitJSON = (%v, %v)", done, err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		t.Errorf("nil slice encoded as %q, want []", buffer.String())
	}
}
