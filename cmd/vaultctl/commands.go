// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/vaultd/cmd/vaultctl/cli"
	"github.com/bureau-foundation/vaultd/lib/audit"
	"github.com/bureau-foundation/vaultd/lib/vault"
	"github.com/bureau-foundation/vaultd/lib/version"
	"github.com/bureau-foundation/vaultd/lifecycle"
)

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "vaultctl",
		Summary:     "Control the vault daemon",
		Description: "vaultctl manages encrypted vaults through a running vaultd.",
		HelpOutput:  a.stderr,
		Subcommands: []*cli.Command{
			a.statusCommand(),
			a.listCommand(),
			a.showCommand(),
			a.insertCommand(),
			a.removeCommand(),
			a.unlockCommand(),
			a.lockCommand(),
			a.changePathCommand("change-mount-point", "Move where an unlocked vault would appear"),
			a.changePathCommand("change-data-dir", "Point a vault at a different encrypted directory"),
			a.renameCommand(),
			a.setPasswordCommand(),
			a.historyCommand(),
			a.versionCommand(),
		},
		Examples: []cli.Example{
			{Description: "Create a vault and store its password", Command: "vaultctl insert --name work --mount-point ~/Vaults/work --data-dir ~/.vaults/work --prompt-password"},
			{Description: "Mount it", Command: "vaultctl unlock <id>"},
		},
	}
}

type statusParams struct {
	connection
	cli.JSONOutput
}

// statusView mirrors the daemon's status response.
type statusView struct {
	Version   string    `cbor:"version" json:"version"`
	StartedAt time.Time `cbor:"started_at" json:"started_at"`
	UptimeSec int64     `cbor:"uptime_seconds" json:"uptime_seconds"`
	Vaults    int       `cbor:"vaults" json:"vaults"`
	Unlocked  int       `cbor:"unlocked" json:"unlocked"`
}

func (a *app) statusCommand() *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon version, uptime and vault counts",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("status", &params) },
		Run: func(args []string) error {
			var status statusView
			if err := a.call(params.connection, "status", nil, &status); err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.stdout, status); done {
				return err
			}
			a.printStatus(status)
			return nil
		},
	}
}

type listParams struct {
	connection
	cli.JSONOutput
}

func (a *app) listCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "list",
		Summary: "List vaults and their lock state",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("list", &params) },
		Run: func(args []string) error {
			var statuses []lifecycle.Status
			if err := a.call(params.connection, "list", nil, &statuses); err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.stdout, statuses); done {
				return err
			}
			a.printList(statuses)
			return nil
		},
	}
}

type showParams struct {
	connection
	cli.JSONOutput
}

func (a *app) showCommand() *cli.Command {
	var params showParams
	var command *cli.Command
	command = &cli.Command{
		Name:    "show",
		Summary: "Show one vault",
		Usage:   "vaultctl show <id> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("show", &params) },
		Run: func(args []string) error {
			if err := command.RequireArgs(args, "id"); err != nil {
				return err
			}
			var status lifecycle.Status
			if err := a.call(params.connection, "show", map[string]any{"id": args[0]}, &status); err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.stdout, status); done {
				return err
			}
			a.printShow(status)
			return nil
		},
	}
	return command
}

type insertParams struct {
	connection
	cli.JSONOutput
	passwordInput
	Name       string `flag:"name" desc:"display name"`
	MountPoint string `flag:"mount-point" desc:"absolute path where the vault appears when unlocked"`
	DataDir    string `flag:"data-dir" desc:"absolute path of the encrypted backing directory"`
	Cipher     string `flag:"cipher" desc:"content cipher (ChaCha20Poly1305 or Aes256Gcm)" default:"ChaCha20Poly1305"`
	Rounds     uint32 `flag:"rounds" desc:"key derivation rounds (0 for the daemon default)"`
}

func (a *app) insertCommand() *cli.Command {
	var params insertParams
	var command *cli.Command
	command = &cli.Command{
		Name:    "insert",
		Summary: "Add a vault definition",
		Description: "Add a vault definition. The vault starts locked. Its password is\n" +
			"stored in the daemon's keyring when --password-stdin or\n" +
			"--prompt-password is given, or later with set-password.",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("insert", &params) },
		Run: func(args []string) error {
			if err := command.RequireArgs(args); err != nil {
				return err
			}
			fields := map[string]any{
				"name":        params.Name,
				"mount_point": params.MountPoint,
				"data_dir":    params.DataDir,
				"cipher":      params.Cipher,
			}
			if params.Rounds > 0 {
				fields["derive_key_hash_rounds"] = params.Rounds
			}
			password, err := params.passwordInput.read(a, false)
			if err != nil {
				return err
			}
			if password != nil {
				defer password.Close()
				fields["password"] = password.Bytes()
			}

			var record vault.Vault
			if err := a.call(params.connection, "insert", fields, &record); err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.stdout, record); done {
				return err
			}
			fmt.Fprintln(a.stdout, record.ID)
			return nil
		},
	}
	return command
}

// idCommand builds a command whose only argument is a vault id and
// whose response carries no data.
func (a *app) idCommand(name, summary, done string) *cli.Command {
	var conn connection
	var command *cli.Command
	command = &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("vaultctl %s <id> [flags]", name),
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams(name, &conn) },
		Run: func(args []string) error {
			if err := command.RequireArgs(args, "id"); err != nil {
				return err
			}
			if err := a.call(conn, name, map[string]any{"id": args[0]}, nil); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s %s\n", args[0], done)
			return nil
		},
	}
	return command
}

func (a *app) removeCommand() *cli.Command {
	command := a.idCommand("remove", "Delete a locked vault definition and its stored password", "removed")
	command.Description = "Delete a vault definition. The vault must be locked. The encrypted\n" +
		"data directory is left in place."
	return command
}

func (a *app) unlockCommand() *cli.Command {
	return a.idCommand("unlock", "Mount a vault using its stored password", "unlocked")
}

func (a *app) lockCommand() *cli.Command {
	return a.idCommand("lock", "Unmount a vault", "locked")
}

// changePathCommand builds change-mount-point and change-data-dir,
// which share the <id> <old> <new> shape.
func (a *app) changePathCommand(name, summary string) *cli.Command {
	var conn connection
	var command *cli.Command
	command = &cli.Command{
		Name:    name,
		Summary: summary,
		Description: summary + ". <old> must match the stored value, so a\n" +
			"concurrent change is detected instead of overwritten.",
		Usage: fmt.Sprintf("vaultctl %s <id> <old> <new> [flags]", name),
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams(name, &conn) },
		Run: func(args []string) error {
			if err := command.RequireArgs(args, "id", "old", "new"); err != nil {
				return err
			}
			fields := map[string]any{"id": args[0], "value": []string{args[1], args[2]}}
			if err := a.call(conn, name, fields, nil); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %s -> %s\n", args[0], args[1], args[2])
			return nil
		},
	}
	return command
}

func (a *app) renameCommand() *cli.Command {
	var conn connection
	var command *cli.Command
	command = &cli.Command{
		Name:    "rename",
		Summary: "Change a vault's display name",
		Usage:   "vaultctl rename <id> <name> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("rename", &conn) },
		Run: func(args []string) error {
			if err := command.RequireArgs(args, "id", "name"); err != nil {
				return err
			}
			return a.call(conn, "rename", map[string]any{"id": args[0], "name": args[1]}, nil)
		},
	}
	return command
}

type setPasswordParams struct {
	connection
	Stdin bool `flag:"password-stdin" desc:"read the password as one line from stdin instead of prompting"`
}

func (a *app) setPasswordCommand() *cli.Command {
	var params setPasswordParams
	var command *cli.Command
	command = &cli.Command{
		Name:    "set-password",
		Summary: "Store a vault's password in the daemon's keyring",
		Description: "Store a vault's password in the daemon's keyring. The password is\n" +
			"not checked against the vault until the next unlock.",
		Usage: "vaultctl set-password <id> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("set-password", &params) },
		Run: func(args []string) error {
			if err := command.RequireArgs(args, "id"); err != nil {
				return err
			}
			input := passwordInput{Stdin: params.Stdin, Prompt: !params.Stdin}
			password, err := input.read(a, true)
			if err != nil {
				return err
			}
			defer password.Close()
			return a.call(params.connection, "set-password", map[string]any{
				"id":       args[0],
				"password": password.Bytes(),
			}, nil)
		},
	}
	return command
}

type historyParams struct {
	connection
	cli.JSONOutput
	Limit int `flag:"limit,n" desc:"number of events to show (0 for the daemon default)"`
}

func (a *app) historyCommand() *cli.Command {
	var params historyParams
	var command *cli.Command
	command = &cli.Command{
		Name:    "history",
		Summary: "Show recent operations on a vault, newest first",
		Usage:   "vaultctl history <id> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("history", &params) },
		Run: func(args []string) error {
			if err := command.RequireArgs(args, "id"); err != nil {
				return err
			}
			fields := map[string]any{"id": args[0]}
			if params.Limit > 0 {
				fields["limit"] = params.Limit
			}
			var events []audit.Event
			if err := a.call(params.connection, "history", fields, &events); err != nil {
				return err
			}
			if done, err := params.EmitJSON(a.stdout, events); done {
				return err
			}
			a.printHistory(events)
			return nil
		},
	}
	return command
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print vaultctl version information",
		Run: func(args []string) error {
			fmt.Fprintln(a.stdout, version.Info())
			return nil
		},
	}
}
