// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/vaultd/lib/vault"
)

// Command is one node of the command tree.
type Command struct {
	// Name is the word typed by the user ("unlock", "history").
	Name string

	// Summary is the one-line description in the parent's listing.
	Summary string

	// Description is the longer text shown in the command's own help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	// Examples are printed after the flags in help output.
	Examples []Example

	// Flags returns the command's flag set. Called lazily, and again
	// for help output, so it must return a fresh set bound to the
	// same targets each time.
	Flags func() *pflag.FlagSet

	// Subcommands are dispatched by the first positional argument.
	Subcommands []*Command

	// Run executes the command with the positional arguments left
	// after flag parsing. When both Run and Subcommands are set, Run
	// handles the case where no subcommand matches.
	Run func(args []string) error

	// HelpOutput receives help text. Defaults to os.Stderr; children
	// inherit the root's writer.
	HelpOutput io.Writer

	parent *Command
}

// Example is a usage example shown in help output.
type Example struct {
	Description string
	Command     string
}

// UsageError reports a command line the command cannot act on. It
// carries the invalid_argument kind so the process exit code matches
// a request the daemon rejected for the same reason.
type UsageError struct {
	Message string
	Command string
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return e.Message
	}
	return fmt.Sprintf("%s\n\nRun '%s --help' for usage.", e.Message, e.Command)
}

// ErrorKind implements the kinded-error convention of lib/process.
func (e *UsageError) ErrorKind() string { return string(vault.KindInvalidArgument) }

// Execute parses args and dispatches to the matching subcommand or to
// Run. It is the entry point for the whole tree.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpOutput())
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name := args[0]
		for _, sub := range c.Subcommands {
			if sub.Name == name {
				sub.parent = c
				return sub.Execute(args[1:])
			}
		}
		if c.Run == nil {
			message := fmt.Sprintf("unknown command %q", name)
			if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
				message += fmt.Sprintf(" (did you mean %q?)", suggestion)
			}
			return &UsageError{Message: message, Command: c.fullName()}
		}
	}

	if len(c.Subcommands) > 0 && c.Run == nil {
		c.PrintHelp(c.helpOutput())
		if len(args) == 0 {
			return &UsageError{Message: "command required"}
		}
		return &UsageError{Message: fmt.Sprintf("command required (got flag %q)", args[0])}
	}

	if c.Flags != nil {
		flagSet := c.Flags()
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			message := err.Error()
			if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand") {
				// A fresh set: the failed parse may have left state behind.
				if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
					message += fmt.Sprintf(" (did you mean %s?)", suggestion)
				}
			}
			return &UsageError{Message: message, Command: c.fullName()}
		}
		args = flagSet.Args()
	}

	if c.Run != nil {
		return c.Run(args)
	}

	c.PrintHelp(c.helpOutput())
	return fmt.Errorf("no action defined for %q", c.fullName())
}

// PrintHelp writes the command's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	if c.Description != "" {
		fmt.Fprintf(w, "%s\n\n", c.Description)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", name)
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", name)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		usages := c.Flags().FlagUsages()
		if usages != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usages)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// RequireArgs fails with a UsageError unless exactly len(names)
// positional arguments were given.
func (c *Command) RequireArgs(args []string, names ...string) error {
	if len(args) == len(names) {
		return nil
	}
	placeholders := make([]string, len(names))
	for index, name := range names {
		placeholders[index] = "<" + name + ">"
	}
	message := fmt.Sprintf("expected %d argument(s): %s", len(names), strings.Join(placeholders, " "))
	if len(args) > len(names) {
		message = fmt.Sprintf("%s (unexpected %q)", message, args[len(names)])
	}
	return &UsageError{Message: message, Command: c.fullName()}
}

func (c *Command) helpOutput() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.HelpOutput != nil {
			return command.HelpOutput
		}
	}
	return os.Stderr
}

// fullName returns the command path ("vaultctl change-mount-point").
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
