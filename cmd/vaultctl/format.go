// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/vaultd/lib/audit"
	"github.com/bureau-foundation/vaultd/lib/vault"
	"github.com/bureau-foundation/vaultd/lifecycle"
)

// ago renders t relative to the app clock ("3 minutes ago").
func (a *app) ago(t time.Time) string {
	return humanize.RelTime(t, a.clock.Now(), "ago", "from now")
}

// stateLabel adds the in-flight operation or the unlock age.
func (a *app) stateLabel(status lifecycle.Status) string {
	switch {
	case status.Operation != "":
		return fmt.Sprintf("%s (%s)", status.State, status.Operation)
	case status.State == vault.Unlocked && !status.UnlockedAt.IsZero():
		return fmt.Sprintf("unlocked %s", a.ago(status.UnlockedAt))
	default:
		return status.State.String()
	}
}

func (a *app) printStatus(status statusView) {
	uptime := time.Duration(status.UptimeSec) * time.Second
	fmt.Fprintf(a.stdout, "vaultd %s\n", status.Version)
	fmt.Fprintf(a.stdout, "up since %s (%s)\n", status.StartedAt.Local().Format(time.DateTime), uptime)
	fmt.Fprintf(a.stdout, "%d vault(s), %d unlocked\n", status.Vaults, status.Unlocked)
}

func (a *app) printList(statuses []lifecycle.Status) {
	if len(statuses) == 0 {
		fmt.Fprintln(a.stdout, "no vaults")
		return
	}
	tw := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tMOUNT POINT")
	for _, status := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			status.Vault.ID, status.Vault.Name, a.stateLabel(status), status.Vault.MountPoint)
	}
	tw.Flush()
}

func (a *app) printShow(status lifecycle.Status) {
	record := status.Vault
	tw := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", record.ID)
	fmt.Fprintf(tw, "name:\t%s\n", record.Name)
	fmt.Fprintf(tw, "state:\t%s\n", a.stateLabel(status))
	fmt.Fprintf(tw, "mount point:\t%s\n", record.MountPoint)
	fmt.Fprintf(tw, "data dir:\t%s\n", record.DataDir)
	fmt.Fprintf(tw, "cipher:\t%s\n", record.Cipher)
	fmt.Fprintf(tw, "key rounds:\t%s\n", humanize.Comma(int64(record.DeriveKeyHashRounds)))
	if !record.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "created:\t%s\n", a.ago(record.CreatedAt))
	}
	tw.Flush()
}

func (a *app) printHistory(events []audit.Event) {
	if len(events) == 0 {
		fmt.Fprintln(a.stdout, "no events")
		return
	}
	tw := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tOPERATION\tOUTCOME\tDETAIL")
	for _, event := range events {
		detail := event.Message
		if event.Kind != "" {
			detail = fmt.Sprintf("[%s] %s", event.Kind, event.Message)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ago(event.Time), event.Operation, event.Outcome, detail)
	}
	tw.Flush()
}
