// Package main implements the replygate CLI - the integrity pipeline
// between a reply-drafting model and the post button.
//
// This file provides the context-lock commands: verify re-fetches a
// target and reconciles it against its snapshot, snapshot captures a
// fresh one from the live page.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"replygate/internal/config"
	"replygate/internal/gate"
	"replygate/internal/reply"
	"replygate/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [snapshot.json]",
	Short: "Re-fetch a target and reconcile it against its snapshot",
	Long: `Runs only the context lock: fetches the target's page live and
checks that what is there now still matches the snapshot ("-" or no
argument reads stdin). The snapshot format is the target object that
evaluate consumes; hashes are recomputed from the text when omitted.

Prints the gate result as JSON and exits non-zero unless the target
held. Any fetch failure is a skip; the lock never gives a dead or
drifted target the benefit of the doubt. --preflight uses the looser
similarity-only tier that gates model spend before drafting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [target-id]",
	Short: "Capture a target snapshot from the live page",
	Long: `Fetches the post through the browser and prints the snapshot JSON
that evaluate and verify check against: the text with its integrity
hashes, author handle, rootness, and timestamps.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	verifyCmd.Flags().Bool("preflight", false, "Use the pre-generation similarity tier")
}

func runVerify(cmd *cobra.Command, args []string) error {
	data, err := readInput(argOrStdin(args))
	if err != nil {
		return err
	}
	var snap reply.TargetSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.TargetID == "" {
		return fmt.Errorf("snapshot has no target_id")
	}
	target := ensureHashes(&snap)

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	v := verify.NewVerifier(
		func() config.Verify { return cfg.Pipeline.Verify },
		app.fetcher, app.sink, logger,
	)
	c := reply.NewCandidate(target, "", reply.KindReply, time.Now())

	preflight, _ := cmd.Flags().GetBool("preflight")
	var res gate.Result
	if preflight {
		res = v.Preflight(ctx, c)
	} else {
		res = v.Verify(ctx, c)
	}
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Pass {
		return fmt.Errorf("context lock failed: %s", res.Code)
	}
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	live, err := app.fetcher.FetchPost(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetch %s: %w", args[0], err)
	}

	snap := reply.NewSnapshot(live.TargetID, live.Text, live.AuthorHandle, live.IsRoot, time.Now())
	snap.PostedAt = live.PostedAt
	return printJSON(cmd.OutOrStdout(), snap)
}
