// Package main implements the replygate CLI - the integrity pipeline
// between a reply-drafting model and the post button.
//
// This file provides the bookkeeping commands: record logs posted
// replies and their engagement outcomes, stats summarizes the log.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"replygate/internal/audit"
	"replygate/internal/pipeline"
	"replygate/internal/store"
	"replygate/internal/textkit"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record posted replies and their outcomes",
	Long: `The reply log feeds the anti-spam gates: the hourly cap and the
author and conversation cooldowns all count its rows. The external
poster must call "record post" after every reply that actually went
out, or the caps quietly stop protecting the account.`,
}

var recordPostCmd = &cobra.Command{
	Use:   "post [candidate.json]",
	Short: "Log a reply that was posted",
	Long: `Logs a posted reply under its decision id. The candidate file is
the same one evaluate consumed; --text overrides the logged text when
the verdict's effective_text differed from the draft.

Recording the same decision twice fails. The log is append-only and a
decision posts at most once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecordPost,
}

var recordOutcomeCmd = &cobra.Command{
	Use:   "outcome [decision-id]",
	Short: "Attach engagement numbers to a logged reply",
	Long: `Records the engagement snapshot for a posted reply once it has been
live long enough to judge. The engagement rate is derived from
impressions; it is not supplied.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordOutcome,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the reply log",
	RunE:  runStats,
}

func init() {
	recordPostCmd.Flags().String("text", "", "Posted text, when it differs from the draft")
	recordOutcomeCmd.Flags().Int("impressions", 0, "Impression count")
	recordOutcomeCmd.Flags().Int("likes", 0, "Like count")
	recordOutcomeCmd.Flags().Int("replies", 0, "Reply count")
	recordOutcomeCmd.Flags().Int("reposts", 0, "Repost count")
	recordOutcomeCmd.Flags().Int("followers", 0, "Followers gained")
	statsCmd.Flags().Int("limit", 10, "Recent replies to list")

	recordCmd.AddCommand(recordPostCmd)
	recordCmd.AddCommand(recordOutcomeCmd)
}

func runRecordPost(cmd *cobra.Command, args []string) error {
	c, err := readCandidate(argOrStdin(args))
	if err != nil {
		return err
	}
	text, _ := cmd.Flags().GetString("text")
	if text == "" {
		text = c.ReplyText
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	runner := pipeline.NewRunner(app.pipe, nil, app.store, cfg.Generator, app.sink, logger)
	if err := runner.RecordPosted(cmd.Context(), c, text); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded reply %s to @%s\n", c.DecisionID, c.Target.AuthorHandle)
	return nil
}

func runRecordOutcome(cmd *cobra.Command, args []string) error {
	decisionID := args[0]
	impressions, _ := cmd.Flags().GetInt("impressions")
	likes, _ := cmd.Flags().GetInt("likes")
	replies, _ := cmd.Flags().GetInt("replies")
	reposts, _ := cmd.Flags().GetInt("reposts")
	followers, _ := cmd.Flags().GetInt("followers")

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	o := store.Outcome{
		Impressions:     impressions,
		Likes:           likes,
		Replies:         replies,
		Reposts:         reposts,
		FollowersGained: followers,
	}
	if err := app.store.UpdateOutcome(cmd.Context(), decisionID, o); err != nil {
		return err
	}
	app.sink.Record(audit.Event{
		Type:       audit.EventOutcomeRecorded,
		Severity:   audit.SeverityInfo,
		DecisionID: decisionID,
		Payload: map[string]any{
			"impressions": impressions,
			"likes":       likes,
			"replies":     replies,
			"reposts":     reposts,
			"followers":   followers,
		},
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Outcome recorded for %s\n", decisionID)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	st, err := app.store.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Reply Log")
	fmt.Fprintln(out, "=========")
	fmt.Fprintf(out, "Total replies:    %d\n", st.TotalReplies)
	fmt.Fprintf(out, "Last 24h:         %d\n", st.RepliesLast24h)
	fmt.Fprintf(out, "Distinct authors: %d\n", st.DistinctAuthors)
	fmt.Fprintf(out, "With outcome:     %d\n", st.WithOutcome)
	fmt.Fprintf(out, "Avg engagement:   %.4f\n", st.AvgEngagementRate)
	fmt.Fprintf(out, "Followers gained: %d\n", st.FollowersGained)

	recent, err := app.store.RecentReplies(ctx, limit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Recent replies:")
	for _, r := range recent {
		line := fmt.Sprintf("  %s  @%-16s %s",
			r.PostedAt.Format("2006-01-02 15:04"), r.AuthorHandle,
			textkit.TruncateRunes(r.ReplyText, 60))
		if r.Outcome != nil {
			line += fmt.Sprintf("  [eng %.3f]", r.Outcome.EngagementRate)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
