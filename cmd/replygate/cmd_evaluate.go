// Package main implements the replygate CLI - the integrity pipeline
// between a reply-drafting model and the post button.
//
// This file provides the verdict commands: evaluate for a single
// drafted candidate and run for the batch screen/draft/evaluate loop.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"replygate/internal/gate"
	"replygate/internal/generate"
	"replygate/internal/pipeline"
	"replygate/internal/reply"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [candidate.json]",
	Short: "Run one drafted reply through the full gate sequence",
	Long: `Evaluates a single candidate and prints the verdict as JSON. The
candidate file holds the drafted reply plus the target snapshot it was
written against ("-" or no argument reads stdin):

  {
    "target": {
      "target_id": "1795081234567890",
      "text": "Creatine timing doesn't matter. Take it whenever.",
      "author_handle": "lifter_jane",
      "is_root": "true",
      "posted_at": "2025-06-10T09:30:00Z"
    },
    "reply_text": "The timing trials keep coming up null, so you're on solid ground.",
    "kind": "reply"
  }

Integrity hashes are recomputed from the text when omitted. A "post"
verdict carries effective_text, which is what must actually be posted;
the output contract may have stripped thread markers from the draft.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

var runCmd = &cobra.Command{
	Use:   "run [targets.jsonl]",
	Short: "Screen, draft, and evaluate a batch of captured targets",
	Long: `Reads target snapshots as JSONL, one per line ("-" or no argument
reads stdin), drafts a reply for each through the configured generator,
and prints one verdict object per line.

Targets are screened before any model spend: one that could never post
(stale, rate-limited, low quality, already drifted) is skipped without
a draft. A rejected draft is regenerated with the gate's guidance until
the regeneration budget runs out.

Requires a generator API key (generator.api_key or GEMINI_API_KEY).
The config file is watched while the batch runs, so flipping
pipeline.verify.enabled takes effect mid-batch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	runCmd.Flags().Int("concurrency", 3, "Targets in flight at once")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	c, err := readCandidate(argOrStdin(args))
	if err != nil {
		return err
	}
	if c.ReplyText == "" {
		return fmt.Errorf("candidate has no reply_text to evaluate")
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	v := app.pipe.Evaluate(ctx, c, gate.TargetContent{})
	return printJSON(cmd.OutOrStdout(), v)
}

// readCandidate decodes a candidate file, filling in whatever the
// operator left out: decision id, kind, creation time, target hashes.
func readCandidate(path string) (*reply.Candidate, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var c reply.Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse candidate: %w", err)
	}
	if c.DecisionID == "" {
		c.DecisionID = uuid.NewString()
	}
	if c.Kind == "" && c.Target != nil {
		c.Kind = reply.KindReply
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.Target = ensureHashes(c.Target)
	return &c, nil
}

// batchOutcome is one line of run output.
type batchOutcome struct {
	TargetID string           `json:"target_id"`
	Verdict  pipeline.Verdict `json:"verdict"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency < 1 {
		concurrency = 1
	}
	if cfg.Generator.APIKey == "" {
		return fmt.Errorf("generator API key is required (set GEMINI_API_KEY or generator.api_key)")
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.watchConfig(); err != nil {
		logger.Warn("config watch unavailable, verify settings frozen at startup values",
			zap.Error(err))
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	gen, err := generate.NewGemini(ctx, cfg.Generator, logger)
	if err != nil {
		return err
	}
	defer func() { _ = gen.Close() }()

	runner := pipeline.NewRunner(app.pipe, gen, app.store, cfg.Generator, app.sink, logger)

	in := os.Stdin
	if path := argOrStdin(args); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	var (
		outMu sync.Mutex
		out   = json.NewEncoder(cmd.OutOrStdout())
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		raw := bytes.TrimSpace(sc.Bytes())
		line++
		if len(raw) == 0 {
			continue
		}
		data := append([]byte(nil), raw...)
		n := line
		g.Go(func() error {
			var snap reply.TargetSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("line %d: parse target: %w", n, err)
			}
			if snap.TargetID == "" {
				return fmt.Errorf("line %d: target_id is required", n)
			}
			target := ensureHashes(&snap)

			_, v, err := runner.Process(gctx, target, gate.TargetContent{})
			if err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}

			outMu.Lock()
			defer outMu.Unlock()
			return out.Encode(batchOutcome{TargetID: target.TargetID, Verdict: v})
		})
	}
	scanErr := sc.Err()

	if err := g.Wait(); err != nil {
		return err
	}
	if scanErr != nil {
		return fmt.Errorf("read targets: %w", scanErr)
	}
	return nil
}
