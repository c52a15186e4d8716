// Package main implements the replygate CLI - the integrity pipeline
// between a reply-drafting model and the post button.
//
// Every command boots the same stack: config from YAML with env
// overrides, zap logging, the SQLite reply log, the JSONL audit trail,
// and a lazily-connected browser for live target fetches. The external
// poster owns the actual network write; replygate renders verdicts,
// records what got posted, and keeps the audit trail.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"replygate/internal/audit"
	"replygate/internal/browser"
	"replygate/internal/config"
	"replygate/internal/pipeline"
	"replygate/internal/reply"
	"replygate/internal/store"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	logger *zap.Logger
	cfg    *config.Config
)

var defaultConfigPath = filepath.Join(".replygate", "config.yaml")

var rootCmd = &cobra.Command{
	Use:   "replygate",
	Short: "Integrity gates between a reply-drafting model and the post button",
	Long: `replygate decides whether a drafted reply is safe to post.

Every candidate runs a fixed gate sequence: target quality, structural
eligibility, anti-spam caps, grounding, the output contract, kind and
topic coherence, and finally a live re-fetch of the target that must
still match the snapshot the reply was written against. The first
failing gate wins, and posting is the outcome that has to be earned.

Verdicts print as JSON. The external poster is expected to post
effective_text on a "post" verdict and then call "record post" so the
anti-spam caps keep counting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		// config init has to work before a loadable config exists.
		if cmd.Name() == "init" && cmd.Parent() == configCmd {
			return nil
		}
		cfg, err = config.Load(cfgPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles one command invocation's collaborators. The browser
// connects lazily on the first live fetch, so construction stays cheap
// for commands and candidates that never reach the context lock.
type app struct {
	store   *store.Store
	sink    audit.Sink
	manager *browser.Manager
	fetcher *browser.Fetcher
	pipe    *pipeline.Pipeline

	closers []func()
}

func newApp() (*app, error) {
	a := &app{}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open reply store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, func() { _ = st.Close() })

	a.sink = audit.NewZapSink(logger)
	if cfg.Audit.Path != "" {
		fs, err := audit.NewFileSink(cfg.Audit.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		a.closers = append(a.closers, func() { _ = fs.Close() })
		a.sink = audit.Tee{fs, a.sink}
	}

	a.manager = browser.NewManager(cfg.Browser, logger)
	a.closers = append(a.closers, func() { _ = a.manager.Shutdown() })
	a.fetcher = browser.NewFetcher(a.manager, cfg.Browser, logger)

	a.pipe = pipeline.New(cfg.Pipeline, pipeline.Deps{
		Store:   a.store,
		Fetcher: a.fetcher,
		Sink:    a.sink,
		Log:     logger,
	})
	return a, nil
}

// watchConfig rebuilds the pipeline on top of a config file watcher so
// the verifier kill switch takes effect mid-run. Gate thresholds stay as
// loaded; only the verify block is read live.
func (a *app) watchConfig() error {
	w, err := config.NewWatcher(cfgPath, cfg, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = w.Close() })
	a.pipe = pipeline.New(cfg.Pipeline, pipeline.Deps{
		Store:        a.store,
		Fetcher:      a.fetcher,
		Sink:         a.sink,
		Log:          logger,
		VerifyConfig: func() config.Verify { return w.Current().Pipeline.Verify },
	})
	return nil
}

// Close releases everything in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// signalContext cancels the returned context on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// argOrStdin maps an optional positional file argument onto the stdin
// convention: no argument or "-" reads stdin.
func argOrStdin(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	return args[0]
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ensureHashes recomputes a snapshot's integrity hashes when operator
// input omitted them. Hand-written snapshot files carry target_id, text,
// author and timestamps; the hashes are derived.
func ensureHashes(t *reply.TargetSnapshot) *reply.TargetSnapshot {
	if t == nil || t.TextHash != "" {
		return t
	}
	at := t.SnapshotAt
	if at.IsZero() {
		at = time.Now()
	}
	s := reply.NewSnapshot(t.TargetID, t.Text, t.AuthorHandle, t.IsRoot, at)
	s.RootID = t.RootID
	s.PostedAt = t.PostedAt
	return s
}
