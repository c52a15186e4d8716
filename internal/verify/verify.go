// Package verify implements the context lock: the final re-fetch of the
// target immediately before posting, reconciled against the snapshot the
// reply was written for. Unlike the anti-spam guard, every failure here is
// fail-closed. Posting under a dead or drifted target is the one
// unrecoverable mistake this pipeline exists to prevent, and silence is
// always safer than a wrong reply.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"replygate/internal/audit"
	"replygate/internal/config"
	"replygate/internal/gate"
	"replygate/internal/reply"
	"replygate/internal/textkit"
)

// FetchReason classifies why a live fetch produced no usable post.
type FetchReason string

const (
	FetchDeleted      FetchReason = "deleted"
	FetchInaccessible FetchReason = "inaccessible"
	FetchTimeout      FetchReason = "timeout"
	FetchFailed       FetchReason = "error"
)

// FetchError carries the classification alongside the underlying cause.
type FetchError struct {
	Reason FetchReason
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch failed: %s", e.Reason)
	}
	return fmt.Sprintf("fetch failed: %s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// LivePost is the target as it exists right now.
type LivePost struct {
	TargetID     string
	Text         string
	AuthorHandle string
	IsRoot       reply.Tristate
	PostedAt     time.Time
	FetchedAt    time.Time
}

// Fetcher retrieves the live state of a post. Implementations classify
// their failures as *FetchError where they can; anything else is treated as
// a generic fetch error.
type Fetcher interface {
	FetchPost(ctx context.Context, targetID string) (*LivePost, error)
}

// Confidence values reported per reconciliation tier.
const (
	confidenceFullHash   = 1.0
	confidencePrefixHash = 0.95
)

// Verifier holds the verification policy. Config is read through a function
// so the admin kill switch takes effect on the next check after a hot
// reload, without restarting workers.
type Verifier struct {
	cfg     func() config.Verify
	fetcher Fetcher
	sink    audit.Sink
	log     *zap.Logger
	locks   *targetLocks
}

func NewVerifier(cfg func() config.Verify, fetcher Fetcher, sink audit.Sink, log *zap.Logger) *Verifier {
	if sink == nil {
		sink = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		cfg:     cfg,
		fetcher: fetcher,
		sink:    sink,
		log:     log,
		locks:   newTargetLocks(),
	}
}

// Preflight is the cheap pre-generation check: is the target still live and
// still roughly the post we snapshotted? It runs similarity only, at the
// looser preflight threshold; drift that matters is re-judged by the full
// check at post time.
func (v *Verifier) Preflight(ctx context.Context, c *reply.Candidate) gate.Result {
	return v.verify(ctx, c, true)
}

// Verify is the full pre-post check: exact hash, then prefix hash, then
// similarity at the strict threshold. A candidate that already cleared a
// preflight check this cycle is re-judged by similarity alone at the
// looser preflight threshold, and its rootness is taken on trust; the
// fetch itself still fails closed.
func (v *Verifier) Verify(ctx context.Context, c *reply.Candidate) gate.Result {
	return v.verify(ctx, c, false)
}

func (v *Verifier) verify(ctx context.Context, c *reply.Candidate, preflight bool) gate.Result {
	start := time.Now()
	cfg := v.cfg()
	t := c.Target

	if !cfg.Enabled {
		v.record(c, start, audit.EventVerifyDisabled, audit.SeverityInfo, map[string]any{
			"preflight": preflight,
		})
		return pass(map[string]any{"method": "disabled"})
	}

	release, err := v.locks.Acquire(ctx, t.TargetID)
	if err != nil {
		v.record(c, start, audit.EventVerifyFetchFailed, audit.SeverityWarning, map[string]any{
			"reason": string(FetchFailed),
			"error":  err.Error(),
		})
		return skip(gate.CodeFetchError, map[string]any{"error": err.Error()})
	}
	defer release()

	live, err := v.fetcher.FetchPost(ctx, t.TargetID)
	if err != nil {
		code, reason := classifyFetchError(err)
		v.log.Warn("context lock fetch failed",
			zap.String("target_id", t.TargetID),
			zap.String("reason", string(reason)),
			zap.Error(err))
		v.record(c, start, audit.EventVerifyFetchFailed, audit.SeverityWarning, map[string]any{
			"reason": string(reason),
			"error":  err.Error(),
		})
		return skip(code, map[string]any{"reason": string(reason)})
	}

	// The preflight pass earlier in the cycle already established that the
	// target exists and is a root post; the terminal check then only
	// re-judges text drift.
	trusted := !preflight && c.PreflightVerified

	if !trusted && live.IsRoot == reply.TristateFalse {
		v.record(c, start, audit.EventVerifyTargetNotRoot, audit.SeverityInfo, nil)
		return skip(gate.CodeTargetNotRoot, nil)
	}

	if preflight || trusted {
		return v.reconcileSimilarity(c, live, start, cfg.PreflightSimilarityThreshold, preflight)
	}

	if textkit.HashText(live.Text) == t.TextHash {
		v.record(c, start, audit.EventVerifyHashMatch, audit.SeverityInfo, map[string]any{
			"confidence": confidenceFullHash,
		})
		return pass(map[string]any{"method": "full_hash", "confidence": confidenceFullHash})
	}

	if t.PrefixHash != "" && textkit.PrefixHash(live.Text, reply.SnapshotPrefixRunes) == t.PrefixHash {
		v.record(c, start, audit.EventVerifyPrefixMatch, audit.SeverityInfo, map[string]any{
			"confidence": confidencePrefixHash,
		})
		return pass(map[string]any{"method": "prefix_hash", "confidence": confidencePrefixHash})
	}

	return v.reconcileSimilarity(c, live, start, cfg.SimilarityThreshold, false)
}

func (v *Verifier) reconcileSimilarity(c *reply.Candidate, live *LivePost, start time.Time, threshold float64, preflight bool) gate.Result {
	t := c.Target
	similarity := textkit.Jaccard(t.Text, live.Text)
	if similarity >= threshold {
		v.record(c, start, audit.EventVerifySimilarityPass, audit.SeverityInfo, map[string]any{
			"similarity": similarity,
			"threshold":  threshold,
			"preflight":  preflight,
		})
		return pass(map[string]any{
			"method":     "similarity",
			"similarity": similarity,
			"threshold":  threshold,
		})
	}

	detail := map[string]any{
		"similarity":    similarity,
		"threshold":     threshold,
		"preflight":     preflight,
		"snapshot_text": textkit.TruncateRunes(t.Text, 120),
		"live_text":     textkit.TruncateRunes(live.Text, 120),
	}
	v.record(c, start, audit.EventVerifyContextMismatch, audit.SeverityWarning, detail)
	return skip(gate.CodeContextMismatch, detail)
}

func classifyFetchError(err error) (gate.Code, FetchReason) {
	var fe *FetchError
	if errors.As(err, &fe) {
		switch fe.Reason {
		case FetchDeleted:
			return gate.CodeTargetDeleted, FetchDeleted
		case FetchInaccessible:
			return gate.CodeTargetInaccessible, FetchInaccessible
		case FetchTimeout:
			return gate.CodeFetchTimeout, FetchTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gate.CodeFetchTimeout, FetchTimeout
	}
	return gate.CodeFetchError, FetchFailed
}

func (v *Verifier) record(c *reply.Candidate, start time.Time, typ audit.EventType, sev audit.Severity, payload map[string]any) {
	v.sink.Record(audit.Event{
		Type:       typ,
		Severity:   sev,
		DecisionID: c.DecisionID,
		TargetID:   c.Target.TargetID,
		Gate:       gate.NameContextLock,
		DurationMs: time.Since(start).Milliseconds(),
		Payload:    payload,
	})
}

func pass(detail map[string]any) gate.Result {
	return gate.Result{
		Gate:   gate.NameContextLock,
		Pass:   true,
		Action: gate.ActionPost,
		Detail: detail,
	}
}

func skip(code gate.Code, detail map[string]any) gate.Result {
	return gate.Result{
		Gate:   gate.NameContextLock,
		Pass:   false,
		Code:   code,
		Action: gate.ActionSkip,
		Detail: detail,
	}
}
