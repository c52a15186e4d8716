// Package gate implements the non-terminal integrity gates a reply candidate
// must clear before the context lock: target quality, structural
// eligibility, anti-spam, grounding, the output contract, the kind
// invariant, and topic coherence. Each gate returns a structured Result with
// a stable machine-readable code; the orchestrator in internal/pipeline
// sequences them.
package gate

import (
	"context"
	"time"
)

// Action is what the pipeline should do with the candidate after a gate.
type Action string

const (
	ActionPost  Action = "post"
	ActionRegen Action = "regen"
	ActionSkip  Action = "skip"
)

// Code is a machine-readable deny reason. The set is closed and the string
// forms are stable across releases; audit tooling and log queries key on
// them.
type Code string

const (
	// Target quality filter.
	CodeLowSignalTarget Code = "LOW_SIGNAL_TARGET"
	CodeEmojiSpamTarget Code = "EMOJI_SPAM_TARGET"
	CodeParodyOrBot     Code = "PARODY_OR_BOT_SIGNAL"
	CodeOffLimitsTopic  Code = "OFF_LIMITS_TOPIC"

	// Reply target guard.
	CodeTargetIsReply       Code = "target_is_reply"
	CodeTooOld              Code = "too_old"
	CodeInsufficientContext Code = "insufficient_context"

	// Anti-spam guard.
	CodeSelfReply       Code = "self_reply"
	CodeHourlyRateLimit Code = "hourly_rate_limit_reached"
	CodeAuthorCooldown  Code = "author_cooldown_active"
	CodeRootCooldown    Code = "root_cooldown_active"

	// Grounding gate.
	CodeUngroundedReply Code = "UNGROUNDED_REPLY"

	// Output contract.
	CodeTooLong            Code = "too_long"
	CodeTooManyLines       Code = "too_many_lines"
	CodeThreadMarkers      Code = "thread_markers"
	CodeMultipleParagraphs Code = "multiple_paragraphs"
	CodeBulletList         Code = "bullet_list"

	// Kind guard.
	CodeKindMismatch         Code = "kind_mismatch_expected_reply"
	CodeThreadMarkersInReply Code = "thread_markers_in_reply"
	CodeReplyWithoutTarget   Code = "reply_without_target"

	// Topic guard.
	CodeTopicMismatch Code = "topic_mismatch"

	// Context lock verifier.
	CodeTargetDeleted      Code = "target_deleted"
	CodeTargetInaccessible Code = "target_inaccessible"
	CodeFetchTimeout       Code = "fetch_timeout"
	CodeFetchError         Code = "fetch_error"
	CodeTargetNotRoot      Code = "target_not_root"
	CodeContextMismatch    Code = "context_mismatch"
)

// Stable gate names, used in Result.Gate and audit payloads.
const (
	NameQuality     = "quality_filter"
	NameTargetGuard = "target_guard"
	NameAntiSpam    = "anti_spam"
	NameGrounding   = "grounding"
	NameContract    = "output_contract"
	NameKindGuard   = "kind_guard"
	NameTopicGuard  = "topic_guard"
	NameContextLock = "context_lock"
)

// Result is one gate's structured outcome. Detail is free-form diagnostic
// payload; Guidance is set only on regen results and feeds the regeneration
// prompt. SanitizedText is set by the output contract when it rewrote the
// reply into compliance; callers must post that text, not the original.
type Result struct {
	Gate          string         `json:"gate"`
	Pass          bool           `json:"pass"`
	Code          Code           `json:"code,omitempty"`
	Action        Action         `json:"action"`
	Score         int            `json:"score,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
	Guidance      string         `json:"guidance,omitempty"`
	SanitizedText string         `json:"sanitized_text,omitempty"`
}

func pass(gate string) Result {
	return Result{Gate: gate, Pass: true, Action: ActionPost}
}

func skip(gate string, code Code, detail map[string]any) Result {
	return Result{Gate: gate, Pass: false, Code: code, Action: ActionSkip, Detail: detail}
}

func regen(gate string, code Code, guidance string, detail map[string]any) Result {
	return Result{Gate: gate, Pass: false, Code: code, Action: ActionRegen, Detail: detail, Guidance: guidance}
}

// ReplyFilter scopes a rate or recency query. The zero value means all
// posted replies (the global hourly cap).
type ReplyFilter struct {
	AuthorHandle string
	RootID       string
}

// RateStore serves time-windowed reply counts and recency lookups. The
// anti-spam guard queries it on every check; results are never cached
// in-process, so the invariants are exactly as consistent as the backing
// store's reads. Multi-worker deployments without linearizable reads get
// best-effort caps, not exact ones.
type RateStore interface {
	CountReplies(ctx context.Context, f ReplyFilter, window time.Duration) (int, error)
	MostRecentReply(ctx context.Context, f ReplyFilter) (time.Time, bool, error)
}
