package gate

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"replygate/internal/audit"
	"replygate/internal/config"
	"replygate/internal/reply"
)

// AntiSpamGuard enforces the engagement-rate invariants: never reply to
// ourselves, a global hourly cap, and per-author plus per-conversation
// cooldowns. Checks run cheapest first and short-circuit on the first deny.
//
// Store failures fail OPEN: the affected check passes and the failure is
// audited. A transient store outage must not stall the bot; rate limiting is
// a protective measure, not a correctness guarantee. The context lock holds
// the opposite policy and the asymmetry is deliberate.
type AntiSpamGuard struct {
	cfg       config.AntiSpam
	botHandle string
	store     RateStore
	sink      audit.Sink
	log       *zap.Logger
	now       func() time.Time
}

func NewAntiSpamGuard(cfg config.AntiSpam, botHandle string, store RateStore, sink audit.Sink, log *zap.Logger, now func() time.Time) *AntiSpamGuard {
	if sink == nil {
		sink = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &AntiSpamGuard{
		cfg:       cfg,
		botHandle: botHandle,
		store:     store,
		sink:      sink,
		log:       log,
		now:       now,
	}
}

func (g *AntiSpamGuard) Check(ctx context.Context, c *reply.Candidate) Result {
	if r, denied := g.checkSelfReply(c.Target.AuthorHandle); denied {
		return r
	}
	if r, denied := g.checkHourlyRateLimit(ctx, c); denied {
		return r
	}
	if r, denied := g.checkAuthorCooldown(ctx, c); denied {
		return r
	}
	if r, denied := g.checkRootCooldown(ctx, c); denied {
		return r
	}
	return pass(NameAntiSpam)
}

// checkSelfReply is pure; handles compare case-insensitively with any
// leading @ stripped.
func (g *AntiSpamGuard) checkSelfReply(author string) (Result, bool) {
	a := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(author)), "@")
	b := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(g.botHandle)), "@")
	if a != "" && a == b {
		return skip(NameAntiSpam, CodeSelfReply, map[string]any{"author": author}), true
	}
	return Result{}, false
}

func (g *AntiSpamGuard) checkHourlyRateLimit(ctx context.Context, c *reply.Candidate) (Result, bool) {
	count, err := g.store.CountReplies(ctx, ReplyFilter{}, time.Hour)
	if err != nil {
		g.failOpen(c, "hourly_rate_limit", err)
		return Result{}, false
	}
	if count >= g.cfg.HourlyReplyCap {
		return skip(NameAntiSpam, CodeHourlyRateLimit, map[string]any{
			"count": count,
			"cap":   g.cfg.HourlyReplyCap,
		}), true
	}
	return Result{}, false
}

func (g *AntiSpamGuard) checkAuthorCooldown(ctx context.Context, c *reply.Candidate) (Result, bool) {
	window := time.Duration(g.cfg.AuthorCooldownHours) * time.Hour
	if window <= 0 {
		return Result{}, false
	}
	last, found, err := g.store.MostRecentReply(ctx, ReplyFilter{AuthorHandle: c.Target.AuthorHandle})
	if err != nil {
		g.failOpen(c, "author_cooldown", err)
		return Result{}, false
	}
	if remaining, active := g.remaining(last, found, window); active {
		return skip(NameAntiSpam, CodeAuthorCooldown, map[string]any{
			"author":                     c.Target.AuthorHandle,
			"cooldown_remaining_minutes": remaining,
		}), true
	}
	return Result{}, false
}

// checkRootCooldown blocks a second reply into the same conversation even
// when it arrives via a different leaf target.
func (g *AntiSpamGuard) checkRootCooldown(ctx context.Context, c *reply.Candidate) (Result, bool) {
	window := time.Duration(g.cfg.RootCooldownHours) * time.Hour
	if window <= 0 {
		return Result{}, false
	}
	rootID := c.Target.RootKey()
	last, found, err := g.store.MostRecentReply(ctx, ReplyFilter{RootID: rootID})
	if err != nil {
		g.failOpen(c, "root_cooldown", err)
		return Result{}, false
	}
	if remaining, active := g.remaining(last, found, window); active {
		return skip(NameAntiSpam, CodeRootCooldown, map[string]any{
			"root_id":                    rootID,
			"cooldown_remaining_minutes": remaining,
		}), true
	}
	return Result{}, false
}

// remaining converts a most-recent timestamp into whole remaining cooldown
// minutes, rounded to the nearest minute.
func (g *AntiSpamGuard) remaining(last time.Time, found bool, window time.Duration) (int, bool) {
	if !found {
		return 0, false
	}
	elapsed := g.now().Sub(last)
	if elapsed >= window {
		return 0, false
	}
	return int((window - elapsed).Round(time.Minute) / time.Minute), true
}

func (g *AntiSpamGuard) failOpen(c *reply.Candidate, check string, err error) {
	g.log.Warn("anti-spam store query failed, failing open",
		zap.String("check", check),
		zap.String("decision_id", c.DecisionID),
		zap.Error(err))
	g.sink.Record(audit.Event{
		Type:       audit.EventAntiSpamStoreError,
		Severity:   audit.SeverityWarning,
		DecisionID: c.DecisionID,
		TargetID:   c.Target.TargetID,
		Gate:       NameAntiSpam,
		Payload:    map[string]any{"check": check, "error": err.Error()},
	})
}
