package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"replygate/internal/audit"
	"replygate/internal/config"
	"replygate/internal/gate"
	"replygate/internal/generate"
	"replygate/internal/reply"
	"replygate/internal/store"
)

// ReplyLog is the posting bookkeeping the runner needs. *store.Store
// satisfies it.
type ReplyLog interface {
	RecordReply(ctx context.Context, rec store.ReplyRecord) error
}

// Runner owns the draft, evaluate, regenerate loop around the pipeline.
type Runner struct {
	pipe    *Pipeline
	gen     generate.Generator
	logbook ReplyLog
	sink    audit.Sink
	log     *zap.Logger
	persona string
	now     func() time.Time
}

func NewRunner(pipe *Pipeline, gen generate.Generator, logbook ReplyLog, gcfg config.Generator, sink audit.Sink, log *zap.Logger) *Runner {
	if sink == nil {
		sink = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		pipe:    pipe,
		gen:     gen,
		logbook: logbook,
		sink:    sink,
		log:     log,
		persona: gcfg.Persona,
		now:     time.Now,
	}
}

// Process takes one captured target from screen to final verdict. It
// screens before any model spend, drafts through the generator, and
// redrafts with accumulated guidance while the verdict asks for
// regeneration. The caller posts Verdict.EffectiveText and then calls
// RecordPosted; nothing here touches the network except the generator
// and the verifier's own fetch.
func (r *Runner) Process(ctx context.Context, target *reply.TargetSnapshot, capture gate.TargetContent) (*reply.Candidate, Verdict, error) {
	c := reply.NewCandidate(target, "", "", r.now())

	if v := r.pipe.Screen(ctx, c, capture); v.FinalAction != gate.ActionPost {
		return c, v, nil
	}

	var guidance []string
	for {
		text, err := r.gen.Draft(ctx, generate.Request{
			Target:   target,
			Persona:  r.persona,
			Guidance: guidance,
		})
		if err != nil {
			return c, Verdict{}, fmt.Errorf("draft reply: %w", err)
		}
		if c.AttemptCount == 0 && c.ReplyText == "" {
			c.ReplyText = text
		} else {
			c.ApplyRegeneration(text)
		}

		v := r.pipe.Evaluate(ctx, c, capture)
		if v.FinalAction != gate.ActionRegen {
			return c, v, nil
		}

		guidance = append(guidance, v.Guidance)
		r.sink.Record(audit.Event{
			Type:       audit.EventRegenAttempt,
			Severity:   audit.SeverityInfo,
			DecisionID: c.DecisionID,
			TargetID:   target.TargetID,
			Payload: map[string]any{
				"attempt":  c.AttemptCount + 1,
				"guidance": v.Guidance,
			},
		})
		r.log.Info("regenerating draft",
			zap.String("decision_id", c.DecisionID),
			zap.Int("attempt", c.AttemptCount+1),
			zap.String("reason", string(v.SkipReason)))
	}
}

// RecordPosted logs a posted reply so future anti-spam checks see it.
// Call it only after the reply actually went out; the cooldowns key off
// these rows.
func (r *Runner) RecordPosted(ctx context.Context, c *reply.Candidate, postedText string) error {
	if c.Target == nil {
		return fmt.Errorf("record posted: candidate %s has no target", c.DecisionID)
	}
	rec := store.ReplyRecord{
		DecisionID:   c.DecisionID,
		TargetID:     c.Target.TargetID,
		RootID:       c.Target.RootKey(),
		AuthorHandle: c.Target.AuthorHandle,
		ReplyText:    postedText,
		Kind:         string(c.Kind),
		TargetHash:   c.Target.TextHash,
		PostedAt:     r.now(),
	}
	if err := r.logbook.RecordReply(ctx, rec); err != nil {
		return fmt.Errorf("record posted reply: %w", err)
	}
	r.sink.Record(audit.Event{
		Type:       audit.EventReplyRecorded,
		Severity:   audit.SeverityInfo,
		DecisionID: c.DecisionID,
		TargetID:   c.Target.TargetID,
		Payload: map[string]any{
			"author": c.Target.AuthorHandle,
			"chars":  len([]rune(postedText)),
		},
	})
	return nil
}
