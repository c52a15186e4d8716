// Package pipeline sequences the integrity gates over a reply candidate
// and renders the final verdict. The order is fixed: cheap pure checks
// first, store-backed checks second, the live-fetch context lock last, so
// a candidate that was always going to be skipped costs as little as
// possible.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"replygate/internal/audit"
	"replygate/internal/config"
	"replygate/internal/gate"
	"replygate/internal/reply"
	"replygate/internal/verify"
)

// Verdict is the pipeline's last word on one candidate. SkipReason is the
// first failing gate's code and Results holds every gate that ran, in
// order. EffectiveText is what must actually be posted when FinalAction
// is post; the output contract may have rewritten the draft.
type Verdict struct {
	DecisionID    string        `json:"decision_id"`
	FinalAction   gate.Action   `json:"final_action"`
	SkipReason    gate.Code     `json:"skip_reason,omitempty"`
	Guidance      string        `json:"guidance,omitempty"`
	EffectiveText string        `json:"effective_text,omitempty"`
	Results       []gate.Result `json:"results"`
}

// Deps are the pipeline's collaborators. Store and Fetcher do the real
// work behind the anti-spam and context-lock gates; the rest are
// optional. VerifyConfig defaults to the static cfg.Verify and exists so
// the config watcher can drive the verifier kill switch without a
// restart.
type Deps struct {
	Store        gate.RateStore
	Fetcher      verify.Fetcher
	Sink         audit.Sink
	Log          *zap.Logger
	Now          func() time.Time
	VerifyConfig func() config.Verify
}

type Pipeline struct {
	cfg       config.Pipeline
	quality   *gate.QualityFilter
	target    *gate.TargetGuard
	antispam  *gate.AntiSpamGuard
	grounding *gate.GroundingGate
	contract  *gate.OutputContract
	kind      *gate.KindGuard
	topic     *gate.TopicGuard
	verifier  *verify.Verifier
	sink      audit.Sink
	log       *zap.Logger
	now       func() time.Time
}

func New(cfg config.Pipeline, deps Deps) *Pipeline {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	sink := deps.Sink
	if sink == nil {
		sink = audit.Nop{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	verifyCfg := deps.VerifyConfig
	if verifyCfg == nil {
		static := cfg.Verify
		verifyCfg = func() config.Verify { return static }
	}
	home := cfg.Topic.HomeKeywords
	return &Pipeline{
		cfg:       cfg,
		quality:   gate.NewQualityFilter(cfg.Quality, home),
		target:    gate.NewTargetGuard(cfg.Target, now),
		antispam:  gate.NewAntiSpamGuard(cfg.AntiSpam, cfg.BotHandle, deps.Store, sink, log, now),
		grounding: gate.NewGroundingGate(cfg.Grounding),
		contract:  gate.NewOutputContract(cfg.Contract),
		kind:      gate.NewKindGuard(),
		topic:     gate.NewTopicGuard(home),
		verifier:  verify.NewVerifier(verifyCfg, deps.Fetcher, sink, log),
		sink:      sink,
		log:       log,
		now:       now,
	}
}

// Evaluate runs the full gate sequence over one candidate. The first
// failing gate short-circuits the rest. Candidates without a target only
// face the gates that can say anything about them: the kind guard and
// the output contract.
func (p *Pipeline) Evaluate(ctx context.Context, c *reply.Candidate, capture gate.TargetContent) Verdict {
	start := time.Now()
	v := Verdict{DecisionID: c.DecisionID, FinalAction: gate.ActionPost, EffectiveText: c.ReplyText}

	if c.Target == nil {
		if p.step(&v, p.kind.Check(c, c.ReplyText)) {
			p.stepContract(&v, c)
		}
		p.finish(c, &v, start, "full")
		return v
	}

	if capture.Text == "" {
		capture.Text = c.Target.Text
	}

	_ = p.step(&v, p.quality.Check(capture)) &&
		p.step(&v, p.target.Check(c.Target)) &&
		p.step(&v, p.antispam.Check(ctx, c)) &&
		p.step(&v, p.grounding.Check(c.Target.Text, c.ReplyText)) &&
		p.stepContract(&v, c) &&
		p.step(&v, p.kind.Check(c, v.EffectiveText)) &&
		p.step(&v, p.topic.Check(c, v.EffectiveText)) &&
		p.step(&v, p.verifier.Verify(ctx, c))

	p.finish(c, &v, start, "full")
	return v
}

// Screen runs only the pre-generation gates: quality, target guard,
// anti-spam, and the similarity-only verification preflight. A target
// that cannot post is rejected here before any model spend.
func (p *Pipeline) Screen(ctx context.Context, c *reply.Candidate, capture gate.TargetContent) Verdict {
	start := time.Now()
	v := Verdict{DecisionID: c.DecisionID, FinalAction: gate.ActionPost}

	if c.Target == nil {
		p.step(&v, p.kind.Check(c, c.ReplyText))
		p.finish(c, &v, start, "screen")
		return v
	}
	if capture.Text == "" {
		capture.Text = c.Target.Text
	}

	_ = p.step(&v, p.quality.Check(capture)) &&
		p.step(&v, p.target.Check(c.Target)) &&
		p.step(&v, p.antispam.Check(ctx, c)) &&
		p.step(&v, p.verifier.Preflight(ctx, c))

	if v.FinalAction == gate.ActionPost {
		last := v.Results[len(v.Results)-1]
		if m, _ := last.Detail["method"].(string); m == "similarity" {
			c.PreflightVerified = true
		}
	}
	p.finish(c, &v, start, "screen")
	return v
}

// step folds one gate result into the verdict. It returns false on the
// first failure so the caller's chain stops.
func (p *Pipeline) step(v *Verdict, r gate.Result) bool {
	v.Results = append(v.Results, r)
	if r.Pass {
		return true
	}
	v.FinalAction = r.Action
	v.SkipReason = r.Code
	v.Guidance = r.Guidance
	return false
}

// stepContract is step for the output contract, which is the one gate
// that can rewrite the candidate text on pass.
func (p *Pipeline) stepContract(v *Verdict, c *reply.Candidate) bool {
	r := p.contract.Check(c.ReplyText)
	if r.Pass && r.SanitizedText != "" {
		v.EffectiveText = r.SanitizedText
	}
	return p.step(v, r)
}

func (p *Pipeline) finish(c *reply.Candidate, v *Verdict, start time.Time, phase string) {
	// A regen verdict past the attempt budget is a skip; the code and
	// detail stay so the audit trail shows what kept failing.
	exhausted := false
	if v.FinalAction == gate.ActionRegen && c.AttemptCount >= p.cfg.MaxRegenAttempts {
		v.FinalAction = gate.ActionSkip
		v.Guidance = ""
		exhausted = true
	}
	if v.FinalAction != gate.ActionPost {
		v.EffectiveText = ""
	}

	payload := map[string]any{
		"phase":        phase,
		"final_action": string(v.FinalAction),
		"gates_run":    len(v.Results),
		"attempt":      c.AttemptCount,
	}
	if v.SkipReason != "" {
		payload["skip_reason"] = string(v.SkipReason)
	}
	if exhausted {
		payload["regen_budget_exhausted"] = true
	}
	ev := audit.Event{
		Type:       audit.EventPipelineVerdict,
		Severity:   audit.SeverityInfo,
		DecisionID: c.DecisionID,
		DurationMs: time.Since(start).Milliseconds(),
		Payload:    payload,
	}
	if c.Target != nil {
		ev.TargetID = c.Target.TargetID
	}
	p.sink.Record(ev)

	fields := []zap.Field{
		zap.String("decision_id", c.DecisionID),
		zap.String("action", string(v.FinalAction)),
		zap.Int("gates", len(v.Results)),
	}
	if v.SkipReason != "" {
		fields = append(fields, zap.String("reason", string(v.SkipReason)))
	}
	p.log.Info("pipeline verdict", fields...)
}
