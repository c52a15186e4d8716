// Package reply defines the domain model the pipeline operates on: the
// immutable decision-time snapshot of a target post and the mutable reply
// candidate built against it.
package reply

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"replygate/internal/textkit"
)

// Kind classifies what the generated content is meant to be posted as.
type Kind string

const (
	KindReply  Kind = "reply"
	KindThread Kind = "thread"
	KindSingle Kind = "single"
)

// Tristate is a boolean that can also be unknown. Whether a target is a root
// post is often unknowable at capture time (truncated context, quote
// embeds), and the guards treat unknown differently from a confirmed false.
type Tristate int

const (
	TristateUnknown Tristate = iota
	TristateTrue
	TristateFalse
)

func (t Tristate) String() string {
	switch t {
	case TristateTrue:
		return "true"
	case TristateFalse:
		return "false"
	default:
		return "unknown"
	}
}

func (t Tristate) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tristate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "true":
		*t = TristateTrue
	case "false":
		*t = TristateFalse
	case "unknown", "":
		*t = TristateUnknown
	default:
		return fmt.Errorf("invalid tristate %q", s)
	}
	return nil
}

// SnapshotPrefixRunes is the rune span covered by a snapshot's prefix hash.
// The snapshot writer and the context lock verifier must use the same span,
// so this is a constant rather than configuration.
const SnapshotPrefixRunes = 500

// TargetSnapshot is captured once, at candidate-selection time, and never
// mutated afterwards. The hashes are computed from textkit-normalized text;
// the context lock verifier recomputes them with the same functions against
// the live page.
type TargetSnapshot struct {
	TargetID     string    `json:"target_id"`
	Text         string    `json:"text"`
	TextHash     string    `json:"text_hash"`
	PrefixHash   string    `json:"prefix_hash,omitempty"`
	AuthorHandle string    `json:"author_handle"`
	RootID       string    `json:"root_id,omitempty"`
	PostedAt     time.Time `json:"posted_at,omitzero"`
	SnapshotAt   time.Time `json:"snapshot_at"`
	IsRoot       Tristate  `json:"is_root"`
}

// NewSnapshot captures target text and computes both integrity hashes. The
// prefix hash is only set when the normalized text is longer than the prefix
// window; for shorter texts it would duplicate the full hash.
func NewSnapshot(targetID, text, authorHandle string, isRoot Tristate, at time.Time) *TargetSnapshot {
	s := &TargetSnapshot{
		TargetID:     targetID,
		Text:         text,
		TextHash:     textkit.HashText(text),
		AuthorHandle: authorHandle,
		SnapshotAt:   at,
		IsRoot:       isRoot,
	}
	if textkit.RuneLen(textkit.Normalize(text)) > SnapshotPrefixRunes {
		s.PrefixHash = textkit.PrefixHash(text, SnapshotPrefixRunes)
	}
	return s
}

// RootKey is the conversation key used for per-root cooldowns: the resolved
// root id when known, otherwise the target itself.
func (s *TargetSnapshot) RootKey() string {
	if s.RootID != "" {
		return s.RootID
	}
	return s.TargetID
}

// Candidate is one reply decision moving through the pipeline. It is mutated
// only by regeneration; a skipped candidate is discarded, a posted one is
// handed to the external poster and recorded by the store.
type Candidate struct {
	DecisionID        string          `json:"decision_id"`
	Target            *TargetSnapshot `json:"target,omitempty"`
	ReplyText         string          `json:"reply_text"`
	AttemptCount      int             `json:"attempt_count"`
	Kind              Kind            `json:"kind"`
	CreatedAt         time.Time       `json:"created_at"`
	PreflightVerified bool            `json:"preflight_verified,omitempty"`
}

// NewCandidate assigns a fresh decision id. Kind defaults to reply when a
// target is present.
func NewCandidate(target *TargetSnapshot, replyText string, kind Kind, now time.Time) *Candidate {
	if kind == "" && target != nil {
		kind = KindReply
	}
	return &Candidate{
		DecisionID: uuid.NewString(),
		Target:     target,
		ReplyText:  replyText,
		Kind:       kind,
		CreatedAt:  now,
	}
}

// ApplyRegeneration swaps in regenerated text and bumps the attempt counter.
// This is the only sanctioned mutation of a candidate.
func (c *Candidate) ApplyRegeneration(text string) {
	c.ReplyText = text
	c.AttemptCount++
}
