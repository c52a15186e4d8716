// Package audit records the pipeline's decision trail as structured events.
// The context lock emits one event per reconciliation branch; those events
// are the only way to diagnose a drift incident after the fact, so sinks are
// fire-and-forget and must never block or fail a decision.
package audit

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// EventType names what happened. The set is closed; log tooling keys on
// these strings.
type EventType string

const (
	// Context lock reconciliation branches.
	EventVerifyDisabled        EventType = "verify_disabled"
	EventVerifyHashMatch       EventType = "verify_hash_match"
	EventVerifyPrefixMatch     EventType = "verify_prefix_match"
	EventVerifySimilarityPass  EventType = "verify_similarity_pass"
	EventVerifyContextMismatch EventType = "verify_context_mismatch"
	EventVerifyTargetNotRoot   EventType = "verify_target_not_root"
	EventVerifyFetchFailed     EventType = "verify_fetch_failed"

	// Pipeline lifecycle.
	EventPipelineVerdict EventType = "pipeline_verdict"
	EventRegenAttempt    EventType = "regen_attempt"

	// Anti-spam infrastructure failures (the fail-open path).
	EventAntiSpamStoreError EventType = "antispam_store_error"

	// Posting bookkeeping.
	EventReplyRecorded   EventType = "reply_recorded"
	EventOutcomeRecorded EventType = "outcome_recorded"
)

// Severity of an event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one audit record. ID and Timestamp are filled by the sink when
// zero, so call sites only set what they know.
type Event struct {
	ID         string         `json:"id"`
	Timestamp  int64          `json:"ts"` // unix milliseconds
	Type       EventType      `json:"event"`
	Severity   Severity       `json:"sev"`
	DecisionID string         `json:"decision,omitempty"`
	TargetID   string         `json:"target,omitempty"`
	Gate       string         `json:"gate,omitempty"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Sink accepts events. Implementations must be safe for concurrent use and
// must swallow their own failures; a broken audit channel cannot be allowed
// to take the posting path down with it.
type Sink interface {
	Record(ev Event)
}

// NewID returns a sortable event id.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}

func fillDefaults(ev *Event) {
	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}
}

// ZapSink logs events through a zap logger.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapSink{log: log}
}

func (s *ZapSink) Record(ev Event) {
	fillDefaults(&ev)
	fields := []zap.Field{
		zap.String("audit_id", ev.ID),
		zap.String("event", string(ev.Type)),
		zap.String("severity", string(ev.Severity)),
	}
	if ev.DecisionID != "" {
		fields = append(fields, zap.String("decision_id", ev.DecisionID))
	}
	if ev.TargetID != "" {
		fields = append(fields, zap.String("target_id", ev.TargetID))
	}
	if ev.Gate != "" {
		fields = append(fields, zap.String("gate", ev.Gate))
	}
	if ev.DurationMs > 0 {
		fields = append(fields, zap.Int64("duration_ms", ev.DurationMs))
	}
	if len(ev.Payload) > 0 {
		fields = append(fields, zap.Any("payload", ev.Payload))
	}
	switch ev.Severity {
	case SeverityError:
		s.log.Error("audit", fields...)
	case SeverityWarning:
		s.log.Warn("audit", fields...)
	default:
		s.log.Info("audit", fields...)
	}
}

// FileSink appends events as JSON lines. Marshal or write failures are
// dropped silently after filling defaults; see the Sink contract.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) the JSONL file at path, creating parent
// directories as needed.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Record(ev Event) {
	fillDefaults(&ev)
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.Write(append(data, '\n'))
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Tee fans an event out to several sinks.
type Tee []Sink

func (t Tee) Record(ev Event) {
	fillDefaults(&ev)
	for _, s := range t {
		s.Record(ev)
	}
}

// Nop discards everything. Useful default so constructors never need a nil
// check at call sites.
type Nop struct{}

func (Nop) Record(Event) {}
