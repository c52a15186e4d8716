package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	sink.Record(Event{
		Type:       EventVerifyHashMatch,
		DecisionID: "d-1",
		TargetID:   "t-1",
		Payload:    map[string]any{"similarity": 1.0},
	})
	sink.Record(Event{Type: EventVerifyFetchFailed, Severity: SeverityWarning})
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)

	assert.Equal(t, EventVerifyHashMatch, events[0].Type)
	assert.Equal(t, "d-1", events[0].DecisionID)
	assert.NotEmpty(t, events[0].ID, "sink must assign an id")
	assert.NotZero(t, events[0].Timestamp, "sink must assign a timestamp")
	assert.Equal(t, SeverityInfo, events[0].Severity, "severity defaults to info")
	assert.Equal(t, SeverityWarning, events[1].Severity)
}

func TestNewIDSortable(t *testing.T) {
	a := NewID()
	time.Sleep(2 * time.Millisecond)
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 26)
	// IDs minted in a later millisecond sort after earlier ones.
	assert.Less(t, a, b)
}

type captureSink struct{ events []Event }

func (c *captureSink) Record(ev Event) { c.events = append(c.events, ev) }

func TestTee(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	Tee{a, b}.Record(Event{Type: EventPipelineVerdict})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, a.events[0].ID, b.events[0].ID, "tee fills defaults once")
}

func TestZapSinkNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewZapSink(nil).Record(Event{Type: EventRegenAttempt})
	})
}
