package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	err  error
	scan func(dest ...any)
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	r.scan(dest...)
	return nil
}

type recordingQuerier struct {
	args []any
	row  fakeRow
}

func (q *recordingQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = args
	return q.row
}

func TestWriteEntry(t *testing.T) {
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	q := &recordingQuerier{row: fakeRow{scan: func(dest ...any) {
		*dest[0].(*int64) = 42
		*dest[1].(*time.Time) = created
	}}}

	entry := &OutboxEntry{
		AggregateID:   "a-1",
		AggregateType: "Auditoria",
		EventType:     "AuditCompleted",
		Payload:       json.RawMessage(`{"id":"a-1"}`),
		KafkaTopic:    "audit.completed",
		KafkaKey:      "a-1",
	}
	require.NoError(t, WriteEntry(context.Background(), q, entry))

	assert.Equal(t, int64(42), entry.ID)
	assert.Equal(t, created, entry.CreatedAt)
	assert.Equal(t, "audit.completed", q.args[4])
}

func TestWriteEntryWrapsError(t *testing.T) {
	q := &recordingQuerier{row: fakeRow{err: errors.New("relation \"outbox\" does not exist")}}
	err := WriteEntry(context.Background(), q, &OutboxEntry{})
	assert.ErrorContains(t, err, "failed to write outbox entry")
}

func TestDeadLetterPayload(t *testing.T) {
	lastErr := "broker unreachable"
	b, err := deadLetterPayload(&OutboxEntry{
		AggregateID: "a-1",
		EventType:   "AuditCompleted",
		KafkaTopic:  "audit.completed",
		Payload:     json.RawMessage(`{"id":"a-1"}`),
		RetryCount:  5,
		LastError:   &lastErr,
	})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "audit.completed", out["original_topic"])
	assert.Equal(t, "broker unreachable", out["last_error"])
	assert.Equal(t, float64(5), out["retry_count"])
	assert.Equal(t, map[string]any{"id": "a-1"}, out["payload"])
}
