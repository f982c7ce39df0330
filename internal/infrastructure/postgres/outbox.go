// Package postgres provides PostgreSQL infrastructure components.
// Implements the transactional outbox used to publish audit events.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// relayLockID is the advisory lock held by the single active relay.
const relayLockID int64 = 0x61756469 // "audi"

// OutboxEntry represents an event to be published via the outbox pattern
type OutboxEntry struct {
	ID            int64
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       json.RawMessage
	KafkaTopic    string
	KafkaKey      string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	RetryCount    int
	LastError     *string
}

// OutboxConfig holds configuration for the outbox processor
type OutboxConfig struct {
	// BatchSize is the number of entries to process per batch
	BatchSize int
	// PollInterval is how often to poll for new entries
	PollInterval time.Duration
	// MaxRetries is the maximum retries before moving to dead letter
	MaxRetries int
	// DeadLetterTopic receives entries that exhausted their retries
	DeadLetterTopic string
	// OnPending reports the pending count after each batch.
	OnPending func(n int64)
}

// DefaultOutboxConfig returns sensible defaults
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		BatchSize:       50,
		PollInterval:    500 * time.Millisecond,
		MaxRetries:      5,
		DeadLetterTopic: "dead.letter",
	}
}

// OutboxPublisher defines the interface for publishing outbox entries
type OutboxPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Querier is satisfied by pgx.Tx, *pgx.Conn and *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Outbox relays committed outbox rows to the broker
type Outbox struct {
	pool      *pgxpool.Pool
	config    OutboxConfig
	publisher OutboxPublisher
	logger    *zap.Logger
	tracer    trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutbox creates a new outbox processor
func NewOutbox(pool *pgxpool.Pool, publisher OutboxPublisher, cfg OutboxConfig, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Outbox{
		pool:      pool,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("outbox"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// WriteEntry writes an outbox entry in the caller's transaction, so the event
// exists only if the domain write commits.
func WriteEntry(ctx context.Context, q Querier, entry *OutboxEntry) error {
	query := `
		INSERT INTO outbox (aggregate_id, aggregate_type, event_type, payload, kafka_topic, kafka_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := q.QueryRow(ctx, query,
		entry.AggregateID,
		entry.AggregateType,
		entry.EventType,
		entry.Payload,
		entry.KafkaTopic,
		entry.KafkaKey,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write outbox entry: %w", err)
	}

	return nil
}

// Start begins polling and processing outbox entries
func (o *Outbox) Start() {
	go o.processLoop()
	o.logger.Info("outbox processor started",
		zap.Int("batch_size", o.config.BatchSize),
		zap.Duration("poll_interval", o.config.PollInterval))
}

// Stop gracefully stops the outbox processor
func (o *Outbox) Stop() {
	o.cancel()
	<-o.done
	o.logger.Info("outbox processor stopped")
}

func (o *Outbox) processLoop() {
	defer close(o.done)

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.processBatch()
		}
	}
}

// processBatch runs on one pooled connection so the session-level advisory
// lock is released by the same backend that took it.
func (o *Outbox) processBatch() {
	ctx, span := o.tracer.Start(o.ctx, "outbox_process_batch")
	defer span.End()

	conn, err := o.pool.Acquire(ctx)
	if err != nil {
		o.logger.Error("failed to acquire connection", zap.Error(err))
		return
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", relayLockID).Scan(&acquired); err != nil || !acquired {
		return
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", relayLockID); err != nil {
			o.logger.Warn("failed to release relay lock", zap.Error(err))
		}
	}()

	entries, err := o.fetchUnprocessed(ctx, conn)
	if err != nil {
		o.logger.Error("failed to fetch outbox entries", zap.Error(err))
		span.RecordError(err)
		return
	}

	span.SetAttributes(attribute.Int("batch_size", len(entries)))

	for _, entry := range entries {
		if err := o.processEntry(ctx, conn, entry); err != nil {
			o.logger.Error("failed to process outbox entry",
				zap.Int64("id", entry.ID),
				zap.String("event_type", entry.EventType),
				zap.Error(err))
		}
	}

	if n, err := o.moveToDeadLetter(ctx, conn); err != nil {
		o.logger.Error("dead letter sweep failed", zap.Error(err))
	} else if n > 0 {
		o.logger.Warn("outbox entries moved to dead letter", zap.Int64("count", n))
	}

	if o.config.OnPending != nil {
		var pending int64
		if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL").Scan(&pending); err == nil {
			o.config.OnPending(pending)
		}
	}
}

func (o *Outbox) fetchUnprocessed(ctx context.Context, conn *pgxpool.Conn) ([]*OutboxEntry, error) {
	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, payload,
		       kafka_topic, kafka_key, created_at, retry_count, last_error
		FROM outbox
		WHERE processed_at IS NULL
		  AND retry_count < $1
		ORDER BY id ASC
		LIMIT $2
	`

	rows, err := conn.Query(ctx, query, o.config.MaxRetries, o.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		entry := &OutboxEntry{}
		err := rows.Scan(
			&entry.ID, &entry.AggregateID, &entry.AggregateType,
			&entry.EventType, &entry.Payload, &entry.KafkaTopic,
			&entry.KafkaKey, &entry.CreatedAt, &entry.RetryCount, &entry.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (o *Outbox) processEntry(ctx context.Context, conn *pgxpool.Conn, entry *OutboxEntry) error {
	ctx, span := o.tracer.Start(ctx, "outbox_process_entry",
		trace.WithAttributes(
			attribute.Int64("entry_id", entry.ID),
			attribute.String("event_type", entry.EventType),
			attribute.String("aggregate_id", entry.AggregateID),
		))
	defer span.End()

	if err := o.publisher.Publish(ctx, entry.KafkaTopic, entry.KafkaKey, entry.Payload); err != nil {
		if _, updateErr := conn.Exec(ctx, `
			UPDATE outbox
			SET retry_count = retry_count + 1, last_error = $1, updated_at = NOW()
			WHERE id = $2
		`, err.Error(), entry.ID); updateErr != nil {
			o.logger.Error("failed to update retry count", zap.Error(updateErr))
		}
		span.RecordError(err)
		return fmt.Errorf("publish failed: %w", err)
	}

	if _, err := conn.Exec(ctx, `
		UPDATE outbox
		SET processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, entry.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark processed: %w", err)
	}

	o.logger.Debug("outbox entry processed",
		zap.Int64("id", entry.ID),
		zap.String("topic", entry.KafkaTopic))

	return nil
}

// deadLetterPayload wraps an exhausted entry with its delivery history.
func deadLetterPayload(entry *OutboxEntry) ([]byte, error) {
	return json.Marshal(map[string]any{
		"original_topic": entry.KafkaTopic,
		"event_type":     entry.EventType,
		"aggregate_id":   entry.AggregateID,
		"aggregate_type": entry.AggregateType,
		"payload":        entry.Payload,
		"retry_count":    entry.RetryCount,
		"last_error":     entry.LastError,
		"created_at":     entry.CreatedAt,
	})
}

func (o *Outbox) moveToDeadLetter(ctx context.Context, conn *pgxpool.Conn) (int64, error) {
	rows, err := conn.Query(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, payload,
		       kafka_topic, kafka_key, created_at, retry_count, last_error
		FROM outbox
		WHERE processed_at IS NULL
		  AND retry_count >= $1
		LIMIT $2
	`, o.config.MaxRetries, o.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}

	var exhausted []*OutboxEntry
	for rows.Next() {
		entry := &OutboxEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.AggregateID, &entry.AggregateType,
			&entry.EventType, &entry.Payload, &entry.KafkaTopic, &entry.KafkaKey,
			&entry.CreatedAt, &entry.RetryCount, &entry.LastError,
		); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan failed: %w", err)
		}
		exhausted = append(exhausted, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var count int64
	for _, entry := range exhausted {
		payload, err := deadLetterPayload(entry)
		if err != nil {
			return count, err
		}
		if err := o.publisher.Publish(ctx, o.config.DeadLetterTopic, entry.KafkaKey, payload); err != nil {
			o.logger.Error("failed to publish to dead letter", zap.Error(err))
			continue
		}
		if _, err := conn.Exec(ctx, "UPDATE outbox SET processed_at = NOW(), updated_at = NOW() WHERE id = $1", entry.ID); err != nil {
			o.logger.Error("failed to mark dead letter entry", zap.Error(err))
			continue
		}
		count++
	}

	return count, nil
}

// CleanupProcessed removes old processed entries
func (o *Outbox) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := o.pool.Exec(ctx, `
		DELETE FROM outbox
		WHERE processed_at IS NOT NULL
		  AND processed_at < NOW() - $1::interval
	`, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}

	return result.RowsAffected(), nil
}
