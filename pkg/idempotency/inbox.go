// Package idempotency provides the Inbox pattern for exactly-once dispatch of
// audit communications. Keys are deterministic: Hash(AuditID+CommunicationIndex).
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status represents the processing status of an inbox entry
type Status string

const (
	StatusStarted     Status = "STARTED"
	StatusFinished    Status = "FINISHED"
	StatusRecoverable Status = "RECOVERABLE"
	StatusFailed      Status = "FAILED"
)

// Key identifies one communication of one persisted audit.
type Key struct {
	AuditID string
	Index   int
}

// String returns the hashed idempotency key.
func (k Key) String() string {
	return GenerateKey(k.AuditID, k.Index)
}

// GenerateKey creates a deterministic idempotency key for a communication
func GenerateKey(auditID string, index int) string {
	data := strings.Join([]string{strings.TrimSpace(auditID), strconv.Itoa(index)}, "|")
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// DB is the subset of pgxpool.Pool used by the inbox.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InboxEntry represents an idempotency inbox record
type InboxEntry struct {
	IdempotencyKey string
	AuditID        string
	CommIndex      int
	HandlerName    string
	Status         Status
	Payload        json.RawMessage
	Result         json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InboxConfig holds configuration for the inbox
type InboxConfig struct {
	// CleanupInterval is how often failed entries past retention are purged
	CleanupInterval time.Duration
	// FailedRetention keeps FAILED entries around for inspection
	FailedRetention time.Duration
	// RecoveryTimeout is when to consider a STARTED entry as stale
	RecoveryTimeout time.Duration
}

// DefaultInboxConfig returns sensible defaults
func DefaultInboxConfig() InboxConfig {
	return InboxConfig{
		CleanupInterval: 1 * time.Hour,
		FailedRetention: 30 * 24 * time.Hour,
		RecoveryTimeout: 2 * time.Minute,
	}
}

// Inbox records which communications were dispatched. FINISHED entries are
// permanent: a communication is never sent twice.
type Inbox struct {
	db     DB
	config InboxConfig
	logger *zap.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewInbox creates a new inbox manager
func NewInbox(db DB, cfg InboxConfig, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Inbox{
		db:     db,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("inbox"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ErrDuplicateMessage indicates the communication was already dispatched
var ErrDuplicateMessage = errors.New("duplicate message: already processed")

// ErrMessageInProgress indicates another dispatcher holds the communication
var ErrMessageInProgress = errors.New("message in progress by another handler")

// ErrPreviouslyFailed indicates a permanent failure was recorded earlier
var ErrPreviouslyFailed = errors.New("message previously failed permanently")

// ProcessResult represents the result of idempotent processing
type ProcessResult struct {
	// Duplicate is true when the key was already FINISHED and fn did not run
	Duplicate    bool
	WasRecovered bool
	Result       json.RawMessage
}

// ProcessFunc is the function signature for idempotent handlers
type ProcessFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Process runs fn at most once to success for key.
func (i *Inbox) Process(ctx context.Context, key Key, handlerName string, payload json.RawMessage, fn ProcessFunc) (*ProcessResult, error) {
	hashed := key.String()
	ctx, span := i.tracer.Start(ctx, "inbox_process",
		trace.WithAttributes(
			attribute.String("idempotency_key", hashed),
			attribute.String("audit_id", key.AuditID),
			attribute.Int("communication_index", key.Index),
			attribute.String("handler", handlerName),
		))
	defer span.End()

	entry, err := i.getEntry(ctx, hashed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check inbox: %w", err)
	}

	if entry != nil {
		switch entry.Status {
		case StatusFinished:
			span.SetAttributes(attribute.Bool("duplicate", true))
			return &ProcessResult{Duplicate: true, Result: entry.Result}, nil

		case StatusFailed:
			span.SetAttributes(attribute.Bool("previously_failed", true))
			return nil, fmt.Errorf("%w: %s", ErrPreviouslyFailed, hashed)

		case StatusStarted:
			if time.Since(entry.UpdatedAt) <= i.config.RecoveryTimeout {
				return nil, ErrMessageInProgress
			}
			if err := i.markStatus(ctx, hashed, StatusRecoverable, nil, ""); err != nil {
				return nil, fmt.Errorf("failed to mark recoverable: %w", err)
			}

		case StatusRecoverable:
			span.SetAttributes(attribute.Bool("recovered", true))
		}
	}

	if err := i.startProcessing(ctx, key, hashed, handlerName, payload); err != nil {
		if errors.Is(err, ErrDuplicateMessage) {
			return nil, ErrMessageInProgress
		}
		return nil, fmt.Errorf("failed to start processing: %w", err)
	}

	result, handlerErr := fn(ctx, payload)
	if handlerErr != nil {
		status := StatusRecoverable
		if IsTerminal(handlerErr) {
			status = StatusFailed
		}
		if err := i.markStatus(ctx, hashed, status, nil, handlerErr.Error()); err != nil {
			i.logger.Error("failed to mark error status", zap.Error(err))
		}
		span.RecordError(handlerErr)
		return nil, handlerErr
	}

	if err := i.markStatus(ctx, hashed, StatusFinished, result, ""); err != nil {
		// The send happened; a later retry would duplicate it, so surface loudly.
		i.logger.Error("failed to mark finished",
			zap.String("audit_id", key.AuditID),
			zap.Int("communication_index", key.Index),
			zap.Error(err))
	}

	return &ProcessResult{
		WasRecovered: entry != nil,
		Result:       result,
	}, nil
}

// Lookup returns the status recorded for key, if any.
func (i *Inbox) Lookup(ctx context.Context, key Key) (Status, bool, error) {
	entry, err := i.getEntry(ctx, key.String())
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read inbox: %w", err)
	}
	return entry.Status, true, nil
}

// Dispatched lists the communication indices of an audit already sent.
func (i *Inbox) Dispatched(ctx context.Context, auditID string) ([]int, error) {
	rows, err := i.db.Query(ctx, `
		SELECT comm_index
		FROM inbox
		WHERE audit_id = $1 AND status = 'FINISHED'
		ORDER BY comm_index
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatched: %w", err)
	}
	defer rows.Close()

	indices := []int{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, rows.Err()
}

func (i *Inbox) getEntry(ctx context.Context, key string) (*InboxEntry, error) {
	query := `
		SELECT idempotency_key, audit_id, comm_index, handler_name, status, payload, result, created_at, updated_at
		FROM inbox
		WHERE idempotency_key = $1
	`

	entry := &InboxEntry{}
	err := i.db.QueryRow(ctx, query, key).Scan(
		&entry.IdempotencyKey, &entry.AuditID, &entry.CommIndex, &entry.HandlerName, &entry.Status,
		&entry.Payload, &entry.Result, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// startProcessing claims the key. Only new or RECOVERABLE keys can be claimed.
func (i *Inbox) startProcessing(ctx context.Context, key Key, hashed, handlerName string, payload json.RawMessage) error {
	query := `
		INSERT INTO inbox (idempotency_key, audit_id, comm_index, handler_name, status, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET status = $5, handler_name = $4, updated_at = NOW()
		WHERE inbox.status = 'RECOVERABLE'
		RETURNING idempotency_key
	`

	var returned string
	err := i.db.QueryRow(ctx, query, hashed, key.AuditID, key.Index, handlerName, StatusStarted, payload).Scan(&returned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicateMessage
		}
		return err
	}

	return nil
}

func (i *Inbox) markStatus(ctx context.Context, key string, status Status, result json.RawMessage, errMsg string) error {
	query := `
		UPDATE inbox
		SET status = $1, result = $2, updated_at = NOW()
		WHERE idempotency_key = $3
	`

	if errMsg != "" && result == nil {
		result, _ = json.Marshal(map[string]string{"error": errMsg})
	}

	_, err := i.db.Exec(ctx, query, status, result, key)
	return err
}

// StartCleanup starts the background cleanup goroutine
func (i *Inbox) StartCleanup() {
	go i.cleanupLoop()
	i.logger.Info("inbox cleanup started", zap.Duration("interval", i.config.CleanupInterval))
}

// Stop stops the inbox cleanup
func (i *Inbox) Stop() {
	i.cancel()
	<-i.done
	i.logger.Info("inbox stopped")
}

func (i *Inbox) cleanupLoop() {
	defer close(i.done)

	ticker := time.NewTicker(i.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.ctx.Done():
			return
		case <-ticker.C:
			if n, err := i.RecoverStaleEntries(i.ctx); err != nil {
				i.logger.Error("inbox recovery failed", zap.Error(err))
			} else if n > 0 {
				i.logger.Info("stale inbox entries recovered", zap.Int64("count", n))
			}
			if err := i.cleanup(i.ctx); err != nil {
				i.logger.Error("inbox cleanup failed", zap.Error(err))
			}
		}
	}
}

// cleanup purges old FAILED entries so they can be retried by hand.
func (i *Inbox) cleanup(ctx context.Context) error {
	result, err := i.db.Exec(ctx, `
		DELETE FROM inbox
		WHERE status = 'FAILED' AND updated_at < NOW() - $1::interval
	`, i.config.FailedRetention.String())
	if err != nil {
		return err
	}

	if result.RowsAffected() > 0 {
		i.logger.Info("inbox cleanup completed", zap.Int64("deleted", result.RowsAffected()))
	}

	return nil
}

// RecoverStaleEntries marks stale STARTED entries as RECOVERABLE
func (i *Inbox) RecoverStaleEntries(ctx context.Context) (int64, error) {
	query := `
		UPDATE inbox
		SET status = 'RECOVERABLE', updated_at = NOW()
		WHERE status = 'STARTED'
		  AND updated_at < NOW() - $1::interval
	`

	result, err := i.db.Exec(ctx, query, i.config.RecoveryTimeout.String())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

// TerminalError marks a handler failure that must not be retried.
type TerminalError struct{ Err error }

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err so the inbox records it as FAILED.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err was wrapped with Terminal. Anything else is
// recorded RECOVERABLE.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}

// InboxStats holds per-status entry counts
type InboxStats struct {
	TotalEntries int64
	Started      int64
	Finished     int64
	Recoverable  int64
	Failed       int64
}

// GetStats returns current inbox statistics
func (i *Inbox) GetStats(ctx context.Context) (*InboxStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'STARTED') as started,
			COUNT(*) FILTER (WHERE status = 'FINISHED') as finished,
			COUNT(*) FILTER (WHERE status = 'RECOVERABLE') as recoverable,
			COUNT(*) FILTER (WHERE status = 'FAILED') as failed
		FROM inbox
	`

	stats := &InboxStats{}
	err := i.db.QueryRow(ctx, query).Scan(
		&stats.TotalEntries, &stats.Started, &stats.Finished,
		&stats.Recoverable, &stats.Failed,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
