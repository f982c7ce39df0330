package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/drfirst/go-chartaudit/internal/domain/audit"
	"github.com/drfirst/go-chartaudit/internal/extraction"
	"github.com/drfirst/go-chartaudit/pkg/circuitbreaker"
	"github.com/drfirst/go-chartaudit/pkg/idempotency"
	"github.com/drfirst/go-chartaudit/pkg/workerpool"
)

// Triggers recorded with every dispatch.
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

const handlerName = "whatsapp"

// ErrNoRecipient means the directory has no phone for the sector.
var ErrNoRecipient = errors.New("no recipient configured for sector")

// Ledger records dispatches per audit and communication index.
type Ledger interface {
	Process(ctx context.Context, key idempotency.Key, handler string, payload json.RawMessage, fn idempotency.ProcessFunc) (*idempotency.ProcessResult, error)
	Lookup(ctx context.Context, key idempotency.Key) (idempotency.Status, bool, error)
	Dispatched(ctx context.Context, auditID string) ([]int, error)
}

// EventPublisher receives NotificationSent events.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Request identifies one communication to deliver.
type Request struct {
	AuditID       string
	Index         int
	Communication extraction.Communication
	Patient       audit.PatientSummary
	FileName      string
	Trigger       string
}

// Outcome is the result reported to callers.
type Outcome struct {
	Success     bool   `json:"success"`
	AlreadySent bool   `json:"alreadySent,omitempty"`
	// InProgress means another attempt holds the key and has not finished.
	InProgress  bool   `json:"inProgress,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Config holds dispatcher settings
type Config struct {
	Footer   string
	MediaURL string
	// ResultsTopic receives a NotificationSent event per attempt when a
	// publisher is set.
	ResultsTopic string
	// OnOutcome is called once per attempt with the trigger and outcome.
	OnOutcome func(trigger, outcome string)
}

// Dispatcher renders and sends communications, at most once each.
type Dispatcher struct {
	ledger    Ledger
	sender    Sender
	breaker   *circuitbreaker.CircuitBreaker
	limiter   *rate.Limiter
	directory *Directory
	events    EventPublisher
	config    Config
	logger    *zap.Logger
}

// NewDispatcher wires a dispatcher. limiter and events may be nil.
func NewDispatcher(ledger Ledger, sender Sender, breaker *circuitbreaker.CircuitBreaker, limiter *rate.Limiter,
	directory *Directory, events EventPublisher, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Dispatcher{
		ledger:    ledger,
		sender:    sender,
		breaker:   breaker,
		limiter:   limiter,
		directory: directory,
		events:    events,
		config:    cfg,
		logger:    logger,
	}
}

// Send delivers one communication. Recorded sends come back as AlreadySent
// and in-flight ones as InProgress, both with no error. Delivery failures
// come back with Success false and an error.
func (d *Dispatcher) Send(ctx context.Context, req Request) (Outcome, error) {
	out, err := d.send(ctx, req)

	outcome := "sent"
	switch {
	case out.AlreadySent:
		outcome = "already_sent"
	case out.InProgress:
		outcome = "in_progress"
	case err != nil:
		outcome = "failed"
		out.Error = err.Error()
	}
	if d.config.OnOutcome != nil {
		d.config.OnOutcome(req.Trigger, outcome)
	}
	d.publish(ctx, req, out)

	log := d.logger.With(
		zap.String("audit_id", req.AuditID),
		zap.Int("communication_index", req.Index),
		zap.String("sector", req.Communication.Sector),
		zap.String("trigger", req.Trigger))
	if err != nil {
		log.Warn("notification failed", zap.Error(err))
	} else {
		log.Info("notification processed", zap.String("outcome", outcome), zap.String("message_id", out.MessageID))
	}
	return out, err
}

func (d *Dispatcher) send(ctx context.Context, req Request) (Outcome, error) {
	to, ok := d.directory.Lookup(req.Communication.Sector)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNoRecipient, req.Communication.Sector)
	}

	msg := SendRequest{
		To:       to,
		Body:     Render(req.Communication, req.Patient, req.FileName, d.config.Footer),
		MediaURL: d.config.MediaURL,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Outcome{}, err
	}

	key := idempotency.Key{AuditID: req.AuditID, Index: req.Index}
	res, err := d.ledger.Process(ctx, key, handlerName, payload, func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		id, err := circuitbreaker.Call(ctx, d.breaker, func(ctx context.Context) (string, error) {
			return d.sender.Send(ctx, msg)
		})
		if IsRejected(err) {
			return nil, idempotency.Terminal(err)
		}
		if err != nil {
			return nil, err
		}
		return json.Marshal(Outcome{Success: true, MessageID: id})
	})
	switch {
	case errors.Is(err, idempotency.ErrMessageInProgress):
		return Outcome{InProgress: true}, nil
	case err != nil:
		return Outcome{}, err
	case res.Duplicate:
		return Outcome{AlreadySent: true}, nil
	}

	var out Outcome
	if err := json.Unmarshal(res.Result, &out); err != nil {
		out = Outcome{Success: true}
	}
	return out, nil
}

func (d *Dispatcher) publish(ctx context.Context, req Request, out Outcome) {
	if d.events == nil || d.config.ResultsTopic == "" {
		return
	}
	ev, err := audit.NewEvent(req.AuditID, audit.EventNotificationSent, audit.NotificationSentData{
		AuditID:     req.AuditID,
		Index:       req.Index,
		Sector:      req.Communication.Sector,
		Success:     out.Success,
		AlreadySent: out.AlreadySent,
		InProgress:  out.InProgress,
		MessageID:   out.MessageID,
		Error:       out.Error,
		Trigger:     req.Trigger,
	})
	if err != nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := d.events.Publish(ctx, d.config.ResultsTopic, req.AuditID, b); err != nil {
		d.logger.Warn("failed to publish notification result", zap.Error(err))
	}
}

// Sent reports whether communication index of auditID was delivered.
func (d *Dispatcher) Sent(ctx context.Context, auditID string, index int) (bool, error) {
	status, ok, err := d.ledger.Lookup(ctx, idempotency.Key{AuditID: auditID, Index: index})
	if err != nil {
		return false, err
	}
	return ok && status == idempotency.StatusFinished, nil
}

// SentIndices lists the delivered communication indices of auditID.
func (d *Dispatcher) SentIndices(ctx context.Context, auditID string) ([]int, error) {
	return d.ledger.Dispatched(ctx, auditID)
}

// Plan selects the communications of a completed audit whose urgency is at
// least threshold.
func Plan(data *audit.AuditCompletedData, threshold extraction.Urgency) []Request {
	var reqs []Request
	for i, c := range data.Communications {
		if c.Urgency.Rank() < threshold.Rank() {
			continue
		}
		reqs = append(reqs, Request{
			AuditID:       data.AuditID,
			Index:         i,
			Communication: c,
			Patient:       data.Patient,
			FileName:      data.FileName,
			Trigger:       TriggerAuto,
		})
	}
	return reqs
}

// Work adapts Send to a worker pool. Missing recipients and duplicates are
// not retried. An in-flight key is retried so a failed concurrent attempt
// is not lost.
func (d *Dispatcher) Work(ctx context.Context, task *workerpool.Task[Request]) *workerpool.Result {
	out, err := d.Send(ctx, task.Payload)
	if err == nil && out.InProgress {
		err = idempotency.ErrMessageInProgress
	}
	if err != nil {
		return &workerpool.Result{
			Error:     err,
			Permanent: errors.Is(err, ErrNoRecipient) || IsRejected(err) || errors.Is(err, idempotency.ErrPreviouslyFailed),
			Data:      out,
		}
	}
	return &workerpool.Result{Success: true, Data: out}
}
