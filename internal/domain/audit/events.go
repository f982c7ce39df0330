package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/drfirst/go-chartaudit/internal/extraction"
)

// EventType represents the type of domain event
type EventType string

const (
	EventAuditCompleted   EventType = "AuditCompleted"
	EventNotificationSent EventType = "NotificationSent"
)

// AggregateType names the outbox aggregate for audit events.
const AggregateType = "Auditoria"

// Event is the envelope published on the broker
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewEvent creates a new event
func NewEvent(aggregateID string, eventType EventType, data any) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: AggregateType,
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// PatientSummary is the patient subset printed in notifications.
type PatientSummary struct {
	Name       string `json:"nombre,omitempty"`
	NationalID string `json:"dni,omitempty"`
	Insurer    string `json:"obra_social,omitempty"`
}

// AuditCompletedData carries what a dispatcher needs to notify sectors
// without reading the audit back.
type AuditCompletedData struct {
	AuditID        string                     `json:"auditoria_id"`
	FileName       string                     `json:"nombre_archivo"`
	Status         string                     `json:"estado"`
	TotalErrors    int                        `json:"total_errores"`
	Patient        PatientSummary             `json:"paciente"`
	Communications []extraction.Communication `json:"comunicaciones"`
}

// NewAuditCompleted builds the completion event for a stored record.
func NewAuditCompleted(rec *Record) (*Event, error) {
	data := AuditCompletedData{
		AuditID:     rec.ID,
		FileName:    rec.FileName,
		Status:      rec.Status,
		TotalErrors: rec.TotalErrors,
		Patient: PatientSummary{
			Name:       rec.PatientName,
			NationalID: rec.PatientID,
			Insurer:    rec.Insurer,
		},
		Communications: rec.Communications,
	}
	return NewEvent(rec.ID, EventAuditCompleted, data)
}

// NotificationSentData is published for every dispatch attempt.
type NotificationSentData struct {
	AuditID     string `json:"auditoria_id"`
	Index       int    `json:"comunicacion_index"`
	Sector      string `json:"sector"`
	Success     bool   `json:"success"`
	AlreadySent bool   `json:"already_sent,omitempty"`
	InProgress  bool   `json:"in_progress,omitempty"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
	Trigger     string `json:"trigger"`
}

// DecodeAuditCompleted reads the payload of an AuditCompleted envelope.
func DecodeAuditCompleted(raw []byte) (*Event, *AuditCompletedData, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, nil, err
	}
	var data AuditCompletedData
	if err := json.Unmarshal(ev.EventData, &data); err != nil {
		return nil, nil, err
	}
	return &ev, &data, nil
}
