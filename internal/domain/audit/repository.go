package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-chartaudit/internal/extraction"
	"github.com/drfirst/go-chartaudit/internal/infrastructure/postgres"
	"github.com/drfirst/go-chartaudit/internal/infrastructure/redpanda"
)

// ErrNotFound is returned by Load for unknown ids.
var ErrNotFound = errors.New("audit not found")

// Repository persists audits and their completion events
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger, tracer: otel.Tracer("audit-repository")}
}

// Save stores the flattened audit and its AuditCompleted outbox entry in one
// transaction. It returns the new audit id.
func (r *Repository) Save(ctx context.Context, res *extraction.Result) (string, error) {
	ctx, span := r.tracer.Start(ctx, "audit_save",
		trace.WithAttributes(attribute.String("file_name", res.FileName)))
	defer span.End()

	rec := NewRecord(res)
	rec.ID = uuid.New().String()

	cols, err := rec.jsonColumns()
	if err != nil {
		return "", fmt.Errorf("encode audit: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO auditorias (
			id, nombre_archivo, nombre_paciente, dni_paciente, obra_social, habitacion,
			fecha_ingreso, fecha_alta, total_errores, errores_admision, errores_evoluciones,
			errores_foja_quirurgica, errores_alta_medica, errores_epicrisis, bisturi_armonico, estado,
			estudios_total, estudios_imagenes, estudios_laboratorio, estudios_procedimientos,
			sesiones_kinesiologia, estudios, errores_estudios, errores_detalle, comunicaciones,
			datos_adicionales, resultado
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		RETURNING created_at
	`,
		rec.ID, rec.FileName, rec.PatientName, rec.PatientID, rec.Insurer, rec.Room,
		rec.AdmissionDate, rec.DischargeDate, rec.TotalErrors, rec.AdmissionErrors, rec.ProgressErrors,
		rec.SurgicalErrors, rec.DischargeErrors, rec.SummaryErrors, rec.Device, rec.Status,
		rec.StudiesTotal, rec.StudiesImaging, rec.StudiesLaboratory, rec.StudiesProcedures,
		rec.TherapySessions, cols.studies, cols.studyErrors, cols.details, cols.communications,
		cols.additional, cols.result,
	).Scan(&rec.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("insert audit: %w", err)
	}

	if err := writeCompleted(ctx, tx, rec); err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("audit stored",
		zap.String("audit_id", rec.ID),
		zap.String("status", rec.Status),
		zap.Int("total_errors", rec.TotalErrors),
		zap.Int("communications", len(rec.Communications)))
	return rec.ID, nil
}

func writeCompleted(ctx context.Context, q postgres.Querier, rec *Record) error {
	ev, err := NewAuditCompleted(rec)
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return postgres.WriteEntry(ctx, q, &postgres.OutboxEntry{
		AggregateID:   rec.ID,
		AggregateType: AggregateType,
		EventType:     string(EventAuditCompleted),
		Payload:       payload,
		KafkaTopic:    redpanda.TopicAuditCompleted,
		KafkaKey:      rec.ID,
	})
}

// Load returns the stored record with its full result.
func (r *Repository) Load(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var (
		createdAt time.Time
		raw       []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT created_at, resultado FROM auditorias WHERE id = $1`, id,
	).Scan(&createdAt, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load audit: %w", err)
	}

	var res extraction.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode audit %s: %w", id, err)
	}

	rec := NewRecord(&res)
	rec.ID = id
	rec.CreatedAt = createdAt
	return rec, nil
}

type jsonColumns struct {
	studies, studyErrors, details, communications, additional, result []byte
}

func (rec *Record) jsonColumns() (jsonColumns, error) {
	var c jsonColumns
	var err error
	for _, f := range []struct {
		dst *[]byte
		v   any
	}{
		{&c.studies, rec.Studies},
		{&c.studyErrors, rec.StudyErrors},
		{&c.details, rec.ErrorDetails},
		{&c.communications, rec.Communications},
		{&c.additional, rec.Additional},
		{&c.result, rec.Result},
	} {
		if *f.dst, err = json.Marshal(f.v); err != nil {
			return c, err
		}
	}
	return c, nil
}
