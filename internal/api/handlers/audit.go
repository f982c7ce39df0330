// Package handlers provides HTTP handlers for the audit API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/drfirst/go-chartaudit/internal/api/middleware"
	"github.com/drfirst/go-chartaudit/internal/domain/audit"
	"github.com/drfirst/go-chartaudit/internal/extraction"
	"github.com/drfirst/go-chartaudit/internal/notification"
	"github.com/drfirst/go-chartaudit/internal/observability/metrics"
)

const maxBodyBytes = 32 << 20

// Store persists audit results.
type Store interface {
	Save(ctx context.Context, res *extraction.Result) (string, error)
	Load(ctx context.Context, id string) (*audit.Record, error)
}

// Notifier sends communications and reports what was already sent.
type Notifier interface {
	Send(ctx context.Context, req notification.Request) (notification.Outcome, error)
	Sent(ctx context.Context, auditID string, index int) (bool, error)
	SentIndices(ctx context.Context, auditID string) ([]int, error)
}

// AuditHandler handles audit endpoints
type AuditHandler struct {
	store    Store
	notifier Notifier
	options  extraction.Options
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAuditHandler creates a new handler. store and notifier may be nil when
// the service runs without a database; m may be nil in tests.
func NewAuditHandler(store Store, notifier Notifier, opts extraction.Options, m *metrics.Metrics, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{
		store:    store,
		notifier: notifier,
		options:  opts,
		metrics:  m,
		logger:   logger,
	}
}

// Routes returns the handler routes
func (h *AuditHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/communications", h.ListSent)
	r.Get("/{id}/communications/{index}", h.GetSent)
	r.Post("/{id}/communications/{index}/send", h.Send)
	return r
}

// CreateRequest is the request body for running an audit
type CreateRequest struct {
	PDFText  string `json:"pdfText"`
	FileName string `json:"nombreArchivo"`
}

// CreateResponse is the response for a completed audit
type CreateResponse struct {
	Success bool               `json:"success"`
	Result  *extraction.Result `json:"resultado"`
	AuditID string             `json:"auditoriaId,omitempty"`
}

// Create handles POST /audits
func (h *AuditHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("audit-handler")

	req, err := decodeCreate(w, r)
	if err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx, span := tracer.Start(ctx, "run_audit")
	span.SetAttributes(
		attribute.String("file_name", req.FileName),
		attribute.Int("text_length", len(req.PDFText)))
	start := time.Now()
	res, err := extraction.Audit(req.PDFText, req.FileName, h.options)
	took := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()

		var ie *extraction.InputError
		if errors.As(err, &ie) {
			if h.metrics != nil {
				h.metrics.AuditsRejected.WithLabelValues(ie.Field).Inc()
			}
			h.logger.Info("audit rejected",
				zap.String("field", ie.Field),
				zap.String("code", ie.Code),
				zap.String("request_id", middleware.GetRequestID(ctx)))
			h.jsonError(w, ie.Message, http.StatusBadRequest)
			return
		}
		h.logger.Error("audit failed", zap.Error(err))
		h.jsonError(w, "failed to audit document", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(
		attribute.Int("total_errors", res.TotalErrors),
		attribute.Int("communications", len(res.Communications)),
		attribute.String("status", string(res.Status)))
	span.End()

	if h.metrics != nil {
		h.metrics.ObserveAudit(res, took)
	}

	resp := CreateResponse{Success: true, Result: res}
	if h.store != nil {
		id, err := h.store.Save(ctx, res)
		if err != nil {
			if h.metrics != nil {
				h.metrics.PersistFailures.Inc()
			}
			h.logger.Error("save failed",
				zap.Error(err),
				zap.String("file_name", res.FileName),
				zap.String("request_id", middleware.GetRequestID(ctx)))
		} else {
			resp.AuditID = id
		}
	}

	h.logger.Info("audit completed",
		zap.String("id", resp.AuditID),
		zap.String("file_name", res.FileName),
		zap.String("status", string(res.Status)),
		zap.Int("total_errors", res.TotalErrors),
		zap.Int("communications", len(res.Communications)),
		zap.Duration("took", took),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	h.writeJSON(w, http.StatusOK, resp)
}

func decodeCreate(w http.ResponseWriter, r *http.Request) (CreateRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req CreateRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
				return req, err
			}
		} else if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.PDFText = r.FormValue("pdfText")
		req.FileName = r.FormValue("nombreArchivo")
		return req, nil
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
}

// Get handles GET /audits/{id}
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// ListSent handles GET /audits/{id}/communications
func (h *AuditHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		h.jsonError(w, "notifications not configured", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")

	indices, err := h.notifier.SentIndices(r.Context(), id)
	if err != nil {
		h.logger.Error("sent lookup failed", zap.String("id", id), zap.Error(err))
		h.jsonError(w, "failed to read notification status", http.StatusInternalServerError)
		return
	}
	if indices == nil {
		indices = []int{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"enviados": indices})
}

// GetSent handles GET /audits/{id}/communications/{index}
func (h *AuditHandler) GetSent(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		h.jsonError(w, "notifications not configured", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		h.jsonError(w, "invalid communication index", http.StatusBadRequest)
		return
	}

	sent, err := h.notifier.Sent(r.Context(), id, index)
	if err != nil {
		h.logger.Error("sent lookup failed", zap.String("id", id), zap.Int("index", index), zap.Error(err))
		h.jsonError(w, "failed to read notification status", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"enviado": sent})
}

// Send handles POST /audits/{id}/communications/{index}/send
func (h *AuditHandler) Send(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		h.jsonError(w, "notifications not configured", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		h.jsonError(w, "invalid communication index", http.StatusBadRequest)
		return
	}
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	if index >= len(rec.Communications) {
		h.jsonError(w, "communication not found", http.StatusNotFound)
		return
	}

	out, err := h.notifier.Send(ctx, notification.Request{
		AuditID:       rec.ID,
		Index:         index,
		Communication: rec.Communications[index],
		Patient: audit.PatientSummary{
			Name:       rec.PatientName,
			NationalID: rec.PatientID,
			Insurer:    rec.Insurer,
		},
		FileName: rec.FileName,
		Trigger:  notification.TriggerManual,
	})
	switch {
	case err != nil:
		h.writeJSON(w, http.StatusBadGateway, out)
	case out.AlreadySent, out.InProgress:
		h.writeJSON(w, http.StatusConflict, out)
	default:
		h.writeJSON(w, http.StatusOK, out)
	}
}

func (h *AuditHandler) load(w http.ResponseWriter, r *http.Request) (*audit.Record, bool) {
	if h.store == nil {
		h.jsonError(w, "storage not configured", http.StatusServiceUnavailable)
		return nil, false
	}
	id := chi.URLParam(r, "id")

	rec, err := h.store.Load(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		h.jsonError(w, "audit not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("load failed", zap.String("id", id), zap.Error(err))
		h.jsonError(w, "failed to load audit", http.StatusInternalServerError)
		return nil, false
	}
	return rec, true
}

func (h *AuditHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (h *AuditHandler) jsonError(w http.ResponseWriter, message string, code int) {
	h.writeJSON(w, code, map[string]string{"error": message})
}
