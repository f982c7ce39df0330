package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/drfirst/go-chartaudit/internal/domain/audit"
	"github.com/drfirst/go-chartaudit/internal/extraction"
	"github.com/drfirst/go-chartaudit/internal/notification"
	"github.com/drfirst/go-chartaudit/internal/observability/metrics"
)

const chart = `SANATORIO CENTRAL
Nombre: GOMEZ MARIA LAURA
DNI: 28456789
Obra social: OSDE
Fecha Ingreso: 01/03/2024 08:00
Visita 01/03/2024 09:00
Evolución médica diaria
Fecha Alta: 02/03/2024 10:00
Alta médica otorgada.
Epicrisis: paciente con buena evolución clínica.`

type memStore struct {
	records map[string]*audit.Record
	saveErr error
}

func (s *memStore) Save(_ context.Context, res *extraction.Result) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	rec := audit.NewRecord(res)
	rec.ID = "11111111-2222-3333-4444-555555555555"
	s.records[rec.ID] = rec
	return rec.ID, nil
}

func (s *memStore) Load(_ context.Context, id string) (*audit.Record, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, audit.ErrNotFound
	}
	return rec, nil
}

type stubNotifier struct {
	sent     map[int]bool
	sendErr  error
	inFlight bool
	last     notification.Request
}

func (n *stubNotifier) Send(_ context.Context, req notification.Request) (notification.Outcome, error) {
	n.last = req
	if n.sendErr != nil {
		return notification.Outcome{Error: n.sendErr.Error()}, n.sendErr
	}
	if n.inFlight {
		return notification.Outcome{InProgress: true}, nil
	}
	if n.sent[req.Index] {
		return notification.Outcome{AlreadySent: true}, nil
	}
	n.sent[req.Index] = true
	return notification.Outcome{Success: true, MessageID: "m-1"}, nil
}

func (n *stubNotifier) Sent(_ context.Context, _ string, index int) (bool, error) {
	return n.sent[index], nil
}

func (n *stubNotifier) SentIndices(_ context.Context, _ string) ([]int, error) {
	var out []int
	for i := range n.sent {
		out = append(out, i)
	}
	return out, nil
}

func newServer(t *testing.T, store Store, notifier Notifier) *httptest.Server {
	t.Helper()
	opts := extraction.Options{
		Now:                   func() time.Time { return time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC) },
		Location:              time.UTC,
		RequireSurgicalRecord: true,
	}
	h := NewAuditHandler(store, notifier, opts, metrics.New(prometheus.NewRegistry()), zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Mount("/api/v1/audits", h.Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, target string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(target, "application/json", strings.NewReader(string(b)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateAudit(t *testing.T) {
	store := &memStore{records: map[string]*audit.Record{}}
	srv := newServer(t, store, nil)

	resp := postJSON(t, srv.URL+"/api/v1/audits", CreateRequest{PDFText: chart, FileName: "gomez.pdf"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success bool               `json:"success"`
		Result  *extraction.Result `json:"resultado"`
		AuditID string             `json:"auditoriaId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	require.NotNil(t, out.Result)
	assert.Equal(t, "gomez.pdf", out.Result.FileName)
	assert.Equal(t, "28456789", out.Result.Patient.NationalID)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", out.AuditID)
	assert.Len(t, store.records, 1)
}

func TestCreateAuditFromForm(t *testing.T) {
	srv := newServer(t, nil, nil)

	form := url.Values{"pdfText": {chart}, "nombreArchivo": {"form.pdf"}}
	resp, err := http.PostForm(srv.URL+"/api/v1/audits", form)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["success"])
	assert.NotContains(t, out, "auditoriaId")
}

func TestCreateAuditRejectsInput(t *testing.T) {
	srv := newServer(t, nil, nil)

	cases := []struct {
		name string
		req  CreateRequest
		msg  string
	}{
		{"empty text", CreateRequest{FileName: "a.pdf"}, "Faltan datos requeridos"},
		{"empty file name", CreateRequest{PDFText: chart}, "Faltan datos requeridos"},
		{"no admission date", CreateRequest{PDFText: "Nombre: PEREZ JUAN\nsin fechas", FileName: "a.pdf"}, "No se pudo extraer la fecha de ingreso (dato obligatorio)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/v1/audits", tc.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var out map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, tc.msg, out["error"])
		})
	}
}

func TestCreateAuditSurvivesPersistFailure(t *testing.T) {
	srv := newServer(t, &memStore{saveErr: errors.New("db down")}, nil)

	resp := postJSON(t, srv.URL+"/api/v1/audits", CreateRequest{PDFText: chart, FileName: "gomez.pdf"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["success"])
	assert.NotNil(t, out["resultado"])
	assert.NotContains(t, out, "auditoriaId")
}

func TestGetAudit(t *testing.T) {
	store := &memStore{records: map[string]*audit.Record{}}
	srv := newServer(t, store, nil)
	postJSON(t, srv.URL+"/api/v1/audits", CreateRequest{PDFText: chart, FileName: "gomez.pdf"})

	resp, err := http.Get(srv.URL + "/api/v1/audits/11111111-2222-3333-4444-555555555555")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec audit.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "gomez.pdf", rec.FileName)
	assert.Equal(t, "OSDE", rec.Insurer)

	missing, err := http.Get(srv.URL + "/api/v1/audits/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestSendCommunication(t *testing.T) {
	store := &memStore{records: map[string]*audit.Record{}}
	notifier := &stubNotifier{sent: map[int]bool{}}
	srv := newServer(t, store, notifier)
	postJSON(t, srv.URL+"/api/v1/audits", CreateRequest{PDFText: chart, FileName: "gomez.pdf"})

	rec := store.records["11111111-2222-3333-4444-555555555555"]
	require.NotEmpty(t, rec.Communications)
	base := srv.URL + "/api/v1/audits/" + rec.ID + "/communications"

	resp := postJSON(t, base+"/0/send", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out notification.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, "m-1", out.MessageID)
	assert.Equal(t, notification.TriggerManual, notifier.last.Trigger)
	assert.Equal(t, "GOMEZ MARIA LAURA", notifier.last.Patient.Name)

	resp = postJSON(t, base+"/0/send", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, base+"/99/send", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, base+"/x/send", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, err := http.Get(base + "/0")
	require.NoError(t, err)
	defer status.Body.Close()
	var sent map[string]bool
	require.NoError(t, json.NewDecoder(status.Body).Decode(&sent))
	assert.True(t, sent["enviado"])

	list, err := http.Get(base)
	require.NoError(t, err)
	defer list.Body.Close()
	var indices map[string][]int
	require.NoError(t, json.NewDecoder(list.Body).Decode(&indices))
	assert.Equal(t, []int{0}, indices["enviados"])
}

func TestSendCommunicationFailure(t *testing.T) {
	store := &memStore{records: map[string]*audit.Record{}}
	srv := newServer(t, store, &stubNotifier{sent: map[int]bool{}, sendErr: errors.New("gateway down")})
	postJSON(t, srv.URL+"/api/v1/audits", CreateRequest{PDFText: chart, FileName: "gomez.pdf"})

	resp := postJSON(t, srv.URL+"/api/v1/audits/11111111-2222-3333-4444-555555555555/communications/0/send", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "gateway down", out["error"])
}

func TestSendCommunicationInFlight(t *testing.T) {
	store := &memStore{records: map[string]*audit.Record{}}
	srv := newServer(t, store, &stubNotifier{sent: map[int]bool{}, inFlight: true})
	postJSON(t, srv.URL+"/api/v1/audits", CreateRequest{PDFText: chart, FileName: "gomez.pdf"})

	resp := postJSON(t, srv.URL+"/api/v1/audits/11111111-2222-3333-4444-555555555555/communications/0/send", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, true, out["inProgress"])
	assert.NotContains(t, out, "alreadySent")
}
