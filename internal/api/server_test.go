package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/eventpass/internal/domain"
	"github.com/ignite/eventpass/internal/errlog"
	"github.com/ignite/eventpass/internal/metrics"
)

type stubReader struct {
	all     []domain.Attendee
	pending []domain.Attendee
	err     error
}

func (s *stubReader) List(context.Context) ([]domain.Attendee, error) {
	return s.all, s.err
}

func (s *stubReader) ListEmailNotSent(context.Context) ([]domain.Attendee, error) {
	return s.pending, s.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	s := NewServer(&stubReader{}, errlog.NewMemory(10), nil)
	rec := get(t, s.Handler(), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}

func TestRecentErrors(t *testing.T) {
	log := errlog.NewMemory(10)
	log.Add(context.Background(), "sheet", "read failed")
	log.Add(context.Background(), "email", "smtp timeout")

	rec := get(t, NewServer(&stubReader{}, log, nil).Handler(), "/errors")
	require.Equal(t, http.StatusOK, rec.Code)

	var body errorsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "email", body.Errors[0].Source)
	assert.Equal(t, "smtp timeout", body.Errors[0].Message)
}

func TestRecentErrors_Empty(t *testing.T) {
	rec := get(t, NewServer(&stubReader{}, nil, nil).Handler(), "/errors")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"errors":[]}`, rec.Body.String())
}

func TestAttendees(t *testing.T) {
	reader := &stubReader{
		all: []domain.Attendee{
			{ID: "a1", Name: "Ana", Email: "ana@example.com", EmailStatus: domain.EmailSent},
			{ID: "b2", Name: "Ben", Email: "ben@example.com", EmailStatus: domain.EmailFailed},
		},
		pending: []domain.Attendee{
			{ID: "b2", Name: "Ben", Email: "ben@example.com", EmailStatus: domain.EmailFailed},
		},
	}
	h := NewServer(reader, nil, nil).Handler()

	tests := []struct {
		path    string
		wantIDs []string
	}{
		{"/attendees", []string{"a1", "b2"}},
		{"/attendees/pending", []string{"b2"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)

			var body attendeesResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, len(tt.wantIDs), body.Count)
			var ids []string
			for _, a := range body.Attendees {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestAttendees_StoreError(t *testing.T) {
	h := NewServer(&stubReader{err: errors.New("connection refused")}, nil, nil).Handler()

	rec := get(t, h, "/attendees/pending")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RowProcessed("sent")

	h := NewServer(&stubReader{}, nil, reg).Handler()
	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eventpass_")

	rec = get(t, NewServer(&stubReader{}, nil, nil).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewServer(&stubReader{}, nil, nil).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/attendees", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
