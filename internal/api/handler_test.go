package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-registration/internal/api"
	"ms-registration/internal/auth"
	"ms-registration/internal/counters"
	"ms-registration/internal/models"
	"ms-registration/internal/reconcile"
	"ms-registration/internal/registration"
	"ms-registration/internal/store/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

const (
	webhookKey = "hook-key"
	adminKey   = "admin-key"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	router http.Handler
	token  string
}

func setupServer(t *testing.T) *testServer {
	d, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	svc := registration.NewService(d, nil, nil, nil)
	job := reconcile.NewJob(d, nil, nil)
	h := api.NewHandler(svc, job, nil)

	token, err := auth.SignHMAC(secret, "staff-1", time.Hour)
	require.NoError(t, err)

	return &testServer{
		router: api.NewRouter(h, api.RouterOptions{
			Verifier:      &auth.HMACVerifier{Secret: secret},
			WebhookAPIKey: webhookKey,
			AdminAPIKey:   adminKey,
		}),
		token: token,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func (s *testServer) authed(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	return s.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + s.token})
}

func (s *testServer) register(t *testing.T, body string) {
	rr, _ := s.do(t, http.MethodPost, "/v1/E/webhook", body, map[string]string{"x-api-key": webhookKey})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func decodeRecord(t *testing.T, env envelope) models.Record {
	var rec models.Record
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	return rec
}

func decodeCounters(t *testing.T, env envelope) counters.Snapshot {
	var snap counters.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	return snap
}

const riderForm = `{"email":"rider@example.com","driverName":"Rui","phoneNumber":"910000000","vehicleType":"Mota","guestsNames":"Ana"}`

func TestHealth(t *testing.T) {
	s := setupServer(t)
	rr, env := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)
}

func TestWebhookRequiresAPIKey(t *testing.T) {
	s := setupServer(t)

	rr, env := s.do(t, http.MethodPost, "/v1/E/webhook", riderForm, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, env.Success)

	rr, _ = s.do(t, http.MethodPost, "/v1/E/webhook", riderForm, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	s := setupServer(t)
	rr, _ := s.do(t, http.MethodPost, "/v1/E/webhook", `{"driverName":"x"}`, map[string]string{"x-api-key": webhookKey})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBearerRequired(t *testing.T) {
	s := setupServer(t)

	rr, _ := s.do(t, http.MethodGet, "/v1/E/counters", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = s.do(t, http.MethodGet, "/v1/E/counters", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestParticipantFlowOverHTTP(t *testing.T) {
	s := setupServer(t)
	s.register(t, riderForm)

	rr, env := s.authed(t, http.MethodGet, "/v1/E/rider@example.com", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decodeRecord(t, env)
	assert.Equal(t, models.VehicleMotorcycle, rec.VehicleType)
	assert.Equal(t, 2, rec.Participants())

	rr, env = s.authed(t, http.MethodGet, "/v1/E/phone/910000000", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "rider@example.com", decodeRecord(t, env).UserEmail)

	rr, env = s.authed(t, http.MethodPut, "/v1/E/rider@example.com", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rec = decodeRecord(t, env)
	assert.True(t, rec.CheckedIn)
	last := rec.Metadata.ChangeHistory[len(rec.Metadata.ChangeHistory)-1]
	assert.Equal(t, "User checked in by staff-1", last.Description)

	rr, _ = s.authed(t, http.MethodPut, "/v2/E/rider@example.com/checkin", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, env = s.authed(t, http.MethodPut, "/v1/E/rider@example.com/payment", `{"amount":25}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rec = decodeRecord(t, env)
	assert.True(t, rec.Paid)
	last = rec.Metadata.ChangeHistory[len(rec.Metadata.ChangeHistory)-1]
	assert.Equal(t, "Payment confirmed: 25.00 by staff-1", last.Description)

	rr, env = s.authed(t, http.MethodGet, "/v1/E/counters", "")
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeCounters(t, env)
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, int64(1), snap.TotalMotorcycle)
	assert.Equal(t, int64(1), snap.CheckedInMotorcycle)
	assert.Equal(t, int64(1), snap.PaidMotorcycle)
	assert.Equal(t, int64(2), snap.ParticipantsCheckedIn)
	assert.Equal(t, int64(0), snap.ParticipantsNotCheckedIn)

	rr, _ = s.authed(t, http.MethodDelete, "/v2/E/rider@example.com/checkin", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = s.authed(t, http.MethodDelete, "/v1/E/rider@example.com", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	_, env = s.authed(t, http.MethodGet, "/v1/E/counters", "")
	snap = decodeCounters(t, env)
	assert.Equal(t, int64(0), snap.CheckedInMotorcycle)
	assert.Equal(t, int64(2), snap.ParticipantsNotCheckedIn)
}

func TestUpdateOverHTTP(t *testing.T) {
	s := setupServer(t)
	s.register(t, riderForm)

	rr, env := s.authed(t, http.MethodPut, "/v2/E/rider@example.com", `{"vehicleType":"quad","metadata":{"comment":"late"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decodeRecord(t, env)
	assert.Equal(t, models.VehicleQuad, rec.VehicleType)
	assert.Equal(t, "late", rec.Metadata.Comment)

	_, env = s.authed(t, http.MethodGet, "/v1/E/counters", "")
	snap := decodeCounters(t, env)
	assert.Equal(t, int64(0), snap.TotalMotorcycle)
	assert.Equal(t, int64(1), snap.TotalQuad)

	rr, _ = s.authed(t, http.MethodPut, "/v2/E/rider@example.com", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotFoundMapping(t *testing.T) {
	s := setupServer(t)

	rr, env := s.authed(t, http.MethodGet, "/v1/E/ghost@example.com", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.False(t, env.Success)

	rr, _ = s.authed(t, http.MethodPut, "/v1/E/ghost@example.com/payment", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = s.authed(t, http.MethodGet, "/v1/E/phone/000", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestResendEmail(t *testing.T) {
	s := setupServer(t)
	s.register(t, riderForm)

	rr, _ := s.authed(t, http.MethodPost, "/v1/E/rider@example.com/email/"+registration.TemplateUserRegistration, "")
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr, _ = s.authed(t, http.MethodPost, "/v1/E/rider@example.com/email/unknown-template", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminReconcile(t *testing.T) {
	s := setupServer(t)
	s.register(t, riderForm)

	rr, _ := s.authed(t, http.MethodPost, "/v1/admin/reconcile-counters/E", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, env := s.do(t, http.MethodPost, "/v1/admin/reconcile-counters/E", "", map[string]string{"x-api-key": adminKey})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res reconcile.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, reconcile.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.RecordsScanned)
	assert.Equal(t, res.Before, res.After)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
