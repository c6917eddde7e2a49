package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-hackreg/internal/gateway"
	"github.com/noah-isme/backend-hackreg/internal/store"
)

func newTestRouter(f *fixture) http.Handler {
	h := &Handler{Svc: f.svc, Validate: validator.New()}
	r := chi.NewRouter()
	r.Route("/v1/payments/{teamId}", func(p chi.Router) {
		p.Post("/order", h.Order)
		p.Post("/verify", h.Verify)
		p.Get("/status", h.Status)
		p.Get("/attempts", h.Attempts)
	})
	return r
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %s", rec.Body.String())
	return data
}

func TestOrderEndpointFreeEvent(t *testing.T) {
	f := newFixture(0, 3)
	router := newTestRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/order", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, string(store.PaymentSuccess), data["status"])
	assert.Equal(t, gateway.FreeReference, data["externalReference"])
}

func TestOrderEndpointHosted(t *testing.T) {
	f := newFixture(1000, 2)
	router := newTestRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/order", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, string(store.PaymentPending), data["status"])
	assert.Equal(t, "https://pay.example.com/checkout/abc", data["checkoutUrl"])
}

func TestOrderEndpointAlreadyPaid(t *testing.T) {
	f := newFixture(1000, 2)
	team := f.registry.team("team-1")
	team.PaymentStatus = store.PaymentSuccess
	f.registry.teams["team-1"] = team
	router := newTestRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/order", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_PAID")
}

func TestOrderEndpointUnknownTeam(t *testing.T) {
	f := newFixture(1000, 2)
	router := newTestRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/nope/order", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyEndpointMockFlow(t *testing.T) {
	f := newFixture(1500, 2)
	f.svc.MockEnabled = true
	router := newTestRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/order", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := strings.NewReader(`{"confirmation":"upi-txn-42"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/verify", body)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, string(store.PaymentSuccess), data["status"])
	assert.Equal(t, "upi-txn-42", data["gatewayTransactionId"])
}

func TestVerifyEndpointRejectsMalformedBody(t *testing.T) {
	f := newFixture(1000, 2)
	router := newTestRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/verify", strings.NewReader("{bad"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndpointNoAttempt(t *testing.T) {
	f := newFixture(1000, 2)
	router := newTestRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_ATTEMPT_FOUND")
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(1000, 2)
	router := newTestRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/order", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/team-1/status", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, string(store.PaymentPending), data["status"])
}

func TestAttemptsEndpoint(t *testing.T) {
	f := newFixture(1000, 2)
	router := newTestRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/payments/team-1/order", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/team-1/attempts", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	items, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	first, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(store.IntentCreated), first["status"])
	assert.Equal(t, "500.00", first["amount"])
}
