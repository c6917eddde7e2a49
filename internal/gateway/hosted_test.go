package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-hackreg/internal/resilience"
)

func newHosted(t *testing.T, handler http.HandlerFunc) HostedCheckout {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return HostedCheckout{
		HTTP:        resilience.HTTPClient{Client: srv.Client(), Timeout: 2 * time.Second},
		Signer:      Signer{SaltKey: "unit-salt", SaltIndex: "1"},
		BaseURL:     srv.URL,
		MerchantID:  "MERCHANT1",
		RedirectURL: "https://app.example/payments/return",
	}
}

func TestCreateIntentSignsAndParsesRedirect(t *testing.T) {
	signer := Signer{SaltKey: "unit-salt", SaltIndex: "1"}
	var seenPayload payPayload

	h := newHosted(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, payPath, r.URL.Path)

		var body struct {
			Request string `json:"request"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.True(t, signer.Verify(body.Request+payPath, r.Header.Get("X-VERIFY")),
			"X-VERIFY must cover base64 payload + api path")

		raw, err := base64.StdEncoding.DecodeString(body.Request)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &seenPayload))

		resp := map[string]any{
			"success": true,
			"code":    "PAYMENT_INITIATED",
			"data": map[string]any{
				"instrumentResponse": map[string]any{
					"redirectInfo": map[string]any{"url": "https://pay.example/checkout/abc"},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	intent, err := h.CreateIntent(context.Background(), IntentRequest{TeamID: "team-1", AmountMinor: 50000})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/checkout/abc", intent.CheckoutURL)
	assert.True(t, strings.HasPrefix(intent.Reference, "REG"))
	assert.Equal(t, intent.Reference, seenPayload.MerchantTransactionID)
	assert.Equal(t, int64(50000), seenPayload.Amount)
	assert.Equal(t, "MERCHANT1", seenPayload.MerchantID)
	assert.Equal(t, "PAY_PAGE", seenPayload.PaymentInstrument.Type)
}

func TestCreateIntentMintsFreshReferences(t *testing.T) {
	h := newHosted(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{"instrumentResponse": map[string]any{
				"redirectInfo": map[string]any{"url": "https://pay.example/x"},
			}},
		})
	})
	first, err := h.CreateIntent(context.Background(), IntentRequest{AmountMinor: 100})
	require.NoError(t, err)
	second, err := h.CreateIntent(context.Background(), IntentRequest{AmountMinor: 100})
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference, second.Reference)
}

func TestCreateIntentRejected(t *testing.T) {
	h := newHosted(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "code": "KEY_NOT_CONFIGURED", "message": "bad merchant"})
	})
	_, err := h.CreateIntent(context.Background(), IntentRequest{AmountMinor: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestCreateIntentTransportFailureIsHard(t *testing.T) {
	h := newHosted(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := h.CreateIntent(context.Background(), IntentRequest{AmountMinor: 100})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
}

func TestCreateIntentMalformedBodyIsHard(t *testing.T) {
	h := newHosted(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})
	_, err := h.CreateIntent(context.Background(), IntentRequest{AmountMinor: 100})
	require.Error(t, err)
}

func TestFetchStatusSignsPathAndNormalises(t *testing.T) {
	signer := Signer{SaltKey: "unit-salt", SaltIndex: "1"}
	h := newHosted(t, func(w http.ResponseWriter, r *http.Request) {
		wantPath := statusPathBase + "/MERCHANT1/REGABC"
		require.Equal(t, wantPath, r.URL.Path)
		require.True(t, signer.Verify(wantPath, r.Header.Get("X-VERIFY")))
		require.Equal(t, "MERCHANT1", r.Header.Get("X-MERCHANT-ID"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    "PAYMENT_SUCCESS",
			"data": map[string]any{
				"transactionId": "T2408291234",
				"state":         "COMPLETED",
				"responseCode":  "SUCCESS",
				"amount":        50000,
			},
		})
	})

	snap, err := h.FetchStatus(context.Background(), StatusQuery{Reference: "REGABC"})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, "T2408291234", snap.GatewayTransactionID)
	require.NotNil(t, snap.AmountMinor)
	assert.Equal(t, int64(50000), *snap.AmountMinor)
}

func TestFetchStatusUnknownStateStaysPending(t *testing.T) {
	h := newHosted(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"state": "BRAND_NEW_STATE", "responseCode": "NOVEL"},
		})
	})
	snap, err := h.FetchStatus(context.Background(), StatusQuery{Reference: "REGABC"})
	require.NoError(t, err)
	assert.Equal(t, StatePending, snap.State)
}

func TestReadyRejectsPlaceholderCredentials(t *testing.T) {
	h := HostedCheckout{BaseURL: "https://pay.example", MerchantID: "REPLACE_ME", Signer: Signer{SaltKey: "k"}}
	require.Error(t, h.Ready())

	h = HostedCheckout{BaseURL: "https://pay.example", MerchantID: "MID", Signer: Signer{SaltKey: "   "}}
	require.Error(t, h.Ready())

	h = HostedCheckout{BaseURL: "https://pay.example", MerchantID: "MID", Signer: Signer{SaltKey: "real-salt"}}
	require.NoError(t, h.Ready())
}
