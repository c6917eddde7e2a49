package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-hackreg/internal/obs"
	"github.com/noah-isme/backend-hackreg/internal/resilience"
)

const (
	payPath        = "/pg/v1/pay"
	statusPathBase = "/pg/v1/status"
)

// HostedCheckout integrates with the hosted-checkout gateway: a signed
// base64 JSON payload opens an intent and returns a redirect URL; a signed GET
// reconciles the transaction state.
type HostedCheckout struct {
	HTTP       resilience.HTTPClient
	Signer     Signer
	BaseURL    string
	MerchantID string
	// RedirectURL is where the gateway sends the payer back after checkout.
	RedirectURL string
}

// Name implements Client.
func (h HostedCheckout) Name() string { return "hosted_checkout" }

// Ready implements Client. Blank or placeholder credentials are a
// configuration error, surfaced before any network call is attempted.
func (h HostedCheckout) Ready() error {
	if invalidCredential(h.MerchantID) || invalidCredential(h.Signer.SaltKey) {
		return fmt.Errorf("gateway is not configured: set GATEWAY_MERCHANT_ID and GATEWAY_SALT_KEY, then restart")
	}
	if strings.TrimSpace(h.BaseURL) == "" {
		return fmt.Errorf("gateway is not configured: GATEWAY_BASE_URL is required")
	}
	return nil
}

type payInstrument struct {
	Type string `json:"type"`
}

type payPayload struct {
	MerchantID            string        `json:"merchantId"`
	MerchantTransactionID string        `json:"merchantTransactionId"`
	Amount                int64         `json:"amount"`
	RedirectURL           string        `json:"redirectUrl,omitempty"`
	RedirectMode          string        `json:"redirectMode,omitempty"`
	PaymentInstrument     payInstrument `json:"paymentInstrument"`
}

type payResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		InstrumentResponse struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

// CreateIntent implements Client. It mints a fresh merchant transaction
// reference, signs the base64 payload together with the pay path, and returns
// the checkout redirect URL.
func (h HostedCheckout) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	reference := mintReference()
	redirect := strings.TrimSpace(req.RedirectURL)
	if redirect == "" {
		redirect = h.RedirectURL
	}
	payload := payPayload{
		MerchantID:            h.MerchantID,
		MerchantTransactionID: reference,
		Amount:                req.AmountMinor,
		RedirectURL:           redirect,
		RedirectMode:          "REDIRECT",
		PaymentInstrument:     payInstrument{Type: "PAY_PAGE"},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Intent{}, fmt.Errorf("gateway: encode pay payload: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return Intent{}, fmt.Errorf("gateway: encode pay body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+payPath, bytes.NewReader(body))
	if err != nil {
		return Intent{}, fmt.Errorf("gateway: build pay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", h.Signer.Sign(encoded+payPath))

	var parsed payResponse
	if err := h.call(ctx, httpReq, "create_intent", &parsed); err != nil {
		return Intent{}, err
	}
	checkoutURL := strings.TrimSpace(parsed.Data.InstrumentResponse.RedirectInfo.URL)
	if !parsed.Success || checkoutURL == "" {
		return Intent{}, fmt.Errorf("%w: %s %s", ErrRejected, parsed.Code, parsed.Message)
	}
	return Intent{Reference: reference, CheckoutURL: checkoutURL}, nil
}

type statusResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TransactionID string `json:"transactionId"`
		State         string `json:"state"`
		ResponseCode  string `json:"responseCode"`
		Amount        *int64 `json:"amount"`
	} `json:"data"`
}

// FetchStatus implements Client. The status path itself is the signable
// string for the X-VERIFY header.
func (h HostedCheckout) FetchStatus(ctx context.Context, q StatusQuery) (StatusSnapshot, error) {
	statusPath := fmt.Sprintf("%s/%s/%s", statusPathBase, h.MerchantID, q.Reference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.BaseURL+statusPath, nil)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("gateway: build status request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", h.Signer.Sign(statusPath))
	httpReq.Header.Set("X-MERCHANT-ID", h.MerchantID)

	var parsed statusResponse
	if err := h.call(ctx, httpReq, "fetch_status", &parsed); err != nil {
		return StatusSnapshot{}, err
	}
	return StatusSnapshot{
		State:                NormalizeState(parsed.Data.State, parsed.Data.ResponseCode),
		GatewayTransactionID: strings.TrimSpace(parsed.Data.TransactionID),
		ResponseCode:         strings.TrimSpace(parsed.Data.ResponseCode),
		AmountMinor:          parsed.Data.Amount,
		Message:              strings.TrimSpace(parsed.Message),
	}, nil
}

// call executes the request and decodes the JSON response. Any non-2xx status
// or undecodable payload is a hard failure, never a silent PENDING.
func (h HostedCheckout) call(ctx context.Context, req *http.Request, operation string, out any) error {
	start := time.Now()
	result := "error"
	defer func() {
		if obs.GatewayRequestDuration != nil {
			obs.GatewayRequestDuration.WithLabelValues(operation, result).Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	resp, err := h.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("gateway: %s: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gateway: %s: read response: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway: %s: unexpected status %d", operation, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("gateway: %s: decode response: %w", operation, err)
	}
	result = "ok"
	return nil
}

func invalidCredential(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	return strings.Contains(strings.ToLower(trimmed), "replace")
}

func mintReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REG" + strings.ToUpper(raw[:24])
}
