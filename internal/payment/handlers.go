package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-hackreg/internal/common"
	"github.com/noah-isme/backend-hackreg/internal/store"
)

// Handler exposes the payment lifecycle over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// VerifyRequest is the body of a verification call. Both fields are optional:
// the reference falls back to the team's recorded attempt.
type VerifyRequest struct {
	ExternalReference string `json:"externalReference" validate:"omitempty,max=64"`
	Confirmation      string `json:"confirmation" validate:"omitempty,max=128"`
}

type attemptView struct {
	ID                   string     `json:"id"`
	Amount               string     `json:"amount"`
	Currency             string     `json:"currency"`
	ExternalReference    string     `json:"externalReference"`
	GatewayTransactionID string     `json:"gatewayTransactionId,omitempty"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"createdAt"`
	VerifiedAt           *time.Time `json:"verifiedAt,omitempty"`
}

// Order opens a payment attempt for the team.
func (h *Handler) Order(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	teamID := chi.URLParam(r, "teamId")
	if teamID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "team id is required", nil)
		return
	}
	out, err := h.Svc.CreateOrder(r.Context(), teamID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if out.Status == store.PaymentSuccess {
		status = http.StatusOK
	}
	common.JSON(w, status, map[string]any{"data": out})
}

// Verify reconciles the team's attempt with the gateway.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	teamID := chi.URLParam(r, "teamId")
	if teamID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "team id is required", nil)
		return
	}
	var payload VerifyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
			return
		}
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
			return
		}
	}
	out, err := h.Svc.Verify(r.Context(), teamID, VerifyInput{
		ExternalReference: payload.ExternalReference,
		Confirmation:      payload.Confirmation,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Status reports the team's current projection.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	teamID := chi.URLParam(r, "teamId")
	out, err := h.Svc.Status(r.Context(), teamID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Attempts lists the team's payment history.
func (h *Handler) Attempts(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	teamID := chi.URLParam(r, "teamId")
	attempts, err := h.Svc.Attempts(r.Context(), teamID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, attemptView{
			ID:                   a.ID,
			Amount:               a.Amount.StringFixed(2),
			Currency:             a.Currency,
			ExternalReference:    a.ExternalReference,
			GatewayTransactionID: a.GatewayTransactionID,
			Status:               string(a.Status),
			CreatedAt:            a.CreatedAt,
			VerifiedAt:           a.VerifiedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
