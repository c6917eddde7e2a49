// Package payment drives the registration payment lifecycle: opening an
// intent with a provider, reconciling it against the gateway's record and
// projecting the outcome onto the team.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-hackreg/internal/common"
	"github.com/noah-isme/backend-hackreg/internal/events"
	"github.com/noah-isme/backend-hackreg/internal/fee"
	"github.com/noah-isme/backend-hackreg/internal/gateway"
	"github.com/noah-isme/backend-hackreg/internal/notify"
	"github.com/noah-isme/backend-hackreg/internal/obs"
	"github.com/noah-isme/backend-hackreg/internal/store"
)

const tracerName = "payment"

// maxReferenceRetries bounds regeneration after an external-reference collision.
const maxReferenceRetries = 3

// LedgerStore is the slice of the attempt log the orchestrator needs.
type LedgerStore interface {
	LatestAttempt(ctx context.Context, teamID string) (store.PaymentIntent, error)
	FindByExternalReference(ctx context.Context, ref string) (store.PaymentIntent, error)
	ListByTeam(ctx context.Context, teamID string) ([]store.PaymentIntent, error)
	Save(ctx context.Context, intent store.PaymentIntent) (store.PaymentIntent, error)
	AppendEvent(ctx context.Context, paymentID string, status store.IntentStatus, payload []byte) error
}

// ReadModel resolves teams and events and accepts projection writes.
type ReadModel interface {
	TeamByID(ctx context.Context, id string) (store.Team, error)
	EventByID(ctx context.Context, id string) (store.Event, error)
	UpdatePaymentProjection(ctx context.Context, teamID string, p store.PaymentProjection) error
}

// Service is the payment orchestrator. It owns every state transition on a
// team's payment attempts; nothing else writes the projection.
type Service struct {
	Ledger      LedgerStore
	Registry    ReadModel
	Fee         fee.Calculator
	Free        gateway.Client
	Mock        gateway.Client
	Hosted      gateway.Client
	MockEnabled bool
	Currency    string
	RedirectURL string
	Bus         *events.Bus
	Logger      zerolog.Logger

	now func() time.Time
}

// OrderResult is the outcome of opening (or short-circuiting) a payment order.
type OrderResult struct {
	Status            store.ProjectionStatus `json:"status"`
	ExternalReference string                 `json:"externalReference"`
	CheckoutURL       string                 `json:"checkoutUrl,omitempty"`
	Amount            decimal.Decimal        `json:"amount"`
	Currency          string                 `json:"currency"`
	Provider          string                 `json:"provider"`
	Message           string                 `json:"message,omitempty"`
}

// VerifyInput carries the caller's side of a verification request.
// Confirmation is the caller-confirmed transaction id, meaningful only for
// mock-mode attempts.
type VerifyInput struct {
	ExternalReference string
	Confirmation      string
}

// VerifyResult is the outcome of a reconciliation pass. A FAILED or PENDING
// status is a legitimate result, not an error.
type VerifyResult struct {
	Status               store.ProjectionStatus `json:"status"`
	ExternalReference    string                 `json:"externalReference"`
	GatewayTransactionID string                 `json:"gatewayTransactionId,omitempty"`
	Message              string                 `json:"message,omitempty"`
}

// CreateOrder opens a payment attempt for the team. Free registrations are
// captured immediately; paid ones come back PENDING with provider details the
// caller needs to complete checkout.
func (s *Service) CreateOrder(ctx context.Context, teamID string) (OrderResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "payment.create_order",
		trace.WithAttributes(attribute.String("team.id", teamID)))
	defer span.End()

	team, event, err := s.resolve(ctx, teamID)
	if err != nil {
		return OrderResult{}, err
	}
	if team.PaymentStatus == store.PaymentSuccess {
		s.countOrder("none", "already_paid")
		return OrderResult{}, common.NewAppError(common.CodeAlreadyPaid,
			"registration fee already paid for this team", http.StatusConflict, nil)
	}

	amount := s.Fee.Payable(event.RegistrationFee, team.TeamSize)
	provider, err := s.orderProvider(amount)
	if err != nil {
		s.countOrder("hosted", "config_error")
		return OrderResult{}, err
	}
	span.SetAttributes(attribute.String("payment.provider", provider.Name()))

	if amount.IsZero() {
		return s.captureFree(ctx, team, event, provider)
	}

	intent, saved, err := s.openIntent(ctx, team, event, provider, amount)
	if err != nil {
		s.countOrder(provider.Name(), "error")
		return OrderResult{}, err
	}

	projection := store.PaymentProjection{
		PaymentStatus:     store.PaymentPending,
		ExternalReference: saved.ExternalReference,
		PaymentRecordID:   saved.ID,
	}
	if err := s.Registry.UpdatePaymentProjection(ctx, team.ID, projection); err != nil {
		return OrderResult{}, fmt.Errorf("payment: project pending order: %w", err)
	}

	s.countOrder(provider.Name(), "pending")
	s.Logger.Info().Str("team_id", team.ID).Str("provider", provider.Name()).
		Str("reference", saved.ExternalReference).Str("amount", saved.Amount.StringFixed(2)).
		Msg("payment order created")
	return OrderResult{
		Status:            store.PaymentPending,
		ExternalReference: saved.ExternalReference,
		CheckoutURL:       intent.CheckoutURL,
		Amount:            saved.Amount,
		Currency:          saved.Currency,
		Provider:          provider.Name(),
	}, nil
}

// Verify reconciles the team's open attempt against the gateway's record and
// writes the terminal state when one is reached. Repeating it after success is
// a no-op.
func (s *Service) Verify(ctx context.Context, teamID string, input VerifyInput) (VerifyResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "payment.verify",
		trace.WithAttributes(attribute.String("team.id", teamID)))
	defer span.End()

	team, event, err := s.resolve(ctx, teamID)
	if err != nil {
		return VerifyResult{}, err
	}
	if team.PaymentStatus == store.PaymentSuccess {
		s.countVerify("none", "already_success")
		return VerifyResult{
			Status:               store.PaymentSuccess,
			ExternalReference:    team.ExternalReference,
			GatewayTransactionID: team.GatewayTransactionID,
			Message:              "payment already verified",
		}, nil
	}

	ref := input.ExternalReference
	if ref == "" {
		ref = team.ExternalReference
	}
	if ref == "" {
		s.countVerify("none", "no_attempt")
		return VerifyResult{}, common.NewAppError(common.CodeNoAttempt,
			"no payment attempt found for this team", http.StatusNotFound, nil)
	}
	if team.ExternalReference != "" && ref != team.ExternalReference {
		s.countVerify("none", "reference_mismatch")
		return VerifyResult{}, common.NewAppError(common.CodeReferenceMismatch,
			"supplied reference does not belong to this team", http.StatusConflict, nil)
	}

	provider, err := s.verifyProvider(ref)
	if err != nil {
		s.countVerify("hosted", "config_error")
		return VerifyResult{}, err
	}
	span.SetAttributes(attribute.String("payment.provider", provider.Name()))

	expected := s.Fee.Payable(event.RegistrationFee, team.TeamSize)

	snapshot, err := provider.FetchStatus(ctx, gateway.StatusQuery{Reference: ref, Confirmation: input.Confirmation})
	if err != nil {
		s.countVerify(provider.Name(), "transport_error")
		if errors.Is(err, gateway.ErrRejected) {
			return VerifyResult{}, common.NewAppError(common.CodeGatewayRejected,
				"gateway rejected the status query", http.StatusBadGateway, err)
		}
		return VerifyResult{}, common.NewAppError(common.CodeGatewayTransport,
			"could not reach the payment gateway, retry verification", http.StatusBadGateway, err)
	}

	if snapshot.AmountMinor != nil && *snapshot.AmountMinor != fee.MinorUnits(expected) {
		s.countVerify(provider.Name(), "amount_mismatch")
		return VerifyResult{}, common.NewAppError(common.CodeAmountMismatch,
			"gateway-reported amount disagrees with the registration fee", http.StatusConflict,
			fmt.Errorf("payment: gateway reported %d, expected %d minor units",
				*snapshot.AmountMinor, fee.MinorUnits(expected)))
	}

	intent, err := s.Ledger.FindByExternalReference(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.countVerify(provider.Name(), "no_attempt")
			return VerifyResult{}, common.NewAppError(common.CodeNoAttempt,
				"no payment attempt found for this reference", http.StatusNotFound, nil)
		}
		return VerifyResult{}, fmt.Errorf("payment: load attempt: %w", err)
	}

	// Terminal intents are never re-opened; report what the ledger already
	// knows instead of overwriting it.
	switch intent.Status {
	case store.IntentCaptured:
		s.countVerify(provider.Name(), "already_success")
		return VerifyResult{
			Status:               store.PaymentSuccess,
			ExternalReference:    intent.ExternalReference,
			GatewayTransactionID: intent.GatewayTransactionID,
			Message:              "payment already verified",
		}, nil
	case store.IntentFailed:
		s.countVerify(provider.Name(), "already_failed")
		return VerifyResult{
			Status:            store.PaymentFailed,
			ExternalReference: intent.ExternalReference,
			Message:           "payment attempt already failed, create a new order to retry",
		}, nil
	}

	// The amount recorded when the order was opened must still match the fee
	// recomputed from current team and event state; a fee edit mid-flight
	// voids the attempt instead of capturing at the stale amount.
	if !intent.Amount.Equal(expected) {
		s.countVerify(provider.Name(), "amount_mismatch")
		return VerifyResult{}, common.NewAppError(common.CodeAmountMismatch,
			"recorded attempt amount disagrees with the registration fee", http.StatusConflict,
			fmt.Errorf("payment: attempt recorded %s, expected %s",
				intent.Amount.StringFixed(2), expected.StringFixed(2)))
	}

	switch snapshot.State {
	case gateway.StateSuccess:
		return s.settleSuccess(ctx, team, event, intent, snapshot, provider.Name())
	case gateway.StateFailed:
		return s.settleFailure(ctx, team, intent, snapshot, provider.Name())
	default:
		return s.recordPending(ctx, team, intent, snapshot, provider.Name())
	}
}

// Status returns the team's current payment state without touching the
// gateway. A blank projection is backfilled from the ledger's latest attempt;
// a team that never ordered reports no attempt at all.
func (s *Service) Status(ctx context.Context, teamID string) (VerifyResult, error) {
	team, err := s.Registry.TeamByID(ctx, teamID)
	if err != nil {
		return VerifyResult{}, mapLookupErr(err, "team")
	}
	if team.PaymentStatus != "" {
		return VerifyResult{
			Status:               team.PaymentStatus,
			ExternalReference:    team.ExternalReference,
			GatewayTransactionID: team.GatewayTransactionID,
		}, nil
	}

	latest, err := s.Ledger.LatestAttempt(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, common.NewAppError(common.CodeNoAttempt,
				"no payment attempt found for this team", http.StatusNotFound, nil)
		}
		return VerifyResult{}, fmt.Errorf("payment: load latest attempt: %w", err)
	}
	return VerifyResult{
		Status:               projectIntentStatus(latest.Status),
		ExternalReference:    latest.ExternalReference,
		GatewayTransactionID: latest.GatewayTransactionID,
	}, nil
}

func projectIntentStatus(status store.IntentStatus) store.ProjectionStatus {
	switch status {
	case store.IntentCaptured:
		return store.PaymentSuccess
	case store.IntentFailed:
		return store.PaymentFailed
	default:
		return store.PaymentPending
	}
}

// Attempts lists every recorded payment attempt for the team, newest first.
func (s *Service) Attempts(ctx context.Context, teamID string) ([]store.PaymentIntent, error) {
	if _, err := s.Registry.TeamByID(ctx, teamID); err != nil {
		return nil, mapLookupErr(err, "team")
	}
	return s.Ledger.ListByTeam(ctx, teamID)
}

func (s *Service) resolve(ctx context.Context, teamID string) (store.Team, store.Event, error) {
	team, err := s.Registry.TeamByID(ctx, teamID)
	if err != nil {
		return store.Team{}, store.Event{}, mapLookupErr(err, "team")
	}
	event, err := s.Registry.EventByID(ctx, team.EventID)
	if err != nil {
		return store.Team{}, store.Event{}, mapLookupErr(err, "event")
	}
	return team, event, nil
}

// orderProvider picks the provider for a new order. Mock mode is an explicit
// operator flag; it and the live hosted gateway are mutually exclusive paths.
func (s *Service) orderProvider(amount decimal.Decimal) (gateway.Client, error) {
	if amount.IsZero() {
		return s.Free, nil
	}
	if s.MockEnabled {
		return s.Mock, nil
	}
	if err := s.Hosted.Ready(); err != nil {
		return nil, common.NewAppError(common.CodeConfigError,
			"payment gateway is not configured", http.StatusServiceUnavailable, err)
	}
	return s.Hosted, nil
}

func (s *Service) verifyProvider(ref string) (gateway.Client, error) {
	if ref == gateway.FreeReference {
		return s.Free, nil
	}
	if gateway.IsMockReference(ref) {
		if !s.MockEnabled {
			return nil, common.NewAppError(common.CodeConfigError,
				"mock payment mode is disabled", http.StatusServiceUnavailable, nil)
		}
		return s.Mock, nil
	}
	if err := s.Hosted.Ready(); err != nil {
		return nil, common.NewAppError(common.CodeConfigError,
			"payment gateway is not configured", http.StatusServiceUnavailable, err)
	}
	return s.Hosted, nil
}

func (s *Service) captureFree(ctx context.Context, team store.Team, event store.Event, provider gateway.Client) (OrderResult, error) {
	intent, err := provider.CreateIntent(ctx, gateway.IntentRequest{TeamID: team.ID})
	if err != nil {
		s.countOrder(provider.Name(), "error")
		return OrderResult{}, fmt.Errorf("payment: open free intent: %w", err)
	}
	now := s.clock()
	saved, err := s.Ledger.Save(ctx, store.PaymentIntent{
		TeamID:            team.ID,
		EventID:           event.ID,
		Amount:            decimal.Zero,
		Currency:          s.Currency,
		ExternalReference: intent.Reference,
		ProviderSignature: "FREE",
		Status:            store.IntentCaptured,
		VerifiedAt:        &now,
	})
	if err != nil {
		s.countOrder(provider.Name(), "error")
		return OrderResult{}, fmt.Errorf("payment: persist free capture: %w", err)
	}
	s.appendAudit(ctx, saved, nil)

	projection := store.PaymentProjection{
		PaymentStatus:     store.PaymentSuccess,
		ExternalReference: saved.ExternalReference,
		PaymentRecordID:   saved.ID,
	}
	if err := s.Registry.UpdatePaymentProjection(ctx, team.ID, projection); err != nil {
		return OrderResult{}, fmt.Errorf("payment: project free capture: %w", err)
	}

	s.countOrder(provider.Name(), "success")
	s.Logger.Info().Str("team_id", team.ID).Msg("free registration captured")
	return OrderResult{
		Status:            store.PaymentSuccess,
		ExternalReference: saved.ExternalReference,
		Amount:            decimal.Zero,
		Currency:          s.Currency,
		Provider:          provider.Name(),
		Message:           "registration is free, no payment required",
	}, nil
}

// openIntent asks the provider for a fresh intent and persists it. A
// reference collision mints a new intent rather than overwriting the old row.
func (s *Service) openIntent(ctx context.Context, team store.Team, event store.Event, provider gateway.Client, amount decimal.Decimal) (gateway.Intent, store.PaymentIntent, error) {
	req := gateway.IntentRequest{
		TeamID:      team.ID,
		AmountMinor: fee.MinorUnits(amount),
		RedirectURL: s.RedirectURL,
	}
	var lastErr error
	for attempt := 0; attempt < maxReferenceRetries; attempt++ {
		intent, err := provider.CreateIntent(ctx, req)
		if err != nil {
			if errors.Is(err, gateway.ErrRejected) {
				return gateway.Intent{}, store.PaymentIntent{}, common.NewAppError(common.CodeGatewayRejected,
					"gateway declined to open a payment", http.StatusBadGateway, err)
			}
			return gateway.Intent{}, store.PaymentIntent{}, common.NewAppError(common.CodeGatewayTransport,
				"could not reach the payment gateway", http.StatusBadGateway, err)
		}
		saved, err := s.Ledger.Save(ctx, store.PaymentIntent{
			TeamID:            team.ID,
			EventID:           event.ID,
			Amount:            amount,
			Currency:          s.Currency,
			ExternalReference: intent.Reference,
			Status:            store.IntentCreated,
		})
		if err == nil {
			s.appendAudit(ctx, saved, nil)
			return intent, saved, nil
		}
		if !errors.Is(err, store.ErrDuplicateReference) {
			return gateway.Intent{}, store.PaymentIntent{}, err
		}
		lastErr = err
		s.Logger.Warn().Str("team_id", team.ID).Str("reference", intent.Reference).
			Msg("external reference collision, regenerating")
	}
	return gateway.Intent{}, store.PaymentIntent{}, fmt.Errorf("payment: exhausted reference retries: %w", lastErr)
}

func (s *Service) settleSuccess(ctx context.Context, team store.Team, event store.Event, intent store.PaymentIntent, snapshot gateway.StatusSnapshot, provider string) (VerifyResult, error) {
	now := s.clock()
	intent.Status = store.IntentCaptured
	intent.VerifiedAt = &now
	intent.GatewayTransactionID = snapshot.GatewayTransactionID
	intent.ProviderSignature = snapshot.ResponseCode

	saved, err := s.Ledger.Save(ctx, intent)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("payment: persist capture: %w", err)
	}
	s.appendAudit(ctx, saved, nil)

	projection := store.PaymentProjection{
		PaymentStatus:        store.PaymentSuccess,
		ExternalReference:    saved.ExternalReference,
		GatewayTransactionID: saved.GatewayTransactionID,
		PaymentRecordID:      saved.ID,
	}
	if err := s.Registry.UpdatePaymentProjection(ctx, team.ID, projection); err != nil {
		return VerifyResult{}, fmt.Errorf("payment: project capture: %w", err)
	}

	s.emitCaptured(ctx, team, event, saved)
	s.countVerify(provider, "success")
	s.Logger.Info().Str("team_id", team.ID).Str("reference", saved.ExternalReference).
		Str("gateway_txn", saved.GatewayTransactionID).Msg("payment captured")
	return VerifyResult{
		Status:               store.PaymentSuccess,
		ExternalReference:    saved.ExternalReference,
		GatewayTransactionID: saved.GatewayTransactionID,
		Message:              "payment verified",
	}, nil
}

func (s *Service) settleFailure(ctx context.Context, team store.Team, intent store.PaymentIntent, snapshot gateway.StatusSnapshot, provider string) (VerifyResult, error) {
	now := s.clock()
	intent.Status = store.IntentFailed
	intent.VerifiedAt = &now
	intent.GatewayTransactionID = snapshot.GatewayTransactionID
	intent.ProviderSignature = snapshot.ResponseCode

	saved, err := s.Ledger.Save(ctx, intent)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("payment: persist failure: %w", err)
	}
	s.appendAudit(ctx, saved, nil)

	projection := store.PaymentProjection{
		PaymentStatus:        store.PaymentFailed,
		ExternalReference:    saved.ExternalReference,
		GatewayTransactionID: saved.GatewayTransactionID,
		PaymentRecordID:      saved.ID,
	}
	if err := s.Registry.UpdatePaymentProjection(ctx, team.ID, projection); err != nil {
		return VerifyResult{}, fmt.Errorf("payment: project failure: %w", err)
	}

	if _, err := s.Bus.Emit(ctx, events.TopicPaymentFailed, team.ID, map[string]string{
		"teamId":            team.ID,
		"externalReference": saved.ExternalReference,
		"responseCode":      snapshot.ResponseCode,
	}); err != nil {
		s.Logger.Warn().Err(err).Str("team_id", team.ID).Msg("payment.failed event dispatch failed")
	}

	s.countVerify(provider, "failed")
	message := snapshot.Message
	if message == "" {
		message = "payment failed, create a new order to retry"
	}
	return VerifyResult{
		Status:            store.PaymentFailed,
		ExternalReference: saved.ExternalReference,
		Message:           message,
	}, nil
}

// recordPending keeps the attempt open but captures the freshest diagnostics
// so repeated polling accumulates the gateway's latest view.
func (s *Service) recordPending(ctx context.Context, team store.Team, intent store.PaymentIntent, snapshot gateway.StatusSnapshot, provider string) (VerifyResult, error) {
	if snapshot.GatewayTransactionID != "" {
		intent.GatewayTransactionID = snapshot.GatewayTransactionID
	}
	if snapshot.ResponseCode != "" {
		intent.ProviderSignature = snapshot.ResponseCode
	}
	saved, err := s.Ledger.Save(ctx, intent)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("payment: persist pending diagnostics: %w", err)
	}

	projection := store.PaymentProjection{
		PaymentStatus:        store.PaymentPending,
		ExternalReference:    saved.ExternalReference,
		GatewayTransactionID: saved.GatewayTransactionID,
		PaymentRecordID:      saved.ID,
	}
	if err := s.Registry.UpdatePaymentProjection(ctx, team.ID, projection); err != nil {
		return VerifyResult{}, fmt.Errorf("payment: project pending: %w", err)
	}

	s.countVerify(provider, "pending")
	message := snapshot.Message
	if message == "" {
		message = "payment pending, try again shortly"
	}
	return VerifyResult{
		Status:            store.PaymentPending,
		ExternalReference: saved.ExternalReference,
		Message:           message,
	}, nil
}

// emitCaptured fires the confirmation event. Best-effort: a notification
// failure never rolls back a captured payment.
func (s *Service) emitCaptured(ctx context.Context, team store.Team, event store.Event, intent store.PaymentIntent) {
	payload := notify.ConfirmationPayload{
		TeamID:               team.ID,
		TeamName:             team.TeamName,
		Email:                team.OwnerEmail,
		EventTitle:           event.Title,
		Amount:               intent.Amount.StringFixed(2),
		Currency:             intent.Currency,
		ExternalReference:    intent.ExternalReference,
		GatewayTransactionID: intent.GatewayTransactionID,
	}
	if _, err := s.Bus.Emit(ctx, events.TopicPaymentCaptured, team.ID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("team_id", team.ID).Msg("payment.captured event dispatch failed")
	}
}

func (s *Service) appendAudit(ctx context.Context, intent store.PaymentIntent, payload []byte) {
	if err := s.Ledger.AppendEvent(ctx, intent.ID, intent.Status, payload); err != nil {
		s.Logger.Warn().Err(err).Str("payment_id", intent.ID).Msg("audit append failed")
	}
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func (s *Service) countOrder(provider, result string) {
	if obs.PaymentOrderTotal != nil {
		obs.PaymentOrderTotal.WithLabelValues(provider, result).Inc()
	}
}

func (s *Service) countVerify(provider, result string) {
	if obs.PaymentVerifyTotal != nil {
		obs.PaymentVerifyTotal.WithLabelValues(provider, result).Inc()
	}
}

func mapLookupErr(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return common.NewAppError(common.CodeNotFound, what+" not found", http.StatusNotFound, nil)
	}
	return fmt.Errorf("payment: load %s: %w", what, err)
}
