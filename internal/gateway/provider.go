// Package gateway talks to the upstream payment gateway. All request signing,
// payload construction and provider vocabulary live here; nothing outside this
// package sees raw credentials or wire formats.
package gateway

import (
	"context"
	"errors"
)

// State is the normalised verdict of a gateway status lookup.
type State string

const (
	StateSuccess State = "SUCCESS"
	StatePending State = "PENDING"
	StateFailed  State = "FAILED"
)

// FreeReference is the sentinel reference recorded for zero-fee registrations.
const FreeReference = "FREE_REGISTRATION"

// MockReferencePrefix marks references minted by the mock provider.
const MockReferencePrefix = "mock_order_"

// ErrRejected reports a well-formed negative gateway response (declined,
// refused intent). Distinct from transport errors, which are retryable.
var ErrRejected = errors.New("gateway: request rejected")

// IntentRequest captures the information required to open a payment intent.
type IntentRequest struct {
	TeamID      string
	AmountMinor int64
	RedirectURL string
}

// Intent is the provider's answer to an intent request.
type Intent struct {
	Reference   string
	CheckoutURL string
}

// StatusQuery identifies the remote transaction to reconcile. Confirmation
// carries the caller-confirmed transaction id used by the mock provider; real
// providers ignore it.
type StatusQuery struct {
	Reference    string
	Confirmation string
}

// StatusSnapshot is the normalised view of the gateway's record of a
// transaction. AmountMinor is nil when the provider did not report an amount;
// an explicitly reported zero is a real amount, not an absence.
type StatusSnapshot struct {
	State                State
	GatewayTransactionID string
	ResponseCode         string
	AmountMinor          *int64
	Message              string
}

// Client abstracts a payment provider. Implementations must be safe for
// concurrent use.
type Client interface {
	Name() string
	// Ready reports whether the provider is usable with its current
	// configuration. A non-nil error is a configuration problem, not a
	// transient failure.
	Ready() error
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	FetchStatus(ctx context.Context, q StatusQuery) (StatusSnapshot, error)
}

// IsMockReference reports whether ref was minted by the mock provider.
func IsMockReference(ref string) bool {
	return len(ref) > len(MockReferencePrefix) && ref[:len(MockReferencePrefix)] == MockReferencePrefix
}
