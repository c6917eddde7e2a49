package gateway

import "context"

// Free short-circuits zero-fee registrations. It never performs network calls
// and always reports success under the fixed FreeReference.
type Free struct{}

// Name implements Client.
func (Free) Name() string { return "free" }

// Ready implements Client. The free path has no configuration.
func (Free) Ready() error { return nil }

// CreateIntent implements Client.
func (Free) CreateIntent(_ context.Context, _ IntentRequest) (Intent, error) {
	return Intent{Reference: FreeReference}, nil
}

// FetchStatus implements Client.
func (Free) FetchStatus(_ context.Context, _ StatusQuery) (StatusSnapshot, error) {
	return StatusSnapshot{
		State:                StateSuccess,
		GatewayTransactionID: FreeReference,
		ResponseCode:         "FREE",
		Message:              "free registration",
	}, nil
}
