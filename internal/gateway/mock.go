package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Mock simulates a gateway for environments without real credentials. It
// mints local references and resolves status from the caller-confirmed
// transaction id instead of the network. It must only be wired when mock mode
// is explicitly enabled.
type Mock struct{}

// Name implements Client.
func (Mock) Name() string { return "mock" }

// Ready implements Client.
func (Mock) Ready() error { return nil }

// CreateIntent implements Client. Each call mints a fresh local reference.
func (Mock) CreateIntent(_ context.Context, _ IntentRequest) (Intent, error) {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return Intent{Reference: MockReferencePrefix + raw[:16]}, nil
}

// FetchStatus implements Client. A non-blank confirmation resolves to
// success with the confirmed value as the gateway transaction id; without a
// confirmation the attempt stays pending.
func (Mock) FetchStatus(_ context.Context, q StatusQuery) (StatusSnapshot, error) {
	confirmed := strings.TrimSpace(q.Confirmation)
	if confirmed == "" {
		return StatusSnapshot{
			State:        StatePending,
			ResponseCode: "MOCK_PENDING",
			Message:      "awaiting caller confirmation",
		}, nil
	}
	return StatusSnapshot{
		State:                StateSuccess,
		GatewayTransactionID: confirmed,
		ResponseCode:         "MOCK_CONFIRMED",
		Message:              "mock payment confirmed",
	}, nil
}
