// Package store persists payment attempts and the team/event read model.
package store

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateReference is returned when persisting an intent whose external
// reference collides with an existing attempt. Callers regenerate the
// reference, never overwrite.
var ErrDuplicateReference = errors.New("store: duplicate external reference")

// IntentStatus is the lifecycle state of a single payment attempt.
// Transitions are forward only: CREATED -> CAPTURED or CREATED -> FAILED.
type IntentStatus string

const (
	IntentCreated  IntentStatus = "CREATED"
	IntentCaptured IntentStatus = "CAPTURED"
	IntentFailed   IntentStatus = "FAILED"
)

// ProjectionStatus is the coarse payment summary denormalised onto the team.
type ProjectionStatus string

const (
	PaymentPending ProjectionStatus = "PENDING"
	PaymentSuccess ProjectionStatus = "SUCCESS"
	PaymentFailed  ProjectionStatus = "FAILED"
)

// PaymentIntent is one attempt to pay for a team's registration.
type PaymentIntent struct {
	ID                   string
	TeamID               string
	EventID              string
	Amount               decimal.Decimal
	Currency             string
	ExternalReference    string
	GatewayTransactionID string
	// ProviderSignature holds the last raw signature or response code seen
	// from the gateway. Retained for audit, never re-verified on read.
	ProviderSignature string
	Status            IntentStatus
	CreatedAt         time.Time
	VerifiedAt        *time.Time
}

// Team is the registration read model. Payment projection fields are owned by
// the payment core; everything else belongs to the registration flow.
type Team struct {
	ID         string
	EventID    string
	TeamName   string
	OwnerEmail string
	TeamSize   int

	PaymentStatus        ProjectionStatus
	ExternalReference    string
	GatewayTransactionID string
	PaymentRecordID      string

	CreatedAt time.Time
}

// Event carries the subset of the event read model the payment core needs.
type Event struct {
	ID              string
	Title           string
	RegistrationFee decimal.Decimal
	Active          bool
	CreatedAt       time.Time
}

// PaymentProjection is the denormalised payment summary written back onto the
// team row.
type PaymentProjection struct {
	PaymentStatus        ProjectionStatus
	ExternalReference    string
	GatewayTransactionID string
	PaymentRecordID      string
}
