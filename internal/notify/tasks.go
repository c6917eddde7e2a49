// Package notify dispatches registration confirmation notifications through
// the task queue so a slow mail hop never sits on the payment path.
package notify

// TaskPaymentConfirmation is the asynq task type for confirmation emails.
const TaskPaymentConfirmation = "notify:payment_confirmation"

// ConfirmationPayload carries everything the worker needs to compose the
// confirmation email without re-reading the database.
type ConfirmationPayload struct {
	TeamID               string `json:"teamId"`
	TeamName             string `json:"teamName"`
	Email                string `json:"email"`
	EventTitle           string `json:"eventTitle"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	ExternalReference    string `json:"externalReference"`
	GatewayTransactionID string `json:"gatewayTransactionId"`
}
