package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-hackreg/internal/common"
	"github.com/noah-isme/backend-hackreg/internal/obs"
)

// Emailer consumes confirmation tasks and hands them to the mail transport.
type Emailer struct {
	Mail   common.EmailSender
	From   string
	Logger zerolog.Logger
}

// HandlePaymentConfirmation is the asynq handler for TaskPaymentConfirmation.
func (e Emailer) HandlePaymentConfirmation(_ context.Context, task *asynq.Task) error {
	var payload ConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads never become deliverable; drop instead of retrying.
		e.Logger.Error().Err(err).Msg("confirmation payload undecodable")
		return nil
	}
	if e.Mail == nil || payload.Email == "" {
		return nil
	}
	subject := fmt.Sprintf("Registration confirmed: %s", payload.EventTitle)
	body := confirmationBody(payload)
	if err := e.Mail.Send(e.From, payload.Email, subject, body); err != nil {
		if obs.NotifyDeliveriesTotal != nil {
			obs.NotifyDeliveriesTotal.WithLabelValues("send_error").Inc()
		}
		return fmt.Errorf("notify: send confirmation: %w", err)
	}
	if obs.NotifyDeliveriesTotal != nil {
		obs.NotifyDeliveriesTotal.WithLabelValues("sent").Inc()
	}
	e.Logger.Info().Str("team_id", payload.TeamID).Str("to", payload.Email).Msg("confirmation sent")
	return nil
}

func confirmationBody(p ConfirmationPayload) string {
	body := fmt.Sprintf("<p>Team <b>%s</b> is registered for %s.</p>", p.TeamName, p.EventTitle)
	if p.Amount != "" && p.Amount != "0" {
		body += fmt.Sprintf("<p>Amount paid: %s %s</p>", p.Amount, p.Currency)
	}
	if p.ExternalReference != "" {
		body += fmt.Sprintf("<p>Reference: %s</p>", p.ExternalReference)
	}
	if p.GatewayTransactionID != "" {
		body += fmt.Sprintf("<p>Transaction: %s</p>", p.GatewayTransactionID)
	}
	return body
}
