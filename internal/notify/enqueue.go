package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-hackreg/internal/events"
	"github.com/noah-isme/backend-hackreg/internal/obs"
)

// TaskEnqueuer is the subset of asynq.Client the dispatcher needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher implements events.Notifier by translating payment events into
// queued confirmation tasks.
type Dispatcher struct {
	Client     TaskEnqueuer
	Queue      string
	MaxRetry   int
	Logger     zerolog.Logger
}

// Notify implements events.Notifier. Only captured payments produce a
// confirmation; failures are logged upstream and carry no email.
func (d Dispatcher) Notify(ctx context.Context, ev events.Event) error {
	if d.Client == nil || ev.Topic != events.TopicPaymentCaptured {
		return nil
	}
	var payload ConfirmationPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode payload: %w", err)
	}
	if payload.Email == "" {
		d.Logger.Warn().Str("team_id", payload.TeamID).Msg("confirmation skipped: no recipient")
		return nil
	}
	task := asynq.NewTask(TaskPaymentConfirmation, ev.Payload)
	opts := []asynq.Option{}
	if d.Queue != "" {
		opts = append(opts, asynq.Queue(d.Queue))
	}
	if d.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(d.MaxRetry))
	}
	if _, err := d.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if obs.NotifyDeliveriesTotal != nil {
			obs.NotifyDeliveriesTotal.WithLabelValues("enqueue_error").Inc()
		}
		return fmt.Errorf("notify: enqueue confirmation: %w", err)
	}
	if obs.NotifyDeliveriesTotal != nil {
		obs.NotifyDeliveriesTotal.WithLabelValues("enqueued").Inc()
	}
	return nil
}
