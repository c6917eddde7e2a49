package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Registry reads teams and events and accepts payment projection writes. Team
// and event rows are owned by the registration flow; only the projection
// columns are mutated here. Lookups go through the TTL cache; every
// projection write invalidates the team key.
type Registry struct {
	Pool   *pgxpool.Pool
	Cache  *Cache
	Logger zerolog.Logger
}

// TeamByID resolves a team, cache first.
func (r Registry) TeamByID(ctx context.Context, id string) (Team, error) {
	var cached Team
	if ok, err := r.Cache.GetJSON(ctx, teamCacheKey(id), &cached); err != nil {
		r.Logger.Warn().Err(err).Str("team_id", id).Msg("team cache read failed")
	} else if ok {
		return cached, nil
	}

	row := r.Pool.QueryRow(ctx, `SELECT id, event_id, team_name, owner_email, team_size,
			payment_status, coalesce(external_reference, ''), coalesce(gateway_transaction_id, ''),
			coalesce(payment_record_id, ''), created_at
		FROM teams WHERE id = $1`, id)
	var (
		team   Team
		status string
	)
	err := row.Scan(&team.ID, &team.EventID, &team.TeamName, &team.OwnerEmail, &team.TeamSize,
		&status, &team.ExternalReference, &team.GatewayTransactionID, &team.PaymentRecordID, &team.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, fmt.Errorf("store: load team: %w", err)
	}
	team.PaymentStatus = ProjectionStatus(status)

	if err := r.Cache.SetJSON(ctx, teamCacheKey(id), team); err != nil {
		r.Logger.Warn().Err(err).Str("team_id", id).Msg("team cache write failed")
	}
	return team, nil
}

// EventByID resolves an event, cache first.
func (r Registry) EventByID(ctx context.Context, id string) (Event, error) {
	var cached Event
	if ok, err := r.Cache.GetJSON(ctx, eventCacheKey(id), &cached); err != nil {
		r.Logger.Warn().Err(err).Str("event_id", id).Msg("event cache read failed")
	} else if ok {
		return cached, nil
	}

	row := r.Pool.QueryRow(ctx, `SELECT id, title, registration_fee::text, active, created_at
		FROM events WHERE id = $1`, id)
	var (
		event   Event
		feeText string
	)
	err := row.Scan(&event.ID, &event.Title, &feeText, &event.Active, &event.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("store: load event: %w", err)
	}
	fee, err := decimal.NewFromString(feeText)
	if err != nil {
		return Event{}, fmt.Errorf("store: parse registration fee %q: %w", feeText, err)
	}
	event.RegistrationFee = fee

	if err := r.Cache.SetJSON(ctx, eventCacheKey(id), event); err != nil {
		r.Logger.Warn().Err(err).Str("event_id", id).Msg("event cache write failed")
	}
	return event, nil
}

// UpdatePaymentProjection writes the denormalised payment summary onto the
// team row and invalidates the cached team.
func (r Registry) UpdatePaymentProjection(ctx context.Context, teamID string, p PaymentProjection) error {
	tag, err := r.Pool.Exec(ctx, `UPDATE teams SET
			payment_status = $2,
			external_reference = nullif($3, ''),
			gateway_transaction_id = nullif($4, ''),
			payment_record_id = nullif($5, '')
		WHERE id = $1`,
		teamID, string(p.PaymentStatus), p.ExternalReference, p.GatewayTransactionID, p.PaymentRecordID)
	if err != nil {
		return fmt.Errorf("store: update projection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := r.Cache.Invalidate(ctx, teamCacheKey(teamID)); err != nil {
		r.Logger.Warn().Err(err).Str("team_id", teamID).Msg("team cache invalidation failed")
	}
	return nil
}
