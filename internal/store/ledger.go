package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// Ledger is the append/update log of payment attempts backed by Postgres.
type Ledger struct {
	Pool *pgxpool.Pool
}

const intentColumns = `id, team_id, event_id, amount::text, currency, external_reference,
	coalesce(gateway_transaction_id, ''), coalesce(provider_signature, ''), status, created_at, verified_at`

// LatestAttempt returns the most recent payment attempt for a team, or
// ErrNotFound when the team has never attempted payment.
func (l Ledger) LatestAttempt(ctx context.Context, teamID string) (PaymentIntent, error) {
	row := l.Pool.QueryRow(ctx, `SELECT `+intentColumns+`
		FROM payments WHERE team_id = $1 ORDER BY created_at DESC LIMIT 1`, teamID)
	return scanIntent(row)
}

// FindByExternalReference correlates a gateway reference with its local attempt.
func (l Ledger) FindByExternalReference(ctx context.Context, ref string) (PaymentIntent, error) {
	row := l.Pool.QueryRow(ctx, `SELECT `+intentColumns+`
		FROM payments WHERE external_reference = $1 ORDER BY created_at DESC LIMIT 1`, ref)
	return scanIntent(row)
}

// ListByTeam returns every attempt for a team, newest first.
func (l Ledger) ListByTeam(ctx context.Context, teamID string) ([]PaymentIntent, error) {
	rows, err := l.Pool.Query(ctx, `SELECT `+intentColumns+`
		FROM payments WHERE team_id = $1 ORDER BY created_at DESC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("store: list attempts: %w", err)
	}
	defer rows.Close()
	var out []PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

// Save upserts a payment attempt: inserts when the id is unset, updates
// otherwise. An external-reference collision surfaces as
// ErrDuplicateReference so the caller can mint a fresh reference.
func (l Ledger) Save(ctx context.Context, intent PaymentIntent) (PaymentIntent, error) {
	if intent.ID == "" {
		row := l.Pool.QueryRow(ctx, `INSERT INTO payments
			(team_id, event_id, amount, currency, external_reference, gateway_transaction_id, provider_signature, status, verified_at)
			VALUES ($1, $2, $3::numeric, $4, $5, nullif($6, ''), nullif($7, ''), $8, $9)
			RETURNING id, created_at`,
			intent.TeamID, intent.EventID, intent.Amount.StringFixed(2), intent.Currency,
			intent.ExternalReference, intent.GatewayTransactionID, intent.ProviderSignature,
			string(intent.Status), intent.VerifiedAt)
		if err := row.Scan(&intent.ID, &intent.CreatedAt); err != nil {
			return PaymentIntent{}, mapSaveErr(err)
		}
		return intent, nil
	}
	_, err := l.Pool.Exec(ctx, `UPDATE payments SET
			amount = $2::numeric, external_reference = $3,
			gateway_transaction_id = nullif($4, ''), provider_signature = nullif($5, ''),
			status = $6, verified_at = $7
		WHERE id = $1`,
		intent.ID, intent.Amount.StringFixed(2), intent.ExternalReference,
		intent.GatewayTransactionID, intent.ProviderSignature, string(intent.Status), intent.VerifiedAt)
	if err != nil {
		return PaymentIntent{}, mapSaveErr(err)
	}
	return intent, nil
}

// AppendEvent records an audit entry for a payment attempt. Failures here are
// diagnostic only and do not affect the attempt itself.
func (l Ledger) AppendEvent(ctx context.Context, paymentID string, status IntentStatus, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := l.Pool.Exec(ctx, `INSERT INTO payment_events (payment_id, status, payload)
		VALUES ($1, $2, $3)`, paymentID, string(status), payload)
	return err
}

func mapSaveErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, pgErr.ConstraintName)
	}
	return fmt.Errorf("store: save intent: %w", err)
}

func scanIntent(row pgx.Row) (PaymentIntent, error) {
	var (
		intent     PaymentIntent
		amountText string
		status     string
		verifiedAt *time.Time
	)
	err := row.Scan(&intent.ID, &intent.TeamID, &intent.EventID, &amountText, &intent.Currency,
		&intent.ExternalReference, &intent.GatewayTransactionID, &intent.ProviderSignature,
		&status, &intent.CreatedAt, &verifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentIntent{}, ErrNotFound
		}
		return PaymentIntent{}, fmt.Errorf("store: scan intent: %w", err)
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("store: parse amount %q: %w", amountText, err)
	}
	intent.Amount = amount
	intent.Status = IntentStatus(status)
	intent.VerifiedAt = verifiedAt
	return intent, nil
}
