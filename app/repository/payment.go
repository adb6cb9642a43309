package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
)

const paymentColumns = `
	id, subscription_id, provider_event_id,
	gross_cents, fee_cents, net_cents, subscriber_fee_cents, creator_fee_cents,
	fee_model, fee_effective_rate_bps, fee_was_capped,
	status, currency, occurred_at, created_at, updated_at
`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			subscription_id, provider_event_id,
			gross_cents, fee_cents, net_cents, subscriber_fee_cents, creator_fee_cents,
			fee_model, fee_effective_rate_bps, fee_was_capped,
			status, currency, occurred_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.SubscriptionID,
		payment.ProviderEventID,
		payment.GrossCents,
		payment.FeeCents,
		payment.NetCents,
		nullableInt64Value(payment.SubscriberFeeCents),
		nullableInt64Value(payment.CreatorFeeCents),
		payment.FeeModel,
		payment.FeeEffectiveRateBps,
		payment.FeeWasCapped,
		payment.Status,
		payment.Currency,
		payment.OccurredAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

func (r *PaymentRepository) FindByProviderEventID(ctx context.Context, providerEventID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_event_id = ? LIMIT 1`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, providerEventID), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uint64, status int32, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`,
		status, updatedAt, id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) ListBySubscription(ctx context.Context, subscriptionID uint64, limit, offset int32) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE subscription_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, subscriptionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// ListForAudit returns settled rows touched since the given time, for the
// invariant audit sweep.
func (r *PaymentRepository) ListForAudit(ctx context.Context, since time.Time, limit int32) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND updated_at >= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.PaymentStatusSucceeded, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var subscriberFee sql.NullInt64
	var creatorFee sql.NullInt64

	err := scan.Scan(
		&payment.ID,
		&payment.SubscriptionID,
		&payment.ProviderEventID,
		&payment.GrossCents,
		&payment.FeeCents,
		&payment.NetCents,
		&subscriberFee,
		&creatorFee,
		&payment.FeeModel,
		&payment.FeeEffectiveRateBps,
		&payment.FeeWasCapped,
		&payment.Status,
		&payment.Currency,
		&payment.OccurredAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.SubscriberFeeCents = int64PtrFromNull(subscriberFee)
	payment.CreatorFeeCents = int64PtrFromNull(creatorFee)
	return nil
}
