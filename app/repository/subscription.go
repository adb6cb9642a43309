package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
)

const subscriptionColumns = `
	id, subscriber_id, creator_id, billing_interval, status,
	base_price_cents, currency, fee_model, fee_mode, creator_class, creator_country,
	lifetime_net_cents, payment_count,
	current_period_end, cancel_at_period_end, canceled_at,
	created_at, updated_at
`

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			subscriber_id, creator_id, billing_interval, status,
			base_price_cents, currency, fee_model, fee_mode, creator_class, creator_country,
			lifetime_net_cents, payment_count,
			current_period_end, cancel_at_period_end, canceled_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		sub.SubscriberID,
		sub.CreatorID,
		sub.Interval,
		sub.Status,
		sub.BasePriceCents,
		sub.Currency,
		sub.FeeModel,
		sub.FeeMode,
		sub.CreatorClass,
		sub.CreatorCountry,
		sub.LifetimeNetCents,
		sub.PaymentCount,
		nullableTimeValue(sub.CurrentPeriodEnd),
		sub.CancelAtPeriodEnd,
		nullableTimeValue(sub.CanceledAt),
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = uint64(id)
	return nil
}

// Update persists mutable subscription state. base_price_cents, fee_model,
// fee_mode and the identity columns are deliberately absent from the SET
// list: they are write-once at creation.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *entity.Subscription) error {
	query := `
		UPDATE subscriptions SET
			status = ?,
			lifetime_net_cents = ?,
			payment_count = ?,
			current_period_end = ?,
			cancel_at_period_end = ?,
			canceled_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		sub.Status,
		sub.LifetimeNetCents,
		sub.PaymentCount,
		nullableTimeValue(sub.CurrentPeriodEnd),
		sub.CancelAtPeriodEnd,
		nullableTimeValue(sub.CanceledAt),
		sub.UpdatedAt,
		sub.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id uint64) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`

	sub := &entity.Subscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, id), sub); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *SubscriptionRepository) FindByIdentity(ctx context.Context, subscriberID, creatorID, interval string) (*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE subscriber_id = ? AND creator_id = ? AND billing_interval = ?
		LIMIT 1
	`

	sub := &entity.Subscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, subscriberID, creatorID, interval), sub); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return sub, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(scan rowScanner, sub *entity.Subscription) error {
	var currentPeriodEnd sql.NullTime
	var canceledAt sql.NullTime

	err := scan.Scan(
		&sub.ID,
		&sub.SubscriberID,
		&sub.CreatorID,
		&sub.Interval,
		&sub.Status,
		&sub.BasePriceCents,
		&sub.Currency,
		&sub.FeeModel,
		&sub.FeeMode,
		&sub.CreatorClass,
		&sub.CreatorCountry,
		&sub.LifetimeNetCents,
		&sub.PaymentCount,
		&currentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&canceledAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return err
	}

	sub.CurrentPeriodEnd = timePtrFromNull(currentPeriodEnd)
	sub.CanceledAt = timePtrFromNull(canceledAt)
	return nil
}
