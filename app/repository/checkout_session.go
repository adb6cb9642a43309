package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

var ErrCheckoutSessionNotFound = errors.New("checkout session not found")

type CheckoutSessionRepository struct {
	db DBTX
}

func NewCheckoutSessionRepository(db DBTX) *CheckoutSessionRepository {
	return &CheckoutSessionRepository{db: db}
}

func (r *CheckoutSessionRepository) Create(ctx context.Context, session *entity.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (
			session_id, subscriber_id, creator_id, referral_code,
			converted_payment_id, converted_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		session.SessionID,
		session.SubscriberID,
		session.CreatorID,
		nullableStringValue(session.ReferralCode),
		nullableUint64Value(session.ConvertedPaymentID),
		nullableTimeValue(session.ConvertedAt),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	session.ID = uint64(id)
	return nil
}

func (r *CheckoutSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.CheckoutSession, error) {
	query := `
		SELECT id, session_id, subscriber_id, creator_id, referral_code,
			converted_payment_id, converted_at, created_at, updated_at
		FROM checkout_sessions
		WHERE session_id = ?
		LIMIT 1
	`

	session := &entity.CheckoutSession{}
	var referral sql.NullString
	var convertedPaymentID sql.NullInt64
	var convertedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&session.SessionID,
		&session.SubscriberID,
		&session.CreatorID,
		&referral,
		&convertedPaymentID,
		&convertedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	session.ReferralCode = stringPtrFromNull(referral)
	session.ConvertedPaymentID = uint64PtrFromNull(convertedPaymentID)
	session.ConvertedAt = timePtrFromNull(convertedAt)
	return session, nil
}

// MarkConverted records which payment settled the session. Called outside
// the ledger transaction; only unconverted sessions are touched so replays
// keep the first attribution.
func (r *CheckoutSessionRepository) MarkConverted(ctx context.Context, sessionID string, paymentID uint64, convertedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions
		 SET converted_payment_id = ?, converted_at = ?, updated_at = ?
		 WHERE session_id = ? AND converted_payment_id IS NULL`,
		paymentID, convertedAt, convertedAt, sessionID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCheckoutSessionNotFound
	}
	return nil
}
