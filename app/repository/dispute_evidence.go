package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

type DisputeEvidenceRepository struct {
	db DBTX
}

func NewDisputeEvidenceRepository(db DBTX) *DisputeEvidenceRepository {
	return &DisputeEvidenceRepository{db: db}
}

func (r *DisputeEvidenceRepository) Create(ctx context.Context, evidence *entity.DisputeEvidence) error {
	query := `
		INSERT INTO dispute_evidence (
			payment_id, ip_address, user_agent, locale, checkout_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		evidence.PaymentID,
		nullableStringValue(evidence.IPAddress),
		nullableStringValue(evidence.UserAgent),
		nullableStringValue(evidence.Locale),
		nullableTimeValue(evidence.CheckoutAt),
		evidence.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	evidence.ID = uint64(id)
	return nil
}

func (r *DisputeEvidenceRepository) FindByPaymentID(ctx context.Context, paymentID uint64) (*entity.DisputeEvidence, error) {
	query := `
		SELECT id, payment_id, ip_address, user_agent, locale, checkout_at, created_at
		FROM dispute_evidence
		WHERE payment_id = ?
		LIMIT 1
	`

	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	evidence := &entity.DisputeEvidence{}
	var ip, ua, locale sql.NullString
	var checkoutAt sql.NullTime
	if err := rows.Scan(&evidence.ID, &evidence.PaymentID, &ip, &ua, &locale, &checkoutAt, &evidence.CreatedAt); err != nil {
		return nil, err
	}
	evidence.IPAddress = stringPtrFromNull(ip)
	evidence.UserAgent = stringPtrFromNull(ua)
	evidence.Locale = stringPtrFromNull(locale)
	evidence.CheckoutAt = timePtrFromNull(checkoutAt)
	return evidence, nil
}
