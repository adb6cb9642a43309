package entity

import "time"

const (
	PaymentStatusPending     int32 = 1
	PaymentStatusSucceeded   int32 = 2
	PaymentStatusRefunded    int32 = 3
	PaymentStatusDisputed    int32 = 4
	PaymentStatusDisputeWon  int32 = 5
	PaymentStatusDisputeLost int32 = 6
	PaymentStatusNeedsReview int32 = 7
)

// Payment is one immutable ledger row per provider event. ProviderEventID is
// the idempotency key: unique, never reused. Reversal rows (refunds, lost
// disputes) carry negative magnitudes instead of mutating the original row's
// amounts.
//
// For rows with split attribution the payer-side share is already contained
// in GrossCents, so NetCents equals GrossCents minus CreatorFeeCents. Rows
// without attribution satisfy GrossCents - FeeCents == NetCents directly.
type Payment struct {
	ID uint64

	SubscriptionID  uint64
	ProviderEventID string

	GrossCents int64
	FeeCents   int64
	NetCents   int64

	SubscriberFeeCents *int64
	CreatorFeeCents    *int64

	FeeModel           string
	FeeEffectiveRateBps int32
	FeeWasCapped       bool

	Status   int32
	Currency string

	OccurredAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func PaymentStatusName(status int32) string {
	switch status {
	case PaymentStatusPending:
		return "pending"
	case PaymentStatusSucceeded:
		return "succeeded"
	case PaymentStatusRefunded:
		return "refunded"
	case PaymentStatusDisputed:
		return "disputed"
	case PaymentStatusDisputeWon:
		return "dispute_won"
	case PaymentStatusDisputeLost:
		return "dispute_lost"
	case PaymentStatusNeedsReview:
		return "needs_review"
	default:
		return "unknown"
	}
}
