package entity

import "time"

// CheckoutSession links a checkout flow (and its referral attribution) to the
// payment that eventually settled it. It is conversion-tracking metadata only
// and is updated outside the ledger transaction.
type CheckoutSession struct {
	ID uint64

	SessionID    string
	SubscriberID string
	CreatorID    string

	ReferralCode *string

	ConvertedPaymentID *uint64
	ConvertedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
