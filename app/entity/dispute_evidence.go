package entity

import "time"

// DisputeEvidence captures checkout-time context for chargeback defense.
// It is a best-effort companion to a Payment: a failed insert is logged and
// never fails the payment write.
type DisputeEvidence struct {
	ID uint64

	PaymentID uint64

	IPAddress *string
	UserAgent *string
	Locale    *string

	CheckoutAt *time.Time
	CreatedAt  time.Time
}
