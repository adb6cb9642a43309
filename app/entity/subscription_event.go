package entity

import "time"

// SubscriptionEvent is the audit trail written alongside every ledger
// mutation.
type SubscriptionEvent struct {
	ID uint64

	SubscriptionID uint64
	PaymentID      *uint64

	EventType string

	OldStatus *int32
	NewStatus int32

	PayloadJSON *string

	CreatedAt time.Time
}
