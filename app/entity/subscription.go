package entity

import "time"

const (
	SubscriptionStatusPending  int32 = 1
	SubscriptionStatusActive   int32 = 2
	SubscriptionStatusPastDue  int32 = 3
	SubscriptionStatusPaused   int32 = 4
	SubscriptionStatusCanceled int32 = 5
)

const (
	FeeModelLegacy      = "legacy"
	FeeModelFlat        = "flat"
	FeeModelProgressive = "progressive"
	FeeModelSplit       = "split"
)

const (
	FeeModeAbsorb           = "absorb"
	FeeModePassToSubscriber = "pass_to_subscriber"
)

const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Subscription is the durable state of one subscriber/creator/interval
// relationship. The row is created on the first successful charge and reused
// across cancel/resubscribe, so lifetime counters survive that gap.
//
// BasePriceCents, FeeModel and FeeMode are written once at creation and must
// never change afterwards, regardless of later platform fee policy.
type Subscription struct {
	ID uint64

	SubscriberID string
	CreatorID    string
	Interval     string

	Status int32

	BasePriceCents int64
	Currency       string

	FeeModel       string
	FeeMode        string
	CreatorClass   string
	CreatorCountry string

	LifetimeNetCents int64
	PaymentCount     int32

	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	CanceledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the lock/upsert key for the subscription identity.
func SubscriptionKey(subscriberID, creatorID, interval string) string {
	return subscriberID + ":" + creatorID + ":" + interval
}

func (s *Subscription) Key() string {
	return SubscriptionKey(s.SubscriberID, s.CreatorID, s.Interval)
}

func SubscriptionStatusName(status int32) string {
	switch status {
	case SubscriptionStatusPending:
		return "pending"
	case SubscriptionStatusActive:
		return "active"
	case SubscriptionStatusPastDue:
		return "past_due"
	case SubscriptionStatusPaused:
		return "paused"
	case SubscriptionStatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
