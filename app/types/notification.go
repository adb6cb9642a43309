package types

import "time"

// LedgerNotification is the payload posted to the configured notification
// endpoint after a committed ledger write.
type LedgerNotification struct {
	EventType string `json:"event_type"`

	SubscriberID string `json:"subscriber_id"`
	CreatorID    string `json:"creator_id"`
	Interval     string `json:"interval"`

	SubscriptionStatus string `json:"subscription_status"`
	LifetimeNetCents   int64  `json:"lifetime_net_cents"`
	PaymentCount       int32  `json:"payment_count"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	Payment *PaymentNotification `json:"payment,omitempty"`
}

type PaymentNotification struct {
	ProviderEventID string `json:"provider_event_id"`
	Status          string `json:"status"`
	GrossCents      int64  `json:"gross_cents"`
	FeeCents        int64  `json:"fee_cents"`
	NetCents        int64  `json:"net_cents"`
	Currency        string `json:"currency"`
	OccurredAt      time.Time `json:"occurred_at"`
}
