package types

// SubscriptionResponse is the read-endpoint shape consumed by internal
// dashboards.
type SubscriptionResponse struct {
	ID uint64 `json:"id"`

	SubscriberID string `json:"subscriber_id"`
	CreatorID    string `json:"creator_id"`
	Interval     string `json:"interval"`

	Status string `json:"status"`

	BasePriceCents int64  `json:"base_price_cents"`
	Currency       string `json:"currency"`
	FeeModel       string `json:"fee_model"`
	FeeMode        string `json:"fee_mode,omitempty"`

	LifetimeNetCents int64 `json:"lifetime_net_cents"`
	PaymentCount     int32 `json:"payment_count"`

	CurrentPeriodEnd  string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CanceledAt        string `json:"canceled_at,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type PaymentResponse struct {
	ID uint64 `json:"id"`

	ProviderEventID string `json:"provider_event_id"`

	GrossCents int64 `json:"gross_cents"`
	FeeCents   int64 `json:"fee_cents"`
	NetCents   int64 `json:"net_cents"`

	SubscriberFeeCents *int64 `json:"subscriber_fee_cents,omitempty"`
	CreatorFeeCents    *int64 `json:"creator_fee_cents,omitempty"`

	FeeModel            string `json:"fee_model"`
	FeeEffectiveRateBps int32  `json:"fee_effective_rate_bps"`
	FeeWasCapped        bool   `json:"fee_was_capped"`

	Status   string `json:"status"`
	Currency string `json:"currency"`

	OccurredAt string `json:"occurred_at"`
	CreatedAt  string `json:"created_at"`
}

type SubscriptionEnvelopeResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
}

type ListPaymentsResponse struct {
	Payments []*PaymentResponse `json:"payments"`
}
