package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

const (
	EventChargeSucceeded     = "charge.succeeded"
	EventChargeFailed        = "charge.failed"
	EventSubscriptionCancel  = "subscription.canceled"
	EventSubscriptionPaused  = "subscription.paused"
	EventSubscriptionResumed = "subscription.resumed"
	EventRefundCreated       = "refund.created"
	EventDisputeCreated      = "dispute.created"
	EventDisputeClosed       = "dispute.closed"
	EventPayoutConfirmed     = "payout.confirmed"
)

var knownEventTypes = map[string]bool{
	EventChargeSucceeded:     true,
	EventChargeFailed:        true,
	EventSubscriptionCancel:  true,
	EventSubscriptionPaused:  true,
	EventSubscriptionResumed: true,
	EventRefundCreated:       true,
	EventDisputeCreated:      true,
	EventDisputeClosed:       true,
	EventPayoutConfirmed:     true,
}

// ProviderEvent is the validated envelope of one inbound webhook delivery.
// The payload stays raw until the event type selects a typed parse; unknown
// fields in the typed payloads are rejected, not coerced.
type ProviderEvent struct {
	ProviderEventID string          `json:"provider_event_id"`
	EventType       string          `json:"event_type"`
	Provider        string          `json:"-"`
	Payload         json.RawMessage `json:"payload"`
}

func NewProviderEventFromContext(ctx echo.Context) (*ProviderEvent, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	var event ProviderEvent
	if err := strictUnmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("malformed event envelope: %w", err)
	}

	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	event.EventType = strings.TrimSpace(event.EventType)
	event.Provider = strings.ToLower(strings.TrimSpace(ctx.Param("provider")))

	return &event, nil
}

func (e *ProviderEvent) Validate() error {
	if e.ProviderEventID == "" {
		return errors.New("provider_event_id is required")
	}
	if e.EventType == "" {
		return errors.New("event_type is required")
	}
	if !knownEventTypes[e.EventType] {
		return fmt.Errorf("unknown event_type %q", e.EventType)
	}
	if len(e.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

// CheckoutContext carries checkout-time client details used for chargeback
// defense and conversion tracking.
type CheckoutContext struct {
	IPAddress    string     `json:"ip_address"`
	UserAgent    string     `json:"user_agent"`
	Locale       string     `json:"locale"`
	CheckoutAt   *time.Time `json:"checkout_at"`
	SessionID    string     `json:"session_id"`
	ReferralCode string     `json:"referral_code"`
}

// ChargePayload is the metadata of charge.succeeded / charge.failed events.
type ChargePayload struct {
	SubscriberID   string           `json:"subscriber_id"`
	CreatorID      string           `json:"creator_id"`
	Interval       string           `json:"interval"`
	AmountCents    int64            `json:"amount_cents"`
	Currency       string           `json:"currency"`
	FeeModel       string           `json:"fee_model"`
	FeeMode        string           `json:"fee_mode"`
	CreatorClass   string           `json:"creator_class"`
	CreatorCountry string           `json:"creator_country"`
	FailureCode    string           `json:"failure_code"`
	OccurredAt     time.Time        `json:"occurred_at"`
	Checkout       *CheckoutContext `json:"checkout"`
}

func (e *ProviderEvent) ChargePayload() (*ChargePayload, error) {
	var payload ChargePayload
	if err := strictUnmarshal(e.Payload, &payload); err != nil {
		return nil, fmt.Errorf("malformed charge payload: %w", err)
	}

	payload.SubscriberID = strings.TrimSpace(payload.SubscriberID)
	payload.CreatorID = strings.TrimSpace(payload.CreatorID)
	payload.Interval = strings.ToLower(strings.TrimSpace(payload.Interval))
	payload.Currency = strings.ToUpper(strings.TrimSpace(payload.Currency))
	payload.FeeModel = strings.ToLower(strings.TrimSpace(payload.FeeModel))
	payload.FeeMode = strings.ToLower(strings.TrimSpace(payload.FeeMode))
	payload.CreatorClass = strings.ToLower(strings.TrimSpace(payload.CreatorClass))
	payload.CreatorCountry = strings.ToUpper(strings.TrimSpace(payload.CreatorCountry))

	if err := payload.validate(e.EventType); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (p *ChargePayload) validate(eventType string) error {
	if p.SubscriberID == "" {
		return errors.New("subscriber_id is required")
	}
	if p.CreatorID == "" {
		return errors.New("creator_id is required")
	}
	if p.Interval != entity.IntervalMonth && p.Interval != entity.IntervalYear {
		return errors.New("interval must be month or year")
	}
	if eventType == EventChargeSucceeded {
		if p.AmountCents <= 0 {
			return errors.New("amount_cents must be > 0")
		}
		if len(p.Currency) != 3 {
			return errors.New("currency must be 3 letters")
		}
	}
	switch p.FeeModel {
	case "", entity.FeeModelSplit, entity.FeeModelLegacy, entity.FeeModelProgressive:
	case entity.FeeModelFlat:
		if p.FeeMode != entity.FeeModeAbsorb && p.FeeMode != entity.FeeModePassToSubscriber {
			return errors.New("fee_mode must be absorb or pass_to_subscriber for the flat model")
		}
	default:
		return fmt.Errorf("unknown fee_model %q", p.FeeModel)
	}
	if p.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	return nil
}

// SubscriptionActionPayload is the metadata of cancel/pause/resume events.
type SubscriptionActionPayload struct {
	SubscriberID string    `json:"subscriber_id"`
	CreatorID    string    `json:"creator_id"`
	Interval     string    `json:"interval"`
	AtPeriodEnd  bool      `json:"at_period_end"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (e *ProviderEvent) SubscriptionActionPayload() (*SubscriptionActionPayload, error) {
	var payload SubscriptionActionPayload
	if err := strictUnmarshal(e.Payload, &payload); err != nil {
		return nil, fmt.Errorf("malformed subscription payload: %w", err)
	}

	payload.SubscriberID = strings.TrimSpace(payload.SubscriberID)
	payload.CreatorID = strings.TrimSpace(payload.CreatorID)
	payload.Interval = strings.ToLower(strings.TrimSpace(payload.Interval))

	if payload.SubscriberID == "" {
		return nil, errors.New("subscriber_id is required")
	}
	if payload.CreatorID == "" {
		return nil, errors.New("creator_id is required")
	}
	if payload.Interval != entity.IntervalMonth && payload.Interval != entity.IntervalYear {
		return nil, errors.New("interval must be month or year")
	}
	if payload.OccurredAt.IsZero() {
		return nil, errors.New("occurred_at is required")
	}
	return &payload, nil
}

// ReversalPayload is the metadata of refund and dispute events. ChargeEventID
// names the provider event id of the original settled charge.
type ReversalPayload struct {
	ChargeEventID string    `json:"charge_event_id"`
	Outcome       string    `json:"outcome"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e *ProviderEvent) ReversalPayload() (*ReversalPayload, error) {
	var payload ReversalPayload
	if err := strictUnmarshal(e.Payload, &payload); err != nil {
		return nil, fmt.Errorf("malformed reversal payload: %w", err)
	}

	payload.ChargeEventID = strings.TrimSpace(payload.ChargeEventID)
	payload.Outcome = strings.ToLower(strings.TrimSpace(payload.Outcome))

	if payload.ChargeEventID == "" {
		return nil, errors.New("charge_event_id is required")
	}
	if e.EventType == EventDisputeClosed && payload.Outcome != "won" && payload.Outcome != "lost" {
		return nil, errors.New("outcome must be won or lost")
	}
	if payload.OccurredAt.IsZero() {
		return nil, errors.New("occurred_at is required")
	}
	return &payload, nil
}

// PayoutPayload is the metadata of payout.confirmed events.
type PayoutPayload struct {
	ChargeEventID string    `json:"charge_event_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e *ProviderEvent) PayoutPayload() (*PayoutPayload, error) {
	var payload PayoutPayload
	if err := strictUnmarshal(e.Payload, &payload); err != nil {
		return nil, fmt.Errorf("malformed payout payload: %w", err)
	}

	payload.ChargeEventID = strings.TrimSpace(payload.ChargeEventID)
	payload.Currency = strings.ToUpper(strings.TrimSpace(payload.Currency))

	if payload.ChargeEventID == "" {
		return nil, errors.New("charge_event_id is required")
	}
	if payload.AmountCents <= 0 {
		return nil, errors.New("amount_cents must be > 0")
	}
	if len(payload.Currency) != 3 {
		return nil, errors.New("currency must be 3 letters")
	}
	if payload.OccurredAt.IsZero() {
		return nil, errors.New("occurred_at is required")
	}
	return &payload, nil
}

func strictUnmarshal(data []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("trailing data after JSON document")
	}
	return nil
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
