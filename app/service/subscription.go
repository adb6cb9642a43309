package service

import (
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

// Transition is the explicit set of subscription mutations. Every ledger
// write names exactly one of these; there is no implicit upsert.
const (
	TransitionCreate     int32 = 1
	TransitionReactivate int32 = 2
	TransitionRenew      int32 = 3
	TransitionFail       int32 = 4
	TransitionCancel     int32 = 5
	TransitionPause      int32 = 6
	TransitionResume     int32 = 7
)

func TransitionName(transition int32) string {
	switch transition {
	case TransitionCreate:
		return "subscription_created"
	case TransitionReactivate:
		return "subscription_reactivated"
	case TransitionRenew:
		return "subscription_renewed"
	case TransitionFail:
		return "subscription_past_due"
	case TransitionCancel:
		return "subscription_canceled"
	case TransitionPause:
		return "subscription_paused"
	case TransitionResume:
		return "subscription_resumed"
	default:
		return "unknown"
	}
}

// resolveChargeTransition maps a settled charge onto the state machine. A
// missing row is the first charge, a canceled row is a resubscribe, anything
// else is a renewal (including recovery from past_due).
func resolveChargeTransition(existing *entity.Subscription) int32 {
	switch {
	case existing == nil:
		return TransitionCreate
	case existing.Status == entity.SubscriptionStatusCanceled:
		return TransitionReactivate
	default:
		return TransitionRenew
	}
}

// applyChargeTransition mutates sub for a settled charge. For Create the
// caller passes a fresh row with identity and fee policy already filled in;
// this function owns status, counters and period arithmetic. basePrice,
// feeModel and feeMode are never touched for existing rows.
func applyChargeTransition(sub *entity.Subscription, transition int32, netCents int64, occurredAt, now time.Time) error {
	switch transition {
	case TransitionCreate:
		sub.Status = entity.SubscriptionStatusActive
		sub.LifetimeNetCents = netCents
		sub.PaymentCount = 1
		periodEnd := nextPeriodEnd(sub.Interval, occurredAt)
		sub.CurrentPeriodEnd = &periodEnd
		sub.CreatedAt = now

	case TransitionReactivate:
		sub.Status = entity.SubscriptionStatusActive
		sub.CancelAtPeriodEnd = false
		sub.CanceledAt = nil
		sub.LifetimeNetCents += netCents
		sub.PaymentCount++
		periodEnd := nextPeriodEnd(sub.Interval, occurredAt)
		sub.CurrentPeriodEnd = &periodEnd

	case TransitionRenew:
		sub.Status = entity.SubscriptionStatusActive
		sub.LifetimeNetCents += netCents
		sub.PaymentCount++
		from := occurredAt
		if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(occurredAt) {
			from = *sub.CurrentPeriodEnd
		}
		periodEnd := nextPeriodEnd(sub.Interval, from)
		sub.CurrentPeriodEnd = &periodEnd

	default:
		return fmt.Errorf("%w: %s is not a charge transition", ErrInvalidTransition, TransitionName(transition))
	}

	sub.UpdatedAt = now
	return nil
}

// applyFailTransition records a failed renewal. Only an active row moves to
// past_due; any other state is left untouched and reported back to the
// caller so replays stay silent.
func applyFailTransition(sub *entity.Subscription, now time.Time) bool {
	if sub.Status != entity.SubscriptionStatusActive {
		return false
	}
	sub.Status = entity.SubscriptionStatusPastDue
	sub.UpdatedAt = now
	return true
}

// applyCancelTransition cancels the subscription, either immediately or at
// the end of the already-paid period. Canceled is terminal: cancelling a
// canceled row changes nothing.
func applyCancelTransition(sub *entity.Subscription, atPeriodEnd bool, now time.Time) bool {
	if sub.Status == entity.SubscriptionStatusCanceled {
		return false
	}

	if atPeriodEnd && sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now) {
		if sub.CancelAtPeriodEnd {
			return false
		}
		sub.CancelAtPeriodEnd = true
		sub.UpdatedAt = now
		return true
	}

	sub.Status = entity.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = false
	canceledAt := now
	sub.CanceledAt = &canceledAt
	sub.UpdatedAt = now
	return true
}

func applyPauseTransition(sub *entity.Subscription, now time.Time) bool {
	if sub.Status != entity.SubscriptionStatusActive {
		return false
	}
	sub.Status = entity.SubscriptionStatusPaused
	sub.UpdatedAt = now
	return true
}

func applyResumeTransition(sub *entity.Subscription, now time.Time) bool {
	if sub.Status != entity.SubscriptionStatusPaused {
		return false
	}
	sub.Status = entity.SubscriptionStatusActive
	sub.UpdatedAt = now
	return true
}

func nextPeriodEnd(interval string, from time.Time) time.Time {
	months := 1
	if interval == entity.IntervalYear {
		months = 12
	}
	return addMonthsClamped(from, months)
}

// addMonthsClamped advances by whole calendar months, clamping day-of-month
// overflow to the last day of the target month (Jan 31 + 1 month lands on
// Feb 28/29, never Mar 2/3).
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
