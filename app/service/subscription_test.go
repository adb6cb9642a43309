package service

import (
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

func TestAddMonthsClampedOverflowLandsOnLastDay(t *testing.T) {
	cases := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{
			name:   "jan 31 plus one month clamps to feb 28",
			from:   time.Date(2025, time.January, 31, 10, 30, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, time.February, 28, 10, 30, 0, 0, time.UTC),
		},
		{
			name:   "jan 31 plus one month in a leap year clamps to feb 29",
			from:   time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "mid-month day is preserved",
			from:   time.Date(2025, time.March, 15, 8, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2025, time.April, 15, 8, 0, 0, 0, time.UTC),
		},
		{
			name:   "december rolls into next year",
			from:   time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
			months: 2,
			want:   time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "twelve months for yearly interval",
			from:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
			months: 12,
			want:   time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := addMonthsClamped(tc.from, tc.months)
			if !got.Equal(tc.want) {
				t.Fatalf("addMonthsClamped(%v, %d) = %v, want %v", tc.from, tc.months, got, tc.want)
			}
		})
	}
}

func TestResolveChargeTransition(t *testing.T) {
	if got := resolveChargeTransition(nil); got != TransitionCreate {
		t.Fatalf("expected create for missing row, got %s", TransitionName(got))
	}
	if got := resolveChargeTransition(&entity.Subscription{Status: entity.SubscriptionStatusCanceled}); got != TransitionReactivate {
		t.Fatalf("expected reactivate for canceled row, got %s", TransitionName(got))
	}
	for _, status := range []int32{
		entity.SubscriptionStatusPending,
		entity.SubscriptionStatusActive,
		entity.SubscriptionStatusPastDue,
		entity.SubscriptionStatusPaused,
	} {
		if got := resolveChargeTransition(&entity.Subscription{Status: status}); got != TransitionRenew {
			t.Fatalf("expected renew for status %s, got %s", entity.SubscriptionStatusName(status), TransitionName(got))
		}
	}
}

func TestApplyChargeTransitionRenewExtendsFromPeriodEnd(t *testing.T) {
	now := time.Now().UTC()
	occurredAt := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, time.June, 20, 12, 0, 0, 0, time.UTC)
	sub := &entity.Subscription{
		Status:           entity.SubscriptionStatusActive,
		Interval:         entity.IntervalMonth,
		LifetimeNetCents: 955,
		PaymentCount:     1,
		CurrentPeriodEnd: &periodEnd,
	}

	if err := applyChargeTransition(sub, TransitionRenew, 955, occurredAt, now); err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if sub.LifetimeNetCents != 1910 {
		t.Fatalf("expected lifetime 1910, got %d", sub.LifetimeNetCents)
	}
	if sub.PaymentCount != 2 {
		t.Fatalf("expected payment count 2, got %d", sub.PaymentCount)
	}
	want := time.Date(2025, time.July, 20, 12, 0, 0, 0, time.UTC)
	if !sub.CurrentPeriodEnd.Equal(want) {
		t.Fatalf("expected period end extended from previous end to %v, got %v", want, sub.CurrentPeriodEnd)
	}
}

func TestApplyChargeTransitionRenewAfterLapseExtendsFromCharge(t *testing.T) {
	now := time.Now().UTC()
	occurredAt := time.Date(2025, time.August, 5, 0, 0, 0, 0, time.UTC)
	lapsedEnd := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	sub := &entity.Subscription{
		Status:           entity.SubscriptionStatusPastDue,
		Interval:         entity.IntervalMonth,
		PaymentCount:     3,
		CurrentPeriodEnd: &lapsedEnd,
	}

	if err := applyChargeTransition(sub, TransitionRenew, 955, occurredAt, now); err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if sub.Status != entity.SubscriptionStatusActive {
		t.Fatalf("expected active after recovery, got %s", entity.SubscriptionStatusName(sub.Status))
	}
	want := time.Date(2025, time.September, 5, 0, 0, 0, 0, time.UTC)
	if !sub.CurrentPeriodEnd.Equal(want) {
		t.Fatalf("expected period end %v, got %v", want, sub.CurrentPeriodEnd)
	}
}

func TestApplyChargeTransitionReactivateClearsCancellation(t *testing.T) {
	now := time.Now().UTC()
	canceledAt := now.Add(-30 * 24 * time.Hour)
	sub := &entity.Subscription{
		Status:            entity.SubscriptionStatusCanceled,
		Interval:          entity.IntervalMonth,
		LifetimeNetCents:  5000,
		PaymentCount:      5,
		CancelAtPeriodEnd: true,
		CanceledAt:        &canceledAt,
	}

	if err := applyChargeTransition(sub, TransitionReactivate, 955, now, now); err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}
	if sub.Status != entity.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", entity.SubscriptionStatusName(sub.Status))
	}
	if sub.CancelAtPeriodEnd || sub.CanceledAt != nil {
		t.Fatal("expected cancellation fields cleared")
	}
	if sub.LifetimeNetCents != 5955 {
		t.Fatalf("expected lifetime counter to continue across the gap, got %d", sub.LifetimeNetCents)
	}
	if sub.PaymentCount != 6 {
		t.Fatalf("expected payment count 6, got %d", sub.PaymentCount)
	}
}

func TestApplyFailTransitionOnlyFromActive(t *testing.T) {
	now := time.Now().UTC()

	sub := &entity.Subscription{Status: entity.SubscriptionStatusActive}
	if !applyFailTransition(sub, now) {
		t.Fatal("expected fail transition to apply from active")
	}
	if sub.Status != entity.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %s", entity.SubscriptionStatusName(sub.Status))
	}

	for _, status := range []int32{
		entity.SubscriptionStatusPastDue,
		entity.SubscriptionStatusPaused,
		entity.SubscriptionStatusCanceled,
	} {
		sub := &entity.Subscription{Status: status}
		if applyFailTransition(sub, now) {
			t.Fatalf("expected no-op from %s", entity.SubscriptionStatusName(status))
		}
		if sub.Status != status {
			t.Fatalf("expected status unchanged, got %s", entity.SubscriptionStatusName(sub.Status))
		}
	}
}

func TestApplyCancelTransitionImmediateAndAtPeriodEnd(t *testing.T) {
	now := time.Now().UTC()

	sub := &entity.Subscription{Status: entity.SubscriptionStatusActive}
	if !applyCancelTransition(sub, false, now) {
		t.Fatal("expected immediate cancel to apply")
	}
	if sub.Status != entity.SubscriptionStatusCanceled || sub.CanceledAt == nil {
		t.Fatal("expected canceled status with timestamp")
	}

	futureEnd := now.Add(10 * 24 * time.Hour)
	deferred := &entity.Subscription{Status: entity.SubscriptionStatusActive, CurrentPeriodEnd: &futureEnd}
	if !applyCancelTransition(deferred, true, now) {
		t.Fatal("expected deferred cancel to apply")
	}
	if deferred.Status != entity.SubscriptionStatusActive || !deferred.CancelAtPeriodEnd {
		t.Fatal("expected status kept active with cancel_at_period_end set")
	}
	if applyCancelTransition(deferred, true, now) {
		t.Fatal("expected second deferred cancel to be a no-op")
	}

	pastEnd := now.Add(-24 * time.Hour)
	lapsed := &entity.Subscription{Status: entity.SubscriptionStatusActive, CurrentPeriodEnd: &pastEnd}
	if !applyCancelTransition(lapsed, true, now) {
		t.Fatal("expected at-period-end cancel on lapsed period to cancel now")
	}
	if lapsed.Status != entity.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", entity.SubscriptionStatusName(lapsed.Status))
	}

	terminal := &entity.Subscription{Status: entity.SubscriptionStatusCanceled}
	if applyCancelTransition(terminal, false, now) {
		t.Fatal("canceled is terminal, expected no-op")
	}
}

func TestApplyPauseResumeTransitions(t *testing.T) {
	now := time.Now().UTC()

	sub := &entity.Subscription{Status: entity.SubscriptionStatusActive}
	if !applyPauseTransition(sub, now) {
		t.Fatal("expected pause from active")
	}
	if sub.Status != entity.SubscriptionStatusPaused {
		t.Fatalf("expected paused, got %s", entity.SubscriptionStatusName(sub.Status))
	}
	if !applyResumeTransition(sub, now) {
		t.Fatal("expected resume from paused")
	}
	if sub.Status != entity.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", entity.SubscriptionStatusName(sub.Status))
	}

	pastDue := &entity.Subscription{Status: entity.SubscriptionStatusPastDue}
	if applyPauseTransition(pastDue, now) {
		t.Fatal("expected pause no-op from past_due")
	}
	if applyResumeTransition(pastDue, now) {
		t.Fatal("expected resume no-op from past_due")
	}
}
