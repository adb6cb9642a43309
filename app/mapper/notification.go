package mapper

import (
	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
	"github.com/vibast-solutions/ms-go-creator-billing/app/types"
)

func NotificationFromLedger(sub *entity.Subscription, payment *entity.Payment, eventType string) *types.LedgerNotification {
	if sub == nil {
		return nil
	}

	notification := &types.LedgerNotification{
		EventType:          eventType,
		SubscriberID:       sub.SubscriberID,
		CreatorID:          sub.CreatorID,
		Interval:           sub.Interval,
		SubscriptionStatus: entity.SubscriptionStatusName(sub.Status),
		LifetimeNetCents:   sub.LifetimeNetCents,
		PaymentCount:       sub.PaymentCount,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	}

	if payment != nil {
		notification.Payment = &types.PaymentNotification{
			ProviderEventID: payment.ProviderEventID,
			Status:          entity.PaymentStatusName(payment.Status),
			GrossCents:      payment.GrossCents,
			FeeCents:        payment.FeeCents,
			NetCents:        payment.NetCents,
			Currency:        payment.Currency,
			OccurredAt:      payment.OccurredAt.UTC(),
		}
	}

	return notification
}
