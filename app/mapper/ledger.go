package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
	"github.com/vibast-solutions/ms-go-creator-billing/app/types"
)

func SubscriptionToResponse(item *entity.Subscription) *types.SubscriptionResponse {
	if item == nil {
		return nil
	}

	return &types.SubscriptionResponse{
		ID:                item.ID,
		SubscriberID:      item.SubscriberID,
		CreatorID:         item.CreatorID,
		Interval:          item.Interval,
		Status:            entity.SubscriptionStatusName(item.Status),
		BasePriceCents:    item.BasePriceCents,
		Currency:          item.Currency,
		FeeModel:          item.FeeModel,
		FeeMode:           item.FeeMode,
		LifetimeNetCents:  item.LifetimeNetCents,
		PaymentCount:      item.PaymentCount,
		CurrentPeriodEnd:  formatOptionalTime(item.CurrentPeriodEnd),
		CancelAtPeriodEnd: item.CancelAtPeriodEnd,
		CanceledAt:        formatOptionalTime(item.CanceledAt),
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentToResponse(item *entity.Payment) *types.PaymentResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentResponse{
		ID:                  item.ID,
		ProviderEventID:     item.ProviderEventID,
		GrossCents:          item.GrossCents,
		FeeCents:            item.FeeCents,
		NetCents:            item.NetCents,
		SubscriberFeeCents:  item.SubscriberFeeCents,
		CreatorFeeCents:     item.CreatorFeeCents,
		FeeModel:            item.FeeModel,
		FeeEffectiveRateBps: item.FeeEffectiveRateBps,
		FeeWasCapped:        item.FeeWasCapped,
		Status:              entity.PaymentStatusName(item.Status),
		Currency:            item.Currency,
		OccurredAt:          item.OccurredAt.UTC().Format(time.RFC3339),
		CreatedAt:           item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentsToResponse(items []*entity.Payment) []*types.PaymentResponse {
	result := make([]*types.PaymentResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentToResponse(item))
	}
	return result
}

func formatOptionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
