package service

import (
	"context"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

func (s *BillingService) GetSubscription(ctx context.Context, subscriberID, creatorID, interval string) (*entity.Subscription, error) {
	sub, err := s.subscriptions.FindByIdentity(ctx, subscriberID, creatorID, interval)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *BillingService) ListSubscriptionPayments(ctx context.Context, subscriberID, creatorID, interval string, limit, offset int32) ([]*entity.Payment, error) {
	sub, err := s.subscriptions.FindByIdentity(ctx, subscriberID, creatorID, interval)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.payments.ListBySubscription(ctx, sub.ID, limit, offset)
}
