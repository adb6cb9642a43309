package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
)

// RunAuditBatch sweeps recently settled ledger rows and re-checks the
// gross/fee/net arithmetic. Rows that no longer satisfy it are flagged
// needs_review for a human, never auto-corrected. Capped rows get a wider
// tolerance band because the processor minimum distorts small amounts.
func (s *BillingService) RunAuditBatch(ctx context.Context) error {
	now := time.Now().UTC()
	since := now.Add(-s.webhooksCfg.AuditWindow)
	items, err := s.payments.ListForAudit(ctx, since, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil {
			continue
		}
		reason := s.auditViolation(payment)
		if reason == "" {
			continue
		}
		if err := s.flagForReview(ctx, payment, reason); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// auditViolation returns a non-empty reason when the row's amounts disagree
// with the fee invariant beyond tolerance.
func (s *BillingService) auditViolation(payment *entity.Payment) string {
	var expectedNet int64
	if payment.CreatorFeeCents != nil {
		// Split attribution: the payer-side share is already inside gross,
		// so the creator loses only the creator-side deduction.
		expectedNet = payment.GrossCents - *payment.CreatorFeeCents
		if payment.SubscriberFeeCents != nil && *payment.SubscriberFeeCents+*payment.CreatorFeeCents != payment.FeeCents {
			return "split attribution does not sum to total fee"
		}
	} else {
		expectedNet = payment.GrossCents - payment.FeeCents
	}

	diff := payment.NetCents - expectedNet
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return ""
	}

	if payment.FeeWasCapped {
		if diff <= s.policy.MinFeeCents {
			return ""
		}
		return fmt.Sprintf("net deviates by %d cents on a capped row", diff)
	}
	if payment.GrossCents > 0 && diff*10000 <= payment.GrossCents*int64(s.webhooksCfg.ReconcileToleranceBps) {
		return ""
	}
	return fmt.Sprintf("net deviates by %d cents from fee invariant", diff)
}

// flagForReview moves one payment to needs_review under the subscription
// lock. A busy lock is skipped silently: the next sweep picks the row up.
func (s *BillingService) flagForReview(ctx context.Context, payment *entity.Payment, reason string) error {
	sub, err := s.subscriptions.FindByID(ctx, payment.SubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrSubscriptionNotFound
	}

	key := sub.Key()
	token, acquired, err := s.locker.TryAcquire(ctx, key, s.webhooksCfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil
	}
	defer s.releaseLock(ctx, key, token)

	return s.ledger.WithinTx(ctx, func(repos *LedgerRepos) error {
		current, err := repos.Payments.FindByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != entity.PaymentStatusSucceeded {
			return nil
		}

		now := time.Now().UTC()
		oldStatus := current.Status
		if err := repos.Payments.UpdateStatus(ctx, current.ID, entity.PaymentStatusNeedsReview, now); err != nil {
			return err
		}

		reasonJSON := fmt.Sprintf(`{"reason":%q}`, reason)
		if err := repos.Events.Create(ctx, &entity.SubscriptionEvent{
			SubscriptionID: current.SubscriptionID,
			PaymentID:      &current.ID,
			EventType:      "audit_flagged",
			OldStatus:      &oldStatus,
			NewStatus:      entity.PaymentStatusNeedsReview,
			PayloadJSON:    &reasonJSON,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		s.logger.WithField("payment_id", current.ID).
			WithField("reason", reason).
			Warn("audit sweep flagged payment for review")
		return nil
	})
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
