package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
	"github.com/vibast-solutions/ms-go-creator-billing/app/fees"
	"github.com/vibast-solutions/ms-go-creator-billing/app/lock"
	"github.com/vibast-solutions/ms-go-creator-billing/app/repository"
	"github.com/vibast-solutions/ms-go-creator-billing/app/types"
	"github.com/vibast-solutions/ms-go-creator-billing/config"
)

const (
	defaultListLimit = int32(100)
	defaultBatchSize = int32(100)
	defaultLockTTL   = 30 * time.Second
)

type txSubscriptionRepository interface {
	Create(ctx context.Context, sub *entity.Subscription) error
	Update(ctx context.Context, sub *entity.Subscription) error
	FindByID(ctx context.Context, id uint64) (*entity.Subscription, error)
	FindByIdentity(ctx context.Context, subscriberID, creatorID, interval string) (*entity.Subscription, error)
}

type txPaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByProviderEventID(ctx context.Context, providerEventID string) (*entity.Payment, error)
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	UpdateStatus(ctx context.Context, id uint64, status int32, updatedAt time.Time) error
}

type txDisputeEvidenceRepository interface {
	Create(ctx context.Context, evidence *entity.DisputeEvidence) error
}

type txSubscriptionEventRepository interface {
	Create(ctx context.Context, event *entity.SubscriptionEvent) error
}

// LedgerRepos is the set of repositories visible inside one ledger
// transaction.
type LedgerRepos struct {
	Subscriptions txSubscriptionRepository
	Payments      txPaymentRepository
	Disputes      txDisputeEvidenceRepository
	Events        txSubscriptionEventRepository
}

type ledgerStore interface {
	WithinTx(ctx context.Context, fn func(repos *LedgerRepos) error) error
}

// mysqlLedgerStore adapts repository.Ledger to the transaction shape the
// service consumes.
type mysqlLedgerStore struct {
	ledger *repository.Ledger
}

func NewLedgerStore(ledger *repository.Ledger) *mysqlLedgerStore {
	return &mysqlLedgerStore{ledger: ledger}
}

func (s *mysqlLedgerStore) WithinTx(ctx context.Context, fn func(repos *LedgerRepos) error) error {
	return s.ledger.WithinTx(ctx, func(tx *repository.LedgerTx) error {
		return fn(&LedgerRepos{
			Subscriptions: tx.Subscriptions,
			Payments:      tx.Payments,
			Disputes:      tx.Disputes,
			Events:        tx.Events,
		})
	})
}

type subscriptionReader interface {
	FindByID(ctx context.Context, id uint64) (*entity.Subscription, error)
	FindByIdentity(ctx context.Context, subscriberID, creatorID, interval string) (*entity.Subscription, error)
}

type paymentReader interface {
	FindByProviderEventID(ctx context.Context, providerEventID string) (*entity.Payment, error)
	ListBySubscription(ctx context.Context, subscriptionID uint64, limit, offset int32) ([]*entity.Payment, error)
	ListForAudit(ctx context.Context, since time.Time, limit int32) ([]*entity.Payment, error)
}

type checkoutSessionRepository interface {
	MarkConverted(ctx context.Context, sessionID string, paymentID uint64, convertedAt time.Time) error
}

// BillingService owns the webhook-to-ledger pipeline: idempotent intake,
// per-subscription locking, fee computation, the state transition and the
// atomic ledger write, followed by post-commit side effects.
type BillingService struct {
	ledger        ledgerStore
	subscriptions subscriptionReader
	payments      paymentReader
	sessions      checkoutSessionRepository
	locker        lock.Locker
	policy        fees.Policy
	dispatcher    *Dispatcher
	webhooksCfg   config.WebhooksConfig
	jobsCfg       config.JobsConfig
	logger        logrus.FieldLogger
}

func NewBillingService(
	ledger ledgerStore,
	subscriptions subscriptionReader,
	payments paymentReader,
	sessions checkoutSessionRepository,
	locker lock.Locker,
	policy fees.Policy,
	dispatcher *Dispatcher,
	webhooksCfg config.WebhooksConfig,
	jobsCfg config.JobsConfig,
	logger logrus.FieldLogger,
) *BillingService {
	if webhooksCfg.LockTTL <= 0 {
		webhooksCfg.LockTTL = defaultLockTTL
	}

	return &BillingService{
		ledger:        ledger,
		subscriptions: subscriptions,
		payments:      payments,
		sessions:      sessions,
		locker:        locker,
		policy:        policy,
		dispatcher:    dispatcher,
		webhooksCfg:   webhooksCfg,
		jobsCfg:       jobsCfg,
		logger:        logger,
	}
}

// HandleProviderEvent runs one webhook delivery through the pipeline.
// Sentinel errors tell the transport how to answer: ErrInvalidEvent must not
// be retried, ErrDuplicateEvent and ErrLockBusy are acknowledged as handled,
// ErrEventOutOfOrder and everything else invite redelivery.
func (s *BillingService) HandleProviderEvent(ctx context.Context, event *types.ProviderEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	// Unlocked fast path for obvious retries. Not authoritative: the same
	// check runs again inside the locked transaction.
	existing, err := s.payments.FindByProviderEventID(ctx, event.ProviderEventID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateEvent
	}

	switch event.EventType {
	case types.EventChargeSucceeded:
		return s.handleChargeSucceeded(ctx, event)
	case types.EventChargeFailed:
		return s.handleChargeFailed(ctx, event)
	case types.EventSubscriptionCancel, types.EventSubscriptionPaused, types.EventSubscriptionResumed:
		return s.handleSubscriptionAction(ctx, event)
	case types.EventRefundCreated, types.EventDisputeCreated, types.EventDisputeClosed:
		return s.handleReversal(ctx, event)
	case types.EventPayoutConfirmed:
		return s.handlePayoutConfirmed(ctx, event)
	default:
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidEvent, event.EventType)
	}
}

func (s *BillingService) handleChargeSucceeded(ctx context.Context, event *types.ProviderEvent) error {
	payload, err := event.ChargePayload()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	key := entity.SubscriptionKey(payload.SubscriberID, payload.CreatorID, payload.Interval)
	token, acquired, err := s.locker.TryAcquire(ctx, key, s.webhooksCfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return ErrLockBusy
	}
	defer s.releaseLock(ctx, key, token)

	var (
		committedSub     *entity.Subscription
		committedPayment *entity.Payment
		transition       int32
	)

	txErr := s.ledger.WithinTx(ctx, func(repos *LedgerRepos) error {
		if dup, err := repos.Payments.FindByProviderEventID(ctx, event.ProviderEventID); err != nil {
			return err
		} else if dup != nil {
			return ErrDuplicateEvent
		}

		sub, err := repos.Subscriptions.FindByIdentity(ctx, payload.SubscriberID, payload.CreatorID, payload.Interval)
		if err != nil {
			return err
		}

		transition = resolveChargeTransition(sub)
		now := time.Now().UTC()

		quoteInput := s.quoteInputFor(sub, payload)
		breakdown, err := s.policy.Quote(quoteInput)
		if err != nil {
			if errors.Is(err, fees.ErrUnknownModel) || errors.Is(err, fees.ErrUnknownMode) || errors.Is(err, fees.ErrInvalidAmount) {
				return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
			}
			return err
		}

		var oldStatus *int32
		if transition == TransitionCreate {
			sub = &entity.Subscription{
				SubscriberID:   payload.SubscriberID,
				CreatorID:      payload.CreatorID,
				Interval:       payload.Interval,
				BasePriceCents: breakdown.BasePriceCents,
				Currency:       payload.Currency,
				FeeModel:       quoteInput.Model,
				FeeMode:        quoteInput.FeeMode,
				CreatorClass:   quoteInput.CreatorClass,
				CreatorCountry: quoteInput.CreatorCountry,
			}
			if err := applyChargeTransition(sub, transition, breakdown.NetCents, payload.OccurredAt, now); err != nil {
				return err
			}
			if err := repos.Subscriptions.Create(ctx, sub); err != nil {
				return err
			}
		} else {
			previous := sub.Status
			oldStatus = &previous
			if err := applyChargeTransition(sub, transition, breakdown.NetCents, payload.OccurredAt, now); err != nil {
				return err
			}
			if err := repos.Subscriptions.Update(ctx, sub); err != nil {
				return err
			}
		}

		payment := &entity.Payment{
			SubscriptionID:      sub.ID,
			ProviderEventID:     event.ProviderEventID,
			GrossCents:          breakdown.GrossCents,
			FeeCents:            breakdown.FeeCents,
			NetCents:            breakdown.NetCents,
			SubscriberFeeCents:  breakdown.SubscriberFeeCents,
			CreatorFeeCents:     breakdown.CreatorFeeCents,
			FeeModel:            sub.FeeModel,
			FeeEffectiveRateBps: breakdown.EffectiveRateBps,
			FeeWasCapped:        breakdown.WasCapped,
			Status:              entity.PaymentStatusSucceeded,
			Currency:            payload.Currency,
			OccurredAt:          payload.OccurredAt,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrPaymentAlreadyExists) {
				return ErrDuplicateEvent
			}
			return err
		}

		s.recordDisputeEvidence(ctx, repos, payment.ID, payload.Checkout, now)

		payloadJSON := string(event.Payload)
		if err := repos.Events.Create(ctx, &entity.SubscriptionEvent{
			SubscriptionID: sub.ID,
			PaymentID:      &payment.ID,
			EventType:      TransitionName(transition),
			OldStatus:      oldStatus,
			NewStatus:      sub.Status,
			PayloadJSON:    &payloadJSON,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		committedSub = sub
		committedPayment = payment
		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.markSessionConverted(ctx, payload.Checkout, committedPayment)
	s.dispatcher.AfterLedgerWrite(ctx, committedSub, committedPayment, TransitionName(transition))
	if transition == TransitionCreate || transition == TransitionReactivate || transition == TransitionRenew {
		s.dispatcher.CheckFeatureUnlocks(ctx, committedSub)
	}

	return nil
}

func (s *BillingService) handleChargeFailed(ctx context.Context, event *types.ProviderEvent) error {
	payload, err := event.ChargePayload()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	key := entity.SubscriptionKey(payload.SubscriberID, payload.CreatorID, payload.Interval)
	token, acquired, err := s.locker.TryAcquire(ctx, key, s.webhooksCfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return ErrLockBusy
	}
	defer s.releaseLock(ctx, key, token)

	var committedSub *entity.Subscription

	txErr := s.ledger.WithinTx(ctx, func(repos *LedgerRepos) error {
		sub, err := repos.Subscriptions.FindByIdentity(ctx, payload.SubscriberID, payload.CreatorID, payload.Interval)
		if err != nil {
			return err
		}
		if sub == nil {
			// First charge failed before any row existed: nothing to mark.
			return nil
		}

		now := time.Now().UTC()
		oldStatus := sub.Status
		if !applyFailTransition(sub, now) {
			return nil
		}
		if err := repos.Subscriptions.Update(ctx, sub); err != nil {
			return err
		}

		payloadJSON := string(event.Payload)
		if err := repos.Events.Create(ctx, &entity.SubscriptionEvent{
			SubscriptionID: sub.ID,
			EventType:      TransitionName(TransitionFail),
			OldStatus:      &oldStatus,
			NewStatus:      sub.Status,
			PayloadJSON:    &payloadJSON,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		committedSub = sub
		return nil
	})
	if txErr != nil {
		return txErr
	}

	if committedSub != nil {
		s.dispatcher.AfterLedgerWrite(ctx, committedSub, nil, TransitionName(TransitionFail))
	}
	return nil
}

func (s *BillingService) handleSubscriptionAction(ctx context.Context, event *types.ProviderEvent) error {
	payload, err := event.SubscriptionActionPayload()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	key := entity.SubscriptionKey(payload.SubscriberID, payload.CreatorID, payload.Interval)
	token, acquired, err := s.locker.TryAcquire(ctx, key, s.webhooksCfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return ErrLockBusy
	}
	defer s.releaseLock(ctx, key, token)

	var (
		committedSub *entity.Subscription
		transition   int32
	)

	txErr := s.ledger.WithinTx(ctx, func(repos *LedgerRepos) error {
		sub, err := repos.Subscriptions.FindByIdentity(ctx, payload.SubscriberID, payload.CreatorID, payload.Interval)
		if err != nil {
			return err
		}
		if sub == nil {
			s.logger.WithField("key", key).WithField("event_type", event.EventType).
				Warn("subscription action for unknown subscription, acknowledging")
			return nil
		}

		now := time.Now().UTC()
		oldStatus := sub.Status

		var changed bool
		switch event.EventType {
		case types.EventSubscriptionCancel:
			transition = TransitionCancel
			changed = applyCancelTransition(sub, payload.AtPeriodEnd, now)
		case types.EventSubscriptionPaused:
			transition = TransitionPause
			changed = applyPauseTransition(sub, now)
		case types.EventSubscriptionResumed:
			transition = TransitionResume
			changed = applyResumeTransition(sub, now)
		}
		if !changed {
			return nil
		}

		if err := repos.Subscriptions.Update(ctx, sub); err != nil {
			return err
		}

		payloadJSON := string(event.Payload)
		if err := repos.Events.Create(ctx, &entity.SubscriptionEvent{
			SubscriptionID: sub.ID,
			EventType:      TransitionName(transition),
			OldStatus:      &oldStatus,
			NewStatus:      sub.Status,
			PayloadJSON:    &payloadJSON,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		committedSub = sub
		return nil
	})
	if txErr != nil {
		return txErr
	}

	if committedSub != nil {
		s.dispatcher.AfterLedgerWrite(ctx, committedSub, nil, TransitionName(transition))
	}
	return nil
}

func (s *BillingService) handleReversal(ctx context.Context, event *types.ProviderEvent) error {
	payload, err := event.ReversalPayload()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	original, sub, err := s.findChargeContext(ctx, payload.ChargeEventID)
	if err != nil {
		return err
	}

	key := sub.Key()
	token, acquired, err := s.locker.TryAcquire(ctx, key, s.webhooksCfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return ErrLockBusy
	}
	defer s.releaseLock(ctx, key, token)

	var (
		committedSub     *entity.Subscription
		committedPayment *entity.Payment
		eventType        string
	)

	txErr := s.ledger.WithinTx(ctx, func(repos *LedgerRepos) error {
		if dup, err := repos.Payments.FindByProviderEventID(ctx, event.ProviderEventID); err != nil {
			return err
		} else if dup != nil {
			return ErrDuplicateEvent
		}

		// Re-read the charge inside the lock so its status is current.
		charge, err := repos.Payments.FindByID(ctx, original.ID)
		if err != nil {
			return err
		}
		if charge == nil {
			return ErrPaymentNotFound
		}

		lockedSub, err := repos.Subscriptions.FindByID(ctx, charge.SubscriptionID)
		if err != nil {
			return err
		}
		if lockedSub == nil {
			return ErrSubscriptionNotFound
		}

		now := time.Now().UTC()

		switch event.EventType {
		case types.EventRefundCreated:
			eventType = "payment_refunded"
			return s.applyReversalTx(ctx, repos, event, charge, lockedSub, entity.PaymentStatusRefunded, payload.OccurredAt, now,
				&committedSub, &committedPayment, eventType)

		case types.EventDisputeCreated:
			eventType = "payment_disputed"
			if charge.Status != entity.PaymentStatusSucceeded {
				return nil
			}
			oldStatus := charge.Status
			if err := repos.Payments.UpdateStatus(ctx, charge.ID, entity.PaymentStatusDisputed, now); err != nil {
				return err
			}
			payloadJSON := string(event.Payload)
			if err := repos.Events.Create(ctx, &entity.SubscriptionEvent{
				SubscriptionID: lockedSub.ID,
				PaymentID:      &charge.ID,
				EventType:      eventType,
				OldStatus:      &oldStatus,
				NewStatus:      entity.PaymentStatusDisputed,
				PayloadJSON:    &payloadJSON,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
			charge.Status = entity.PaymentStatusDisputed
			committedSub = lockedSub
			committedPayment = charge
			return nil

		case types.EventDisputeClosed:
			if charge.Status != entity.PaymentStatusDisputed {
				return nil
			}
			if payload.Outcome == "won" {
				eventType = "payment_dispute_won"
				oldStatus := charge.Status
				if err := repos.Payments.UpdateStatus(ctx, charge.ID, entity.PaymentStatusDisputeWon, now); err != nil {
					return err
				}
				payloadJSON := string(event.Payload)
				if err := repos.Events.Create(ctx, &entity.SubscriptionEvent{
					SubscriptionID: lockedSub.ID,
					PaymentID:      &charge.ID,
					EventType:      eventType,
					OldStatus:      &oldStatus,
					NewStatus:      entity.PaymentStatusDisputeWon,
					PayloadJSON:    &payloadJSON,
					CreatedAt:      now,
				}); err != nil {
					return err
				}
				charge.Status = entity.PaymentStatusDisputeWon
				committedSub = lockedSub
				committedPayment = charge
				return nil
			}
			eventType = "payment_dispute_lost"
			return s.applyReversalTx(ctx, repos, event, charge, lockedSub, entity.PaymentStatusDisputeLost, payload.OccurredAt, now,
				&committedSub, &committedPayment, eventType)
		}

		return fmt.Errorf("%w: unexpected reversal event %q", ErrInvalidEvent, event.EventType)
	})
	if txErr != nil {
		return txErr
	}

	if committedSub != nil {
		s.dispatcher.AfterLedgerWrite(ctx, committedSub, committedPayment, eventType)
	}
	return nil
}

// applyReversalTx writes the negative ledger row for a refund or a lost
// dispute, flips the original charge to its terminal status and rolls the
// creator's lifetime counter back.
func (s *BillingService) applyReversalTx(
	ctx context.Context,
	repos *LedgerRepos,
	event *types.ProviderEvent,
	charge *entity.Payment,
	sub *entity.Subscription,
	terminalStatus int32,
	occurredAt time.Time,
	now time.Time,
	committedSub **entity.Subscription,
	committedPayment **entity.Payment,
	eventType string,
) error {
	if charge.Status == terminalStatus {
		return nil
	}
	if terminalStatus == entity.PaymentStatusRefunded && charge.Status != entity.PaymentStatusSucceeded {
		return nil
	}

	reversal := &entity.Payment{
		SubscriptionID:      charge.SubscriptionID,
		ProviderEventID:     event.ProviderEventID,
		GrossCents:          -charge.GrossCents,
		FeeCents:            -charge.FeeCents,
		NetCents:            -charge.NetCents,
		SubscriberFeeCents:  negateCents(charge.SubscriberFeeCents),
		CreatorFeeCents:     negateCents(charge.CreatorFeeCents),
		FeeModel:            charge.FeeModel,
		FeeEffectiveRateBps: charge.FeeEffectiveRateBps,
		FeeWasCapped:        charge.FeeWasCapped,
		Status:              terminalStatus,
		Currency:            charge.Currency,
		OccurredAt:          occurredAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := repos.Payments.Create(ctx, reversal); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return ErrDuplicateEvent
		}
		return err
	}

	oldStatus := charge.Status
	if err := repos.Payments.UpdateStatus(ctx, charge.ID, terminalStatus, now); err != nil {
		return err
	}

	sub.LifetimeNetCents -= charge.NetCents
	sub.UpdatedAt = now
	if err := repos.Subscriptions.Update(ctx, sub); err != nil {
		return err
	}

	payloadJSON := string(event.Payload)
	if err := repos.Events.Create(ctx, &entity.SubscriptionEvent{
		SubscriptionID: sub.ID,
		PaymentID:      &charge.ID,
		EventType:      eventType,
		OldStatus:      &oldStatus,
		NewStatus:      terminalStatus,
		PayloadJSON:    &payloadJSON,
		CreatedAt:      now,
	}); err != nil {
		return err
	}

	charge.Status = terminalStatus
	*committedSub = sub
	*committedPayment = reversal
	return nil
}

func (s *BillingService) handlePayoutConfirmed(ctx context.Context, event *types.ProviderEvent) error {
	payload, err := event.PayoutPayload()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	original, sub, err := s.findChargeContext(ctx, payload.ChargeEventID)
	if err != nil {
		return err
	}

	key := sub.Key()
	token, acquired, err := s.locker.TryAcquire(ctx, key, s.webhooksCfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return ErrLockBusy
	}
	defer s.releaseLock(ctx, key, token)

	var flagged *entity.Payment

	txErr := s.ledger.WithinTx(ctx, func(repos *LedgerRepos) error {
		charge, err := repos.Payments.FindByID(ctx, original.ID)
		if err != nil {
			return err
		}
		if charge == nil {
			return ErrPaymentNotFound
		}

		now := time.Now().UTC()
		if s.payoutMatches(charge, payload) {
			payloadJSON := string(event.Payload)
			return repos.Events.Create(ctx, &entity.SubscriptionEvent{
				SubscriptionID: charge.SubscriptionID,
				PaymentID:      &charge.ID,
				EventType:      "payout_confirmed",
				NewStatus:      charge.Status,
				PayloadJSON:    &payloadJSON,
				CreatedAt:      now,
			})
		}

		if charge.Status == entity.PaymentStatusNeedsReview {
			return nil
		}

		oldStatus := charge.Status
		if err := repos.Payments.UpdateStatus(ctx, charge.ID, entity.PaymentStatusNeedsReview, now); err != nil {
			return err
		}

		payloadJSON := string(event.Payload)
		if err := repos.Events.Create(ctx, &entity.SubscriptionEvent{
			SubscriptionID: charge.SubscriptionID,
			PaymentID:      &charge.ID,
			EventType:      "payout_mismatch",
			OldStatus:      &oldStatus,
			NewStatus:      entity.PaymentStatusNeedsReview,
			PayloadJSON:    &payloadJSON,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		charge.Status = entity.PaymentStatusNeedsReview
		flagged = charge
		return nil
	})
	if txErr != nil {
		return txErr
	}

	if flagged != nil {
		s.logger.WithField("payment_id", flagged.ID).
			WithField("provider_event_id", event.ProviderEventID).
			Warn("payout amount disagrees with ledger, payment flagged for review")
	}
	return nil
}

// payoutMatches compares the confirmed payout against the creator's stored
// net. Capped rows get a wider absolute band because the processor minimum
// distorts small amounts beyond any percentage tolerance.
func (s *BillingService) payoutMatches(charge *entity.Payment, payload *types.PayoutPayload) bool {
	if !strings.EqualFold(charge.Currency, payload.Currency) {
		return false
	}

	diff := payload.AmountCents - charge.NetCents
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return true
	}

	if charge.FeeWasCapped {
		return diff <= s.policy.MinFeeCents
	}
	if charge.NetCents <= 0 {
		return false
	}
	toleranceBps := int64(s.webhooksCfg.ReconcileToleranceBps)
	return diff*10000 <= charge.NetCents*toleranceBps
}

// findChargeContext resolves the original charge row and its subscription
// for events that reference a prior charge. A missing charge is reported as
// out-of-order so the provider redelivers after the charge lands.
func (s *BillingService) findChargeContext(ctx context.Context, chargeEventID string) (*entity.Payment, *entity.Subscription, error) {
	charge, err := s.payments.FindByProviderEventID(ctx, chargeEventID)
	if err != nil {
		return nil, nil, err
	}
	if charge == nil {
		return nil, nil, fmt.Errorf("%w: charge event %s", ErrEventOutOfOrder, chargeEventID)
	}

	sub, err := s.subscriptions.FindByID(ctx, charge.SubscriptionID)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, ErrSubscriptionNotFound
	}
	return charge, sub, nil
}

// quoteInputFor builds the fee engine input. Existing rows always quote
// against their persisted policy; only the first charge may pick a model
// from the payload, falling back to platform defaults.
func (s *BillingService) quoteInputFor(sub *entity.Subscription, payload *types.ChargePayload) fees.Input {
	if sub != nil {
		return fees.Input{
			AmountCents:    payload.AmountCents,
			Currency:       payload.Currency,
			CreatorClass:   sub.CreatorClass,
			FeeMode:        sub.FeeMode,
			Model:          sub.FeeModel,
			CreatorCountry: sub.CreatorCountry,
		}
	}

	model := payload.FeeModel
	if model == "" {
		model = s.policy.DefaultModel
	}
	mode := payload.FeeMode
	if mode == "" {
		mode = s.policy.DefaultMode
	}
	return fees.Input{
		AmountCents:    payload.AmountCents,
		Currency:       payload.Currency,
		CreatorClass:   payload.CreatorClass,
		FeeMode:        mode,
		Model:          model,
		CreatorCountry: payload.CreatorCountry,
	}
}

// recordDisputeEvidence stores checkout context for chargeback defense.
// Best-effort inside the transaction: a failed insert is logged and never
// rolls the ledger back.
func (s *BillingService) recordDisputeEvidence(ctx context.Context, repos *LedgerRepos, paymentID uint64, checkout *types.CheckoutContext, now time.Time) {
	if checkout == nil {
		return
	}
	if checkout.IPAddress == "" && checkout.UserAgent == "" && checkout.Locale == "" && checkout.CheckoutAt == nil {
		return
	}

	evidence := &entity.DisputeEvidence{
		PaymentID:  paymentID,
		IPAddress:  optionalString(checkout.IPAddress),
		UserAgent:  optionalString(checkout.UserAgent),
		Locale:     optionalString(checkout.Locale),
		CheckoutAt: checkout.CheckoutAt,
		CreatedAt:  now,
	}
	if err := repos.Disputes.Create(ctx, evidence); err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).
			Warn("dispute evidence insert failed")
	}
}

func (s *BillingService) markSessionConverted(ctx context.Context, checkout *types.CheckoutContext, payment *entity.Payment) {
	if checkout == nil || checkout.SessionID == "" || payment == nil || s.sessions == nil {
		return
	}
	err := s.sessions.MarkConverted(ctx, checkout.SessionID, payment.ID, time.Now().UTC())
	if err != nil && !errors.Is(err, repository.ErrCheckoutSessionNotFound) {
		s.logger.WithError(err).WithField("session_id", checkout.SessionID).
			Warn("checkout session conversion update failed")
	}
}

func (s *BillingService) releaseLock(ctx context.Context, key, token string) {
	if err := s.locker.Release(ctx, key, token); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("lock release failed")
	}
}

func (s *BillingService) batchSize() int32 {
	if s.jobsCfg.JobBatchSize > 0 {
		return s.jobsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func negateCents(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := -*v
	return &n
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
