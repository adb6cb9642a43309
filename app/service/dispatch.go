package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
	"github.com/vibast-solutions/ms-go-creator-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-creator-billing/config"
)

const (
	subscriptionCacheKeyPrefix = "billing:subscription:"
	creatorCacheKeyPrefix      = "billing:creator:"
	featureUnlockKeyPrefix     = "billing:feature:billing_alignment:"
)

// Dispatcher runs post-commit side effects: the notification POST, cache
// invalidation and lifetime-counter feature unlocks. Every failure here is
// logged and swallowed; the committed ledger write is never undone or
// retried because of a side effect.
type Dispatcher struct {
	httpClient      *http.Client
	notifyURL       string
	apiKey          string
	cache           *redis.Client
	unlockThreshold int32
	logger          logrus.FieldLogger
}

func NewDispatcher(webhooksCfg config.WebhooksConfig, apiKey string, cache *redis.Client, logger logrus.FieldLogger) *Dispatcher {
	timeout := webhooksCfg.NotifyHTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Dispatcher{
		httpClient:      &http.Client{Timeout: timeout},
		notifyURL:       strings.TrimSpace(webhooksCfg.NotifyURL),
		apiKey:          strings.TrimSpace(apiKey),
		cache:           cache,
		unlockThreshold: webhooksCfg.UnlockPaymentThreshold,
		logger:          logger,
	}
}

// AfterLedgerWrite fires the notification and invalidates cached reads for
// the touched subscription.
func (d *Dispatcher) AfterLedgerWrite(ctx context.Context, sub *entity.Subscription, payment *entity.Payment, eventType string) {
	if d == nil || sub == nil {
		return
	}
	d.notify(ctx, sub, payment, eventType)
	d.invalidateCache(ctx, sub)
}

// CheckFeatureUnlocks flips the billing-alignment flag once the lifetime
// payment counter reaches the configured threshold.
func (d *Dispatcher) CheckFeatureUnlocks(ctx context.Context, sub *entity.Subscription) {
	if d == nil || sub == nil || d.cache == nil {
		return
	}
	if d.unlockThreshold <= 0 || sub.PaymentCount < d.unlockThreshold {
		return
	}

	key := featureUnlockKeyPrefix + sub.SubscriberID + ":" + sub.CreatorID
	if err := d.cache.Set(ctx, key, "1", 0).Err(); err != nil {
		d.logger.WithError(err).WithField("key", key).Warn("feature unlock flag write failed")
		return
	}
	d.logger.WithField("subscriber_id", sub.SubscriberID).
		WithField("creator_id", sub.CreatorID).
		WithField("payment_count", sub.PaymentCount).
		Info("billing alignment feature unlocked")
}

func (d *Dispatcher) notify(ctx context.Context, sub *entity.Subscription, payment *entity.Payment, eventType string) {
	if d.notifyURL == "" {
		return
	}

	body, err := json.Marshal(mapper.NotificationFromLedger(sub, payment, eventType))
	if err != nil {
		d.logger.WithError(err).Warn("notification payload marshal failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.notifyURL, bytes.NewReader(body))
	if err != nil {
		d.logger.WithError(err).Warn("notification request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.WithError(err).WithField("event_type", eventType).Warn("notification dispatch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.WithField("status", resp.StatusCode).
			WithField("event_type", eventType).
			Warn(fmt.Sprintf("notification endpoint returned status=%d", resp.StatusCode))
	}
}

func (d *Dispatcher) invalidateCache(ctx context.Context, sub *entity.Subscription) {
	if d.cache == nil {
		return
	}

	keys := []string{
		subscriptionCacheKeyPrefix + sub.Key(),
		creatorCacheKeyPrefix + sub.CreatorID + ":earnings",
	}
	if err := d.cache.Del(ctx, keys...).Err(); err != nil {
		d.logger.WithError(err).WithField("key", sub.Key()).Warn("cache invalidation failed")
	}
}
