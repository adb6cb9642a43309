package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-creator-billing/app/factory"
	"github.com/vibast-solutions/ms-go-creator-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-creator-billing/app/service"
	"github.com/vibast-solutions/ms-go-creator-billing/app/types"
)

type BillingController struct {
	billingService *service.BillingService
	logger         logrus.FieldLogger
}

func NewBillingController(billingService *service.BillingService) *BillingController {
	return &BillingController{
		billingService: billingService,
		logger:         factory.NewModuleLogger("billing-controller"),
	}
}

func (c *BillingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

// HandleWebhook is the intake for provider deliveries. The response policy
// is explicit: 400 stops provider retries, 200 acknowledges work that is
// done or already owned by another worker, 503 invites redelivery.
func (c *BillingController) HandleWebhook(ctx echo.Context) error {
	event, err := types.NewProviderEventFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid event body")
	}

	logger := factory.LoggerWithContext(c.logger, ctx).
		WithField("provider_event_id", event.ProviderEventID).
		WithField("event_type", event.EventType)

	err = c.billingService.HandleProviderEvent(ctx.Request().Context(), event)
	switch {
	case err == nil:
		return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "event processed"})
	case errors.Is(err, service.ErrInvalidEvent):
		logger.WithError(err).Warn("rejected invalid provider event")
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateEvent):
		return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "event already processed"})
	case errors.Is(err, service.ErrLockBusy):
		return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "event is being processed"})
	default:
		logger.WithError(err).Error("Handle provider event failed")
		return c.writeError(ctx, http.StatusServiceUnavailable, "temporarily unable to process event")
	}
}

func (c *BillingController) GetSubscription(ctx echo.Context) error {
	subscriberID, creatorID, interval, err := subscriptionParams(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.billingService.GetSubscription(ctx.Request().Context(), subscriberID, creatorID, interval)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		}
		c.logger.WithError(err).Error("Get subscription failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item)})
}

func (c *BillingController) ListSubscriptionPayments(ctx echo.Context) error {
	subscriberID, creatorID, interval, err := subscriptionParams(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	limit := queryInt32(ctx, "limit", 0)
	offset := queryInt32(ctx, "offset", 0)

	items, err := c.billingService.ListSubscriptionPayments(ctx.Request().Context(), subscriberID, creatorID, interval, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		}
		c.logger.WithError(err).Error("List subscription payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentsResponse{Payments: mapper.PaymentsToResponse(items)})
}

func (c *BillingController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func subscriptionParams(ctx echo.Context) (string, string, string, error) {
	subscriberID := strings.TrimSpace(ctx.Param("subscriberId"))
	creatorID := strings.TrimSpace(ctx.Param("creatorId"))
	interval := strings.ToLower(strings.TrimSpace(ctx.Param("interval")))
	if subscriberID == "" || creatorID == "" || interval == "" {
		return "", "", "", errors.New("subscriberId, creatorId and interval are required")
	}
	return subscriberID, creatorID, interval, nil
}

func queryInt32(ctx echo.Context, name string, fallback int32) int32 {
	raw := strings.TrimSpace(ctx.QueryParam(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(value)
}
