// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookOutcome string

const (
	WebhookIgnored         WebhookOutcome = "ignored"
	WebhookPending         WebhookOutcome = "pending"
	WebhookNotFound        WebhookOutcome = "not_found"
	WebhookAlreadyApproved WebhookOutcome = "already_approved"
	WebhookSuccess         WebhookOutcome = "success"
)

type WebhookResult struct {
	Outcome WebhookOutcome `json:"status"`
	OrderID string         `json:"orderId,omitempty"`
}

type WebhookUseCase interface {
	// HandleChargeEvent settles a provider notification. A missing order is
	// reported as domain.ErrNotFound; a failed status write as *domain.StoreError.
	HandleChargeEvent(ctx context.Context, ev adapter.ChargeEvent) (*WebhookResult, error)
	// SettleCompleted approves the order of a completed charge. source labels
	// the caller ("webhook", "reconciler") in logs and metrics.
	SettleCompleted(ctx context.Context, correlationID string, paidAt *time.Time, source string) (*WebhookResult, error)
}

type webhookUC struct {
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	notify  *fanOut
	log     *zerolog.Logger
	now     func() time.Time
}

func NewWebhookUseCase(orders repository.OrderRepository, catalog repository.CatalogRepository, notifier adapter.Notifier, cfg SettlementConfig, logger *zerolog.Logger) *webhookUC {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.Nop()
	}
	return &webhookUC{
		orders:  orders,
		catalog: catalog,
		notify: &fanOut{
			notifier:         notifier,
			currency:         cfg.Currency,
			publicURL:        cfg.PublicURL,
			confirmationPath: cfg.ConfirmationPath,
			log:              logger,
		},
		log: logger,
		now: time.Now,
	}
}

func (u *webhookUC) HandleChargeEvent(ctx context.Context, ev adapter.ChargeEvent) (*WebhookResult, error) {
	if ev.Kind != adapter.ChargeEventCompleted {
		logging.With(ctx, u.log).Debug().Str("event", ev.Event).Str("kind", string(ev.Kind)).Msg("webhook ignored")
		return &WebhookResult{Outcome: WebhookIgnored}, nil
	}
	if ev.Status != adapter.ChargeCompleted {
		logging.With(ctx, u.log).Debug().Str("status", string(ev.Status)).Msg("webhook charge not completed")
		return &WebhookResult{Outcome: WebhookPending}, nil
	}
	return u.SettleCompleted(ctx, ev.CorrelationID, nil, "webhook")
}

func (u *webhookUC) SettleCompleted(ctx context.Context, correlationID string, paidAt *time.Time, source string) (*WebhookResult, error) {
	ctx = logging.WithCorrelationID(ctx, correlationID)
	log := logging.With(ctx, u.log).With().Str("path", source).Logger()

	order, err := u.orders.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("completed charge for unknown order")
			return &WebhookResult{Outcome: WebhookNotFound}, err
		}
		return nil, &domain.StoreError{Op: "find_order", Err: err}
	}

	switch order.Status {
	case model.OrderStatusApproved:
		log.Info().Msg("order already approved")
		return &WebhookResult{Outcome: WebhookAlreadyApproved, OrderID: order.ID}, nil
	case model.OrderStatusPending:
	default:
		log.Warn().Str("order_status", string(order.Status)).Msg("completed charge for a closed order; left unchanged")
		return &WebhookResult{Outcome: WebhookIgnored, OrderID: order.ID}, nil
	}

	if paidAt == nil {
		t := u.now().UTC()
		paidAt = &t
	}
	applied, err := u.orders.UpdateStatus(ctx, correlationID, model.OrderStatusApproved, paidAt)
	if err != nil {
		metrics.IncTransition(source, string(model.OrderStatusApproved), "error")
		log.Error().Err(err).Msg("approve order failed")
		return nil, &domain.StoreError{Op: "update_order_status", Err: err}
	}
	if !applied {
		// another path approved it between the read and the write
		metrics.IncTransition(source, string(model.OrderStatusApproved), "noop")
		return &WebhookResult{Outcome: WebhookAlreadyApproved, OrderID: order.ID}, nil
	}
	metrics.IncTransition(source, string(model.OrderStatusApproved), "applied")
	metrics.AddRevenue(source, order.Amount)
	log.Info().Int64("amount", order.Amount).Msg("order approved")

	order.Status = model.OrderStatusApproved
	order.PaidAt = paidAt
	product, plan, bump := lookupCatalog(ctx, u.catalog, order, u.log)
	u.notify.approved(ctx, receiptFromOrder(order, product, plan, bump))

	return &WebhookResult{Outcome: WebhookSuccess, OrderID: order.ID}, nil
}
