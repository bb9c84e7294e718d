package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/infra/metrics"
)

var _ OrderUseCase = (*orderUC)(nil)

// OrderUseCase backs the dashboard's order screens.
type OrderUseCase interface {
	List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error)
	Get(ctx context.Context, correlationID string) (*model.Order, error)
	// Refund moves an APPROVED order to REFUNDED. Money movement happens
	// at the provider; this only records it and informs attribution.
	Refund(ctx context.Context, correlationID string) (*model.Order, error)
}

type orderUC struct {
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	notify  *fanOut
	log     *zerolog.Logger
}

func NewOrderUseCase(orders repository.OrderRepository, catalog repository.CatalogRepository, notifier adapter.Notifier, cfg SettlementConfig, logger *zerolog.Logger) *orderUC {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.Nop()
	}
	return &orderUC{
		orders:  orders,
		catalog: catalog,
		notify:  &fanOut{notifier: notifier, currency: cfg.Currency, publicURL: cfg.PublicURL, confirmationPath: cfg.ConfirmationPath, log: logger},
		log:     logger,
	}
}

func (u *orderUC) List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return u.orders.List(ctx, f)
}

func (u *orderUC) Get(ctx context.Context, correlationID string) (*model.Order, error) {
	return u.orders.FindByCorrelationID(ctx, correlationID)
}

func (u *orderUC) Refund(ctx context.Context, correlationID string) (*model.Order, error) {
	order, err := u.orders.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	applied, err := u.orders.UpdateStatus(ctx, correlationID, model.OrderStatusRefunded, nil)
	if err != nil {
		metrics.IncTransition("admin", string(model.OrderStatusRefunded), "error")
		return nil, &domain.StoreError{Op: "update_order_status", Err: err}
	}
	if !applied {
		metrics.IncTransition("admin", string(model.OrderStatusRefunded), "noop")
		return nil, errors.Join(domain.ErrInvalidTransition, errors.New("only approved orders can be refunded"))
	}
	metrics.IncTransition("admin", string(model.OrderStatusRefunded), "applied")
	order.Status = model.OrderStatusRefunded
	logging.With(logging.WithCorrelationID(ctx, correlationID), u.log).Info().Msg("order refunded")

	product, plan, bump := lookupCatalog(ctx, u.catalog, order, u.log)
	u.notify.refunded(ctx, receiptFromOrder(order, product, plan, bump))
	return order, nil
}
