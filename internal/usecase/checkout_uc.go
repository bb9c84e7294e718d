// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// RateLimiter guards charge creation per client key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TaskSubmitter queues fire-and-forget work (the worker pool).
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

type CheckoutRequest struct {
	ProductID   string
	PlanID      string
	OrderBumpID string // optional
	Form        model.CheckoutForm
	Tracking    map[string]string
	ClientIP    string
}

type CheckoutResult struct {
	CorrelationID string       `json:"correlationId"`
	OrderID       string       `json:"orderId"`
	BRCode        string       `json:"brCode"`
	QRCodeImage   string       `json:"qrCodeImage"`
	Amount        int64        `json:"amount"`
	State         SessionState `json:"state"`
}

// Offer is everything the public checkout page needs to render a product.
type Offer struct {
	Product  *model.Product     `json:"product"`
	Plans    []*model.Plan      `json:"plans"`
	Bumps    []*model.OrderBump `json:"orderBumps"`
	Pixels   []*model.Pixel     `json:"pixels"`
	Settings *model.Settings    `json:"settings"`
}

// Confirmation is the public view of an order on the thank-you page.
// Deliverables are only filled once the order is approved.
type Confirmation struct {
	CorrelationID string              `json:"correlationId"`
	Status        model.OrderStatus   `json:"status"`
	Amount        int64               `json:"amount"`
	ProductName   string              `json:"productName"`
	PlanName      string              `json:"planName"`
	BumpTitle     string              `json:"orderBumpTitle,omitempty"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
	Deliverables  []model.Deliverable `json:"deliverables,omitempty"`
}

type CheckoutUseCase interface {
	Offer(ctx context.Context, productID string) (*Offer, error)
	// Submit validates the form, issues the charge, persists the order and
	// starts watching for settlement. Errors are ValidationErrors,
	// *domain.GatewayError, *domain.StoreError, domain.ErrNotFound or
	// domain.ErrRateLimited.
	Submit(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Status(ctx context.Context, correlationID string) (*SessionView, error)
	// Teardown stops polling for a session (the page was closed).
	Teardown(ctx context.Context, correlationID string) error
	Confirmation(ctx context.Context, correlationID string) (*Confirmation, error)
}

type checkoutUC struct {
	catalog  repository.CatalogRepository
	orders   repository.OrderRepository
	gateway  adapter.PixGateway
	engine   *SettlementEngine
	sessions *SessionRegistry
	limiter  RateLimiter   // optional
	tasks    TaskSubmitter // optional; nil runs dispatch inline
	notify   *fanOut
	newID    func() string
	log      *zerolog.Logger
	now      func() time.Time
}

func NewCheckoutUseCase(
	catalog repository.CatalogRepository,
	orders repository.OrderRepository,
	gateway adapter.PixGateway,
	engine *SettlementEngine,
	limiter RateLimiter,
	tasks TaskSubmitter,
	newCorrelationID func() string,
	logger *zerolog.Logger,
) *checkoutUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &checkoutUC{
		catalog:  catalog,
		orders:   orders,
		gateway:  gateway,
		engine:   engine,
		sessions: engine.sessions,
		limiter:  limiter,
		tasks:    tasks,
		notify:   engine.notify,
		newID:    newCorrelationID,
		log:      logger,
		now:      time.Now,
	}
}

func (u *checkoutUC) Offer(ctx context.Context, productID string) (*Offer, error) {
	product, err := u.catalog.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.ErrNotFound
	}
	plans, err := u.catalog.ListPlans(ctx, productID)
	if err != nil {
		return nil, err
	}
	bumps, err := u.catalog.ListOrderBumps(ctx, productID)
	if err != nil {
		return nil, err
	}
	pixels, err := u.catalog.ListPixels(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := u.catalog.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	offer := &Offer{Product: product, Settings: settings}
	for _, p := range plans {
		if p.Active {
			offer.Plans = append(offer.Plans, p)
		}
	}
	for _, b := range bumps {
		if b.Active {
			offer.Bumps = append(offer.Bumps, b)
		}
	}
	for _, px := range pixels {
		if px.Active {
			offer.Pixels = append(offer.Pixels, px)
		}
	}
	return offer, nil
}

func (u *checkoutUC) Submit(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Submit")()
	session := newSession(u.now())

	if err := u.allow(ctx, req.ClientIP); err != nil {
		metrics.IncCheckoutCharge("rate_limited")
		return nil, err
	}

	product, plan, bump, settings, err := u.loadOffer(ctx, req)
	if err != nil {
		return nil, err
	}

	form := req.Form.Normalize()
	if err := model.ValidateCheckoutForm(form, settings.RequireCPF); err != nil {
		metrics.IncCheckoutCharge("validation_error")
		return nil, err
	}

	correlationID := u.newID()
	ctx = logging.WithCorrelationID(ctx, correlationID)
	log := logging.With(ctx, u.log)
	snap := model.NewChargeSnapshot(correlationID, form.Customer(), *product, *plan, bump, req.Tracking, u.now().UTC())

	charge, err := u.gateway.CreateCharge(ctx, adapter.ChargeRequest{
		CorrelationID: correlationID,
		ValueCents:    snap.Amount,
		Comment:       chargeComment(product, plan, bump),
		Customer:      snap.Customer,
	})
	if err != nil {
		session.fail(err, u.now())
		metrics.IncCheckoutCharge("gateway_error")
		log.Error().Err(err).Str("provider", u.gateway.Name()).Msg("charge creation failed")
		var gerr *domain.GatewayError
		if !errors.As(err, &gerr) {
			err = &domain.GatewayError{Op: "create_charge", Err: err}
		}
		return nil, err
	}

	order := snap.NewPendingOrder(uuid.NewString(), charge.BRCode, charge.QRCodeImage, charge.GlobalID)
	if err := u.orders.Create(ctx, order); err != nil {
		session.fail(err, u.now())
		metrics.IncCheckoutCharge("store_error")
		log.Error().Err(err).Msg("persist order failed")
		var serr *domain.StoreError
		if !errors.As(err, &serr) {
			err = &domain.StoreError{Op: "create_order", Err: err}
		}
		return nil, err
	}

	session.attach(snap, *charge, order.ID, u.now())
	u.sessions.Put(session)
	metrics.IncCheckoutCharge("created")
	log.Info().
		Int64("amount", snap.Amount).
		Str("email", logging.Redact(snap.Customer.Email, false)).
		Msg("pix charge created")

	u.dispatchPixGenerated(ctx, receiptFromSnapshot(snap, order.ID, nil), *charge)
	u.engine.Watch(ctx, session)

	view := session.View()
	return &CheckoutResult{
		CorrelationID: correlationID,
		OrderID:       order.ID,
		BRCode:        charge.BRCode,
		QRCodeImage:   charge.QRCodeImage,
		Amount:        snap.Amount,
		State:         view.State,
	}, nil
}

func (u *checkoutUC) allow(ctx context.Context, clientIP string) error {
	if u.limiter == nil || clientIP == "" {
		return nil
	}
	ok, err := u.limiter.Allow(ctx, "checkout:"+clientIP)
	if err != nil {
		// fail open: the limiter is an abuse guard, not part of the payment flow
		logging.With(ctx, u.log).Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func (u *checkoutUC) loadOffer(ctx context.Context, req CheckoutRequest) (*model.Product, *model.Plan, *model.OrderBump, *model.Settings, error) {
	product, err := u.catalog.FindProduct(ctx, req.ProductID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if !product.Active {
		return nil, nil, nil, nil, domain.ErrNotFound
	}
	plan, err := u.catalog.FindPlan(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil, nil, domain.ValidationErrors{{Field: "planId", Reason: "is not offered"}}
		}
		return nil, nil, nil, nil, err
	}
	if plan.ProductID != product.ID || !plan.Active {
		return nil, nil, nil, nil, domain.ValidationErrors{{Field: "planId", Reason: "is not offered"}}
	}
	var bump *model.OrderBump
	if req.OrderBumpID != "" {
		bump, err = u.catalog.FindOrderBump(ctx, req.OrderBumpID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil, nil, err
		}
		if bump == nil || bump.ProductID != product.ID || !bump.Active {
			return nil, nil, nil, nil, domain.ValidationErrors{{Field: "orderBumpId", Reason: "is not offered"}}
		}
	}
	settings, err := u.catalog.GetSettings(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return product, plan, bump, settings, nil
}

func chargeComment(p *model.Product, plan *model.Plan, bump *model.OrderBump) string {
	c := fmt.Sprintf("%s - %s", p.Name, plan.Name)
	if bump != nil {
		c += " + " + bump.Title
	}
	if len(c) > 140 {
		c = c[:140]
	}
	return c
}

// dispatchPixGenerated never blocks the charge display. A full queue drops
// the notification.
func (u *checkoutUC) dispatchPixGenerated(ctx context.Context, r receipt, ch adapter.Charge) {
	correlationID := r.CorrelationID
	task := func(taskCtx context.Context) error {
		u.notify.pixGenerated(logging.WithCorrelationID(taskCtx, correlationID), r, ch)
		return nil
	}
	if u.tasks == nil {
		_ = task(context.WithoutCancel(ctx))
		return
	}
	if err := u.tasks.Submit(task); err != nil {
		metrics.IncNotification("email", "dropped")
		logging.With(ctx, u.log).Warn().Err(err).Msg("pix generated notification dropped")
	}
}

func (u *checkoutUC) Status(ctx context.Context, correlationID string) (*SessionView, error) {
	if s, ok := u.sessions.Get(correlationID); ok {
		v := s.View()
		return &v, nil
	}
	// no live session (restart, retention elapsed): derive from the order
	o, err := u.orders.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	v := &SessionView{
		CorrelationID: o.CorrelationID,
		OrderID:       o.ID,
		Amount:        o.Amount,
		BRCode:        o.PixCopyPaste,
		QRCodeImage:   o.PixQRCode,
		UpdatedAt:     o.CreatedAt,
	}
	switch o.Status {
	case model.OrderStatusPending:
		v.State = StateChargeCreated
	case model.OrderStatusApproved, model.OrderStatusRefunded:
		v.State = StatePaid
		v.Redirect = u.notify.confirmationURL(o.CorrelationID)
	case model.OrderStatusExpired:
		v.State = StateExpired
	}
	if o.PaidAt != nil {
		v.UpdatedAt = *o.PaidAt
	}
	return v, nil
}

func (u *checkoutUC) Teardown(ctx context.Context, correlationID string) error {
	s, ok := u.sessions.Get(correlationID)
	if !ok {
		return domain.ErrNotFound
	}
	s.Close()
	u.sessions.Remove(s)
	logging.With(logging.WithCorrelationID(ctx, correlationID), u.log).Debug().Msg("checkout session closed")
	return nil
}

func (u *checkoutUC) Confirmation(ctx context.Context, correlationID string) (*Confirmation, error) {
	o, err := u.orders.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	c := &Confirmation{
		CorrelationID: o.CorrelationID,
		Status:        o.Status,
		Amount:        o.Amount,
		PaidAt:        o.PaidAt,
	}
	product, plan, bump := lookupCatalog(ctx, u.catalog, o, u.log)
	r := receiptFromOrder(o, product, plan, bump)
	c.ProductName = r.Product.Name
	c.PlanName = r.Plan.Name
	if r.Bump != nil {
		c.BumpTitle = r.Bump.Title
	}
	if o.Status == model.OrderStatusApproved {
		c.Deliverables = r.deliverables()
	}
	return c, nil
}

// lookupCatalog is best-effort: notifications and views still work with ids
// when a product was deleted after the sale.
func lookupCatalog(ctx context.Context, catalog repository.CatalogRepository, o *model.Order, logger *zerolog.Logger) (*model.Product, *model.Plan, *model.OrderBump) {
	log := logging.With(ctx, logger)
	product, err := catalog.FindProduct(ctx, o.ProductID)
	if err != nil {
		log.Warn().Err(err).Str("product_id", o.ProductID).Msg("product lookup failed")
		product = nil
	}
	plan, err := catalog.FindPlan(ctx, o.PlanID)
	if err != nil {
		log.Warn().Err(err).Str("plan_id", o.PlanID).Msg("plan lookup failed")
		plan = nil
	}
	var bump *model.OrderBump
	if o.OrderBumpID != nil {
		if bump, err = catalog.FindOrderBump(ctx, *o.OrderBumpID); err != nil {
			log.Warn().Err(err).Str("order_bump_id", *o.OrderBumpID).Msg("order bump lookup failed")
			bump = nil
		}
	}
	return product, plan, bump
}
