// File: internal/usecase/settlement.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/infra/metrics"
)

type SettlementConfig struct {
	PollInterval    time.Duration
	NavigateDelay   time.Duration
	MaxPollDuration time.Duration // 0 = until settled or closed
	Retention       time.Duration // how long a finished session stays queryable

	Currency         string
	PublicURL        string
	ConfirmationPath string
}

func (c SettlementConfig) withDefaults() SettlementConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.NavigateDelay < 0 {
		c.NavigateDelay = 0
	}
	if c.Retention <= 0 {
		c.Retention = 10 * time.Minute
	}
	if c.Currency == "" {
		c.Currency = "BRL"
	}
	if c.ConfirmationPath == "" {
		c.ConfirmationPath = "/obrigado"
	}
	return c
}

// Navigator moves a settled session to the confirmation page.
type Navigator interface {
	Navigate(ctx context.Context, s *Session, url string)
}

// RedirectNavigator publishes the confirmation URL on the session; the checkout
// page follows it on its next status read.
type RedirectNavigator struct{}

func (RedirectNavigator) Navigate(_ context.Context, s *Session, url string) {
	s.setRedirect(url)
}

// SettlementEngine is the polling settlement path: one goroutine per watched
// session asks the gateway for the charge status until it settles.
type SettlementEngine struct {
	gateway  adapter.PixGateway
	orders   repository.OrderRepository
	nav      Navigator
	sessions *SessionRegistry
	notify   *fanOut
	cfg      SettlementConfig
	log      *zerolog.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func NewSettlementEngine(
	gateway adapter.PixGateway,
	orders repository.OrderRepository,
	notifier adapter.Notifier,
	nav Navigator,
	sessions *SessionRegistry,
	cfg SettlementConfig,
	logger *zerolog.Logger,
) *SettlementEngine {
	cfg = cfg.withDefaults()
	if nav == nil {
		nav = RedirectNavigator{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &SettlementEngine{
		gateway:  gateway,
		orders:   orders,
		nav:      nav,
		sessions: sessions,
		notify: &fanOut{
			notifier:         notifier,
			currency:         cfg.Currency,
			publicURL:        cfg.PublicURL,
			confirmationPath: cfg.ConfirmationPath,
			log:              logger,
		},
		cfg: cfg,
		log: logger,
		now: time.Now,
	}
}

// Watch starts polling for s. The poll outlives ctx's cancellation (it is
// usually a request context) but keeps its values; Session.Close or Shutdown
// stop it.
func (e *SettlementEngine) Watch(ctx context.Context, s *Session) {
	base := context.WithoutCancel(ctx)
	base = logging.WithCorrelationID(base, s.CorrelationID())

	var pollCtx context.Context
	var cancel context.CancelFunc
	if e.cfg.MaxPollDuration > 0 {
		pollCtx, cancel = context.WithTimeout(base, e.cfg.MaxPollDuration)
	} else {
		pollCtx, cancel = context.WithCancel(base)
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	e.wg.Add(1)
	go e.poll(pollCtx, cancel, s)
}

func (e *SettlementEngine) poll(ctx context.Context, cancel context.CancelFunc, s *Session) {
	log := logging.With(ctx, e.log)
	defer e.wg.Done()
	defer func() {
		cancel()
		s.finish()
		time.AfterFunc(e.cfg.Retention, func() { e.sessions.Remove(s) })
	}()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	log.Debug().Dur("interval", e.cfg.PollInterval).Msg("polling charge status")
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Info().Msg("poll window elapsed before settlement")
			} else {
				log.Debug().Msg("polling stopped")
			}
			return
		case <-ticker.C:
			if e.tick(ctx, s) {
				return
			}
		}
	}
}

// tick performs one status read. It reports true when polling must stop.
// Read failures never stop the loop.
func (e *SettlementEngine) tick(ctx context.Context, s *Session) bool {
	id := s.CorrelationID()
	st, err := e.gateway.GetChargeStatus(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		metrics.IncChargePoll("error")
		logging.With(ctx, e.log).Warn().Err(err).Msg("charge status poll failed; will retry")
		return false
	}
	metrics.IncChargePoll(strings.ToLower(string(st.Status)))

	switch st.Status {
	case adapter.ChargeCompleted:
		e.settle(ctx, s, st.PaidAt)
		return true
	case adapter.ChargeExpired:
		e.expire(ctx, s)
		return true
	}
	return false
}

// settle runs at most once per session: the CHARGE_CREATED -> PAID
// compare-and-set admits a single caller.
func (e *SettlementEngine) settle(ctx context.Context, s *Session, paidAt *time.Time) {
	now := e.now()
	if !s.transition(StateChargeCreated, StatePaid, now) {
		return
	}
	log := logging.With(ctx, e.log)
	snap := s.Snapshot()
	if paidAt == nil {
		t := now.UTC()
		paidAt = &t
	}

	// once settlement is detected, finish it even if the viewer goes away
	storeCtx := context.WithoutCancel(ctx)
	applied, err := e.orders.UpdateStatus(storeCtx, snap.CorrelationID, model.OrderStatusApproved, paidAt)
	switch {
	case err != nil:
		metrics.IncTransition("poll", string(model.OrderStatusApproved), "error")
		log.Error().Err(err).Msg("approve order failed; webhook or reconciler will finalize")
	case !applied:
		metrics.IncTransition("poll", string(model.OrderStatusApproved), "noop")
		log.Info().Msg("order already settled by another path; skipping notifications")
	default:
		metrics.IncTransition("poll", string(model.OrderStatusApproved), "applied")
		metrics.AddRevenue("poll", snap.Amount)
		log.Info().Int64("amount", snap.Amount).Msg("order approved by polling")
		e.notify.approved(storeCtx, receiptFromSnapshot(snap, s.OrderID(), paidAt))
	}

	e.navigate(ctx, s)
}

func (e *SettlementEngine) navigate(ctx context.Context, s *Session) {
	if e.cfg.NavigateDelay > 0 {
		t := time.NewTimer(e.cfg.NavigateDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
	e.nav.Navigate(ctx, s, e.notify.confirmationURL(s.CorrelationID()))
}

func (e *SettlementEngine) expire(ctx context.Context, s *Session) {
	if !s.transition(StateChargeCreated, StateExpired, e.now()) {
		return
	}
	applied, err := e.orders.UpdateStatus(context.WithoutCancel(ctx), s.CorrelationID(), model.OrderStatusExpired, nil)
	switch {
	case err != nil:
		metrics.IncTransition("poll", string(model.OrderStatusExpired), "error")
		logging.With(ctx, e.log).Error().Err(err).Msg("expire order failed")
	case !applied:
		metrics.IncTransition("poll", string(model.OrderStatusExpired), "noop")
	default:
		metrics.IncTransition("poll", string(model.OrderStatusExpired), "applied")
		logging.With(ctx, e.log).Info().Msg("charge expired unpaid")
	}
}

// Shutdown stops every poll and waits for the goroutines to exit.
func (e *SettlementEngine) Shutdown(ctx context.Context) error {
	for _, s := range e.sessions.All() {
		s.Close()
	}
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
