package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/infra/metrics"
	"pix-checkout/internal/usecase"
)

const reconcileBatch = 200

// PendingReconciler periodically re-checks orders that stayed PENDING past
// staleAfter. It covers buyers who closed the page before the poll saw the
// payment and webhooks that never arrived.
type PendingReconciler struct {
	gateway    adapter.PixGateway
	orders     repository.OrderRepository
	settle     usecase.WebhookUseCase
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
	now        func() time.Time
}

func NewPendingReconciler(
	gateway adapter.PixGateway,
	orders repository.OrderRepository,
	settle usecase.WebhookUseCase,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PendingReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	l := logger.With().Str("component", "PendingReconciler").Logger()
	return &PendingReconciler{
		gateway:    gateway,
		orders:     orders,
		settle:     settle,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &l,
		now:        time.Now,
	}
}

func (w *PendingReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting pending reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pending reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass and returns how many orders changed status.
func (w *PendingReconciler) Tick(ctx context.Context) int {
	cutoff := w.now().Add(-w.staleAfter)
	pending, err := w.orders.ListPendingOlderThan(ctx, cutoff, reconcileBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending orders failed")
		return 0
	}

	changed := 0
	for _, o := range pending {
		if ctx.Err() != nil {
			break
		}
		if w.reconcile(ctx, o) {
			changed++
		}
	}
	if changed > 0 {
		w.log.Info().Int("count", changed).Msg("pending orders reconciled")
	}
	return changed
}

func (w *PendingReconciler) reconcile(ctx context.Context, o *model.Order) bool {
	log := w.log.With().Str("correlation_id", o.CorrelationID).Logger()

	st, err := w.gateway.GetChargeStatus(ctx, o.CorrelationID)
	if err != nil {
		log.Warn().Err(err).Msg("charge status lookup failed")
		return false
	}

	switch st.Status {
	case adapter.ChargeCompleted:
		res, err := w.settle.SettleCompleted(ctx, o.CorrelationID, st.PaidAt, "reconciler")
		if err != nil {
			log.Error().Err(err).Msg("settle completed charge failed")
			return false
		}
		return res.Outcome == usecase.WebhookSuccess
	case adapter.ChargeExpired:
		applied, err := w.orders.UpdateStatus(ctx, o.CorrelationID, model.OrderStatusExpired, nil)
		switch {
		case err != nil:
			metrics.IncTransition("reconciler", string(model.OrderStatusExpired), "error")
			log.Error().Err(err).Msg("expire order failed")
			return false
		case !applied:
			metrics.IncTransition("reconciler", string(model.OrderStatusExpired), "noop")
			return false
		}
		metrics.IncTransition("reconciler", string(model.OrderStatusExpired), "applied")
		log.Info().Msg("order expired")
		return true
	}
	return false
}
