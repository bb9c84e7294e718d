//go:build !integration

package sched_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/infra/adapters/payment"
	"pix-checkout/internal/infra/db/boltdb"
	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/infra/sched"
	"pix-checkout/internal/usecase"
)

type countingNotifier struct {
	mu     sync.Mutex
	events []adapter.AttributionEvent
}

func (n *countingNotifier) SendEmail(ctx context.Context, e adapter.Email) bool { return true }

func (n *countingNotifier) SendAttribution(ctx context.Context, e adapter.AttributionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *countingNotifier) AlertMerchant(ctx context.Context, text string) {}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type reconcilerFixture struct {
	store    *boltdb.Store
	gateway  *payment.NoopGateway
	notifier *countingNotifier
	rec      *sched.PendingReconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "sched.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := &reconcilerFixture{store: store, gateway: payment.NewNoopGateway(), notifier: &countingNotifier{}}
	webhook := usecase.NewWebhookUseCase(store.Orders(), store.Catalog(), f.notifier, usecase.SettlementConfig{}, logging.Nop())
	f.rec = sched.NewPendingReconciler(f.gateway, store.Orders(), webhook, time.Hour, 10*time.Minute, logging.Nop())
	return f
}

// addOrder stores a PENDING order of the given age and issues its charge.
func (f *reconcilerFixture) addOrder(t *testing.T, correlationID string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	o := &model.Order{
		ID: "order-" + correlationID, CorrelationID: correlationID,
		ProductID: "prod-1", PlanID: "plan-1",
		Customer: model.Customer{Name: "Ana Souza", Email: "ana@example.com"},
		Amount:   9700, Status: model.OrderStatusPending,
		CreatedAt: time.Now().Add(-age),
	}
	if err := f.store.Orders().Create(ctx, o); err != nil {
		t.Fatal(err)
	}
	if _, err := f.gateway.CreateCharge(ctx, adapter.ChargeRequest{CorrelationID: correlationID, ValueCents: o.Amount}); err != nil {
		t.Fatal(err)
	}
}

func (f *reconcilerFixture) status(t *testing.T, correlationID string) model.OrderStatus {
	t.Helper()
	o, err := f.store.Orders().FindByCorrelationID(context.Background(), correlationID)
	if err != nil {
		t.Fatal(err)
	}
	return o.Status
}

func TestPendingReconciler_Tick(t *testing.T) {
	// --- Arrange ---
	f := newReconcilerFixture(t)
	f.addOrder(t, "paid", time.Hour)
	f.addOrder(t, "expired", time.Hour)
	f.addOrder(t, "active", time.Hour)
	f.addOrder(t, "fresh", time.Minute)
	if err := f.gateway.Complete("paid"); err != nil {
		t.Fatal(err)
	}
	if err := f.gateway.Expire("expired"); err != nil {
		t.Fatal(err)
	}
	if err := f.gateway.Complete("fresh"); err != nil {
		t.Fatal(err)
	}

	// --- Act ---
	changed := f.rec.Tick(context.Background())

	// --- Assert ---
	if changed != 2 {
		t.Errorf("expected 2 reconciled orders, got %d", changed)
	}
	want := map[string]model.OrderStatus{
		"paid":    model.OrderStatusApproved,
		"expired": model.OrderStatusExpired,
		"active":  model.OrderStatusPending,
		"fresh":   model.OrderStatusPending,
	}
	for id, st := range want {
		if got := f.status(t, id); got != st {
			t.Errorf("%s: expected %s, got %s", id, st, got)
		}
	}
	if f.notifier.count() != 1 {
		t.Errorf("expected one purchase event, got %d", f.notifier.count())
	}

	// second pass finds nothing left to do
	if n := f.rec.Tick(context.Background()); n != 0 {
		t.Errorf("expected idle second pass, got %d", n)
	}
	if f.notifier.count() != 1 {
		t.Errorf("expected no repeat side effects, got %d events", f.notifier.count())
	}
}

func TestPendingReconciler_UnknownChargeIsSkipped(t *testing.T) {
	f := newReconcilerFixture(t)
	o := &model.Order{
		ID: "order-x", CorrelationID: "x", ProductID: "prod-1", PlanID: "plan-1",
		Customer: model.Customer{Name: "Ana", Email: "ana@example.com"},
		Amount:   100, Status: model.OrderStatusPending, CreatedAt: time.Now().Add(-time.Hour),
	}
	if err := f.store.Orders().Create(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	if n := f.rec.Tick(context.Background()); n != 0 {
		t.Errorf("expected nothing reconciled, got %d", n)
	}
	if got := f.status(t, "x"); got != model.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", got)
	}
}

func TestPendingReconciler_RunStopsOnCancel(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rec.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
