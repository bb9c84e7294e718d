//go:build !integration

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/infra/adapters/payment"
	"pix-checkout/internal/infra/api"
	"pix-checkout/internal/infra/db/boltdb"
	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/usecase"
)

const (
	adminUser     = "admin"
	adminPassword = "s3nha-forte"
)

// --- Recording notifier ---

type recordingNotifier struct {
	mu     sync.Mutex
	emails []adapter.Email
	events []adapter.AttributionEvent
}

func (n *recordingNotifier) SendEmail(ctx context.Context, e adapter.Email) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, e)
	return true
}

func (n *recordingNotifier) SendAttribution(ctx context.Context, e adapter.AttributionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) AlertMerchant(ctx context.Context, text string) {}

func (n *recordingNotifier) purchases() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Name == "Purchase" {
			c++
		}
	}
	return c
}

// --- Limiter stub ---

type stubLimiter struct{ allow bool }

func (l *stubLimiter) Allow(ctx context.Context, key string) (bool, error) { return l.allow, nil }

// --- Fixture ---

type apiFixture struct {
	handler  http.Handler
	gateway  *payment.NoopGateway
	notifier *recordingNotifier
	limiter  *stubLimiter
	engine   *usecase.SettlementEngine
	store    *boltdb.Store
}

func newAPIFixture(t *testing.T, webhookSecret string) *apiFixture {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	seedCatalog(t, store)

	f := &apiFixture{
		gateway:  payment.NewNoopGateway(),
		notifier: &recordingNotifier{},
		limiter:  &stubLimiter{allow: true},
		store:    store,
	}
	cfg := usecase.SettlementConfig{PollInterval: 10 * time.Millisecond, Retention: time.Minute}
	orders, catalog := store.Orders(), store.Catalog()
	f.engine = usecase.NewSettlementEngine(f.gateway, orders, f.notifier, nil, usecase.NewSessionRegistry(), cfg, logging.Nop())
	checkout := usecase.NewCheckoutUseCase(catalog, orders, f.gateway, f.engine, f.limiter, nil, payment.NewCorrelationID, logging.Nop())

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(api.Deps{
		Checkout:      checkout,
		Webhook:       usecase.NewWebhookUseCase(orders, catalog, f.notifier, cfg, logging.Nop()),
		Orders:        usecase.NewOrderUseCase(orders, catalog, f.notifier, cfg, logging.Nop()),
		Catalog:       usecase.NewCatalogUseCase(catalog),
		Auth:          api.NewAuthManager(adminUser, string(hash), "test-secret", false, time.Hour),
		WebhookSecret: webhookSecret,
		DevCharges:    f.gateway,
	}, logging.Nop())
	f.handler = srv.Routes()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.engine.Shutdown(ctx)
		_ = store.Close()
	})
	return f
}

func seedCatalog(t *testing.T, store *boltdb.Store) {
	t.Helper()
	ctx := context.Background()
	c := store.Catalog()
	must := func(err error) {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(c.SaveProduct(ctx, &model.Product{ID: "prod-1", Name: "Curso de Fotografia", Active: true, Deliverables: []model.Deliverable{
		{Name: "Área de membros", Kind: model.DeliverableAccess, URL: "https://membros.example/curso"},
	}}))
	must(c.SavePlan(ctx, &model.Plan{ID: "plan-1", ProductID: "prod-1", Name: "Vitalício", Price: 9700, Active: true}))
	must(c.SaveOrderBump(ctx, &model.OrderBump{ID: "bump-1", ProductID: "prod-1", Title: "Pack de presets", Price: 1000, Active: true}))
}

func (f *apiFixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

const validCheckout = `{
  "productId": "prod-1",
  "planId": "plan-1",
  "orderBumpId": "bump-1",
  "customer": {"name": "Maria Silva", "email": "maria@example.com", "phone": "(11) 99999-0000"},
  "trackingParameters": {"utm_source": "instagram"}
}`

func completedWebhook(correlationID string) string {
	return `{"event":"OPENPIX:CHARGE_COMPLETED","charge":{"correlationID":"` + correlationID + `","status":"COMPLETED"}}`
}
