//go:build !integration

// File: internal/usecase/mock_test.go
package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Mock Order Repository ---

type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order // by correlation id

	CreateFunc       func(ctx context.Context, o *model.Order) error
	UpdateStatusFunc func(ctx context.Context, correlationID string, status model.OrderStatus, paidAt *time.Time) (bool, error)

	updateCalls  int
	appliedCalls int
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *MockOrderRepo) Create(ctx context.Context, o *model.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, o)
	}
	if err := o.Validate(); err != nil {
		return &domain.StoreError{Op: "create_order", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.CorrelationID]; ok {
		return domain.ErrAlreadyExists
	}
	m.orders[o.CorrelationID] = o.Clone()
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) FindByCorrelationID(ctx context.Context, correlationID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[correlationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, correlationID string, status model.OrderStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, correlationID, status, paidAt)
	}
	return m.compareAndSet(correlationID, status, paidAt)
}

func (m *MockOrderRepo) compareAndSet(correlationID string, status model.OrderStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[correlationID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !o.Status.CanTransitionTo(status) {
		return false, nil
	}
	o.Status = status
	if paidAt != nil {
		t := *paidAt
		o.PaidAt = &t
	}
	m.appliedCalls++
	return true, nil
}

func (m *MockOrderRepo) List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockOrderRepo) ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan) {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

func (m *MockOrderRepo) put(o *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.CorrelationID] = o.Clone()
}

func (m *MockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *MockOrderRepo) applied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appliedCalls
}

// --- Mock Catalog Repository ---

type MockCatalogRepo struct {
	mu       sync.Mutex
	products map[string]*model.Product
	plans    map[string]*model.Plan
	bumps    map[string]*model.OrderBump
	pixels   map[string]*model.Pixel
	settings *model.Settings
}

func NewMockCatalogRepo() *MockCatalogRepo {
	return &MockCatalogRepo{
		products: make(map[string]*model.Product),
		plans:    make(map[string]*model.Plan),
		bumps:    make(map[string]*model.OrderBump),
		pixels:   make(map[string]*model.Pixel),
	}
}

func (m *MockCatalogRepo) SaveProduct(ctx context.Context, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MockCatalogRepo) FindProduct(ctx context.Context, id string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalogRepo) ListProducts(ctx context.Context) ([]*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Product
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockCatalogRepo) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MockCatalogRepo) SavePlan(ctx context.Context, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *MockCatalogRepo) FindPlan(ctx context.Context, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalogRepo) ListPlans(ctx context.Context, productID string) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.plans {
		if productID == "" || p.ProductID == productID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockCatalogRepo) DeletePlan(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans, id)
	return nil
}

func (m *MockCatalogRepo) SaveOrderBump(ctx context.Context, b *model.OrderBump) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bumps[b.ID] = &cp
	return nil
}

func (m *MockCatalogRepo) FindOrderBump(ctx context.Context, id string) (*model.OrderBump, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bumps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockCatalogRepo) ListOrderBumps(ctx context.Context, productID string) ([]*model.OrderBump, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OrderBump
	for _, b := range m.bumps {
		if productID == "" || b.ProductID == productID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockCatalogRepo) DeleteOrderBump(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bumps, id)
	return nil
}

func (m *MockCatalogRepo) SavePixel(ctx context.Context, p *model.Pixel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.pixels[p.ID] = &cp
	return nil
}

func (m *MockCatalogRepo) ListPixels(ctx context.Context) ([]*model.Pixel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Pixel
	for _, p := range m.pixels {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockCatalogRepo) DeletePixel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pixels, id)
	return nil
}

func (m *MockCatalogRepo) GetSettings(ctx context.Context) (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		s := model.DefaultSettings()
		return &s, nil
	}
	cp := *m.settings
	return &cp, nil
}

func (m *MockCatalogRepo) SaveSettings(ctx context.Context, s *model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settings = &cp
	return nil
}

// --- Mock PIX Gateway ---

type MockGateway struct {
	mu sync.Mutex

	CreateChargeFunc    func(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error)
	GetChargeStatusFunc func(ctx context.Context, correlationID string) (*adapter.ChargeStatus, error)

	createCalls int
	statusCalls int
	lastRequest adapter.ChargeRequest
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	m.mu.Lock()
	m.createCalls++
	m.lastRequest = req
	m.mu.Unlock()
	if m.CreateChargeFunc != nil {
		return m.CreateChargeFunc(ctx, req)
	}
	return &adapter.Charge{
		CorrelationID: req.CorrelationID,
		BRCode:        "000201br-" + req.CorrelationID,
		QRCodeImage:   "https://qr.example/" + req.CorrelationID,
		GlobalID:      "g-" + req.CorrelationID,
	}, nil
}

func (m *MockGateway) GetChargeStatus(ctx context.Context, correlationID string) (*adapter.ChargeStatus, error) {
	m.mu.Lock()
	m.statusCalls++
	m.mu.Unlock()
	if m.GetChargeStatusFunc != nil {
		return m.GetChargeStatusFunc(ctx, correlationID)
	}
	return &adapter.ChargeStatus{Status: adapter.ChargeActive}, nil
}

func (m *MockGateway) creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

func (m *MockGateway) polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

// statusSequence answers each poll with the next status; the last one repeats.
func statusSequence(states ...adapter.ChargeState) func(ctx context.Context, id string) (*adapter.ChargeStatus, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, id string) (*adapter.ChargeStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		st := states[i]
		if i < len(states)-1 {
			i++
		}
		return &adapter.ChargeStatus{Status: st}, nil
	}
}

// --- Mock Notifier ---

type MockNotifier struct {
	mu     sync.Mutex
	emails []adapter.Email
	events []adapter.AttributionEvent
	alerts []string
}

func (m *MockNotifier) SendEmail(ctx context.Context, e adapter.Email) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, e)
	return true
}

func (m *MockNotifier) SendAttribution(ctx context.Context, e adapter.AttributionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *MockNotifier) AlertMerchant(ctx context.Context, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, text)
}

func (m *MockNotifier) emailsWithSubject(subject string) []adapter.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []adapter.Email
	for _, e := range m.emails {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockNotifier) eventsNamed(name string) []adapter.AttributionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []adapter.AttributionEvent
	for _, e := range m.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockNotifier) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails) + len(m.events)
}

// --- Mock Navigator ---

type MockNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (m *MockNavigator) Navigate(ctx context.Context, s *usecase.Session, url string) {
	m.mu.Lock()
	m.urls = append(m.urls, url)
	m.mu.Unlock()
	usecase.RedirectNavigator{}.Navigate(ctx, s, url)
}

func (m *MockNavigator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.urls)
}

// --- Mock Rate Limiter / Task Submitter ---

type MockLimiter struct {
	AllowFunc func(ctx context.Context, key string) (bool, error)
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key)
	}
	return true, nil
}

// inlineSubmitter runs tasks synchronously so tests can assert on them.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

// --- Fixtures ---

type fixture struct {
	orders   *MockOrderRepo
	catalog  *MockCatalogRepo
	gateway  *MockGateway
	notifier *MockNotifier
	nav      *MockNavigator
	sessions *usecase.SessionRegistry
	engine   *usecase.SettlementEngine
	checkout usecase.CheckoutUseCase
	webhook  usecase.WebhookUseCase
	seq      int
}

func testSettlementConfig() usecase.SettlementConfig {
	return usecase.SettlementConfig{
		PollInterval:     5 * time.Millisecond,
		NavigateDelay:    time.Millisecond,
		Retention:        time.Minute,
		Currency:         "BRL",
		PublicURL:        "https://loja.example",
		ConfirmationPath: "/obrigado",
	}
}

func newFixture(cfg usecase.SettlementConfig) *fixture {
	f := &fixture{
		orders:   NewMockOrderRepo(),
		catalog:  NewMockCatalogRepo(),
		gateway:  &MockGateway{},
		notifier: &MockNotifier{},
		nav:      &MockNavigator{},
		sessions: usecase.NewSessionRegistry(),
	}
	logger := newTestLogger()
	f.engine = usecase.NewSettlementEngine(f.gateway, f.orders, f.notifier, f.nav, f.sessions, cfg, logger)
	var mu sync.Mutex
	newID := func() string {
		mu.Lock()
		defer mu.Unlock()
		f.seq++
		return "corr-" + string(rune('a'+f.seq-1))
	}
	f.checkout = usecase.NewCheckoutUseCase(f.catalog, f.orders, f.gateway, f.engine, &MockLimiter{}, inlineSubmitter{}, newID, logger)
	f.webhook = usecase.NewWebhookUseCase(f.orders, f.catalog, f.notifier, cfg, logger)
	seedCatalog(f.catalog)
	return f
}

func seedCatalog(c *MockCatalogRepo) {
	ctx := context.Background()
	_ = c.SaveProduct(ctx, &model.Product{
		ID: "prod-1", Name: "Curso de Fotografia", Active: true,
		Deliverables: []model.Deliverable{{Name: "Área de membros", Kind: model.DeliverableAccess, URL: "https://membros.example/curso"}},
	})
	_ = c.SavePlan(ctx, &model.Plan{ID: "plan-1", ProductID: "prod-1", Name: "Vitalício", Price: 9700, Active: true})
	_ = c.SaveOrderBump(ctx, &model.OrderBump{
		ID: "bump-1", ProductID: "prod-1", Title: "Pack de presets", Price: 1000, Active: true,
		Deliverables: []model.Deliverable{{Name: "Presets", Kind: model.DeliverableDownload, URL: "https://cdn.example/presets.zip"}},
	})
}

func validForm() model.CheckoutForm {
	return model.CheckoutForm{Name: "Ana Souza", Email: "ana@example.com", Phone: "(11) 98765-4321"}
}

func pendingOrder(correlationID string) *model.Order {
	return &model.Order{
		ID: "order-" + correlationID, CorrelationID: correlationID,
		ProductID: "prod-1", PlanID: "plan-1",
		Customer: model.Customer{Name: "Ana Souza", Email: "ana@example.com", Phone: "11987654321"},
		Amount:   9700, Status: model.OrderStatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

func waitDone(s *usecase.Session, d time.Duration) bool {
	select {
	case <-s.Done():
		return true
	case <-time.After(d):
		return false
	}
}
