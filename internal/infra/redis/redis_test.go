//go:build !integration

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/repository"
)

// --- Mock Redis Client ---

type mockRedisClient struct {
	mu      sync.Mutex
	data    map[string]string
	deleted []string

	GetFunc  func(ctx context.Context, key string) (string, error)
	IncrFunc func(ctx context.Context, key string) (int64, error)
	ttls     map[string]time.Duration
}

func newMockRedis() *mockRedisClient {
	return &mockRedisClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Close() error                   { return nil }

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", Nil
	}
	return v, nil
}

func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	if m.IncrFunc != nil {
		return m.IncrFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if v, ok := m.data[key]; ok {
		_ = json.Unmarshal([]byte(v), &n)
	}
	n++
	b, _ := json.Marshal(n)
	m.data[key] = string(b)
	return n, nil
}

func (m *mockRedisClient) Expire(ctx context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = exp
	return nil
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

// --- Mock inner catalog ---

type mockInnerCatalog struct {
	repository.CatalogRepository
	plans     map[string]*model.Plan
	findCalls int
}

func (m *mockInnerCatalog) FindPlan(ctx context.Context, id string) (*model.Plan, error) {
	m.findCalls++
	p, ok := m.plans[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockInnerCatalog) SavePlan(ctx context.Context, p *model.Plan) error {
	m.plans[p.ID] = p
	return nil
}

func (m *mockInnerCatalog) GetSettings(ctx context.Context) (*model.Settings, error) {
	m.findCalls++
	s := model.DefaultSettings()
	return &s, nil
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	cli := newMockRedis()
	rl := NewRateLimiter(cli, 3, time.Minute)

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, "checkout:10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("attempt %d: expected allowed, got %v, %v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, "checkout:10.0.0.1"); ok {
		t.Error("expected the fourth attempt to be refused")
	}
	if ok, _ := rl.Allow(ctx, "checkout:10.0.0.2"); !ok {
		t.Error("expected another client to be allowed")
	}
	if cli.ttls["rate_limit:checkout:10.0.0.1"] != time.Minute {
		t.Errorf("expected the window to be set on first hit, got %v", cli.ttls)
	}

	cli.IncrFunc = func(ctx context.Context, key string) (int64, error) { return 0, errors.New("connection refused") }
	if _, err := rl.Allow(ctx, "checkout:10.0.0.3"); err == nil {
		t.Error("expected the redis error to surface")
	}
}

func TestCatalogCacheDecorator(t *testing.T) {
	ctx := context.Background()

	t.Run("FindPlan should return from cache on hit", func(t *testing.T) {
		// --- Arrange ---
		cli := newMockRedis()
		inner := &mockInnerCatalog{plans: map[string]*model.Plan{"plan-1": {ID: "plan-1", Name: "Vitalício", Price: 9700}}}
		d := NewCatalogCacheDecorator(inner, cli, time.Hour, testLogger())

		// --- Act ---
		first, err := d.FindPlan(ctx, "plan-1")
		if err != nil {
			t.Fatal(err)
		}
		second, err := d.FindPlan(ctx, "plan-1")

		// --- Assert ---
		if err != nil || second.Price != first.Price {
			t.Fatalf("unexpected cached plan %+v, %v", second, err)
		}
		if inner.findCalls != 1 {
			t.Errorf("expected one inner lookup, got %d", inner.findCalls)
		}
	})

	t.Run("SavePlan should invalidate the cache", func(t *testing.T) {
		cli := newMockRedis()
		inner := &mockInnerCatalog{plans: map[string]*model.Plan{"plan-1": {ID: "plan-1", Price: 9700}}}
		d := NewCatalogCacheDecorator(inner, cli, time.Hour, testLogger())

		_, _ = d.FindPlan(ctx, "plan-1")
		if err := d.SavePlan(ctx, &model.Plan{ID: "plan-1", Price: 19700}); err != nil {
			t.Fatal(err)
		}
		got, _ := d.FindPlan(ctx, "plan-1")
		if got.Price != 19700 {
			t.Errorf("expected fresh price after save, got %d", got.Price)
		}
		if len(cli.deleted) != 1 || cli.deleted[0] != "plan:plan-1" {
			t.Errorf("expected plan key invalidated, got %v", cli.deleted)
		}
	})

	t.Run("redis errors fall through to the store", func(t *testing.T) {
		cli := newMockRedis()
		cli.GetFunc = func(ctx context.Context, key string) (string, error) { return "", errors.New("i/o timeout") }
		inner := &mockInnerCatalog{}
		d := NewCatalogCacheDecorator(inner, cli, time.Hour, testLogger())

		s, err := d.GetSettings(ctx)
		if err != nil || s.TimerMinutes != 15 {
			t.Errorf("expected settings from the store, got %+v, %v", s, err)
		}
	})

	t.Run("lookup errors are not cached", func(t *testing.T) {
		cli := newMockRedis()
		inner := &mockInnerCatalog{plans: map[string]*model.Plan{}}
		d := NewCatalogCacheDecorator(inner, cli, time.Hour, testLogger())
		if _, err := d.FindPlan(ctx, "missing"); err == nil {
			t.Fatal("expected error")
		}
		if len(cli.data) != 0 {
			t.Errorf("expected nothing cached, got %v", cli.data)
		}
	})
}
