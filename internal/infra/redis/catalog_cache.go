package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/infra/metrics"
)

var _ repository.CatalogRepository = (*catalogCacheDecorator)(nil)

const settingsCacheKey = "checkout:settings"

// catalogCacheDecorator caches the lookups made on every checkout page view.
// Writes invalidate before delegating.
type catalogCacheDecorator struct {
	repository.CatalogRepository
	cache RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewCatalogCacheDecorator(inner repository.CatalogRepository, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.CatalogRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &catalogCacheDecorator{CatalogRepository: inner, cache: cache, ttl: ttl, log: logger}
}

// cached reads key, falling back to load and filling the cache on a miss.
func cached[T any](ctx context.Context, d *catalogCacheDecorator, name, key string, load func() (*T, error)) (*T, error) {
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var v T
		if json.Unmarshal([]byte(val), &v) == nil {
			metrics.IncCatalogCache(name, "hit")
			return &v, nil
		}
	} else if !errors.Is(err, Nil) {
		metrics.IncCatalogCache(name, "error")
		d.log.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	metrics.IncCatalogCache(name, "miss")
	v, err := load()
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(v); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return v, nil
}

func (d *catalogCacheDecorator) invalidate(ctx context.Context, entity string, keys ...string) {
	metrics.IncCatalogCache(entity, "invalidate")
	if err := d.cache.Del(ctx, keys...); err != nil {
		d.log.Warn().Err(err).Strs("keys", keys).Msg("catalog cache invalidation failed")
	}
}

func (d *catalogCacheDecorator) FindProduct(ctx context.Context, id string) (*model.Product, error) {
	return cached(ctx, d, "product", "product:"+id, func() (*model.Product, error) {
		return d.CatalogRepository.FindProduct(ctx, id)
	})
}

func (d *catalogCacheDecorator) SaveProduct(ctx context.Context, p *model.Product) error {
	d.invalidate(ctx, "product", "product:"+p.ID)
	return d.CatalogRepository.SaveProduct(ctx, p)
}

func (d *catalogCacheDecorator) DeleteProduct(ctx context.Context, id string) error {
	d.invalidate(ctx, "product", "product:"+id)
	return d.CatalogRepository.DeleteProduct(ctx, id)
}

func (d *catalogCacheDecorator) FindPlan(ctx context.Context, id string) (*model.Plan, error) {
	return cached(ctx, d, "plan", "plan:"+id, func() (*model.Plan, error) {
		return d.CatalogRepository.FindPlan(ctx, id)
	})
}

func (d *catalogCacheDecorator) SavePlan(ctx context.Context, p *model.Plan) error {
	d.invalidate(ctx, "plan", "plan:"+p.ID)
	return d.CatalogRepository.SavePlan(ctx, p)
}

func (d *catalogCacheDecorator) DeletePlan(ctx context.Context, id string) error {
	d.invalidate(ctx, "plan", "plan:"+id)
	return d.CatalogRepository.DeletePlan(ctx, id)
}

func (d *catalogCacheDecorator) FindOrderBump(ctx context.Context, id string) (*model.OrderBump, error) {
	return cached(ctx, d, "order_bump", "order_bump:"+id, func() (*model.OrderBump, error) {
		return d.CatalogRepository.FindOrderBump(ctx, id)
	})
}

func (d *catalogCacheDecorator) SaveOrderBump(ctx context.Context, b *model.OrderBump) error {
	d.invalidate(ctx, "order_bump", "order_bump:"+b.ID)
	return d.CatalogRepository.SaveOrderBump(ctx, b)
}

func (d *catalogCacheDecorator) DeleteOrderBump(ctx context.Context, id string) error {
	d.invalidate(ctx, "order_bump", "order_bump:"+id)
	return d.CatalogRepository.DeleteOrderBump(ctx, id)
}

func (d *catalogCacheDecorator) GetSettings(ctx context.Context) (*model.Settings, error) {
	return cached(ctx, d, "settings", settingsCacheKey, func() (*model.Settings, error) {
		return d.CatalogRepository.GetSettings(ctx)
	})
}

func (d *catalogCacheDecorator) SaveSettings(ctx context.Context, s *model.Settings) error {
	d.invalidate(ctx, "settings", settingsCacheKey)
	return d.CatalogRepository.SaveSettings(ctx, s)
}
