package boltdb

import (
	"context"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/repository"
)

var _ repository.CatalogRepository = (*CatalogRepo)(nil)

type CatalogRepo struct{ db *bolt.DB }

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

func (r *CatalogRepo) save(op string, bucket []byte, key string, v any) error {
	return wrap(op, r.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucket), key, v)
	}))
}

func (r *CatalogRepo) remove(op string, bucket []byte, key string) error {
	return wrap(op, r.db.Update(func(tx *bolt.Tx) error {
		return deleteKey(tx.Bucket(bucket), key)
	}))
}

func find[T any](db *bolt.DB, op string, bucket []byte, key string) (*T, error) {
	var v *T
	err := db.View(func(tx *bolt.Tx) error {
		var err error
		v, err = getJSON[T](tx.Bucket(bucket), key)
		return err
	})
	return v, wrap(op, err)
}

func list[T any](db *bolt.DB, op string, bucket []byte, keep func(*T) bool) ([]*T, error) {
	var out []*T
	err := db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = listJSON(tx.Bucket(bucket), keep)
		return err
	})
	return out, wrap(op, err)
}

func (r *CatalogRepo) SaveProduct(ctx context.Context, p *model.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	stamp(&p.CreatedAt)
	return r.save("save_product", bucketProducts, p.ID, p)
}

func (r *CatalogRepo) FindProduct(ctx context.Context, id string) (*model.Product, error) {
	return find[model.Product](r.db, "find_product", bucketProducts, id)
}

func (r *CatalogRepo) ListProducts(ctx context.Context) ([]*model.Product, error) {
	out, err := list[model.Product](r.db, "list_products", bucketProducts, nil)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *CatalogRepo) DeleteProduct(ctx context.Context, id string) error {
	return r.remove("delete_product", bucketProducts, id)
}

func (r *CatalogRepo) SavePlan(ctx context.Context, p *model.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	stamp(&p.CreatedAt)
	return r.save("save_plan", bucketPlans, p.ID, p)
}

func (r *CatalogRepo) FindPlan(ctx context.Context, id string) (*model.Plan, error) {
	return find[model.Plan](r.db, "find_plan", bucketPlans, id)
}

func (r *CatalogRepo) ListPlans(ctx context.Context, productID string) ([]*model.Plan, error) {
	out, err := list(r.db, "list_plans", bucketPlans, func(p *model.Plan) bool {
		return productID == "" || p.ProductID == productID
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, err
}

func (r *CatalogRepo) DeletePlan(ctx context.Context, id string) error {
	return r.remove("delete_plan", bucketPlans, id)
}

func (r *CatalogRepo) SaveOrderBump(ctx context.Context, b *model.OrderBump) error {
	if err := b.Validate(); err != nil {
		return err
	}
	stamp(&b.CreatedAt)
	return r.save("save_order_bump", bucketBumps, b.ID, b)
}

func (r *CatalogRepo) FindOrderBump(ctx context.Context, id string) (*model.OrderBump, error) {
	return find[model.OrderBump](r.db, "find_order_bump", bucketBumps, id)
}

func (r *CatalogRepo) ListOrderBumps(ctx context.Context, productID string) ([]*model.OrderBump, error) {
	out, err := list(r.db, "list_order_bumps", bucketBumps, func(b *model.OrderBump) bool {
		return productID == "" || b.ProductID == productID
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *CatalogRepo) DeleteOrderBump(ctx context.Context, id string) error {
	return r.remove("delete_order_bump", bucketBumps, id)
}

func (r *CatalogRepo) SavePixel(ctx context.Context, p *model.Pixel) error {
	if err := p.Validate(); err != nil {
		return err
	}
	stamp(&p.CreatedAt)
	return r.save("save_pixel", bucketPixels, p.ID, p)
}

func (r *CatalogRepo) ListPixels(ctx context.Context) ([]*model.Pixel, error) {
	out, err := list[model.Pixel](r.db, "list_pixels", bucketPixels, nil)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *CatalogRepo) DeletePixel(ctx context.Context, id string) error {
	return r.remove("delete_pixel", bucketPixels, id)
}

func (r *CatalogRepo) GetSettings(ctx context.Context) (*model.Settings, error) {
	s := model.DefaultSettings()
	err := r.db.View(func(tx *bolt.Tx) error {
		got, err := getJSON[model.Settings](tx.Bucket(bucketSettings), string(settingsKey))
		if err != nil {
			return err
		}
		s = *got
		return nil
	})
	if err != nil && err != domain.ErrNotFound {
		return nil, wrap("get_settings", err)
	}
	return &s, nil
}

func (r *CatalogRepo) SaveSettings(ctx context.Context, s *model.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return r.save("save_settings", bucketSettings, string(settingsKey), s)
}
