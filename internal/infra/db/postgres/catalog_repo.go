package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/repository"
)

var _ repository.CatalogRepository = (*catalogRepo)(nil)

type catalogRepo struct{ pool *pgxpool.Pool }

func NewCatalogRepo(pool *pgxpool.Pool) *catalogRepo {
	return &catalogRepo{pool: pool}
}

// ---- products ----

func (r *catalogRepo) SaveProduct(ctx context.Context, p *model.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	deliverables, err := marshalDeliverables(p.Deliverables)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO products (id, name, description, image_url, deliverables, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  name=$2, description=$3, image_url=$4, deliverables=$5, active=$6;`
	_, err = execSQL(ctx, r.pool, q, p.ID, p.Name, p.Description, p.ImageURL, deliverables, p.Active, createdAt(p.CreatedAt))
	return storeErr("save_product", err)
}

func (r *catalogRepo) FindProduct(ctx context.Context, id string) (*model.Product, error) {
	row, err := pickRow(ctx, r.pool, `SELECT id, name, description, image_url, deliverables, active, created_at FROM products WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	p, err := scanProduct(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

func (r *catalogRepo) ListProducts(ctx context.Context) ([]*model.Product, error) {
	rows, err := queryRows(ctx, r.pool, `SELECT id, name, description, image_url, deliverables, active, created_at FROM products ORDER BY created_at ASC;`)
	if err != nil {
		return nil, storeErr("list_products", err)
	}
	defer rows.Close()
	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, storeErr("list_products", rows.Err())
}

func (r *catalogRepo) DeleteProduct(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "delete_product", `DELETE FROM products WHERE id=$1;`, id)
}

// ---- plans ----

func (r *catalogRepo) SavePlan(ctx context.Context, p *model.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO plans (id, product_id, name, price, is_recurring, recurring_interval, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  product_id=$2, name=$3, price=$4, is_recurring=$5, recurring_interval=$6, active=$7;`
	_, err := execSQL(ctx, r.pool, q, p.ID, p.ProductID, p.Name, p.Price, p.IsRecurring, string(p.RecurringInterval), p.Active, createdAt(p.CreatedAt))
	return storeErr("save_plan", err)
}

func (r *catalogRepo) FindPlan(ctx context.Context, id string) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, `SELECT id, product_id, name, price, is_recurring, recurring_interval, active, created_at FROM plans WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

func (r *catalogRepo) ListPlans(ctx context.Context, productID string) ([]*model.Plan, error) {
	q := `SELECT id, product_id, name, price, is_recurring, recurring_interval, active, created_at FROM plans`
	var args []interface{}
	if productID != "" {
		q += ` WHERE product_id=$1`
		args = append(args, productID)
	}
	q += ` ORDER BY price ASC;`
	rows, err := queryRows(ctx, r.pool, q, args...)
	if err != nil {
		return nil, storeErr("list_plans", err)
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, storeErr("list_plans", rows.Err())
}

func (r *catalogRepo) DeletePlan(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "delete_plan", `DELETE FROM plans WHERE id=$1;`, id)
}

// ---- order bumps ----

func (r *catalogRepo) SaveOrderBump(ctx context.Context, b *model.OrderBump) error {
	if err := b.Validate(); err != nil {
		return err
	}
	deliverables, err := marshalDeliverables(b.Deliverables)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO order_bumps (id, product_id, title, description, price, deliverables, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  product_id=$2, title=$3, description=$4, price=$5, deliverables=$6, active=$7;`
	_, err = execSQL(ctx, r.pool, q, b.ID, b.ProductID, b.Title, b.Description, b.Price, deliverables, b.Active, createdAt(b.CreatedAt))
	return storeErr("save_order_bump", err)
}

func (r *catalogRepo) FindOrderBump(ctx context.Context, id string) (*model.OrderBump, error) {
	row, err := pickRow(ctx, r.pool, `SELECT id, product_id, title, description, price, deliverables, active, created_at FROM order_bumps WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	b, err := scanOrderBump(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return b, nil
}

func (r *catalogRepo) ListOrderBumps(ctx context.Context, productID string) ([]*model.OrderBump, error) {
	q := `SELECT id, product_id, title, description, price, deliverables, active, created_at FROM order_bumps`
	var args []interface{}
	if productID != "" {
		q += ` WHERE product_id=$1`
		args = append(args, productID)
	}
	q += ` ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, q, args...)
	if err != nil {
		return nil, storeErr("list_order_bumps", err)
	}
	defer rows.Close()
	var out []*model.OrderBump
	for rows.Next() {
		b, err := scanOrderBump(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, b)
	}
	return out, storeErr("list_order_bumps", rows.Err())
}

func (r *catalogRepo) DeleteOrderBump(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "delete_order_bump", `DELETE FROM order_bumps WHERE id=$1;`, id)
}

// ---- pixels ----

func (r *catalogRepo) SavePixel(ctx context.Context, p *model.Pixel) error {
	if err := p.Validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO pixels (id, platform, pixel_id, active, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET platform=$2, pixel_id=$3, active=$4;`
	_, err := execSQL(ctx, r.pool, q, p.ID, string(p.Platform), p.PixelID, p.Active, createdAt(p.CreatedAt))
	return storeErr("save_pixel", err)
}

func (r *catalogRepo) ListPixels(ctx context.Context) ([]*model.Pixel, error) {
	rows, err := queryRows(ctx, r.pool, `SELECT id, platform, pixel_id, active, created_at FROM pixels ORDER BY created_at ASC;`)
	if err != nil {
		return nil, storeErr("list_pixels", err)
	}
	defer rows.Close()
	var out []*model.Pixel
	for rows.Next() {
		var (
			p        model.Pixel
			platform string
		)
		if err := rows.Scan(&p.ID, &platform, &p.PixelID, &p.Active, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Platform = model.PixelPlatform(platform)
		out = append(out, &p)
	}
	return out, storeErr("list_pixels", rows.Err())
}

func (r *catalogRepo) DeletePixel(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "delete_pixel", `DELETE FROM pixels WHERE id=$1;`, id)
}

// ---- settings ----

func (r *catalogRepo) GetSettings(ctx context.Context) (*model.Settings, error) {
	row, err := pickRow(ctx, r.pool, `SELECT data FROM checkout_settings WHERE id=1;`)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s := model.DefaultSettings()
			return &s, nil
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s := model.DefaultSettings()
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func (r *catalogRepo) SaveSettings(ctx context.Context, s *model.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO checkout_settings (id, data) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET data=$1;`
	_, err = execSQL(ctx, r.pool, q, string(b))
	return storeErr("save_settings", err)
}

// ---- helpers ----

func (r *catalogRepo) deleteByID(ctx context.Context, op, q, id string) error {
	tag, err := execSQL(ctx, r.pool, q, id)
	if err != nil {
		return storeErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func marshalDeliverables(ds []model.Deliverable) (string, error) {
	if ds == nil {
		return "[]", nil
	}
	b, err := json.Marshal(ds)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p   model.Product
		raw []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &raw, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalDeliverables(raw, &p.Deliverables); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var (
		p        model.Plan
		interval string
	)
	if err := row.Scan(&p.ID, &p.ProductID, &p.Name, &p.Price, &p.IsRecurring, &interval, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.RecurringInterval = model.RecurringInterval(interval)
	return &p, nil
}

func scanOrderBump(row pgx.Row) (*model.OrderBump, error) {
	var (
		b   model.OrderBump
		raw []byte
	)
	if err := row.Scan(&b.ID, &b.ProductID, &b.Title, &b.Description, &b.Price, &raw, &b.Active, &b.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalDeliverables(raw, &b.Deliverables); err != nil {
		return nil, err
	}
	return &b, nil
}

func unmarshalDeliverables(raw []byte, dst *[]model.Deliverable) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if len(*dst) == 0 {
		*dst = nil
	}
	return nil
}
