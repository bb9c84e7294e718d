package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, correlation_id, product_id, plan_id, order_bump_id, customer_name, customer_email, customer_phone, customer_cpf, amount, status, pix_copy_paste, pix_qr_code, pix_charge_id, tracking_parameters, created_at, paid_at`

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	if err := o.Validate(); err != nil {
		return &domain.StoreError{Op: "create_order", Err: err}
	}
	tracking, err := json.Marshal(o.TrackingParameters)
	if err != nil {
		return &domain.StoreError{Op: "create_order", Err: err}
	}
	if o.TrackingParameters == nil {
		tracking = []byte("{}")
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO orders (` + orderColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`
	_, err = execSQL(ctx, r.pool, q,
		o.ID, o.CorrelationID, o.ProductID, o.PlanID, o.OrderBumpID,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Customer.CPF,
		o.Amount, string(o.Status), o.PixCopyPaste, o.PixQRCode, o.PixChargeID,
		string(tracking), o.CreatedAt, o.PaidAt)
	return storeErr("create_order", err)
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1;`, id)
}

func (r *orderRepo) FindByCorrelationID(ctx context.Context, correlationID string) (*model.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE correlation_id=$1;`, correlationID)
}

func (r *orderRepo) findOne(ctx context.Context, q string, arg string) (*model.Order, error) {
	row, err := pickRow(ctx, r.pool, q, arg)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return o, nil
}

// UpdateStatus only touches rows whose current status is a legal predecessor
// of status, so concurrent writers settle the same order at most once.
func (r *orderRepo) UpdateStatus(ctx context.Context, correlationID string, status model.OrderStatus, paidAt *time.Time) (bool, error) {
	preds := model.Predecessors(status)
	if len(preds) == 0 {
		return false, domain.ErrInvalidTransition
	}
	from := make([]string, len(preds))
	for i, p := range preds {
		from[i] = string(p)
	}

	const q = `
UPDATE orders
   SET status = $2,
       paid_at = COALESCE($3, paid_at),
       updated_at = NOW()
 WHERE correlation_id = $1
   AND status = ANY($4);`
	tag, err := execSQL(ctx, r.pool, q, correlationID, string(status), paidAt, from)
	if err != nil {
		return false, storeErr("update_order_status", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	row, err := pickRow(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM orders WHERE correlation_id=$1);`, correlationID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, storeErr("update_order_status", err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *orderRepo) List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	args := []interface{}{limit, f.Offset}
	if f.Status != "" {
		q += ` WHERE status=$3`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	return r.list(ctx, q, args...)
}

func (r *orderRepo) ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE status='PENDING' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, q, olderThan, limit)
}

func (r *orderRepo) list(ctx context.Context, q string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, q, args...)
	if err != nil {
		return nil, storeErr("list_orders", err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list_orders", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o        model.Order
		status   string
		tracking []byte
	)
	if err := row.Scan(&o.ID, &o.CorrelationID, &o.ProductID, &o.PlanID, &o.OrderBumpID,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Customer.CPF,
		&o.Amount, &status, &o.PixCopyPaste, &o.PixQRCode, &o.PixChargeID,
		&tracking, &o.CreatedAt, &o.PaidAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if len(tracking) > 0 {
		if err := json.Unmarshal(tracking, &o.TrackingParameters); err != nil {
			return nil, err
		}
		if len(o.TrackingParameters) == 0 {
			o.TrackingParameters = nil
		}
	}
	return &o, nil
}
