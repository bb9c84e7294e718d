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

var _ repository.OrderRepository = (*OrderRepo)(nil)

type OrderRepo struct{ db *bolt.DB }

func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	if err := o.Validate(); err != nil {
		return &domain.StoreError{Op: "create_order", Err: err}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	err := r.db.Update(func(tx *bolt.Tx) error {
		orders, index := tx.Bucket(bucketOrders), tx.Bucket(bucketOrderIndex)
		if orders.Get([]byte(o.CorrelationID)) != nil || index.Get([]byte(o.ID)) != nil {
			return domain.ErrAlreadyExists
		}
		if err := putJSON(orders, o.CorrelationID, o); err != nil {
			return err
		}
		return index.Put([]byte(o.ID), []byte(o.CorrelationID))
	})
	return wrap("create_order", err)
}

func (r *OrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var o *model.Order
	err := r.db.View(func(tx *bolt.Tx) error {
		corr := tx.Bucket(bucketOrderIndex).Get([]byte(id))
		if corr == nil {
			return domain.ErrNotFound
		}
		var err error
		o, err = getJSON[model.Order](tx.Bucket(bucketOrders), string(corr))
		return err
	})
	return o, wrap("find_order", err)
}

func (r *OrderRepo) FindByCorrelationID(ctx context.Context, correlationID string) (*model.Order, error) {
	var o *model.Order
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		o, err = getJSON[model.Order](tx.Bucket(bucketOrders), correlationID)
		return err
	})
	return o, wrap("find_order", err)
}

// UpdateStatus runs the compare-and-set inside one write transaction; bolt
// serializes writers so the check and the put cannot interleave.
func (r *OrderRepo) UpdateStatus(ctx context.Context, correlationID string, status model.OrderStatus, paidAt *time.Time) (bool, error) {
	if len(model.Predecessors(status)) == 0 {
		return false, domain.ErrInvalidTransition
	}
	applied := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		o, err := getJSON[model.Order](b, correlationID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(status) {
			return nil
		}
		o.Status = status
		if paidAt != nil {
			t := paidAt.UTC()
			o.PaidAt = &t
		}
		applied = true
		return putJSON(b, correlationID, o)
	})
	if err != nil {
		return false, wrap("update_order_status", err)
	}
	return applied, nil
}

func (r *OrderRepo) List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error) {
	var out []*model.Order
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = listJSON(tx.Bucket(bucketOrders), func(o *model.Order) bool {
			return f.Status == "" || o.Status == f.Status
		})
		return err
	})
	if err != nil {
		return nil, wrap("list_orders", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OrderRepo) ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*model.Order
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = listJSON(tx.Bucket(bucketOrders), func(o *model.Order) bool {
			return o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan)
		})
		return err
	})
	if err != nil {
		return nil, wrap("list_pending_orders", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
