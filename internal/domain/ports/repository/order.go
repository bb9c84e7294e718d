package repository

import (
	"context"
	"time"

	"pix-checkout/internal/domain/model"
)

// -----------------------------
// Orders
// -----------------------------

type OrderFilter struct {
	Status model.OrderStatus // empty = any
	Limit  int
	Offset int
}

// OrderRepository persists orders. It never talks to the gateway.
type OrderRepository interface {
	// Create fails with ErrInvalidArgument when required fields are missing and
	// ErrAlreadyExists when the correlation id is taken.
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*model.Order, error)
	// UpdateStatus is a compare-and-set keyed by correlation id: it applies only
	// when the stored status may move to status, and reports whether it did.
	// paidAt is written only when the update applies.
	UpdateStatus(ctx context.Context, correlationID string, status model.OrderStatus, paidAt *time.Time) (bool, error)
	List(ctx context.Context, f OrderFilter) ([]*model.Order, error)
	ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.Order, error)
}
