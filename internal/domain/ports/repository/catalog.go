package repository

import (
	"context"

	"pix-checkout/internal/domain/model"
)

// -----------------------------
// Catalog (read-only input to checkout, CRUD from the dashboard)
// -----------------------------

type CatalogRepository interface {
	SaveProduct(ctx context.Context, p *model.Product) error
	FindProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	SavePlan(ctx context.Context, p *model.Plan) error
	FindPlan(ctx context.Context, id string) (*model.Plan, error)
	// ListPlans and ListOrderBumps return everything when productID is empty.
	ListPlans(ctx context.Context, productID string) ([]*model.Plan, error)
	DeletePlan(ctx context.Context, id string) error

	SaveOrderBump(ctx context.Context, b *model.OrderBump) error
	FindOrderBump(ctx context.Context, id string) (*model.OrderBump, error)
	ListOrderBumps(ctx context.Context, productID string) ([]*model.OrderBump, error)
	DeleteOrderBump(ctx context.Context, id string) error

	SavePixel(ctx context.Context, p *model.Pixel) error
	ListPixels(ctx context.Context) ([]*model.Pixel, error)
	DeletePixel(ctx context.Context, id string) error

	// GetSettings returns model.DefaultSettings when nothing was saved yet.
	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s *model.Settings) error
}
