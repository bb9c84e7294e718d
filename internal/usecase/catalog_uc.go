package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/repository"
)

var _ CatalogUseCase = (*catalogUC)(nil)

// CatalogUseCase is the merchant's CRUD over products, plans, bumps, pixels
// and settings. Save* creates when the id is empty and updates otherwise.
type CatalogUseCase interface {
	SaveProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	SavePlan(ctx context.Context, p *model.Plan) (*model.Plan, error)
	ListPlans(ctx context.Context, productID string) ([]*model.Plan, error)
	DeletePlan(ctx context.Context, id string) error

	SaveOrderBump(ctx context.Context, b *model.OrderBump) (*model.OrderBump, error)
	ListOrderBumps(ctx context.Context, productID string) ([]*model.OrderBump, error)
	DeleteOrderBump(ctx context.Context, id string) error

	SavePixel(ctx context.Context, p *model.Pixel) (*model.Pixel, error)
	ListPixels(ctx context.Context) ([]*model.Pixel, error)
	DeletePixel(ctx context.Context, id string) error

	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s *model.Settings) (*model.Settings, error)
}

type catalogUC struct {
	repo repository.CatalogRepository
	now  func() time.Time
}

func NewCatalogUseCase(repo repository.CatalogRepository) *catalogUC {
	return &catalogUC{repo: repo, now: time.Now}
}

// stamp assigns id and creation time to new entities and keeps the original
// creation time on updates.
func (u *catalogUC) stamp(id *string, createdAt *time.Time, existing func(string) (time.Time, error)) error {
	if *id == "" {
		*id = uuid.NewString()
		*createdAt = u.now().UTC()
		return nil
	}
	prev, err := existing(*id)
	if err != nil {
		return err
	}
	*createdAt = prev
	return nil
}

func (u *catalogUC) SaveProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	if p == nil {
		return nil, domain.ErrInvalidArgument
	}
	err := u.stamp(&p.ID, &p.CreatedAt, func(id string) (time.Time, error) {
		cur, err := u.repo.FindProduct(ctx, id)
		if err != nil {
			return time.Time{}, err
		}
		return cur.CreatedAt, nil
	})
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *catalogUC) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return u.repo.FindProduct(ctx, id)
}

func (u *catalogUC) ListProducts(ctx context.Context) ([]*model.Product, error) {
	return u.repo.ListProducts(ctx)
}

// DeleteProduct refuses while plans or order bumps still reference the product.
func (u *catalogUC) DeleteProduct(ctx context.Context, id string) error {
	plans, err := u.repo.ListPlans(ctx, id)
	if err != nil {
		return err
	}
	if len(plans) > 0 {
		return errors.Join(domain.ErrInvalidArgument, errors.New("product still has plans"))
	}
	bumps, err := u.repo.ListOrderBumps(ctx, id)
	if err != nil {
		return err
	}
	if len(bumps) > 0 {
		return errors.Join(domain.ErrInvalidArgument, errors.New("product still has order bumps"))
	}
	return u.repo.DeleteProduct(ctx, id)
}

func (u *catalogUC) SavePlan(ctx context.Context, p *model.Plan) (*model.Plan, error) {
	if p == nil {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.repo.FindProduct(ctx, p.ProductID); err != nil {
		return nil, err
	}
	err := u.stamp(&p.ID, &p.CreatedAt, func(id string) (time.Time, error) {
		cur, err := u.repo.FindPlan(ctx, id)
		if err != nil {
			return time.Time{}, err
		}
		return cur.CreatedAt, nil
	})
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.SavePlan(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *catalogUC) ListPlans(ctx context.Context, productID string) ([]*model.Plan, error) {
	return u.repo.ListPlans(ctx, productID)
}

func (u *catalogUC) DeletePlan(ctx context.Context, id string) error {
	return u.repo.DeletePlan(ctx, id)
}

func (u *catalogUC) SaveOrderBump(ctx context.Context, b *model.OrderBump) (*model.OrderBump, error) {
	if b == nil {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.repo.FindProduct(ctx, b.ProductID); err != nil {
		return nil, err
	}
	err := u.stamp(&b.ID, &b.CreatedAt, func(id string) (time.Time, error) {
		cur, err := u.repo.FindOrderBump(ctx, id)
		if err != nil {
			return time.Time{}, err
		}
		return cur.CreatedAt, nil
	})
	if err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.SaveOrderBump(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (u *catalogUC) ListOrderBumps(ctx context.Context, productID string) ([]*model.OrderBump, error) {
	return u.repo.ListOrderBumps(ctx, productID)
}

func (u *catalogUC) DeleteOrderBump(ctx context.Context, id string) error {
	return u.repo.DeleteOrderBump(ctx, id)
}

func (u *catalogUC) SavePixel(ctx context.Context, p *model.Pixel) (*model.Pixel, error) {
	if p == nil {
		return nil, domain.ErrInvalidArgument
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
		p.CreatedAt = u.now().UTC()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.SavePixel(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *catalogUC) ListPixels(ctx context.Context) ([]*model.Pixel, error) {
	return u.repo.ListPixels(ctx)
}

func (u *catalogUC) DeletePixel(ctx context.Context, id string) error {
	return u.repo.DeletePixel(ctx, id)
}

func (u *catalogUC) GetSettings(ctx context.Context) (*model.Settings, error) {
	return u.repo.GetSettings(ctx)
}

func (u *catalogUC) SaveSettings(ctx context.Context, s *model.Settings) (*model.Settings, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.SaveSettings(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
