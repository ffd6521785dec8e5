package items

import (
	"context"

	"github.com/uranghalus/dutaassets-sub001/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, orgID, filters)
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, item Item) (Item, error) {
	if err := s.validate(item); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, item)
}

func (s *Service) Update(ctx context.Context, orgID, id int64, item Item) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(item); err != nil {
		return err
	}
	return s.repo.Update(ctx, orgID, id, item)
}

func (s *Service) Delete(ctx context.Context, orgID, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, orgID, id)
}

// BelowMinStock lists item/warehouse pairs under their minimum level.
func (s *Service) BelowMinStock(ctx context.Context, orgID int64) ([]LowStockRow, error) {
	return s.repo.BelowMinStock(ctx, orgID)
}
