package employees

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

func (s *Service) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Employee, int, error) {
	return s.repo.List(ctx, orgID, filters)
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Employee, error) {
	if id <= 0 {
		return Employee{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, employee Employee) (Employee, error) {
	if err := s.validate(employee); err != nil {
		return Employee{}, err
	}
	return s.repo.Create(ctx, employee)
}

func (s *Service) Update(ctx context.Context, orgID, id int64, employee Employee) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(employee); err != nil {
		return err
	}
	return s.repo.Update(ctx, orgID, id, employee)
}

func (s *Service) Delete(ctx context.Context, orgID, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, orgID, id)
}
