package vatrates

import (
	"context"
	"errors"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]VATRate, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (VATRate, error) {
	if id <= 0 {
		return VATRate{}, errors.New("invalid vat rate ID")
	}
	return s.repo.Get(ctx, id)
}

// Default returns the rate applied when a document line does not name one.
func (s *Service) Default(ctx context.Context) (VATRate, error) {
	return s.repo.GetDefault(ctx)
}

func (s *Service) Create(ctx context.Context, rate VATRate) (VATRate, error) {
	if err := s.validate(rate); err != nil {
		return VATRate{}, err
	}
	return s.repo.Create(ctx, rate)
}

func (s *Service) Update(ctx context.Context, id int64, rate VATRate) error {
	if id <= 0 {
		return errors.New("invalid vat rate ID")
	}
	if err := s.validate(rate); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, rate)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid vat rate ID")
	}
	return s.repo.Delete(ctx, id)
}
