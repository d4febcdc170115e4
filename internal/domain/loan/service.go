package loan

import (
	"context"
	"time"
)

// Service is the lookup layer over loan records. Loans are created and
// returned by the lending workflows; everything here is read-only.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Loan, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListActive(ctx context.Context) ([]Loan, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) ListSince(ctx context.Context, since time.Time) ([]Loan, error) {
	return s.repo.ListSince(ctx, since)
}
