package records

import (
	"context"
	"fmt"
)

// Service exposes read access to patient records.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetRecord(ctx context.Context, id int64) (*PatientRecord, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid record id %d", id)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, f ListFilter, limit, offset int) ([]*PatientRecord, int, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, 0, fmt.Errorf("invalid kind: %s", f.Kind)
	}
	return s.repo.List(ctx, f, limit, offset)
}
