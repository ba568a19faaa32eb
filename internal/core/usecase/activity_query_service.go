package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
	"github.com/atvirokodosprendimai/activitylog/internal/core/ports"
)

type ActivityQueryService struct {
	repo ports.ActivityLogRepository
}

func NewActivityQueryService(repo ports.ActivityLogRepository) *ActivityQueryService {
	return &ActivityQueryService{repo: repo}
}

func (s *ActivityQueryService) List(ctx context.Context, filter domain.ActivityFilter) ([]domain.StoredLogEntry, error) {
	if err := domain.ValidateKey(filter.TenantID); err != nil {
		return nil, err
	}
	if filter.ContextID != "" {
		if err := domain.ValidateKey(filter.ContextID); err != nil {
			return nil, err
		}
	}
	if filter.Action != "" {
		if err := filter.Action.Validate(); err != nil {
			return nil, err
		}
	}
	if filter.AfterID < 0 {
		return nil, domain.ErrInvalidFilter
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.repo.List(ctx, filter)
}
