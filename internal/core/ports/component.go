package ports

import (
	"context"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

type ComponentStore interface {
	Create(ctx context.Context, c domain.Component) (domain.Component, error)
	Update(ctx context.Context, c domain.Component) (domain.Component, error)
	Delete(ctx context.Context, tenantID, id string) (domain.Component, bool, error)
	Get(ctx context.Context, tenantID, id string) (domain.Component, error)
	List(ctx context.Context, filter domain.ComponentFilter) ([]domain.Component, error)
}
