package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/activitylog/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

type componentModel struct {
	TenantID  string    `gorm:"column:tenant_id;primaryKey"`
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Category  string    `gorm:"column:category;not null"`
	Data      string    `gorm:"column:data;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (componentModel) TableName() string {
	return "components"
}

type ComponentRepository struct {
	db *gormsqlite.DB
}

func NewComponentRepository(db *gormsqlite.DB) *ComponentRepository {
	return &ComponentRepository{db: db}
}

func (r *ComponentRepository) Create(ctx context.Context, c domain.Component) (domain.Component, error) {
	now := time.Now().UTC()
	model := toComponentModel(c)
	model.CreatedAt = now
	model.UpdatedAt = now

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var existing int64
		if err := tx.Model(&componentModel{}).
			Where("tenant_id = ? AND id = ?", c.TenantID, c.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrConflict
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Component{}, err
		}
		return domain.Component{}, fmt.Errorf("create component: %w", err)
	}
	return toComponent(model), nil
}

func (r *ComponentRepository) Update(ctx context.Context, c domain.Component) (domain.Component, error) {
	var updated componentModel
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("tenant_id = ? AND id = ?", c.TenantID, c.ID).First(&updated).Error; err != nil {
			return err
		}
		next := toComponentModel(c)
		updated.Name = next.Name
		updated.Category = next.Category
		updated.Data = next.Data
		updated.UpdatedAt = time.Now().UTC()
		return tx.Save(&updated).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Component{}, domain.ErrNotFound
		}
		return domain.Component{}, fmt.Errorf("update component: %w", err)
	}
	return toComponent(updated), nil
}

// Delete removes the row and returns it as it was before deletion.
func (r *ComponentRepository) Delete(ctx context.Context, tenantID, id string) (domain.Component, bool, error) {
	var before componentModel
	deleted := false
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&before).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		res := tx.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&componentModel{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return domain.Component{}, false, fmt.Errorf("delete component: %w", err)
	}
	if !deleted {
		return domain.Component{}, false, nil
	}
	return toComponent(before), true, nil
}

func (r *ComponentRepository) Get(ctx context.Context, tenantID, id string) (domain.Component, error) {
	var model componentModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Component{}, domain.ErrNotFound
		}
		return domain.Component{}, fmt.Errorf("get component: %w", err)
	}
	return toComponent(model), nil
}

func (r *ComponentRepository) List(ctx context.Context, filter domain.ComponentFilter) ([]domain.Component, error) {
	var models []componentModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&componentModel{}).Where("tenant_id = ?", filter.TenantID)
		if filter.Category != "" {
			query = query.Where("category = ?", filter.Category)
		}
		if filter.AfterID != "" {
			query = query.Where("id > ?", filter.AfterID)
		}
		return query.Order("id ASC").Limit(filter.Limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	out := make([]domain.Component, 0, len(models))
	for _, m := range models {
		out = append(out, toComponent(m))
	}
	return out, nil
}

func toComponentModel(c domain.Component) componentModel {
	data := string(c.Data)
	if data == "" {
		data = "{}"
	}
	return componentModel{
		TenantID: c.TenantID,
		ID:       c.ID,
		Name:     c.Name,
		Category: c.Category,
		Data:     data,
	}
}

func toComponent(m componentModel) domain.Component {
	return domain.Component{
		TenantID:  m.TenantID,
		ID:        m.ID,
		Name:      m.Name,
		Category:  m.Category,
		Data:      json.RawMessage(m.Data),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
