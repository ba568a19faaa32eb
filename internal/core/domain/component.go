package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Component is a catalog row. Its per-row mutations are the trigger point
// that the suppression gate guards.
type Component struct {
	TenantID  string
	ID        string
	Name      string
	Category  string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Component) Validate() error {
	if err := ValidateKey(c.TenantID); err != nil {
		return err
	}
	if err := ValidateKey(c.ID); err != nil {
		return err
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidComponent)
	}
	if c.Category != "" {
		if err := ValidateCategory(c.Category); err != nil {
			return err
		}
	}
	if len(c.Data) > 0 && !json.Valid(c.Data) {
		return fmt.Errorf("%w: data must be valid json", ErrInvalidComponent)
	}
	return nil
}

type ComponentFilter struct {
	TenantID string
	Category string
	AfterID  string
	Limit    int
}
