package domain

// ContextKey scopes pending activity state to one editing context of one tenant.
type ContextKey struct {
	TenantID  string
	ContextID string
}

func (k ContextKey) String() string {
	return k.TenantID + "/" + k.ContextID
}

func (k ContextKey) Validate() error {
	if err := ValidateKey(k.TenantID); err != nil {
		return err
	}
	return ValidateKey(k.ContextID)
}

// EditingContext describes an open editing session (an open quotation, an open
// component dialog) whose edits are aggregated into log entries.
type EditingContext struct {
	Key        ContextKey
	ActorID    string
	EntityType string
	Locale     string
}

func (c EditingContext) Validate() error {
	if err := c.Key.Validate(); err != nil {
		return err
	}
	if c.EntityType != "" {
		if err := ValidateCategory(c.EntityType); err != nil {
			return err
		}
	}
	return nil
}

// PendingChange is one outstanding field edit inside a context. OriginalValue is
// captured on first touch and never overwritten.
type PendingChange struct {
	FieldKey      string
	DisplayLabel  string
	OriginalValue any
	CurrentValue  any
}

// FieldDelta is a net change of one field, ready for formatting.
type FieldDelta struct {
	FieldKey      string `json:"field_key"`
	Label         string `json:"label"`
	OriginalValue any    `json:"original_value"`
	CurrentValue  any    `json:"current_value"`
}

// ItemRef identifies one item added to (or removed from) a context.
type ItemRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
