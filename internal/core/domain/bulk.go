package domain

import "time"

type OperationKind string

const (
	OperationImport OperationKind = "import"
	OperationDelete OperationKind = "delete"
	OperationUpdate OperationKind = "update"
)

func (k OperationKind) Validate() error {
	switch k {
	case OperationImport, OperationDelete, OperationUpdate:
		return nil
	default:
		return ErrInvalidOperationKind
	}
}

// BulkOperationMarker asserts that a bulk operation is in progress for a
// tenant. It lives in a shared store so that every connection sees it.
type BulkOperationMarker struct {
	OperationID string
	TenantID    string
	Kind        OperationKind
	CreatedAt   time.Time
}

func (m BulkOperationMarker) Validate() error {
	if err := ValidateKey(m.OperationID); err != nil {
		return err
	}
	if err := ValidateKey(m.TenantID); err != nil {
		return err
	}
	return m.Kind.Validate()
}
