package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidKey           = errors.New("invalid key")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidFilter        = errors.New("invalid filter")
	ErrInvalidAction        = errors.New("invalid action kind")
	ErrInvalidOperationKind = errors.New("invalid operation kind")
	ErrInvalidComponent     = errors.New("invalid component")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrContextNotOpen       = errors.New("editing context not open")
	ErrRegistryWrite        = errors.New("bulk registry write failed")
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

func ValidateKey(key string) error {
	if key == "" || len(key) > 128 || !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}
	return nil
}

func ValidateCategory(category string) error {
	if category == "" || !keyPattern.MatchString(category) {
		return ErrInvalidCategory
	}
	return nil
}

// ErrSchemaViolation is returned when a request body does not conform to its
// JSON schema. Errors holds one message per failing keyword.
type ErrSchemaViolation struct {
	Errors []string
}

func (e *ErrSchemaViolation) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Errors, "; "))
}
