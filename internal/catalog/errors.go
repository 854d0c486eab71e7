package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no record exists for the identifier.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrVersionConflict indicates the record changed since it was read.
	ErrVersionConflict = errors.New("catalog: version conflict")
	// ErrInsufficientStock indicates a stock check failed.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("catalog: validation failed")
	// ErrStoreUnavailable indicates the persistence layer could not be reached.
	ErrStoreUnavailable = errors.New("catalog: store unavailable")
	// ErrDuplicateSKU is returned by stores when an active product already owns the SKU.
	ErrDuplicateSKU = errors.New("catalog: duplicate sku")
)

// InsufficientStockError carries the amounts involved in a failed stock check.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product '%s': requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field errors.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// errOrNil returns e when it holds at least one field error.
func (e *ValidationError) errOrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
