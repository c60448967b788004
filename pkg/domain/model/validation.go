package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError rejects input before the store is touched. Field is the
// JSON path of the offending value, e.g. itens_pedido[2].quantidade.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
