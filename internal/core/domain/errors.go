package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Adapters wrap collaborator faults with one of these.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateInvoice = errors.New("duplicate invoice")
	ErrTemporary        = errors.New("temporary failure")
)

var kinds = []error{ErrInvalidInput, ErrDuplicateInvoice, ErrTemporary}

// WrapError tags err with kind and the failing operation.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName returns a log-friendly label for the first kind err carries.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal"
}
