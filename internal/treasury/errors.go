package treasury

import (
	"errors"
	"fmt"

	"github.com/dukerupert/kazna/internal/store"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("changed by someone else, reload and try again")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ValidationError reports input rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// translate maps store sentinels onto the service's error taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrVersionConflict):
		return ErrConflict
	}
	return err
}
