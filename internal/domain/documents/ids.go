package documents

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func requireUUID(field, value string) error {
	if _, err := uuid.Parse(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%w: %s must be a UUID", ErrValidation, field)
	}
	return nil
}

func optionalUUID(field string, value *string) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*value))
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a UUID", ErrValidation, field)
	}
	normalized := parsed.String()
	return &normalized, nil
}
