package documents

import (
	"fmt"
	"strings"
)

// FolderCode derives "{prefix}_{sequence:02d}" from a category, e.g. ONBOARDING/1 -> ON_01.
func FolderCode(category string, sequenceNo int) (string, error) {
	prefix, ok := categoryPrefixes[strings.ToUpper(strings.TrimSpace(category))]
	if !ok {
		return "", fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if sequenceNo <= 0 {
		return "", fmt.Errorf("%w: sequence_no must be positive", ErrValidation)
	}
	return fmt.Sprintf("%s_%02d", prefix, sequenceNo), nil
}

func resolveFolderCode(category string, sequenceNo int, override *string) (string, error) {
	if override != nil && strings.TrimSpace(*override) != "" {
		return strings.ToUpper(strings.TrimSpace(*override)), nil
	}
	return FolderCode(category, sequenceNo)
}
