package documents

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const dateLayout = "2006-01-02"

var notePolicy = bluemonday.StrictPolicy()

type validityWindow struct {
	From  *time.Time
	Until *time.Time
}

// resolveValidity picks each bound from the first source that has it, then derives a
// missing end date from the start (or today) plus validityDays when that is positive.
func resolveValidity(today time.Time, validityDays *int, sources ...validityWindow) validityWindow {
	var out validityWindow
	for _, src := range sources {
		if out.From == nil && src.From != nil {
			out.From = dateOnly(*src.From)
		}
		if out.Until == nil && src.Until != nil {
			out.Until = dateOnly(*src.Until)
		}
	}
	if out.Until == nil && validityDays != nil && *validityDays > 0 {
		base := today
		if out.From != nil {
			base = *out.From
		}
		out.Until = dateOnly(base.AddDate(0, 0, *validityDays))
	}
	return out
}

func effectiveDays(override, fallback *int) *int {
	if override != nil {
		return override
	}
	return fallback
}

func dateOnly(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// parseDate accepts YYYY-MM-DD or RFC3339. Blank input yields nil.
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return dateOnly(parsed), nil
}

// metadataWindow reads valid_from/valid_until stamped into version metadata at upload time.
func metadataWindow(raw json.RawMessage) validityWindow {
	var meta map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &meta) != nil {
		return validityWindow{}
	}
	read := func(key string) *time.Time {
		value, ok := meta[key].(string)
		if !ok {
			return nil
		}
		parsed, err := parseDate(value)
		if err != nil {
			return nil
		}
		return parsed
	}
	return validityWindow{From: read("valid_from"), Until: read("valid_until")}
}

func withValidityMetadata(metadata map[string]any, from, until *time.Time) map[string]any {
	out := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		out[k] = v
	}
	if from != nil {
		out["valid_from"] = from.Format(dateLayout)
	}
	if until != nil {
		out["valid_until"] = until.Format(dateLayout)
	}
	return out
}

func sanitizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	cleaned := strings.TrimSpace(notePolicy.Sanitize(*note))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
