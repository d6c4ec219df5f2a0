package documents

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var manifestRequiredColumns = []string{"employee_identifier", "document_type_code", "file_name"}

type manifestRow struct {
	Line               int
	EmployeeIdentifier string
	DocumentTypeCode   string
	FileName           string
	IssueDate          string
	ExpiryDate         string
	ApprovalStatus     string
	RequirementID      string
}

var encodingAliases = map[string]string{
	"":             EncodingUTF8,
	"utf8":         EncodingUTF8,
	"utf-8":        EncodingUTF8,
	"utf-8-sig":    EncodingUTF8SIG,
	"utf8-sig":     EncodingUTF8SIG,
	"latin-1":      EncodingLatin1,
	"latin1":       EncodingLatin1,
	"iso-8859-1":   EncodingLatin1,
	"windows-1252": EncodingWindows1252,
	"cp1252":       EncodingWindows1252,
}

// normalizeImportOptions fills defaults and rejects unknown encodings, strategies and delimiters.
func normalizeImportOptions(opts ImportOptions) (ImportOptions, error) {
	enc, ok := encodingAliases[strings.ReplaceAll(strings.ToLower(strings.TrimSpace(opts.Encoding)), "_", "-")]
	if !ok {
		return opts, fmt.Errorf("%w: unsupported encoding %q", ErrValidation, opts.Encoding)
	}
	opts.Encoding = enc

	switch strings.ToLower(strings.TrimSpace(opts.MatchStrategy)) {
	case "", MatchAuto:
		opts.MatchStrategy = MatchAuto
	case MatchUsername:
		opts.MatchStrategy = MatchUsername
	case MatchEmail:
		opts.MatchStrategy = MatchEmail
	default:
		return opts, fmt.Errorf("%w: unsupported match strategy %q", ErrValidation, opts.MatchStrategy)
	}

	if _, err := delimiterRune(opts.Delimiter); err != nil {
		return opts, err
	}
	if opts.Delimiter == "" {
		opts.Delimiter = ","
	}
	return opts, nil
}

func delimiterRune(delimiter string) (rune, error) {
	switch delimiter {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(delimiter)
	if size != len(delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%w: delimiter must be a single character", ErrValidation)
	}
	return r, nil
}

func decodeManifest(data []byte, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingUTF8, "":
		if !utf8.Valid(data) {
			return nil, errors.New("manifest is not valid utf-8")
		}
		return data, nil
	case EncodingUTF8SIG:
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		return out, err
	case EncodingLatin1:
		return charmap.ISO8859_1.NewDecoder().Bytes(data)
	case EncodingWindows1252:
		return charmap.Windows1252.NewDecoder().Bytes(data)
	}
	return nil, fmt.Errorf("unsupported encoding %q", encoding)
}

// parseManifest decodes and reads the CSV manifest. Line numbers start at 1 for the first
// data row. Blank lines are skipped by the reader and do not consume a line number.
func parseManifest(data []byte, opts ImportOptions) ([]manifestRow, error) {
	decoded, err := decodeManifest(data, opts.Encoding)
	if err != nil {
		return nil, err
	}
	comma, err := delimiterRune(opts.Delimiter)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("manifest is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}
	index := map[string]int{}
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, col := range manifestRequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("manifest is missing columns: %s", strings.Join(missing, ", "))
	}

	get := func(row []string, key string) string {
		if idx, ok := index[key]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var rows []manifestRow
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest row %d: %w", line, err)
		}
		rows = append(rows, manifestRow{
			Line:               line,
			EmployeeIdentifier: get(record, "employee_identifier"),
			DocumentTypeCode:   get(record, "document_type_code"),
			FileName:           get(record, "file_name"),
			IssueDate:          get(record, "issue_date"),
			ExpiryDate:         get(record, "expiry_date"),
			ApprovalStatus:     strings.ToLower(get(record, "approval_status")),
			RequirementID:      get(record, "requirement_id"),
		})
	}
	return rows, nil
}
