package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"hrdocs/internal/platform/db"
)

var typeCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

type CreateTypeInput struct {
	Code                    string          `json:"code"`
	Name                    string          `json:"name"`
	Description             string          `json:"description"`
	Category                string          `json:"category"`
	SequenceNo              int             `json:"sequenceNo"`
	FolderCode              *string         `json:"folderCode"`
	RequiresApproval        *bool           `json:"requiresApproval"`
	DefaultValidityDays     *int            `json:"defaultValidityDays"`
	DefaultRenewBeforeDays  *int            `json:"defaultRenewBeforeDays"`
	DefaultShareExpiryHours *int            `json:"defaultShareExpiryHours"`
	MetadataSchema          json.RawMessage `json:"metadataSchema"`
	IsActive                *bool           `json:"isActive"`
}

// DocumentTypePatch carries only the fields a caller wants to change.
type DocumentTypePatch struct {
	Name                    *string          `json:"name"`
	Description             *string          `json:"description"`
	Category                *string          `json:"category"`
	SequenceNo              *int             `json:"sequenceNo"`
	FolderCode              *string          `json:"folderCode"`
	RequiresApproval        *bool            `json:"requiresApproval"`
	DefaultValidityDays     *int             `json:"defaultValidityDays"`
	DefaultRenewBeforeDays  *int             `json:"defaultRenewBeforeDays"`
	DefaultShareExpiryHours *int             `json:"defaultShareExpiryHours"`
	MetadataSchema          *json.RawMessage `json:"metadataSchema"`
	IsActive                *bool            `json:"isActive"`
}

var categoryValues = []any{CategoryOnboarding, CategoryOperations, CategoryHRLifecycle, CategoryOffboarding}

func (in *CreateTypeInput) normalize() {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToUpper(strings.TrimSpace(in.Category))
}

func (in CreateTypeInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Code, validation.Required, validation.Length(1, 64), validation.Match(typeCodePattern)),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Category, validation.Required, validation.In(categoryValues...)),
		validation.Field(&in.SequenceNo, validation.Required, validation.Min(1), validation.Max(99)),
		validation.Field(&in.FolderCode, validation.NilOrNotEmpty, validation.Length(1, 32)),
		validation.Field(&in.DefaultValidityDays, validation.Min(1)),
		validation.Field(&in.DefaultRenewBeforeDays, validation.Min(0)),
		validation.Field(&in.DefaultShareExpiryHours, validation.Min(1)),
		validation.Field(&in.MetadataSchema, validation.By(jsonObject)),
	)
}

func (p *DocumentTypePatch) normalize() {
	if p.Category != nil {
		upper := strings.ToUpper(strings.TrimSpace(*p.Category))
		p.Category = &upper
	}
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		p.Name = &trimmed
	}
}

func (p DocumentTypePatch) Validate() error {
	var schema json.RawMessage
	if p.MetadataSchema != nil {
		schema = *p.MetadataSchema
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Category, validation.NilOrNotEmpty, validation.In(categoryValues...)),
		validation.Field(&p.SequenceNo, validation.When(p.SequenceNo != nil, validation.Required), validation.Min(1), validation.Max(99)),
		validation.Field(&p.FolderCode, validation.Length(0, 32)),
		validation.Field(&p.DefaultValidityDays, validation.Min(1)),
		validation.Field(&p.DefaultRenewBeforeDays, validation.Min(0)),
		validation.Field(&p.DefaultShareExpiryHours, validation.Min(1)),
		validation.Field(&p.MetadataSchema, validation.By(func(any) error { return jsonObject(schema) })),
	)
}

func (p DocumentTypePatch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Category == nil && p.SequenceNo == nil && p.FolderCode == nil &&
		p.RequiresApproval == nil && p.DefaultValidityDays == nil && p.DefaultRenewBeforeDays == nil &&
		p.DefaultShareExpiryHours == nil && p.MetadataSchema == nil && p.IsActive == nil
}

// jsonObject accepts an empty value or a JSON object. The schema is stored as-is and not enforced.
func jsonObject(value any) error {
	var raw []byte
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case nil:
		return nil
	default:
		return errors.New("must be a JSON object")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return errors.New("must be a JSON object")
	}
	return nil
}

func (s *Service) CreateType(ctx context.Context, in CreateTypeInput) (DocumentType, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return DocumentType{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	folderCode, err := resolveFolderCode(in.Category, in.SequenceNo, in.FolderCode)
	if err != nil {
		return DocumentType{}, err
	}

	t := DocumentType{
		Code:                    in.Code,
		Name:                    in.Name,
		Description:             in.Description,
		Category:                in.Category,
		SequenceNo:              in.SequenceNo,
		FolderCode:              folderCode,
		RequiresApproval:        in.RequiresApproval == nil || *in.RequiresApproval,
		DefaultValidityDays:     in.DefaultValidityDays,
		DefaultRenewBeforeDays:  in.DefaultRenewBeforeDays,
		DefaultShareExpiryHours: in.DefaultShareExpiryHours,
		MetadataSchema:          in.MetadataSchema,
		IsActive:                in.IsActive == nil || *in.IsActive,
	}
	created, err := s.Store.InsertType(ctx, s.Store.DB, t)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return DocumentType{}, fmt.Errorf("%w: document type code %q already exists", ErrValidation, in.Code)
		}
		return DocumentType{}, err
	}
	return created, nil
}

func (s *Service) GetType(ctx context.Context, id string) (DocumentType, error) {
	if err := requireUUID("document type id", id); err != nil {
		return DocumentType{}, err
	}
	return s.Store.GetType(ctx, s.Store.DB, id)
}

func (s *Service) ListTypes(ctx context.Context, activeOnly bool) ([]DocumentType, error) {
	return s.Store.ListTypes(ctx, activeOnly)
}

// UpdateType applies a partial update. A folder code that was derived follows category and
// sequence changes; an explicit override stays until patched.
func (s *Service) UpdateType(ctx context.Context, id string, patch DocumentTypePatch) (DocumentType, error) {
	if err := requireUUID("document type id", id); err != nil {
		return DocumentType{}, err
	}
	patch.normalize()
	if err := patch.Validate(); err != nil {
		return DocumentType{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	current, err := s.Store.GetType(ctx, s.Store.DB, id)
	if err != nil {
		return DocumentType{}, err
	}
	if patch.empty() {
		return current, nil
	}

	var sets []columnSet
	if patch.Name != nil {
		sets = append(sets, columnSet{"name", *patch.Name})
	}
	if patch.Description != nil {
		sets = append(sets, columnSet{"description", nullIfEmpty(*patch.Description)})
	}
	if patch.Category != nil {
		sets = append(sets, columnSet{"category", *patch.Category})
	}
	if patch.SequenceNo != nil {
		sets = append(sets, columnSet{"sequence_no", *patch.SequenceNo})
	}
	if patch.RequiresApproval != nil {
		sets = append(sets, columnSet{"requires_approval", *patch.RequiresApproval})
	}
	if patch.DefaultValidityDays != nil {
		sets = append(sets, columnSet{"default_validity_days", *patch.DefaultValidityDays})
	}
	if patch.DefaultRenewBeforeDays != nil {
		sets = append(sets, columnSet{"default_renew_before_days", *patch.DefaultRenewBeforeDays})
	}
	if patch.DefaultShareExpiryHours != nil {
		sets = append(sets, columnSet{"default_share_expiry_hours", *patch.DefaultShareExpiryHours})
	}
	if patch.MetadataSchema != nil {
		schema := *patch.MetadataSchema
		if len(bytes.TrimSpace(schema)) == 0 {
			schema = json.RawMessage(`{}`)
		}
		sets = append(sets, columnSet{"metadata_schema", schema})
	}
	if patch.IsActive != nil {
		sets = append(sets, columnSet{"is_active", *patch.IsActive})
	}

	category := current.Category
	if patch.Category != nil {
		category = *patch.Category
	}
	sequence := current.SequenceNo
	if patch.SequenceNo != nil {
		sequence = *patch.SequenceNo
	}
	if patch.FolderCode != nil {
		folderCode, err := resolveFolderCode(category, sequence, patch.FolderCode)
		if err != nil {
			return DocumentType{}, err
		}
		sets = append(sets, columnSet{"folder_code", folderCode})
	} else if derived, err := FolderCode(current.Category, current.SequenceNo); err == nil && derived == current.FolderCode {
		next, err := FolderCode(category, sequence)
		if err != nil {
			return DocumentType{}, err
		}
		if next != current.FolderCode {
			sets = append(sets, columnSet{"folder_code", next})
		}
	}

	return s.Store.UpdateType(ctx, s.Store.DB, id, sets)
}
