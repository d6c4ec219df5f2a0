package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type CreateRequirementInput struct {
	DocumentTypeID          string  `json:"documentTypeId"`
	RoleID                  *string `json:"roleId"`
	DepartmentCode          *string `json:"departmentCode"`
	EmploymentType          *string `json:"employmentType"`
	IsMandatory             *bool   `json:"isMandatory"`
	ValidityDaysOverride    *int    `json:"validityDaysOverride"`
	RenewBeforeDaysOverride *int    `json:"renewBeforeDaysOverride"`
	AppliesFrom             string  `json:"appliesFrom"`
	AppliesUntil            string  `json:"appliesUntil"`
	Notes                   string  `json:"notes"`
}

type RequirementPatch struct {
	RoleID                  *string `json:"roleId"`
	DepartmentCode          *string `json:"departmentCode"`
	EmploymentType          *string `json:"employmentType"`
	IsMandatory             *bool   `json:"isMandatory"`
	ValidityDaysOverride    *int    `json:"validityDaysOverride"`
	RenewBeforeDaysOverride *int    `json:"renewBeforeDaysOverride"`
	AppliesFrom             *string `json:"appliesFrom"`
	AppliesUntil            *string `json:"appliesUntil"`
	Notes                   *string `json:"notes"`
}

func (in CreateRequirementInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.DocumentTypeID, validation.Required, is.UUID),
		validation.Field(&in.RoleID, is.UUID),
		validation.Field(&in.DepartmentCode, validation.Length(0, 64)),
		validation.Field(&in.EmploymentType, validation.Length(0, 64)),
		validation.Field(&in.ValidityDaysOverride, validation.Min(1)),
		validation.Field(&in.RenewBeforeDaysOverride, validation.Min(0)),
		validation.Field(&in.AppliesFrom, validation.Date(dateLayout)),
		validation.Field(&in.AppliesUntil, validation.Date(dateLayout)),
	)
}

func (p RequirementPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RoleID, is.UUID),
		validation.Field(&p.DepartmentCode, validation.Length(0, 64)),
		validation.Field(&p.EmploymentType, validation.Length(0, 64)),
		validation.Field(&p.ValidityDaysOverride, validation.Min(1)),
		validation.Field(&p.RenewBeforeDaysOverride, validation.Min(0)),
		validation.Field(&p.AppliesFrom, validation.Date(dateLayout)),
		validation.Field(&p.AppliesUntil, validation.Date(dateLayout)),
	)
}

func checkApplicability(from, until *time.Time) error {
	if from != nil && until != nil && until.Before(*from) {
		return fmt.Errorf("%w: appliesUntil must be on or after appliesFrom", ErrValidation)
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *Service) CreateRequirement(ctx context.Context, in CreateRequirementInput) (DocumentRequirement, error) {
	if err := in.Validate(); err != nil {
		return DocumentRequirement{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := s.Store.GetType(ctx, s.Store.DB, in.DocumentTypeID); err != nil {
		return DocumentRequirement{}, err
	}
	roleID, err := optionalUUID("roleId", in.RoleID)
	if err != nil {
		return DocumentRequirement{}, err
	}
	from, _ := parseDate(in.AppliesFrom)
	until, _ := parseDate(in.AppliesUntil)
	if err := checkApplicability(from, until); err != nil {
		return DocumentRequirement{}, err
	}

	return s.Store.InsertRequirement(ctx, s.Store.DB, DocumentRequirement{
		DocumentTypeID:          in.DocumentTypeID,
		RoleID:                  roleID,
		DepartmentCode:          trimmedOrNil(in.DepartmentCode),
		EmploymentType:          trimmedOrNil(in.EmploymentType),
		IsMandatory:             in.IsMandatory == nil || *in.IsMandatory,
		ValidityDaysOverride:    in.ValidityDaysOverride,
		RenewBeforeDaysOverride: in.RenewBeforeDaysOverride,
		AppliesFrom:             from,
		AppliesUntil:            until,
		Notes:                   strings.TrimSpace(in.Notes),
	})
}

func (s *Service) GetRequirement(ctx context.Context, id string) (DocumentRequirement, error) {
	if err := requireUUID("requirement id", id); err != nil {
		return DocumentRequirement{}, err
	}
	return s.Store.GetRequirement(ctx, s.Store.DB, id)
}

func (s *Service) ListRequirements(ctx context.Context, documentTypeID string) ([]DocumentRequirement, error) {
	if documentTypeID != "" {
		if err := requireUUID("document type id", documentTypeID); err != nil {
			return nil, err
		}
	}
	return s.Store.ListRequirements(ctx, documentTypeID)
}

// UpdateRequirement applies a partial update. Empty strings clear the nullable scope columns.
func (s *Service) UpdateRequirement(ctx context.Context, id string, patch RequirementPatch) (DocumentRequirement, error) {
	if err := requireUUID("requirement id", id); err != nil {
		return DocumentRequirement{}, err
	}
	if err := patch.Validate(); err != nil {
		return DocumentRequirement{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	current, err := s.Store.GetRequirement(ctx, s.Store.DB, id)
	if err != nil {
		return DocumentRequirement{}, err
	}

	var sets []columnSet
	if patch.RoleID != nil {
		roleID, err := optionalUUID("roleId", patch.RoleID)
		if err != nil {
			return DocumentRequirement{}, err
		}
		sets = append(sets, columnSet{"role_id", roleID})
	}
	if patch.DepartmentCode != nil {
		sets = append(sets, columnSet{"department_code", trimmedOrNil(patch.DepartmentCode)})
	}
	if patch.EmploymentType != nil {
		sets = append(sets, columnSet{"employment_type", trimmedOrNil(patch.EmploymentType)})
	}
	if patch.IsMandatory != nil {
		sets = append(sets, columnSet{"is_mandatory", *patch.IsMandatory})
	}
	if patch.ValidityDaysOverride != nil {
		sets = append(sets, columnSet{"validity_days_override", *patch.ValidityDaysOverride})
	}
	if patch.RenewBeforeDaysOverride != nil {
		sets = append(sets, columnSet{"renew_before_days_override", *patch.RenewBeforeDaysOverride})
	}

	from, until := current.AppliesFrom, current.AppliesUntil
	if patch.AppliesFrom != nil {
		from, _ = parseDate(*patch.AppliesFrom)
		sets = append(sets, columnSet{"applies_from", from})
	}
	if patch.AppliesUntil != nil {
		until, _ = parseDate(*patch.AppliesUntil)
		sets = append(sets, columnSet{"applies_until", until})
	}
	if err := checkApplicability(from, until); err != nil {
		return DocumentRequirement{}, err
	}
	if patch.Notes != nil {
		sets = append(sets, columnSet{"notes", nullIfEmpty(*patch.Notes)})
	}

	if len(sets) == 0 {
		return current, nil
	}
	return s.Store.UpdateRequirement(ctx, s.Store.DB, id, sets)
}
