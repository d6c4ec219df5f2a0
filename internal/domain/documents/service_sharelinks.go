package documents

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type CreateShareLinkInput struct {
	DocumentID         string   `json:"documentId"`
	VersionID          *string  `json:"versionId"`
	ExpiresInHours     *int     `json:"expiresInHours"`
	MaxViews           *int     `json:"maxViews"`
	AllowedRoles       []string `json:"allowedRoles"`
	AllowedDepartments []string `json:"allowedDepartments"`
	CreatedBy          string   `json:"-"`
}

func (in CreateShareLinkInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.DocumentID, validation.Required, is.UUID),
		validation.Field(&in.VersionID, validation.NilOrNotEmpty, is.UUID),
		validation.Field(&in.ExpiresInHours, validation.When(in.ExpiresInHours != nil, validation.Required), validation.Min(1), validation.Max(24*365)),
		validation.Field(&in.MaxViews, validation.When(in.MaxViews != nil, validation.Required), validation.Min(1)),
		validation.Field(&in.AllowedRoles, validation.Each(validation.Required, validation.Length(1, 64))),
		validation.Field(&in.AllowedDepartments, validation.Each(validation.Required, validation.Length(1, 64))),
	)
}

// CreateShareLink issues a token for a document, optionally pinned to one of its versions.
// Expiry falls back to the type's default share hours, then the engine default.
func (s *Service) CreateShareLink(ctx context.Context, in CreateShareLinkInput) (ShareLink, error) {
	if err := in.Validate(); err != nil {
		return ShareLink{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	doc, err := s.Store.GetDocument(ctx, s.Store.DB, in.DocumentID)
	if err != nil {
		return ShareLink{}, err
	}
	docType, err := s.Store.GetType(ctx, s.Store.DB, doc.DocumentTypeID)
	if err != nil {
		return ShareLink{}, err
	}

	if in.VersionID != nil {
		v, err := s.Store.GetVersion(ctx, s.Store.DB, *in.VersionID)
		if err != nil {
			return ShareLink{}, err
		}
		if v.EmployeeDocumentID != doc.ID {
			return ShareLink{}, fmt.Errorf("%w: version %s does not belong to document %s", ErrValidation, v.ID, doc.ID)
		}
	}

	hours := s.Options.ShareLinkDefaultHours
	if docType.DefaultShareExpiryHours != nil && *docType.DefaultShareExpiryHours > 0 {
		hours = *docType.DefaultShareExpiryHours
	}
	if in.ExpiresInHours != nil {
		hours = *in.ExpiresInHours
	}

	token, err := generateShareToken()
	if err != nil {
		return ShareLink{}, err
	}
	var createdBy *string
	if in.CreatedBy != "" {
		createdBy = &in.CreatedBy
	}
	link, err := s.Store.InsertShareLink(ctx, ShareLink{
		Token:              token,
		EmployeeDocumentID: doc.ID,
		DocumentVersionID:  in.VersionID,
		ExpiresAt:          s.Now().Add(time.Duration(hours) * time.Hour),
		MaxViews:           in.MaxViews,
		AllowedRoles:       cleanList(in.AllowedRoles),
		AllowedDepartments: cleanList(in.AllowedDepartments),
		CreatedBy:          createdBy,
	})
	if err != nil {
		return ShareLink{}, err
	}
	return s.withUsable(link), nil
}

func (s *Service) GetShareLink(ctx context.Context, token string) (ShareLink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ShareLink{}, fmt.Errorf("%w: token is required", ErrValidation)
	}
	link, err := s.Store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return ShareLink{}, err
	}
	return s.withUsable(link), nil
}

// DeactivateShareLink is idempotent; the first deactivation time is kept.
func (s *Service) DeactivateShareLink(ctx context.Context, token string) (ShareLink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ShareLink{}, fmt.Errorf("%w: token is required", ErrValidation)
	}
	link, err := s.Store.DeactivateShareLink(ctx, token, s.Now())
	if err != nil {
		return ShareLink{}, err
	}
	return s.withUsable(link), nil
}

func (s *Service) ListShareLinks(ctx context.Context, documentID string) ([]ShareLink, error) {
	if err := requireUUID("document id", documentID); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetDocument(ctx, s.Store.DB, documentID); err != nil {
		return nil, err
	}
	links, err := s.Store.ListShareLinks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]ShareLink, 0, len(links))
	for _, l := range links {
		out = append(out, s.withUsable(l))
	}
	return out, nil
}

func (s *Service) withUsable(l ShareLink) ShareLink {
	l.Usable = shareLinkUsable(l, s.Now())
	return l
}

func shareLinkUsable(l ShareLink, now time.Time) bool {
	if !l.IsActive || !now.Before(l.ExpiresAt) {
		return false
	}
	return l.MaxViews == nil || l.ViewsCount < *l.MaxViews
}

func generateShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
