package documents

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var catalogFiles embed.FS

type catalogEntry struct {
	Code                    string `yaml:"code"`
	Name                    string `yaml:"name"`
	Description             string `yaml:"description"`
	Category                string `yaml:"category"`
	SequenceNo              int    `yaml:"sequence_no"`
	FolderCode              string `yaml:"folder_code"`
	RequiresApproval        *bool  `yaml:"requires_approval"`
	DefaultValidityDays     *int   `yaml:"default_validity_days"`
	DefaultRenewBeforeDays  *int   `yaml:"default_renew_before_days"`
	DefaultShareExpiryHours *int   `yaml:"default_share_expiry_hours"`
}

type catalogFile struct {
	Types []catalogEntry `yaml:"types"`
}

// DefaultCatalog parses the embedded type catalog and validates each entry.
func DefaultCatalog() ([]DocumentType, error) {
	data, err := catalogFiles.ReadFile("catalog/default_types.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]DocumentType, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	out := make([]DocumentType, 0, len(file.Types))
	for _, e := range file.Types {
		in := CreateTypeInput{
			Code:                    e.Code,
			Name:                    e.Name,
			Description:             e.Description,
			Category:                e.Category,
			SequenceNo:              e.SequenceNo,
			RequiresApproval:        e.RequiresApproval,
			DefaultValidityDays:     e.DefaultValidityDays,
			DefaultRenewBeforeDays:  e.DefaultRenewBeforeDays,
			DefaultShareExpiryHours: e.DefaultShareExpiryHours,
		}
		if e.FolderCode != "" {
			in.FolderCode = &e.FolderCode
		}
		in.normalize()
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", e.Code, err)
		}
		folderCode, err := resolveFolderCode(in.Category, in.SequenceNo, in.FolderCode)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", e.Code, err)
		}
		out = append(out, DocumentType{
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
		})
	}
	return out, nil
}

// SeedCatalog inserts catalog types whose code is not present yet.
func SeedCatalog(ctx context.Context, store *Store) (int, error) {
	types, err := DefaultCatalog()
	if err != nil {
		return 0, err
	}
	created := 0
	for _, t := range types {
		inserted, err := store.InsertTypeIfMissing(ctx, t)
		if err != nil {
			return created, fmt.Errorf("seed document type %s: %w", t.Code, err)
		}
		if inserted {
			created++
		}
	}
	if created > 0 {
		slog.Info("document type catalog seeded", "created", created)
	}
	return created, nil
}
