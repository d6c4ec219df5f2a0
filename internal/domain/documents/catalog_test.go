package documents

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultCatalog(t *testing.T) {
	types, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(types) == 0 {
		t.Fatal("expected catalog entries")
	}
	byCode := map[string]DocumentType{}
	for _, dt := range types {
		if _, dup := byCode[dt.Code]; dup {
			t.Fatalf("duplicate code %s", dt.Code)
		}
		byCode[dt.Code] = dt
	}
	nda, ok := byCode["nda"]
	if !ok || nda.FolderCode != "ON_01" || !nda.RequiresApproval {
		t.Fatalf("unexpected nda entry %+v", nda)
	}
	training := byCode["safety_training"]
	if training.RequiresApproval || training.FolderCode != "OP_02" {
		t.Fatalf("unexpected safety_training entry %+v", training)
	}
}

func TestParseCatalogRejectsInvalidEntries(t *testing.T) {
	data := []byte("types:\n  - code: bad\n    name: Bad\n    category: PAYROLL\n    sequence_no: 1\n")
	if _, err := parseCatalog(data); err == nil {
		t.Fatal("expected invalid category to fail")
	}
	if _, err := parseCatalog([]byte("types: [")); err == nil {
		t.Fatal("expected malformed yaml to fail")
	}
}

func TestRenderComplianceReport(t *testing.T) {
	version := 2
	rows := []ReportRow{
		{FolderCode: "ON_01", TypeCode: "nda", TypeName: "Non-disclosure agreement", Status: StatusActive, ValidUntil: day("2026-01-01"), CurrentVersion: &version},
		{FolderCode: "OF_01", TypeCode: "exit_checklist", TypeName: "Exit checklist", Status: StatusMissing},
	}
	out, err := renderComplianceReport("6f1c1d2e-8a47-4c1c-9d0e-2b7f5f0c9a11", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), rows)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("expected PDF output")
	}

	empty, err := renderComplianceReport("u", time.Now(), nil)
	if err != nil || len(empty) == 0 {
		t.Fatalf("render empty: %v", err)
	}
}

func TestServiceRejectsMalformedIDs(t *testing.T) {
	svc := &Service{}
	ctx := context.Background()
	if _, err := svc.ProcessImportJob(ctx, "nope", "", false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, _, err := svc.GetOrCreateDocument(ctx, "nope", "6f1c1d2e-8a47-4c1c-9d0e-2b7f5f0c9a11", nil, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.ComplianceReport(ctx, "nope"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.SyncRequirement(ctx, "nope", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
