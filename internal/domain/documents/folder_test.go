package documents

import (
	"errors"
	"testing"
)

func TestFolderCode(t *testing.T) {
	tests := []struct {
		name     string
		category string
		seq      int
		want     string
		wantErr  bool
	}{
		{name: "onboarding", category: "ONBOARDING", seq: 1, want: "ON_01"},
		{name: "lowercase category", category: "offboarding", seq: 12, want: "OF_12"},
		{name: "hr lifecycle", category: "HR_LIFECYCLE", seq: 3, want: "HR_03"},
		{name: "operations three digits", category: "OPERATIONS", seq: 100, want: "OP_100"},
		{name: "unknown category", category: "PAYROLL", seq: 1, wantErr: true},
		{name: "zero sequence", category: "OPERATIONS", seq: 0, wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := FolderCode(tc.category, tc.seq)
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveFolderCodeOverride(t *testing.T) {
	override := " x_9 "
	got, err := resolveFolderCode(CategoryOnboarding, 1, &override)
	if err != nil || got != "X_9" {
		t.Fatalf("expected override X_9, got %q %v", got, err)
	}
	blank := "  "
	got, err = resolveFolderCode(CategoryOnboarding, 1, &blank)
	if err != nil || got != "ON_01" {
		t.Fatalf("expected derived ON_01, got %q %v", got, err)
	}
}
