package storage

import (
	"context"
	"errors"
	"testing"
)

func TestFolderKey(t *testing.T) {
	tests := []struct {
		prefix  string
		want    string
		wantErr bool
	}{
		{prefix: "hr-documents/u1/nda", want: "hr-documents/u1/nda/"},
		{prefix: "/hr-documents/u1/", want: "hr-documents/u1/"},
		{prefix: "  ", wantErr: true},
		{prefix: "///", wantErr: true},
	}
	for _, tc := range tests {
		got, err := FolderKey(tc.prefix)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.prefix)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.prefix, err)
		}
		if got != tc.want {
			t.Fatalf("FolderKey(%q) = %q, want %q", tc.prefix, got, tc.want)
		}
	}
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	if err := store.PutObject(ctx, "missing", "a.pdf", []byte("x"), "application/pdf"); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if err := store.EnsureBucket(ctx, "docs"); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if err := store.EnsureBucket(ctx, "docs"); err != nil {
		t.Fatalf("ensure bucket twice: %v", err)
	}
	if err := store.MakeFolder(ctx, "docs", "hr-documents/u1"); err != nil {
		t.Fatalf("make folder: %v", err)
	}
	if err := store.PutObject(ctx, "docs", "hr-documents/u1/a.pdf", []byte("pdf"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := store.GetObject(ctx, "docs", "hr-documents/u1/a.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "pdf" {
		t.Fatalf("unexpected data %q", data)
	}
	if _, err := store.GetObject(ctx, "docs", "nope"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if store.PutCount() != 1 {
		t.Fatalf("expected 1 put, got %d", store.PutCount())
	}
	keys := store.Keys("docs")
	if len(keys) != 2 || keys[0] != "hr-documents/u1/" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
