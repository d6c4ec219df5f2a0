package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the object-store surface the document engine depends on.
// Implementations must treat EnsureBucket and MakeFolder as idempotent.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context, bucket string) error
	MakeFolder(ctx context.Context, bucket, prefix string) error
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// FolderKey normalizes a prefix into a folder marker key ending in "/".
func FolderKey(prefix string) (string, error) {
	cleaned := strings.Trim(strings.TrimSpace(prefix), "/")
	if cleaned == "" {
		return "", fmt.Errorf("folder prefix is required")
	}
	return cleaned + "/", nil
}
