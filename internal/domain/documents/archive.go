package documents

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
)

// maxArchiveEntryBytes caps a single extracted file.
const maxArchiveEntryBytes = 64 << 20

type archiveIndex map[string]*zip.File

// indexArchive maps lowercased basenames to entries. Directory structure is ignored and the
// first entry wins when two folders hold the same name.
func indexArchive(data []byte) (archiveIndex, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	index := archiveIndex{}
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		key := archiveKey(entry.Name)
		if key == "" {
			continue
		}
		if _, exists := index[key]; exists {
			slog.Warn("duplicate archive entry ignored", "entry", entry.Name)
			continue
		}
		index[key] = entry
	}
	return index, nil
}

func archiveKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.ToLower(base)
}

// read returns the bytes for fileName, matched case-insensitively on basename.
func (a archiveIndex) read(fileName string) ([]byte, error) {
	key := archiveKey(strings.TrimSpace(fileName))
	entry, ok := a[key]
	if key == "" || !ok {
		return nil, fmt.Errorf("%w: file %q not found in archive", ErrNotFound, fileName)
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExternalIO, entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxArchiveEntryBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrExternalIO, entry.Name, err)
	}
	if len(data) > maxArchiveEntryBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrValidation, entry.Name, maxArchiveEntryBytes)
	}
	return data, nil
}
