package documents

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeBaseName keeps a storage-safe stem of a file name without its extension.
func sanitizeBaseName(name string) (string, string) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Trim(unsafeNameChars.ReplaceAllString(stem, "_"), "._-")
	if stem == "" {
		stem = "file"
	}
	if len(stem) > 80 {
		stem = stem[:80]
	}
	ext = unsafeNameChars.ReplaceAllString(ext, "")
	if ext == "." {
		ext = ""
	}
	return stem, ext
}

// objectSuffix is 8 random hex characters taken from a v4 UUID.
func objectSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func documentPrefix(userID, typeCode string) string {
	return path.Join(StoragePrefix, userID, strings.ToLower(strings.TrimSpace(typeCode)))
}

// objectKey lays out hr-documents/{user}/{type_code_lower}/{stem}_{suffix}{ext}.
func objectKey(userID, typeCode, fileName, suffix string) string {
	stem, ext := sanitizeBaseName(fileName)
	return documentPrefix(userID, typeCode) + "/" + stem + "_" + suffix + ext
}

func newObjectKey(userID, typeCode, fileName string) string {
	return objectKey(userID, typeCode, fileName, objectSuffix())
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".zip":  "application/zip",
}

func contentTypeFor(fileName string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return ct
	}
	return "application/octet-stream"
}
