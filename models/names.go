package models

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^\w\s\-.]`)

// SanitizeFilename strips path components and characters that are not
// safe to echo back into storage keys or download headers.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "")

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	base = strings.ReplaceAll(base, ".", "_")

	if len(base) > 200 {
		base = base[:200]
	}
	if base == "" {
		base = "file"
	}
	return base + ext
}

// UniqueFilename prefixes a sanitized filename with a short random id
// so that outputs derived from identical input names never collide.
func UniqueFilename(original string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return id + "_" + SanitizeFilename(original)
}

// FileExtension returns the lowercase extension without the dot.
func FileExtension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// OutputFilename swaps the extension of the original name for the
// target format.
func OutputFilename(original, targetFormat string) string {
	base := strings.TrimSuffix(original, filepath.Ext(original))
	return base + "." + strings.ToLower(targetFormat)
}
