package storage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ivan4oto/race-photos/internal/models"
)

var (
	folderCharset  = regexp.MustCompile(`^[A-Za-z0-9._\-/]+$`)
	segmentInvalid = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	multiSlash     = regexp.MustCompile(`/{2,}`)
)

// NormalizeKey trims whitespace and strips a leading slash from an
// object key. The result may be empty.
func NormalizeKey(key string) string {
	trimmed := strings.TrimSpace(key)
	return strings.TrimPrefix(trimmed, "/")
}

// SanitizeOptionalFolder cleans a user-supplied folder path for use as
// a key prefix. Returns "" when the input carries no usable folder.
func SanitizeOptionalFolder(folder string) (string, error) {
	trimmed := strings.TrimSpace(folder)
	if trimmed == "" {
		return "", nil
	}
	// Backslashes would smuggle in directory traversal semantics.
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	trimmed = multiSlash.ReplaceAllString(trimmed, "/")
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", nil
	}
	if !folderCharset.MatchString(trimmed) {
		return "", fmt.Errorf("%w: folder name contains invalid characters", models.ErrInvalidInput)
	}
	if strings.Contains(trimmed, "..") {
		return "", fmt.Errorf("%w: folder name must not contain '..'", models.ErrInvalidInput)
	}
	if strings.Contains(trimmed, " ") {
		return "", fmt.Errorf("%w: folder name must not contain spaces", models.ErrInvalidInput)
	}
	return trimmed, nil
}

// SanitizeFilename strips any path components from an object name.
func SanitizeFilename(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: object name is blank", models.ErrInvalidInput)
	}
	if i := strings.LastIndexAny(trimmed, "/\\"); i >= 0 && i < len(trimmed)-1 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" || strings.ContainsAny(trimmed, "/\\") {
		return "", fmt.Errorf("%w: invalid object name", models.ErrInvalidInput)
	}
	return trimmed, nil
}

// SanitizePathSegment coerces a slug into a single safe key segment.
func SanitizePathSegment(segment string) (string, error) {
	sanitized := strings.Trim(strings.TrimSpace(segment), "/")
	sanitized = segmentInvalid.ReplaceAllString(sanitized, "-")
	if sanitized == "" {
		return "", fmt.Errorf("%w: invalid path segment", models.ErrInvalidInput)
	}
	return sanitized, nil
}
