package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// ValidateRepositoryID validates a repository identifier for safety.
// Identifiers show up in log lines, ledger keys and API paths, so the rules
// are conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - No path separators or traversal sequences
//   - Maximum length of 128 characters
func ValidateRepositoryID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidDescriptor, "repository id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidDescriptor, "repository id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidDescriptor, "repository id contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidDescriptor, "repository id contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateURL validates a repository URL string for safety.
// It ensures the URL parses, has a host, and uses http or https.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidDescriptor, "URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidDescriptor, err, "URL cannot be parsed")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidDescriptor, "URL must use http or https scheme")
	}

	if u.Host == "" {
		return New(ErrCodeInvalidDescriptor, "URL must have a host")
	}

	return nil
}

// ValidatePath validates a relative path inside a local repository.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// coordinatePartRegex matches a single Maven coordinate segment
// (groupId, artifactId or version).
var coordinatePartRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._\-]*$`)

// ValidateCoordinatePart validates one segment of a "groupId:artifactId:version"
// coordinate. The field name is only used in the error message.
func ValidateCoordinatePart(field, value string) error {
	if value == "" {
		return New(ErrCodeInvalidCoordinate, "%s cannot be empty", field)
	}
	if strings.Contains(value, "..") {
		return New(ErrCodeInvalidCoordinate, "%s cannot contain path traversal sequences (..)", field)
	}
	if !coordinatePartRegex.MatchString(value) {
		return New(ErrCodeInvalidCoordinate, "invalid %s: %q", field, value)
	}
	return nil
}

// typeIDRegex matches artifact type identifiers such as "jar" or "eclipse-plugin".
var typeIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]*$`)

// ValidateTypeID validates an artifact type identifier.
func ValidateTypeID(id string) error {
	if id == "" {
		return New(ErrCodeConfig, "artifact type id cannot be empty")
	}
	if !typeIDRegex.MatchString(id) {
		return New(ErrCodeConfig, "invalid artifact type id: %q", id)
	}
	return nil
}
