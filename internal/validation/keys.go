package validation

import (
	"strings"

	skerrors "github.com/systmms/safekit/internal/errors"
)

// DefaultSafeName is the safe file used when no --safe flag is given.
const DefaultSafeName = ".env.safe"

// ValidKey reports whether key matches [A-Za-z_][A-Za-z0-9_]*.
// This is the shell-safe environment variable grammar, so every stored
// key can be exported or injected into a child process unchanged.
func ValidKey(key string) bool {
	if key == "" {
		return false
	}
	for i, c := range key {
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ValidateKey returns a ValidationError when key does not match the
// identifier grammar. Keys are checked before any mutation is committed.
func ValidateKey(key string) error {
	if ValidKey(key) {
		return nil
	}
	if key == "" {
		return skerrors.ValidationError{
			Field:   "key name",
			Message: "must not be empty",
		}
	}
	if key[0] >= '0' && key[0] <= '9' {
		return skerrors.ValidationError{
			Field:   "key name",
			Message: "must not begin with a digit",
		}
	}
	return skerrors.ValidationError{
		Field:   "key name",
		Message: "use only letters, digits, and underscore (pattern [A-Za-z_][A-Za-z0-9_]*)",
	}
}

// ValidateImportedKey validates a key derived from a nested parameter
// path. Forward slashes are allowed as segment separators; each segment
// must satisfy the identifier grammar on its own.
func ValidateImportedKey(key string) error {
	if !strings.Contains(key, "/") {
		return ValidateKey(key)
	}
	for _, segment := range strings.Split(key, "/") {
		if !ValidKey(segment) {
			return skerrors.ValidationError{
				Field:   "imported key",
				Message: "segment '" + segment + "' of '" + key + "' is not a valid identifier",
			}
		}
	}
	return nil
}

// NormalizeSafeName expands a bare safe name into its on-disk filename.
// Bare names become hidden .safe files ("prod" -> ".prod.safe"); names
// containing a path separator are treated as explicit paths and left
// untouched.
func NormalizeSafeName(name string) string {
	if name == "" {
		return DefaultSafeName
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return name
	}
	if strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".safe") {
		return name
	}
	if strings.HasSuffix(name, ".safe") {
		return "." + name
	}
	return "." + name + ".safe"
}

// MaskValue masks a secret value for safe display
func MaskValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}

	// Show first 3 and last 3 characters
	return value[:3] + "***" + value[len(value)-3:]
}
