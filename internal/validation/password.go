package validation

import (
	"crypto/rand"
	"math/big"
	"strings"

	skerrors "github.com/systmms/safekit/internal/errors"
)

const (
	// MinPasswordLength is the minimum accepted safe password length.
	MinPasswordLength = 12

	// GeneratedPasswordLength is the length of --generate passwords.
	GeneratedPasswordLength = 16

	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	specialChars = "._@#-"
)

// ValidationResult contains the result of a password policy check
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// CheckPassword evaluates password against the safe password policy and
// collects every violation, so callers can show the full list at once.
func CheckPassword(password string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	fail := func(msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, msg)
	}

	if len(password) < MinPasswordLength {
		fail("must be at least 12 characters long")
	}

	allowed := lowerChars + upperChars + digitChars + specialChars
	for _, c := range password {
		if !strings.ContainsRune(allowed, c) {
			fail("contains invalid characters; use only a-z A-Z 0-9 . _ @ # -")
			break
		}
	}

	if !strings.ContainsAny(password, lowerChars) {
		fail("must contain at least one lowercase letter")
	}
	if !strings.ContainsAny(password, upperChars) {
		fail("must contain at least one uppercase letter")
	}
	if !strings.ContainsAny(password, digitChars) {
		fail("must contain at least one digit")
	}
	if !strings.ContainsAny(password, specialChars) {
		fail("must contain at least one special character (. _ @ # -)")
	}

	return result
}

// ValidatePassword returns a ValidationError describing the first policy
// violation, or nil when the password is acceptable.
func ValidatePassword(password string) error {
	result := CheckPassword(password)
	if result.Valid {
		return nil
	}
	return skerrors.ValidationError{
		Field:   "password",
		Message: result.Errors[0],
	}
}

// GeneratePassword returns a random password that satisfies the policy:
// GeneratedPasswordLength characters with at least one character from
// each class, drawn from crypto/rand.
func GeneratePassword() (string, error) {
	classes := []string{lowerChars, upperChars, digitChars, specialChars}
	all := lowerChars + upperChars + digitChars + specialChars

	buf := make([]byte, 0, GeneratedPasswordLength)
	for _, class := range classes {
		c, err := randomFrom(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	for len(buf) < GeneratedPasswordLength {
		c, err := randomFrom(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates over crypto/rand, so the class-guaranteed characters
	// do not sit at fixed positions
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func randomFrom(charset string) (byte, error) {
	i, err := randomInt(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[i], nil
}

func randomInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
