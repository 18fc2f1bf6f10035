package commands

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/validation"
)

// promptPassword reads a password from the terminal without echoing it.
// Prompt text goes to stderr so stdout stays clean for command output.
func promptPassword(message string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", skerrors.UserError{
			Message:    "Cannot prompt for a password: stdin is not a terminal",
			Suggestion: "Set SAFEKIT_KEY, pass --key, or remember the password with 'safekit remember'",
		}
	}

	fmt.Fprintf(os.Stderr, "%s: ", message)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", skerrors.IOError{Op: "read password from", Path: "terminal", Err: err}
	}
	return string(password), nil
}

// promptNewPassword reads and confirms a new safe password, checking it
// against the password policy before asking for the confirmation.
func promptNewPassword(message string) (string, error) {
	password, err := promptPassword(message)
	if err != nil {
		return "", err
	}

	if result := validation.CheckPassword(password); !result.Valid {
		return "", skerrors.UserError{
			Message:    "Password does not meet the policy:\n  - " + strings.Join(result.Errors, "\n  - "),
			Suggestion: "Use at least 12 characters mixing upper, lower, digits, and . _ @ # -, or pass --generate",
		}
	}

	confirm, err := promptPassword("Confirm password")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", skerrors.UserError{
			Message:    "Passwords do not match",
			Suggestion: "Run the command again and type the same password twice",
		}
	}
	return password, nil
}

// newPassword picks a fresh safe password for init and rotate:
// generated on request, else the first non-empty explicit source, else
// an interactive prompt. Explicit sources are policy-checked; generated
// passwords are printed once to stdout and exist nowhere else.
func newPassword(rt *Runtime, generate bool, promptMessage, nonInteractiveHint string, explicit ...string) (string, error) {
	if generate {
		password, err := validation.GeneratePassword()
		if err != nil {
			return "", err
		}
		fmt.Printf("Generated password: %s\n", password)
		rt.Logger.Warn("Store this password now; it is not shown again")
		return password, nil
	}
	for _, password := range explicit {
		if password == "" {
			continue
		}
		if err := validation.ValidatePassword(password); err != nil {
			return "", err
		}
		return password, nil
	}
	if rt.NonInteractive {
		return "", skerrors.UserError{
			Message:    "No password available in non-interactive mode",
			Suggestion: nonInteractiveHint,
		}
	}
	return promptNewPassword(promptMessage)
}
