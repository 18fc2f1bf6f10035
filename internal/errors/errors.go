package errors

import (
	"errors"
	"fmt"
	"strings"
)

// FormatError reports a malformed safe file. Line is 1-based; zero means
// the problem is not tied to a specific line (e.g. a missing banner field).
type FormatError struct {
	Line    int
	Message string
}

func (e FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("safe file line %d: %s", e.Line, e.Message)
	}
	return "safe file: " + e.Message
}

// AuthError reports a failed password check or a ciphertext that did not
// authenticate. It never carries the attempted password.
type AuthError struct {
	Reason string
}

func (e AuthError) Error() string {
	return "authentication failed: " + e.Reason
}

// NotFoundError reports a missing key, safe, or cached credential.
type NotFoundError struct {
	Kind string
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e IOError) Unwrap() error {
	return e.Err
}

// ValidationError reports rejected user input such as a bad key name or a
// weak password.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// AWSError enhances AWS SDK errors with context for the service and operation
func AWSError(service string, operation string, err error) error {
	suggestion := getAWSSuggestion(service, err)

	return UserError{
		Message:    fmt.Sprintf("%s error during %s", service, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getAWSSuggestion returns helpful suggestions based on service and error
func getAWSSuggestion(service string, err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "no EC2 IMDS role found") {
		return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
	}
	if strings.Contains(errStr, "ExpiredToken") {
		return "Your AWS session has expired. Refresh credentials or run 'aws sso login'"
	}
	if strings.Contains(errStr, "AccessDenied") || strings.Contains(errStr, "UnauthorizedOperation") {
		switch service {
		case "ssm":
			return "Check IAM permissions for ssm:GetParametersByPath and ssm:PutParameter"
		case "secretsmanager":
			return "Check IAM permissions for secretsmanager:ListSecrets and secretsmanager:GetSecretValue"
		default:
			return "Check your IAM permissions for this operation"
		}
	}
	if strings.Contains(errStr, "ParameterNotFound") {
		return "Verify the parameter path and region. List parameters with: 'aws ssm get-parameters-by-path --path <prefix>'"
	}
	if strings.Contains(errStr, "ResourceNotFoundException") {
		return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
	}
	if strings.Contains(errStr, "ThrottlingException") {
		return "AWS rate limit exceeded. Wait a moment and try again"
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and the configured region or endpoint"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"npm":    "Install Node.js from https://nodejs.org/",
		"yarn":   "Install Yarn from https://yarnpkg.com/",
		"python": "Install Python from https://python.org/",
		"pip":    "Install pip with your Python installation",
		"go":     "Install Go from https://golang.org/",
		"cargo":  "Install Rust from https://rustup.rs/",
		"docker": "Install Docker from https://docker.com/",
		"git":    "Install Git from https://git-scm.com/",
		"make":   "Install Make (usually comes with build tools)",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
	}
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly or domain-typed error
	switch err.(type) {
	case UserError, ConfigError, CommandError,
		FormatError, AuthError, NotFoundError, IOError, ValidationError:
		return err
	}

	// Simplify common technical errors
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") {
		return ConfigError{
			Message:    "Invalid JSON format",
			Suggestion: "Validate your JSON at https://jsonlint.com/",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
