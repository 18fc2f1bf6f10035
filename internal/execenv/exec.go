// Package execenv runs child processes with decrypted safe entries
// injected as environment variables. Values are passed only through
// the environment of the child, never on the command line and never
// via temporary files.
package execenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/validation"
)

// Executor runs commands with ephemeral environment variables.
// The stream fields default to the process streams; tests replace them.
type Executor struct {
	logger *logging.Logger

	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

// New creates an executor wired to the current process streams.
func New(logger *logging.Logger) *Executor {
	return &Executor{
		logger: logger,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Stdin:  os.Stdin,
	}
}

// Options configures one command execution.
type Options struct {
	Command      []string          // command and arguments to run
	Env          map[string]string // decrypted entries to inject
	KeepExisting bool              // existing environment variables win over Env
	PrintVars    bool              // print injected variable names with masked values
	WorkingDir   string
	Timeout      int // seconds, 0 means no timeout
}

// Run executes the command and returns its exit code. A zero exit
// code with a nil error is success; a non-zero exit code with a nil
// error means the child ran and failed, and the caller should exit
// with the same code.
func (e *Executor) Run(ctx context.Context, opts Options) (int, error) {
	if len(opts.Command) == 0 {
		return 1, skerrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., safekit exec -- npm start)",
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Second)
		defer cancel()
	}

	cmdName := opts.Command[0]
	if _, err := exec.LookPath(cmdName); err != nil {
		return 1, skerrors.WrapCommandNotFound(cmdName, err)
	}

	env := buildEnvironment(opts.Env, opts.KeepExisting)

	if opts.PrintVars {
		e.printEnvironment(opts.Env)
	}

	cmd := exec.CommandContext(ctx, cmdName, opts.Command[1:]...)
	cmd.Env = env
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	cmd.Stdin = e.Stdin
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}

	e.logger.Debug("Executing command: %s", strings.Join(opts.Command, " "))
	e.logger.Debug("Environment variables injected: %d", len(opts.Env))

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 1, skerrors.CommandError{
				Command:    strings.Join(opts.Command, " "),
				Message:    fmt.Sprintf("command timed out after %d seconds", opts.Timeout),
				Suggestion: "Increase --timeout or investigate why the command hangs",
			}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The child ran and failed; its exit code is the outcome,
			// not an error of ours.
			return exitErr.ExitCode(), nil
		}
		return 1, skerrors.CommandError{
			Command:    strings.Join(opts.Command, " "),
			Message:    err.Error(),
			Suggestion: "Check the command output above for details",
		}
	}

	return 0, nil
}

// buildEnvironment overlays the injected variables onto the current
// process environment. Injected values win unless keepExisting is set.
func buildEnvironment(vars map[string]string, keepExisting bool) []string {
	envMap := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			envMap[key] = value
		}
	}

	for key, value := range vars {
		if keepExisting {
			if _, exists := envMap[key]; exists {
				continue
			}
		}
		envMap[key] = value
	}

	result := make([]string, 0, len(envMap))
	for key, value := range envMap {
		result = append(result, key+"="+value)
	}
	sort.Strings(result)
	return result
}

// printEnvironment lists the injected variable names with masked
// values so the plaintext never reaches a terminal scrollback.
func (e *Executor) printEnvironment(vars map[string]string) {
	if len(vars) == 0 {
		fmt.Fprintln(e.Stdout, "No environment variables resolved")
		return
	}

	fmt.Fprintf(e.Stdout, "Resolved %d environment variables:\n", len(vars))

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(e.Stdout, "  %s=%s\n", key, validation.MaskValue(vars[key]))
	}
	fmt.Fprintln(e.Stdout)
}
