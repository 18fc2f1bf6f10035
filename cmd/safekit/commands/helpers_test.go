package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/systmms/safekit/internal/crypto"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/store"
)

// testPassword satisfies the password policy enforced at init and rotate.
const testPassword = "Aa1-_@#abcdEF"

// newTestRuntime builds a Runtime the way main.go does, with prompts
// disabled, the password passed explicitly, and the key cache
// redirected into the test's temp space.
func newTestRuntime(t *testing.T, safePath string) *Runtime {
	t.Helper()
	t.Setenv("SAFEKIT_KEY_DIR", filepath.Join(t.TempDir(), "keys"))
	return &Runtime{
		Logger:         logging.New(false, true),
		SafeFlag:       safePath,
		Key:            testPassword,
		NonInteractive: true,
	}
}

// createTestSafe writes a safe with one plain and one encrypted entry
// and returns its path.
func createTestSafe(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env.safe")

	engine, err := crypto.NewEngine()
	require.NoError(t, err)
	logger := logging.New(false, true)

	st, err := store.Create(path, "test safe", []byte(testPassword), engine, logger)
	require.NoError(t, err)
	require.NoError(t, st.Document().SetPlain("LOG_LEVEL", "debug"))
	require.NoError(t, st.SetSecret("API_KEY", "super-secret-token", []byte(testPassword)))
	require.NoError(t, st.Save())
	return path
}

// openTestSafe reopens a safe created by createTestSafe for assertions.
func openTestSafe(t *testing.T, path string) *store.Store {
	t.Helper()
	engine, err := crypto.NewEngine()
	require.NoError(t, err)
	st, err := store.Open(path, engine, logging.New(false, true))
	require.NoError(t, err)
	return st
}

// captureOutput runs the command and returns everything it wrote to
// stdout, failing the test if the command errors.
func captureOutput(t *testing.T, cmd *cobra.Command, args []string) string {
	t.Helper()

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)

	err := cmd.Execute()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)

	if err != nil {
		t.Logf("Command output before error: %s", buf.String())
		require.NoError(t, err)
	}

	return buf.String()
}

// runCommand executes the command and returns its error, discarding
// stdout. For tests that expect a failure.
func runCommand(cmd *cobra.Command, args []string) error {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()

	_ = w.Close()
	os.Stdout = old
	_, _ = io.Copy(io.Discard, r)

	return err
}
