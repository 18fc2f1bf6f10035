package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCommand(t *testing.T) {
	t.Run("healthy environment passes", func(t *testing.T) {
		path := createTestSafe(t)
		rt := newTestRuntime(t, path)

		output := captureOutput(t, NewDoctorCommand(rt), nil)

		assert.Contains(t, output, "safe file")
		assert.Contains(t, output, "✓ ok")
		assert.Contains(t, output, "Summary:")
		assert.Contains(t, output, "0 failures")
	})

	t.Run("missing safe fails the run", func(t *testing.T) {
		rt := newTestRuntime(t, filepath.Join(t.TempDir(), ".missing.safe"))

		err := runCommand(NewDoctorCommand(rt), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checks failed")
	})

	t.Run("loose permissions warn but do not fail", func(t *testing.T) {
		path := createTestSafe(t)
		require.NoError(t, os.Chmod(path, 0o644))

		rt := newTestRuntime(t, path)
		output := captureOutput(t, NewDoctorCommand(rt), nil)

		assert.Contains(t, output, "⚠ warn")
		assert.Contains(t, output, "1 warnings")
	})

	t.Run("fix tightens loose permissions", func(t *testing.T) {
		path := createTestSafe(t)
		require.NoError(t, os.Chmod(path, 0o644))

		rt := newTestRuntime(t, path)
		captureOutput(t, NewDoctorCommand(rt), []string{"--fix"})

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("schema-invalid config fails", func(t *testing.T) {
		path := createTestSafe(t)
		configPath := filepath.Join(t.TempDir(), ".safekit.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("bogus_field: true\n"), 0o600))

		rt := newTestRuntime(t, path)
		rt.ConfigPath = configPath

		err := runCommand(NewDoctorCommand(rt), nil)
		require.Error(t, err)
	})
}
