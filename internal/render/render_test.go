package render_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/render"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/store"
)

func sampleEntries() []store.RevealedEntry {
	return []store.RevealedEntry{
		{Key: "API_TOKEN", Value: "secret123", Kind: safe.KindEncrypted},
		{Key: "LOG_LEVEL", Value: "debug", Kind: safe.KindPlain},
	}
}

func renderTo(t *testing.T, format render.Format, entries []store.RevealedEntry) string {
	t.Helper()
	r, err := render.New(format, logging.New(false, true))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, entries))
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"table", "json", "yaml", "dotenv", "shell"} {
		format, err := render.ParseFormat(valid)
		require.NoError(t, err)
		assert.Equal(t, render.Format(valid), format)
	}

	_, err := render.ParseFormat("toml")
	var valErr skerrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message, "toml")
}

func TestTableRenderer(t *testing.T) {
	t.Parallel()

	out := renderTo(t, render.FormatTable, sampleEntries())

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "KEY")
	assert.Contains(t, lines[0], "TYPE")
	assert.Contains(t, lines[0], "VALUE")
	assert.Contains(t, lines[2], "API_TOKEN")
	assert.Contains(t, lines[2], "ENC")
	assert.Contains(t, lines[3], "LOG_LEVEL")
	assert.Contains(t, lines[3], "PLAIN")
}

func TestTableRendererEmptySafe(t *testing.T) {
	t.Parallel()

	out := renderTo(t, render.FormatTable, nil)
	assert.Equal(t, "No entries in safe\n", out)
}

func TestJSONRenderer(t *testing.T) {
	t.Parallel()

	out := renderTo(t, render.FormatJSON, sampleEntries())

	var doc struct {
		Entries []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
			Type  string `json:"type"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, "API_TOKEN", doc.Entries[0].Key)
	assert.Equal(t, "ENC", doc.Entries[0].Type)
	assert.Equal(t, "debug", doc.Entries[1].Value)
	assert.Equal(t, "PLAIN", doc.Entries[1].Type)
}

func TestJSONRendererEmptySafeIsAnEmptyList(t *testing.T) {
	t.Parallel()

	out := renderTo(t, render.FormatJSON, nil)
	assert.Contains(t, out, `"entries": []`)
}

func TestYAMLRendererKeepsOrder(t *testing.T) {
	t.Parallel()

	out := renderTo(t, render.FormatYAML, sampleEntries())

	var docs []struct {
		Key  string `yaml:"key"`
		Type string `yaml:"type"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "API_TOKEN", docs[0].Key)
	assert.Equal(t, "ENC", docs[0].Type)
	assert.Equal(t, "LOG_LEVEL", docs[1].Key)
}

func TestDotenvRenderer(t *testing.T) {
	t.Parallel()

	out := renderTo(t, render.FormatDotenv, sampleEntries())
	assert.Equal(t, "API_TOKEN=secret123\nLOG_LEVEL=debug\n", out)
}

func TestShellRendererQuotesAndExports(t *testing.T) {
	t.Parallel()

	entries := []store.RevealedEntry{
		{Key: "DATABASE_URL", Value: "postgres://u:p@host/db?sslmode=require", Kind: safe.KindEncrypted},
		{Key: "LOG_LEVEL", Value: "debug", Kind: safe.KindPlain},
	}
	out := renderTo(t, render.FormatShell, entries)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `export DATABASE_URL='postgres://u:p@host/db?sslmode=require'`, lines[0])
	assert.Equal(t, "export LOG_LEVEL=debug", lines[1])
}

func TestShellRendererSkipsUnsourceableKeys(t *testing.T) {
	t.Parallel()

	entries := []store.RevealedEntry{
		{Key: "database/PASSWORD", Value: "hunter22", Kind: safe.KindEncrypted},
		{Key: "LOG_LEVEL", Value: "debug", Kind: safe.KindPlain},
	}

	r := render.NewShell(render.ShellBash, logging.New(false, true))
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, entries))

	out := buf.String()
	assert.NotContains(t, out, "hunter22", "keys with path separators cannot become env assignments")
	assert.Contains(t, out, "export LOG_LEVEL=debug")
}

func TestFilter(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()

	plain, err := render.Filter(entries, true, false)
	require.NoError(t, err)
	require.Len(t, plain, 1)
	assert.Equal(t, "LOG_LEVEL", plain[0].Key)

	enc, err := render.Filter(entries, false, true)
	require.NoError(t, err)
	require.Len(t, enc, 1)
	assert.Equal(t, "API_TOKEN", enc[0].Key)

	all, err := render.Filter(entries, false, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = render.Filter(entries, true, true)
	var valErr skerrors.ValidationError
	require.ErrorAs(t, err, &valErr)
}
