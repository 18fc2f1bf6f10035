// Package render formats decrypted safe projections for output.
//
// Renderers write to an io.Writer so commands can target stdout and
// tests can capture bytes. Formatting never touches the safe file;
// callers hand a renderer the already-decrypted entry slice.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/store"
	"github.com/systmms/safekit/internal/validation"
)

// Format identifies an output renderer.
type Format string

const (
	FormatTable  Format = "table"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatDotenv Format = "dotenv"
	FormatShell  Format = "shell"
)

// ParseFormat maps a --format flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, FormatJSON, FormatYAML, FormatDotenv, FormatShell:
		return Format(s), nil
	default:
		return "", skerrors.ValidationError{
			Field:   "output format",
			Message: fmt.Sprintf("unknown format '%s', expected table, json, yaml, dotenv, or shell", s),
		}
	}
}

// Renderer writes entries in one output format.
type Renderer interface {
	Render(w io.Writer, entries []store.RevealedEntry) error
}

// New returns the renderer for format. The shell format defaults to
// POSIX sh syntax; use NewShell to pick a specific dialect.
func New(format Format, logger *logging.Logger) (Renderer, error) {
	switch format {
	case FormatTable:
		return tableRenderer{}, nil
	case FormatJSON:
		return jsonRenderer{}, nil
	case FormatYAML:
		return yamlRenderer{}, nil
	case FormatDotenv:
		return dotenvRenderer{}, nil
	case FormatShell:
		return NewShell(ShellSh, logger), nil
	default:
		return nil, skerrors.ValidationError{
			Field:   "output format",
			Message: fmt.Sprintf("unknown format '%s'", format),
		}
	}
}

// NewShell returns a renderer emitting export lines for the given shell.
// Entries whose keys are not legal environment variable names are
// skipped with a warning rather than producing unsourceable output.
func NewShell(shell Shell, logger *logging.Logger) Renderer {
	return shellRenderer{shell: shell, logger: logger}
}

// Filter narrows entries to plain or encrypted ones. Asking for both
// at once contradicts itself and is rejected before any output.
func Filter(entries []store.RevealedEntry, plainOnly, encOnly bool) ([]store.RevealedEntry, error) {
	if plainOnly && encOnly {
		return nil, skerrors.ValidationError{
			Field:   "entry filter",
			Message: "cannot combine --plain-only with --enc-only",
		}
	}
	if !plainOnly && !encOnly {
		return entries, nil
	}

	want := safe.KindPlain
	if encOnly {
		want = safe.KindEncrypted
	}
	filtered := make([]store.RevealedEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == want {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func typeLabel(k safe.Kind) string {
	if k == safe.KindEncrypted {
		return "ENC"
	}
	return "PLAIN"
}

type tableRenderer struct{}

func (tableRenderer) Render(w io.Writer, entries []store.RevealedEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No entries in safe")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "KEY\tTYPE\tVALUE\n")
	_, _ = fmt.Fprintf(tw, "---\t----\t-----\n")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Key, typeLabel(e.Kind), e.Value)
	}
	return tw.Flush()
}

type renderedEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
	Type  string `json:"type" yaml:"type"`
}

func toRendered(entries []store.RevealedEntry) []renderedEntry {
	out := make([]renderedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, renderedEntry{Key: e.Key, Value: e.Value, Type: typeLabel(e.Kind)})
	}
	return out
}

type jsonRenderer struct{}

func (jsonRenderer) Render(w io.Writer, entries []store.RevealedEntry) error {
	doc := struct {
		Entries []renderedEntry `json:"entries"`
	}{Entries: toRendered(entries)}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

type yamlRenderer struct{}

func (yamlRenderer) Render(w io.Writer, entries []store.RevealedEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toRendered(entries)); err != nil {
		return err
	}
	return enc.Close()
}

type dotenvRenderer struct{}

func (dotenvRenderer) Render(w io.Writer, entries []store.RevealedEntry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s=%s\n", e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

type shellRenderer struct {
	shell  Shell
	logger *logging.Logger
}

func (r shellRenderer) Render(w io.Writer, entries []store.RevealedEntry) error {
	for _, e := range entries {
		if !validation.ValidKey(e.Key) {
			if r.logger != nil {
				r.logger.Warn("Skipping invalid environment key: %s", e.Key)
			}
			continue
		}
		if _, err := fmt.Fprintln(w, ExportLine(r.shell, e.Key, e.Value)); err != nil {
			return err
		}
	}
	return nil
}
