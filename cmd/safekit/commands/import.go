package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/importer"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/store"
)

func NewImportCommand(rt *Runtime) *cobra.Command {
	var (
		format    string
		plainKeys string
		merge     string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import entries from a cleartext file",
		Long: `Import KEY=VALUE pairs from a dotenv, JSON, or YAML file. Every value
becomes an encrypted entry unless its key is listed in --plain-keys.
Nested JSON/YAML maps flatten into keys joined with '/'.

The format follows the file extension; --format overrides it.

Examples:
  safekit import .env
  safekit import config.json --plain-keys LOG_LEVEL,NODE_ENV
  safekit import secrets.yaml --merge skip --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]

			policy, err := mergePolicy(merge)
			if err != nil {
				return err
			}
			plain := plainKeySet(plainKeys)

			params, err := loadImportFile(file, format, plain)
			if err != nil {
				return err
			}

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			report, err := rt.applyImport(st, params, importer.Options{
				Policy: policy,
				DryRun: dryRun,
			}, "")
			if err != nil {
				return err
			}

			printImportReport(rt, report, file)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Input format: env, json, yaml (default: by file extension)")
	cmd.Flags().StringVar(&plainKeys, "plain-keys", "", "Comma-separated keys to store as plain text")
	cmd.Flags().StringVar(&merge, "merge", "overwrite", "Merge policy: replace, overwrite, skip")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without writing")

	return cmd
}

// loadImportFile parses the import file, honoring an explicit format
// over the extension-based default.
func loadImportFile(path, format string, plainKeys map[string]bool) ([]importer.Parameter, error) {
	if format == "" {
		return importer.LoadFile(path, plainKeys)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, skerrors.IOError{Op: "read", Path: path, Err: err}
	}
	switch format {
	case "env", "dotenv":
		return importer.ParseEnvFile(string(data), plainKeys)
	case "json":
		return importer.ParseJSON(data, plainKeys)
	case "yaml", "yml":
		return importer.ParseYAML(data, plainKeys)
	default:
		return nil, skerrors.ValidationError{
			Field:   "import format",
			Message: "unknown format '" + format + "', expected env, json, or yaml",
		}
	}
}

// plainKeySet splits a --plain-keys flag value into a lookup set.
func plainKeySet(flag string) map[string]bool {
	set := make(map[string]bool)
	for _, key := range strings.Split(flag, ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			set[key] = true
		}
	}
	return set
}

// mergePolicy maps the CLI flag spelling onto the importer's policies.
func mergePolicy(flag string) (importer.MergePolicy, error) {
	switch flag {
	case "replace":
		return importer.MergeReplace, nil
	case "", "overwrite", "merge-overwrite":
		return importer.MergeOverwrite, nil
	case "skip", "merge-skip":
		return importer.MergeSkip, nil
	default:
		return "", skerrors.ValidationError{
			Field:   "merge policy",
			Message: "unknown policy '" + flag + "', expected replace, overwrite, or skip",
		}
	}
}

// applyImport runs the mapper against st. Dry runs touch nothing and
// need no password; real runs authenticate first and save once.
func (rt *Runtime) applyImport(st *store.Store, params []importer.Parameter, opts importer.Options, promptMessage string) (*importer.Report, error) {
	mapper := importer.New(st, rt.Logger)
	if opts.DryRun {
		return mapper.Apply(params, opts)
	}

	cred, err := rt.Authenticate(st, promptMessage)
	if err != nil {
		return nil, err
	}
	defer cred.Destroy()

	var report *importer.Report
	err = cred.WithPassword(func(password []byte) error {
		opts.Password = password
		var applyErr error
		report, applyErr = mapper.Apply(params, opts)
		if applyErr != nil {
			return applyErr
		}
		return st.Save()
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// printImportReport summarizes an import run. Dry runs print the diff
// table; real runs log the outcome.
func printImportReport(rt *Runtime, report *importer.Report, source string) {
	if report.DryRun {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tACTION\tTYPE")
		fmt.Fprintln(w, "---\t------\t----")
		for _, c := range report.Changes {
			label := "PLAIN"
			if c.Kind == safe.KindEncrypted {
				label = "ENC"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Key, c.Action, label)
		}
		_ = w.Flush()
		fmt.Printf("\nDry run for %s: %d to add, %d to update, %d to skip (%d encrypted, %d plain). Nothing written.\n",
			source, report.Added, report.Updated, report.Skipped, report.Encrypted, report.Plain)
		return
	}

	rt.Logger.Info("Imported %d entries from %s (%d added, %d updated, %d skipped; %d encrypted, %d plain)",
		report.Added+report.Updated, source, report.Added, report.Updated, report.Skipped, report.Encrypted, report.Plain)
	if skipped := report.SkippedKeys(); len(skipped) > 0 && len(skipped) <= 10 {
		rt.Logger.Warn("Skipped existing keys: %s", strings.Join(skipped, ", "))
	}
}
