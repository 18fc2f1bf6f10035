package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/safekit/internal/render"
	"github.com/systmms/safekit/internal/store"
)

func NewPrintCommand(rt *Runtime) *cobra.Command {
	var (
		format    string
		plainOnly bool
		encOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the decrypted safe in a chosen format",
		Long: `Decrypt the safe and print every entry through a renderer.

Formats: table (default), json, yaml, dotenv, shell. The --plain-only
filter never needs a password; everything else decrypts the whole safe.

Examples:
  safekit print
  safekit print --format dotenv > .env
  safekit print --format json --enc-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			renderer, err := render.New(f, rt.Logger)
			if err != nil {
				return err
			}
			// Conflicting filters are rejected before any authentication.
			if _, err := render.Filter(nil, plainOnly, encOnly); err != nil {
				return err
			}

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}

			var entries []store.RevealedEntry
			if plainOnly {
				entries = plainEntries(st)
			} else {
				entries, err = rt.RevealAll(st)
				if err != nil {
					return err
				}
				entries, err = render.Filter(entries, plainOnly, encOnly)
				if err != nil {
					return err
				}
			}
			return renderer.Render(os.Stdout, entries)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, yaml, dotenv, shell")
	cmd.Flags().BoolVar(&plainOnly, "plain-only", false, "Show only plain entries")
	cmd.Flags().BoolVar(&encOnly, "enc-only", false, "Show only encrypted entries")

	return cmd
}
