package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/safekit/internal/importer"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/validation"
)

func NewCopyCommand(rt *Runtime) *cobra.Command {
	var (
		merge  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "copy SRC DEST",
		Short: "Copy entries from one safe into another",
		Long: `Copy every entry from SRC into DEST, re-encrypting secrets under
DEST's password. The two safes keep independent passwords; nothing
from SRC's key material survives the copy.

DEST must already exist ('safekit init --safe <name>' creates it).

Examples:
  safekit copy .env.safe .staging.safe
  safekit copy prod staging --merge skip --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcPath := validation.NormalizeSafeName(args[0])
			destPath := validation.NormalizeSafeName(args[1])

			policy, err := mergePolicy(merge)
			if err != nil {
				return err
			}

			src, err := rt.OpenStoreAt(srcPath)
			if err != nil {
				return err
			}
			revealed, err := rt.RevealAll(src)
			if err != nil {
				return err
			}

			params := make([]importer.Parameter, 0, len(revealed))
			for _, e := range revealed {
				t := importer.SourcePlainString
				if e.Kind == safe.KindEncrypted {
					t = importer.SourceSecret
				}
				params = append(params, importer.Parameter{Path: e.Key, Value: e.Value, Type: t})
			}

			dest, err := rt.OpenStoreAt(destPath)
			if err != nil {
				return err
			}
			report, err := rt.applyImport(dest, params, importer.Options{
				Policy: policy,
				DryRun: dryRun,
			}, "Enter password for "+destPath)
			if err != nil {
				return err
			}

			printImportReport(rt, report, srcPath+" -> "+destPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&merge, "merge", "overwrite", "Merge policy: replace, overwrite, skip")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without writing")

	return cmd
}
