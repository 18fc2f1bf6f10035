package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/systmms/safekit/internal/importer"
	"github.com/systmms/safekit/internal/providers"
)

func NewSMCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sm",
		Short: "Import secrets from AWS Secrets Manager",
		Long: `Pull secrets from AWS Secrets Manager into the safe. Every secret
arrives encrypted; the value is re-encrypted locally under the safe's
own password. Binary secrets are skipped.`,
	}

	cmd.AddCommand(newSMPullCommand(rt))
	return cmd
}

func newSMPullCommand(rt *Runtime) *cobra.Command {
	var (
		prefix    string
		region    string
		merge     string
		dryRun    bool
		plainKeys string
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Import secrets under a name prefix into the safe",
		Long: `List every secret whose name starts with the prefix, fetch its
current value, and import it through the merge policy. An empty prefix
imports every secret the credentials can list.

Examples:
  safekit sm pull --prefix myapp/ --region eu-central-1
  safekit sm pull --prefix myapp/ --merge skip --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := mergePolicy(merge)
			if err != nil {
				return err
			}

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}

			ctx := context.Background()
			source, err := providers.NewSecretsManagerSource(ctx, providers.ClientConfig{Region: region}, rt.Logger)
			if err != nil {
				return err
			}
			params, err := source.Pull(ctx, prefix)
			if err != nil {
				return err
			}
			if len(params) == 0 {
				if prefix == "" {
					rt.Logger.Warn("No secrets found")
				} else {
					rt.Logger.Warn("No secrets found under %s", prefix)
				}
				return nil
			}

			overrides := plainKeySet(plainKeys)
			for i, p := range params {
				key, err := importer.KeyForPath(p.Path, prefix)
				if err != nil {
					continue
				}
				if overrides[key] {
					params[i].Type = importer.SourcePlainString
				}
			}

			report, err := rt.applyImport(st, params, importer.Options{
				Prefix: prefix,
				Policy: policy,
				DryRun: dryRun,
			}, "")
			if err != nil {
				return err
			}

			label := "secretsmanager"
			if prefix != "" {
				label = "secretsmanager:" + prefix
			}
			printImportReport(rt, report, label)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Secret name prefix (e.g. myapp/); empty imports all secrets")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (default: SDK chain)")
	cmd.Flags().StringVar(&merge, "merge", "overwrite", "Merge policy: replace, overwrite, skip")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without writing")
	cmd.Flags().StringVar(&plainKeys, "plain-keys", "", "Comma-separated keys to store as plain text")

	return cmd
}
