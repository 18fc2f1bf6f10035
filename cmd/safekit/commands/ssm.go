package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/importer"
	"github.com/systmms/safekit/internal/providers"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/store"
)

func NewSSMCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssm",
		Short: "Sync the safe with AWS SSM Parameter Store",
		Long: `Pull parameters from AWS SSM Parameter Store into the safe, or push
safe entries up as parameters. SecureString parameters map to encrypted
entries (re-encrypted locally); String and StringList stay plain.

The prefix and region resolve from the flag, then the safe's own
metadata, then .safekit.yaml. A successful pull records them into the
safe so later pulls need no flags.`,
	}

	cmd.AddCommand(
		newSSMPullCommand(rt),
		newSSMPushCommand(rt),
		newSSMWhoamiCommand(rt),
	)
	return cmd
}

func newSSMPullCommand(rt *Runtime) *cobra.Command {
	var (
		prefix    string
		region    string
		merge     string
		dryRun    bool
		plainKeys string
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Import parameters under a prefix into the safe",
		Long: `Fetch every parameter under the prefix (recursively, following
pagination) and import it through the merge policy.

Examples:
  safekit ssm pull --prefix /myapp/prod/ --region eu-central-1
  safekit ssm pull --merge skip --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := mergePolicy(merge)
			if err != nil {
				return err
			}

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			target, err := rt.ssmTarget(st, prefix, region)
			if err != nil {
				return err
			}

			ctx := context.Background()
			source, err := providers.NewSSMSource(ctx, providers.ClientConfig{Region: target.Region}, rt.Logger)
			if err != nil {
				return err
			}
			params, err := source.Pull(ctx, target.Prefix)
			if err != nil {
				return err
			}
			if len(params) == 0 {
				rt.Logger.Warn("No parameters found under %s", target.Prefix)
				return nil
			}

			// Overrides let selected secrets land as plain entries even
			// though SSM typed them SecureString.
			overrides := plainKeySet(plainKeys)
			for i, p := range params {
				key, err := importer.KeyForPath(p.Path, target.Prefix)
				if err != nil {
					continue
				}
				if overrides[key] {
					params[i].Type = importer.SourcePlainString
				}
			}

			if !dryRun {
				doc := st.Document()
				doc.SSMPrefix = target.Prefix
				doc.SSMRegion = target.Region
			}
			report, err := rt.applyImport(st, params, importer.Options{
				Prefix: target.Prefix,
				Policy: policy,
				DryRun: dryRun,
			}, "")
			if err != nil {
				return err
			}

			printImportReport(rt, report, "ssm:"+target.Prefix)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Parameter Store path prefix (e.g. /myapp/prod/)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (default: safe metadata, then config, then SDK chain)")
	cmd.Flags().StringVar(&merge, "merge", "overwrite", "Merge policy: replace, overwrite, skip")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without writing")
	cmd.Flags().StringVar(&plainKeys, "plain-keys", "", "Comma-separated keys to store as plain text regardless of parameter type")

	return cmd
}

func newSSMPushCommand(rt *Runtime) *cobra.Command {
	var (
		prefix string
		region string
		kmsKey string
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Write every safe entry to Parameter Store",
		Long: `Decrypt the safe and write each entry under the prefix: encrypted
entries become SecureString parameters, plain entries become String.
Existing parameters are overwritten.

Examples:
  safekit ssm push --prefix /myapp/prod/
  safekit ssm push --kms-key alias/myapp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			target, err := rt.ssmTarget(st, prefix, region)
			if err != nil {
				return err
			}

			revealed, err := rt.RevealAll(st)
			if err != nil {
				return err
			}
			if len(revealed) == 0 {
				rt.Logger.Warn("Safe is empty; nothing to push")
				return nil
			}
			entries := make([]providers.PushEntry, 0, len(revealed))
			for _, e := range revealed {
				entries = append(entries, providers.PushEntry{
					Key:       e.Key,
					Value:     e.Value,
					Encrypted: e.Kind == safe.KindEncrypted,
				})
			}

			ctx := context.Background()
			opts := []providers.SSMOption{}
			if kmsKey != "" {
				opts = append(opts, providers.WithKMSKey(kmsKey))
			}
			source, err := providers.NewSSMSource(ctx, providers.ClientConfig{Region: target.Region}, rt.Logger, opts...)
			if err != nil {
				return err
			}

			n, err := source.Push(ctx, target.Prefix, entries)
			if err != nil {
				rt.Logger.Error("Pushed %d of %d parameters before failing", n, len(entries))
				return err
			}
			rt.Logger.Info("Pushed %d parameters to %s", n, target.Prefix)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Parameter Store path prefix (e.g. /myapp/prod/)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (default: safe metadata, then config, then SDK chain)")
	cmd.Flags().StringVar(&kmsKey, "kms-key", "", "KMS key ID or alias for SecureString parameters")

	return cmd
}

func newSSMWhoamiCommand(rt *Runtime) *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the AWS identity behind the credential chain",
		Long: `Resolve the caller identity the AWS SDK would use for pull and push.
Run it when access errors make you wonder which account or role you
are actually talking to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			checker, err := providers.NewIdentityChecker(ctx, providers.ClientConfig{Region: region}, rt.Logger)
			if err != nil {
				return err
			}
			identity, err := checker.Whoami(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Account:\t%s\n", identity.Account)
			fmt.Fprintf(w, "ARN:\t%s\n", identity.ARN)
			fmt.Fprintf(w, "User ID:\t%s\n", identity.UserID)
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "AWS region (default: SDK chain)")

	return cmd
}

// ssmTargetSpec is the resolved prefix and region for one SSM call.
type ssmTargetSpec struct {
	Prefix string
	Region string
}

// ssmTarget resolves the Parameter Store prefix and region: flag first,
// then the safe's recorded metadata, then the project file.
func (rt *Runtime) ssmTarget(st *store.Store, prefixFlag, regionFlag string) (ssmTargetSpec, error) {
	doc := st.Document()
	project, err := rt.Project()
	if err != nil {
		return ssmTargetSpec{}, err
	}

	prefix := prefixFlag
	if prefix == "" {
		prefix = doc.SSMPrefix
	}
	if prefix == "" {
		prefix = project.SSM.Prefix
	}
	if prefix == "" {
		return ssmTargetSpec{}, skerrors.UserError{
			Message:    "No Parameter Store prefix configured",
			Suggestion: "Pass --prefix /myapp/env/, or set ssm.prefix in .safekit.yaml",
		}
	}

	region := regionFlag
	if region == "" {
		region = doc.SSMRegion
	}
	if region == "" {
		region = project.SSM.Region
	}
	return ssmTargetSpec{Prefix: prefix, Region: region}, nil
}
