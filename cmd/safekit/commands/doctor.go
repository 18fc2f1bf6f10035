package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/safekit/internal/config"
	"github.com/systmms/safekit/internal/keycache"
	"github.com/systmms/safekit/internal/permissions"
	"github.com/systmms/safekit/internal/providers"
	"github.com/systmms/safekit/internal/store"
)

func NewDoctorCommand(rt *Runtime) *cobra.Command {
	var (
		fix     bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the safe, key cache, config, and AWS access",
		Long: `Verify that the environment is healthy.

This command checks:
- The safe file exists, parses, and is owner-only
- The key cache backend is usable and its directory is owner-only
- The config file (if present) passes schema validation
- The AWS credential chain, when the safe carries SSM metadata

Use --fix to tighten loose file permissions in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := runDoctorChecks(rt, fix)
			displayCheckResults(results, verbose)

			ok, warns, fails := 0, 0, 0
			for _, r := range results {
				switch r.Status {
				case checkOK:
					ok++
				case checkWarn:
					warns++
				case checkFail:
					fails++
				}
			}

			fmt.Printf("\nSummary: %d ok, %d warnings, %d failures\n", ok, warns, fails)
			if fails > 0 {
				return fmt.Errorf("%d checks failed", fails)
			}
			rt.Logger.Info("Environment is healthy")
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Tighten loose file permissions")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")

	return cmd
}

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

// checkResult is one row of doctor output.
type checkResult struct {
	Name       string
	Status     checkStatus
	Message    string
	Suggestion string
}

func runDoctorChecks(rt *Runtime, fix bool) []checkResult {
	results := make([]checkResult, 0, 6)
	checker := permissions.New(rt.Logger)

	// Safe file: exists, parses, stays owner-only.
	safePath, err := rt.SafePath()
	if err != nil {
		results = append(results, checkResult{
			Name: "safe file", Status: checkFail, Message: err.Error(),
		})
		return results
	}

	var st *store.Store
	if _, err := os.Stat(safePath); errors.Is(err, fs.ErrNotExist) {
		results = append(results, checkResult{
			Name:       "safe file",
			Status:     checkFail,
			Message:    fmt.Sprintf("no safe at %s", safePath),
			Suggestion: "Run 'safekit init' to create one",
		})
	} else {
		engine, err := rt.Crypto()
		if err == nil {
			st, err = store.Open(safePath, engine, rt.Logger)
		}
		if err != nil {
			results = append(results, checkResult{
				Name:       "safe file",
				Status:     checkFail,
				Message:    err.Error(),
				Suggestion: "The safe may be corrupt; restore it from version control",
			})
		} else {
			p := st.Projection()
			results = append(results, checkResult{
				Name:    "safe file",
				Status:  checkOK,
				Message: fmt.Sprintf("%s (%d entries)", safePath, p.Total),
			})
			results = append(results, permissionCheck(checker, "safe permissions", safePath, false, fix))
		}
	}

	// Key cache backend.
	project, err := rt.Project()
	if err != nil {
		results = append(results, checkResult{
			Name: "config file", Status: checkFail, Message: err.Error(),
			Suggestion: "Fix or remove " + configPathOf(rt),
		})
		return results
	}
	if project.Keyring == "system" {
		if keycache.KeyringAvailable() {
			results = append(results, checkResult{
				Name: "key cache", Status: checkOK, Message: "system keyring available",
			})
		} else {
			results = append(results, checkResult{
				Name:       "key cache",
				Status:     checkFail,
				Message:    "system keyring not available in this session",
				Suggestion: "Remove 'keyring: system' from " + configPathOf(rt) + " to use the file cache",
			})
		}
	} else {
		dir := keycache.NewFileCache("").Dir()
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			results = append(results, checkResult{
				Name: "key cache", Status: checkOK, Message: "empty (no cached keys)",
			})
		} else {
			results = append(results, permissionCheck(checker, "key cache", dir, true, fix))
		}
	}

	// Config file schema. Load already validated it when the project was
	// read; report the outcome so the table stays complete.
	configPath := configPathOf(rt)
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		results = append(results, checkResult{
			Name: "config file", Status: checkOK, Message: "not present (defaults apply)",
		})
	} else {
		results = append(results, checkResult{
			Name: "config file", Status: checkOK, Message: configPath + " valid",
		})
	}

	// AWS identity, only when this safe is tied to Parameter Store.
	ssmPrefix := project.SSM.Prefix
	ssmRegion := project.SSM.Region
	if st != nil {
		doc := st.Document()
		if doc.SSMPrefix != "" {
			ssmPrefix = doc.SSMPrefix
		}
		if doc.SSMRegion != "" {
			ssmRegion = doc.SSMRegion
		}
	}
	if ssmPrefix != "" {
		results = append(results, identityCheck(rt, ssmRegion))
	}

	return results
}

// permissionCheck runs one owner-only check, optionally fixing it.
func permissionCheck(checker *permissions.Checker, name, path string, isDir, fix bool) checkResult {
	var (
		result *permissions.Result
		err    error
	)
	if isDir {
		result, err = checker.CheckDir(path)
	} else {
		result, err = checker.CheckFile(path)
	}
	if err != nil {
		return checkResult{Name: name, Status: checkFail, Message: err.Error()}
	}
	if result.OK {
		return checkResult{
			Name: name, Status: checkOK,
			Message: fmt.Sprintf("%s mode %#o", path, result.Mode),
		}
	}
	if fix {
		if err := checker.Fix(result); err != nil {
			return checkResult{Name: name, Status: checkFail, Message: err.Error()}
		}
		return checkResult{
			Name: name, Status: checkOK,
			Message: fmt.Sprintf("%s tightened to %#o", path, result.Mode),
		}
	}
	return checkResult{
		Name:       name,
		Status:     checkWarn,
		Message:    result.Reason,
		Suggestion: "Re-run with --fix, or chmod it yourself",
	}
}

// identityCheck resolves the AWS caller identity the SDK chain yields.
func identityCheck(rt *Runtime, region string) checkResult {
	ctx := context.Background()
	checker, err := providers.NewIdentityChecker(ctx, providers.ClientConfig{Region: region}, rt.Logger)
	if err != nil {
		return checkResult{Name: "aws identity", Status: checkFail, Message: err.Error()}
	}
	identity, err := checker.Whoami(ctx)
	if err != nil {
		return checkResult{
			Name:       "aws identity",
			Status:     checkWarn,
			Message:    "credential chain did not resolve",
			Suggestion: "Run 'aws configure', or set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY",
		}
	}
	return checkResult{
		Name: "aws identity", Status: checkOK,
		Message: fmt.Sprintf("account %s (%s)", identity.Account, identity.ARN),
	}
}

// displayCheckResults shows doctor results in a formatted table.
func displayCheckResults(results []checkResult, verbose bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tDETAIL\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t------\n")

	for _, result := range results {
		var status string
		switch result.Status {
		case checkOK:
			status = "✓ ok"
		case checkWarn:
			status = "⚠ warn"
		case checkFail:
			status = "✗ fail"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", result.Name, status, result.Message)
	}

	_ = w.Flush()

	if verbose {
		for _, result := range results {
			if result.Status != checkOK && result.Suggestion != "" {
				fmt.Printf("\n%s:\n  • %s\n", result.Name, result.Suggestion)
			}
		}
	}
}

func configPathOf(rt *Runtime) string {
	if rt.ConfigPath != "" {
		return rt.ConfigPath
	}
	return config.DefaultPath
}
