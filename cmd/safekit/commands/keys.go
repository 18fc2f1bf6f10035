package commands

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/keycache"
)

func NewRememberCommand(rt *Runtime) *cobra.Command {
	var useKeyring bool

	cmd := &cobra.Command{
		Use:   "remember",
		Short: "Cache the safe password for later commands",
		Long: `Verify the safe password and store it in the key cache, so commands
on this safe stop prompting. The password comes from --key, SAFEKIT_KEY,
or a prompt, and is checked against the safe before it is cached.

Examples:
  safekit remember
  safekit remember --keyring`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rt.OpenStore()
			if err != nil {
				return err
			}

			cred, err := rt.Authenticate(st, "Enter safe password to remember")
			if err != nil {
				return err
			}
			defer cred.Destroy()

			backend := ""
			if useKeyring {
				backend = "system"
			}
			cache, err := rt.keyCacheFor(backend)
			if err != nil {
				return err
			}

			identifier := st.Document().Identifier
			err = cred.WithPassword(func(password []byte) error {
				return cache.Remember(identifier, string(password))
			})
			if err != nil {
				return err
			}

			if _, ok := cache.(*keycache.KeyringCache); ok {
				rt.Logger.Info("Remembered key for this safe in the system keyring")
			} else {
				rt.Logger.Info("Remembered key for this safe in the key cache")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "Store in the system keyring instead of the configured backend")

	return cmd
}

func NewForgetCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Remove this safe's cached password",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			cache, err := rt.KeyCache()
			if err != nil {
				return err
			}

			identifier := st.Document().Identifier
			if err := cache.Forget(identifier); err != nil {
				var notFound skerrors.NotFoundError
				if errors.As(err, &notFound) {
					rt.Logger.Info("No cached key for this safe")
					return nil
				}
				return err
			}

			rt.Logger.Info("Forgot cached key for this safe")
			return nil
		},
	}

	return cmd
}

func NewKeysCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect the key cache",
	}

	cmd.AddCommand(newKeysListCommand(rt))
	return cmd
}

func newKeysListCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached safe passwords by identifier and age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := rt.KeyCache()
			if err != nil {
				return err
			}
			if _, ok := cache.(*keycache.KeyringCache); ok {
				fmt.Println("The system keyring does not support listing entries.")
				return nil
			}

			keys, err := cache.List()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Println("No cached keys.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTIFIER\tAGE")
			fmt.Fprintln(w, "----------\t---")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\n", k.Identifier, formatAge(k.Age))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d cached keys\n", len(keys))
			return nil
		},
	}

	return cmd
}

func NewCleanupKeysCommand(rt *Runtime) *cobra.Command {
	var (
		olderThanDays int
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup-keys",
		Short: "Remove cached passwords older than a cutoff",
		Long: `Delete cached keys whose file is older than the cutoff. Only the
file-backed cache supports this; the system keyring has no entry ages.

Examples:
  safekit cleanup-keys --older-than-days 30 --dry-run
  safekit cleanup-keys --older-than-days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThanDays <= 0 {
				return skerrors.ValidationError{
					Field:   "older-than-days",
					Message: "must be a positive number of days",
				}
			}

			cache, err := rt.KeyCache()
			if err != nil {
				return err
			}
			fc, ok := cache.(*keycache.FileCache)
			if !ok {
				return skerrors.UserError{
					Message:    "The system keyring does not support age-based cleanup",
					Suggestion: "Remove individual entries with 'safekit forget'",
				}
			}

			cutoff := time.Duration(olderThanDays) * 24 * time.Hour
			removed, err := fc.Cleanup(cutoff, dryRun)
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				rt.Logger.Info("No cached keys older than %d days", olderThanDays)
				return nil
			}

			if dryRun {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "IDENTIFIER\tAGE")
				fmt.Fprintln(w, "----------\t---")
				for _, k := range removed {
					fmt.Fprintf(w, "%s\t%s\n", k.Identifier, formatAge(k.Age))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Printf("\nDry run: %d cached keys would be removed. Nothing deleted.\n", len(removed))
				return nil
			}

			rt.Logger.Info("Removed %d cached keys older than %d days", len(removed), olderThanDays)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "Remove keys older than this many days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without deleting")
	_ = cmd.MarkFlagRequired("older-than-days")

	return cmd
}

// formatAge renders a cache entry age the way people reason about it.
func formatAge(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}
