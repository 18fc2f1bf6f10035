package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/store"
)

func NewInitCommand(rt *Runtime) *cobra.Command {
	var (
		description string
		generate    bool
		remember    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new safe",
		Long: `Create a new encrypted safe file in the current directory.

The safe password protects every encrypted entry. It is never stored in
the safe itself; only an argon2id hash is kept for verification.

Examples:
  safekit init                          # create .env.safe, prompt for a password
  safekit init --safe staging           # create .staging.safe
  safekit init --generate --remember    # random password, cached for later use
  safekit init --description "API credentials for the billing service"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rt.SafePath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return skerrors.UserError{
					Message:    fmt.Sprintf("Safe already exists at %s", path),
					Suggestion: "Pick another name with --safe, or remove the existing file first",
				}
			}

			password, err := newPassword(rt, generate,
				"Enter a password for the new safe",
				"Pass --generate, --key, or set SAFEKIT_KEY",
				rt.Key, envPassword())
			if err != nil {
				return err
			}

			engine, err := rt.Crypto()
			if err != nil {
				return err
			}
			st, err := store.Create(path, description, []byte(password), engine, rt.Logger)
			if err != nil {
				return err
			}
			rt.Logger.Info("Created safe %s", path)

			if remember {
				cache, err := rt.KeyCache()
				if err != nil {
					return err
				}
				if err := cache.Remember(st.Document().Identifier, password); err != nil {
					return err
				}
				rt.Logger.Info("Password remembered for this safe")
			}

			rt.Logger.Info("Next: add entries with 'safekit set KEY'")
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Safe description stored in the metadata header")
	cmd.Flags().BoolVar(&generate, "generate", false, "Generate a random password and print it once")
	cmd.Flags().BoolVar(&remember, "remember", false, "Cache the password in the key cache")

	return cmd
}
