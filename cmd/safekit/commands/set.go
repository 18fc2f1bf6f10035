package commands

import (
	"github.com/spf13/cobra"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/validation"
)

func NewSetCommand(rt *Runtime) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "set KEY [VALUE]",
		Short: "Add or update an entry",
		Long: `Store a value under KEY. Values are encrypted unless --plain is given.

When VALUE is omitted the command prompts for it without echoing, which
keeps secrets out of your shell history.

Examples:
  safekit set API_TOKEN                # prompt for the value, store encrypted
  safekit set LOG_LEVEL debug --plain  # store as readable plain text
  safekit set DATABASE_URL 'postgres://u:p@host/db'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := validation.ValidateKey(key); err != nil {
				return err
			}

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				if rt.NonInteractive {
					return skerrors.UserError{
						Message:    "No value given for " + key,
						Suggestion: "Pass the value as the second argument in non-interactive mode",
					}
				}
				v, err := promptPassword("Enter value for " + key)
				if err != nil {
					return err
				}
				value = v
			}

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			cred, err := rt.Authenticate(st, "")
			if err != nil {
				return err
			}
			defer cred.Destroy()

			err = cred.WithPassword(func(password []byte) error {
				if plain {
					return st.Document().SetPlain(key, value)
				}
				return st.SetSecret(key, value, password)
			})
			if err != nil {
				return err
			}
			if err := st.Save(); err != nil {
				return err
			}

			if plain {
				rt.Logger.Info("Set plain entry %s", key)
			} else {
				rt.Logger.Info("Set encrypted entry %s", key)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Store the value as plain text instead of encrypting it")

	return cmd
}
