package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/safekit/internal/safe"
)

func NewGetCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a single decrypted value",
		Long: `Print the raw value of one entry to stdout.

Plain entries never need a password. Encrypted entries authenticate
through the usual chain (--key, SAFEKIT_KEY, key cache, prompt).

Examples:
  safekit get LOG_LEVEL
  export DATABASE_URL=$(safekit get DATABASE_URL)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			entry, ok := st.Document().Get(key)
			if !ok {
				return keyNotFound(st, key)
			}

			if entry.Kind == safe.KindPlain {
				fmt.Print(entry.Value)
				return nil
			}

			cred, err := rt.Authenticate(st, "")
			if err != nil {
				return err
			}
			defer cred.Destroy()

			return cred.WithPassword(func(password []byte) error {
				value, err := st.Reveal(key, password)
				if err != nil {
					return err
				}
				fmt.Print(value)
				return nil
			})
		},
	}

	return cmd
}
