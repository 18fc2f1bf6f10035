package commands

import (
	"github.com/spf13/cobra"
)

func NewRmCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm KEY",
		Short: "Remove an entry",
		Long: `Remove one entry from the safe. Removal authenticates first so a
stray command cannot silently strip a protected safe.

Examples:
  safekit rm OLD_TOKEN`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			if !st.Document().Has(key) {
				return keyNotFound(st, key)
			}

			cred, err := rt.Authenticate(st, "")
			if err != nil {
				return err
			}
			defer cred.Destroy()

			st.Document().Remove(key)
			if err := st.Save(); err != nil {
				return err
			}
			rt.Logger.Info("Removed %s", key)
			return nil
		},
	}

	return cmd
}
