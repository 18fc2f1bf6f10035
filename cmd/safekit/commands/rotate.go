package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/safekit/internal/rotation"
)

func NewRotateCommand(rt *Runtime) *cobra.Command {
	var (
		generate bool
		remember bool
		newKey   string
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Re-encrypt the safe under a new password",
		Long: `Rotate the safe password: verify the current password, decrypt every
encrypted entry in memory, re-encrypt each under the new password with
a fresh salt, and write the safe back in one atomic save. A failure at
any point leaves the file and the key cache untouched.

The --key flag and SAFEKIT_KEY supply the current password; the new one
comes from --generate, --new-key, or a prompt. After a successful
rotation any cached password for this safe is invalidated, since it no
longer matches.

Examples:
  safekit rotate
  safekit rotate --generate --remember`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			engine, err := rt.Crypto()
			if err != nil {
				return err
			}
			cache, err := rt.KeyCache()
			if err != nil {
				rt.Logger.Warn("Key cache unavailable: %v", err)
				cache = nil
			}

			rotator := rotation.New(st, engine, cache, rt.Logger)

			cred, err := rt.Authenticate(st, "Enter current safe password")
			if err != nil {
				return err
			}
			defer cred.Destroy()

			err = cred.WithPassword(func(oldPassword []byte) error {
				return rotator.Begin(oldPassword)
			})
			if err != nil {
				return err
			}

			newPass, err := newPassword(rt, generate,
				"Enter new safe password",
				"Pass --generate or --new-key",
				newKey)
			if err != nil {
				return err
			}

			result, err := rotator.Commit([]byte(newPass))
			if err != nil {
				return err
			}
			rt.Logger.Info("Rotated %d encrypted entries (%d plain carried over)", result.Rotated, result.Plain)
			if result.CacheInvalidated {
				rt.Logger.Info("Cached password invalidated")
			}

			if remember && cache != nil {
				if err := cache.Remember(result.Identifier, newPass); err != nil {
					return err
				}
				rt.Logger.Info("New password remembered for this safe")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&generate, "generate", false, "Generate the new password and print it once")
	cmd.Flags().StringVar(&newKey, "new-key", "", "New safe password (prompted when omitted)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Cache the new password after rotating")

	return cmd
}
