package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/safekit/internal/probe"
	"github.com/systmms/safekit/internal/safe"
)

func NewCheckCommand(rt *Runtime) *cobra.Command {
	var (
		dsnKind string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check KEY",
		Short: "Verify a stored database credential by connecting with it",
		Long: `Treat the entry's value as a database DSN, connect, ping, and run a
trivial query. A rotated-away password is caught here instead of in
the next deploy.

The DSN kind is guessed from its shape (postgres://, mysql://,
user:pass@tcp(...)); pass --dsn-kind when the guess fails.

Examples:
  safekit check DATABASE_URL
  safekit check MYSQL_DSN --dsn-kind mysql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			kind, err := probe.ParseKind(dsnKind)
			if err != nil {
				return err
			}

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			entry, ok := st.Document().Get(key)
			if !ok {
				return keyNotFound(st, key)
			}

			var dsn string
			if entry.Kind == safe.KindPlain {
				dsn = entry.Value
			} else {
				cred, err := rt.Authenticate(st, "")
				if err != nil {
					return err
				}
				defer cred.Destroy()
				err = cred.WithPassword(func(password []byte) error {
					value, err := st.Reveal(key, password)
					if err != nil {
						return err
					}
					dsn = value
					return nil
				})
				if err != nil {
					return err
				}
			}

			prober := probe.New(rt.Logger, probe.WithTimeout(timeout))
			result, err := prober.Probe(context.Background(), dsn, kind)
			if err != nil {
				return err
			}

			rt.Logger.Info("%s credential %s verified in %s",
				result.Kind, key, result.Latency.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&dsnKind, "dsn-kind", "auto", "DSN kind: auto, postgres, mysql")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Connection and query timeout")

	return cmd
}
