package commands

import (
	"context"

	"github.com/spf13/cobra"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/execenv"
)

func NewExecCommand(rt *Runtime) *cobra.Command {
	var (
		printVars    bool
		keepExisting bool
		workingDir   string
		timeout      int
	)

	cmd := &cobra.Command{
		Use:   "exec -- <command> [args...]",
		Short: "Run a command with the decrypted safe as its environment",
		Long: `Decrypt the safe and run a command with every entry injected into the
child environment. Values travel only through the environment, never
argv and never temp files, and the exit code of the child becomes the
exit code of safekit.

The command must be separated from safekit flags with '--'.

Examples:
  safekit exec -- npm start
  safekit exec -- docker compose up
  safekit exec --print -- python app.py`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return skerrors.UserError{
					Message:    "No command specified",
					Suggestion: "Use: safekit exec -- <command> [args...]",
				}
			}

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			entries, err := rt.RevealAll(st)
			if err != nil {
				return err
			}
			env := make(map[string]string, len(entries))
			for _, e := range entries {
				env[e.Key] = e.Value
			}
			rt.Logger.Debug("Resolved %d entries for the child environment", len(env))

			executor := execenv.New(rt.Logger)
			code, err := executor.Run(context.Background(), execenv.Options{
				Command:      args,
				Env:          env,
				KeepExisting: keepExisting,
				PrintVars:    printVars,
				WorkingDir:   workingDir,
				Timeout:      timeout,
			})
			if err != nil {
				return err
			}
			if code != 0 {
				return ExitCodeError{Code: code}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&printVars, "print", false, "Print the injected variable names (values masked)")
	cmd.Flags().BoolVar(&keepExisting, "keep-existing", false, "Let existing environment variables win over safe entries")
	cmd.Flags().StringVar(&workingDir, "working-dir", "", "Working directory for the command")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Command timeout in seconds (0 for no timeout)")

	return cmd
}
