package commands

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/render"
)

func NewEnvCommand(rt *Runtime) *cobra.Command {
	var (
		shellName  string
		exportFile string
	)

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print shell export lines for the decrypted safe",
		Long: `Decrypt the safe and print one export line per entry, quoted for the
target shell. Without --shell the dialect is detected from $SHELL.

Examples:
  eval "$(safekit env)"
  safekit env --shell fish | source
  safekit env --export-file ./secrets.env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var shell render.Shell
			if shellName != "" {
				parsed, err := render.ParseShell(shellName)
				if err != nil {
					return err
				}
				shell = parsed
			} else {
				shell = render.DetectShell(nil)
			}
			renderer := render.NewShell(shell, rt.Logger)

			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			entries, err := rt.RevealAll(st)
			if err != nil {
				return err
			}

			if exportFile == "" {
				return renderer.Render(os.Stdout, entries)
			}

			var buf bytes.Buffer
			if err := renderer.Render(&buf, entries); err != nil {
				return err
			}
			if err := os.WriteFile(exportFile, buf.Bytes(), 0600); err != nil {
				return skerrors.IOError{Op: "write", Path: exportFile, Err: err}
			}
			rt.Logger.Warn("Wrote decrypted values to %s; delete it when you are done", exportFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&shellName, "shell", "", "Shell dialect: sh, bash, zsh, fish, csh, nu, powershell, cmd")
	cmd.Flags().StringVar(&exportFile, "export-file", "", "Write the export lines to a file instead of stdout")

	return cmd
}
