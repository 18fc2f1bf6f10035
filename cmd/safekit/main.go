package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/safekit/cmd/safekit/commands"
	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		var exit commands.ExitCodeError
		if errors.As(err, &exit) {
			// The wrapped command already wrote its own output.
			os.Exit(exit.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", skerrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		safeName       string
		configFile     string
		key            string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	// Shared runtime, filled in once flags are parsed
	rt := &commands.Runtime{}

	rootCmd := &cobra.Command{
		Use:   "safekit",
		Short: "Encrypted .env files you can commit - secrets safe at rest",
		Long: `safekit keeps project secrets in an encrypted file that lives in the
repository. Entries are encrypted one by one under a safe password, so
the file diffs cleanly and plain config stays readable. Decrypt on
demand into env files, process environments, or AWS Parameter Store.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			rt.Logger = logger
			rt.SafeFlag = safeName
			rt.ConfigPath = configFile
			rt.Key = key
			rt.NonInteractive = nonInteractive
		},
		// Errors are printed once in main; exec passes exit codes through.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVarP(&safeName, "safe", "s", "", "Safe name or path (default: config, then .env.safe)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: .safekit.yaml)")
	rootCmd.PersistentFlags().StringVar(&key, "key", "", "Safe password (prefer SAFEKIT_KEY or the key cache)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt; fail instead")

	// Add commands
	rootCmd.AddCommand(
		commands.NewInitCommand(rt),
		commands.NewSetCommand(rt),
		commands.NewGetCommand(rt),
		commands.NewLsCommand(rt),
		commands.NewRmCommand(rt),
		commands.NewPrintCommand(rt),
		commands.NewEnvCommand(rt),
		commands.NewExecCommand(rt),
		commands.NewStatusCommand(rt),
		commands.NewRotateCommand(rt),
		commands.NewCopyCommand(rt),
		commands.NewImportCommand(rt),
		commands.NewSSMCommand(rt),
		commands.NewSMCommand(rt),
		commands.NewCheckCommand(rt),
		commands.NewRememberCommand(rt),
		commands.NewForgetCommand(rt),
		commands.NewKeysCommand(rt),
		commands.NewCleanupKeysCommand(rt),
		commands.NewDoctorCommand(rt),
		commands.NewCompletionCommand(rt),
	)

	return rootCmd.Execute()
}
