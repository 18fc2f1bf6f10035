package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	skerrors "github.com/systmms/safekit/internal/errors"
)

// Shell names a shell dialect for export-line syntax.
type Shell string

const (
	ShellSh         Shell = "sh"
	ShellBash       Shell = "bash"
	ShellZsh        Shell = "zsh"
	ShellKsh        Shell = "ksh"
	ShellFish       Shell = "fish"
	ShellCsh        Shell = "csh"
	ShellTcsh       Shell = "tcsh"
	ShellNu         Shell = "nu"
	ShellPowerShell Shell = "powershell"
	ShellCmd        Shell = "cmd"
)

// ParseShell maps a --shell flag value or $SHELL basename to a Shell.
func ParseShell(s string) (Shell, error) {
	switch strings.ToLower(s) {
	case "sh":
		return ShellSh, nil
	case "bash":
		return ShellBash, nil
	case "zsh":
		return ShellZsh, nil
	case "ksh":
		return ShellKsh, nil
	case "fish":
		return ShellFish, nil
	case "csh":
		return ShellCsh, nil
	case "tcsh":
		return ShellTcsh, nil
	case "nu", "nushell":
		return ShellNu, nil
	case "powershell", "pwsh":
		return ShellPowerShell, nil
	case "cmd":
		return ShellCmd, nil
	default:
		return "", skerrors.ValidationError{
			Field:   "shell",
			Message: fmt.Sprintf("unknown shell '%s'", s),
		}
	}
}

// DetectShell picks the dialect for export output. Shell version
// variables identify the running shell even when $SHELL names the
// login shell; $SHELL's basename is the fallback, then plain sh.
func DetectShell(getenv func(string) string) Shell {
	if getenv == nil {
		getenv = os.Getenv
	}

	switch {
	case getenv("BASH_VERSION") != "":
		return ShellBash
	case getenv("ZSH_VERSION") != "":
		return ShellZsh
	case getenv("FISH_VERSION") != "":
		return ShellFish
	case getenv("NU_VERSION") != "":
		return ShellNu
	}

	if path := getenv("SHELL"); path != "" {
		if shell, err := ParseShell(filepath.Base(path)); err == nil {
			return shell
		}
	}
	return ShellSh
}

// ExportLine renders one KEY=value assignment in the shell's dialect.
func ExportLine(shell Shell, key, value string) string {
	switch shell {
	case ShellFish:
		return fmt.Sprintf("set -x %s %s", key, Quote(value))
	case ShellPowerShell:
		return fmt.Sprintf("$env:%s = %s", key, Quote(value))
	case ShellCmd:
		// cmd has no POSIX quoting; values pass through verbatim
		return fmt.Sprintf("set %s=%s", key, value)
	case ShellCsh, ShellTcsh:
		return fmt.Sprintf("setenv %s %s", key, Quote(value))
	case ShellNu:
		return fmt.Sprintf("let-env %s = %s", key, Quote(value))
	default:
		return fmt.Sprintf("export %s=%s", key, Quote(value))
	}
}

const shellMetaChars = " \t\n\r\"'\\$`()[]{}|&;<>*?~"

// Quote single-quotes a value when it contains shell metacharacters.
// Embedded single quotes are spliced with the '"'"' idiom so the
// result survives sourcing in POSIX shells.
func Quote(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, shellMetaChars) {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
