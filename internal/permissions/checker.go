// Package permissions checks that secret-bearing files stay owner-only.
// A safe file or cached key readable by group or world leaks exactly
// what the encryption is there to protect, so the doctor command and
// the key cache both run these checks.
package permissions

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
)

const (
	// FileMode is the widest acceptable mode for safes and cached keys.
	FileMode os.FileMode = 0o600
	// DirMode is the widest acceptable mode for cache directories.
	DirMode os.FileMode = 0o700
)

// Result reports one permission check.
type Result struct {
	Path   string      `json:"path"`
	Mode   os.FileMode `json:"mode"`
	Want   os.FileMode `json:"want"`
	OK     bool        `json:"ok"`
	Reason string      `json:"reason,omitempty"`
	Fixed  bool        `json:"fixed,omitempty"`
}

// Checker performs owner-only permission checks.
type Checker struct {
	logger *logging.Logger
}

// New creates a permission checker.
func New(logger *logging.Logger) *Checker {
	return &Checker{logger: logger}
}

// CheckFile verifies that path is a regular file with no group or
// world access bits.
func (c *Checker) CheckFile(path string) (*Result, error) {
	return c.check(path, FileMode, false)
}

// CheckDir verifies that path is a directory with no group or world
// access bits.
func (c *Checker) CheckDir(path string) (*Result, error) {
	return c.check(path, DirMode, true)
}

func (c *Checker) check(path string, want os.FileMode, wantDir bool) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, skerrors.NotFoundError{Kind: "file", Name: path}
		}
		return nil, skerrors.IOError{Op: "stat", Path: path, Err: err}
	}

	result := &Result{
		Path: path,
		Mode: info.Mode().Perm(),
		Want: want,
		OK:   true,
	}

	if info.IsDir() != wantDir {
		result.OK = false
		if wantDir {
			result.Reason = "expected a directory"
		} else {
			result.Reason = "expected a regular file"
		}
		return result, nil
	}

	if result.Mode&0o077 != 0 {
		result.OK = false
		result.Reason = fmt.Sprintf("group or world access bits set (mode %#o, want %#o)", result.Mode, want)
		c.logger.Warn("Loose permissions on %s: %s", path, result.Reason)
	}

	return result, nil
}

// Fix tightens a failed check to the wanted mode.
func (c *Checker) Fix(result *Result) error {
	if result.OK {
		return nil
	}
	if err := os.Chmod(result.Path, result.Want); err != nil {
		return skerrors.IOError{Op: "chmod", Path: result.Path, Err: err}
	}
	result.Mode = result.Want
	result.OK = true
	result.Fixed = true
	c.logger.Info("Tightened permissions on %s to %#o", result.Path, result.Want)
	return nil
}
