package keycache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	skerrors "github.com/systmms/safekit/internal/errors"
)

// FileCache implements Cache using one <identifier>.key file per safe
// under a base directory outside any project tree.
type FileCache struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileCache creates a file-based key cache rooted at baseDir, or the
// default cache directory when baseDir is empty. The directory is
// created lazily on the first Remember.
func NewFileCache(baseDir string) *FileCache {
	if baseDir == "" {
		baseDir = DefaultCacheDir()
	}
	return &FileCache{
		baseDir: baseDir,
	}
}

// DefaultCacheDir returns the default key cache directory
func DefaultCacheDir() string {
	// Check for test environment variable first
	if testDir := os.Getenv("SAFEKIT_KEY_DIR"); testDir != "" {
		return testDir
	}

	// Try to use XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "safekit", "keys")
	}

	// Fall back to ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "safekit", "keys")
	}

	// Last resort: use temp directory
	return filepath.Join(os.TempDir(), "safekit", "keys")
}

// Dir returns the cache root directory.
func (c *FileCache) Dir() string {
	return c.baseDir
}

// Remember writes the password for identifier with owner-only
// permissions, re-applying them even when the directory or file already
// existed.
func (c *FileCache) Remember(identifier, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.baseDir, 0700); err != nil {
		return skerrors.IOError{Op: "create key cache directory", Path: c.baseDir, Err: err}
	}
	// MkdirAll leaves pre-existing directories with their old mode
	if err := os.Chmod(c.baseDir, 0700); err != nil {
		return skerrors.IOError{Op: "chmod", Path: c.baseDir, Err: err}
	}

	path := c.keyPath(identifier)
	if err := os.WriteFile(path, []byte(password), 0600); err != nil {
		return skerrors.IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Chmod(path, 0600); err != nil {
		return skerrors.IOError{Op: "chmod", Path: path, Err: err}
	}
	return nil
}

// Lookup reads the cached password for identifier and refreshes the
// file's modification time so age-based cleanup tracks last use.
func (c *FileCache) Lookup(identifier string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.keyPath(identifier)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", skerrors.NotFoundError{Kind: "cached key", Name: identifier}
		}
		return "", skerrors.IOError{Op: "read", Path: path, Err: err}
	}

	// Best effort; a read-only cache still serves lookups
	now := time.Now()
	_ = os.Chtimes(path, now, now)

	return strings.TrimSpace(string(data)), nil
}

// Forget removes the cached password for identifier.
func (c *FileCache) Forget(identifier string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.keyPath(identifier)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return skerrors.NotFoundError{Kind: "cached key", Name: identifier}
		}
		return skerrors.IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// List enumerates cached keys, newest first. A missing cache directory
// is an empty cache, not an error.
func (c *FileCache) List() ([]CachedKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, skerrors.IOError{Op: "read", Path: c.baseDir, Err: err}
	}

	now := time.Now()
	var keys []CachedKey
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".key" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // entry vanished between ReadDir and Info
		}
		keys = append(keys, CachedKey{
			Identifier: strings.TrimSuffix(entry.Name(), ".key"),
			ModTime:    info.ModTime(),
			Age:        now.Sub(info.ModTime()),
		})
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].ModTime.After(keys[j].ModTime)
	})
	return keys, nil
}

// Cleanup removes cached keys older than olderThan and returns them.
// With dryRun set it only reports what would be removed.
func (c *FileCache) Cleanup(olderThan time.Duration, dryRun bool) ([]CachedKey, error) {
	keys, err := c.List()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var affected []CachedKey
	for _, key := range keys {
		if key.Age < olderThan {
			continue
		}
		if !dryRun {
			path := c.keyPath(key.Identifier)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return affected, skerrors.IOError{Op: "remove", Path: path, Err: err}
			}
		}
		affected = append(affected, key)
	}
	return affected, nil
}

func (c *FileCache) keyPath(identifier string) string {
	return filepath.Join(c.baseDir, sanitizeFilename(identifier)+".key")
}

// sanitizeFilename replaces characters that might be problematic in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}

// Ensure FileCache implements Cache
var _ Cache = (*FileCache)(nil)
