package keycache

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/zalando/go-keyring"

	skerrors "github.com/systmms/safekit/internal/errors"
)

// keyringService namespaces safekit entries in the OS credential store.
const keyringService = "safekit"

// KeyringCache implements Cache on top of the operating system keyring:
// Secret Service on Linux, Keychain on macOS, Credential Manager on
// Windows. The OS enforces access control, so there are no file
// permissions to manage.
type KeyringCache struct{}

// NewKeyringCache creates a keyring-backed key cache.
func NewKeyringCache() *KeyringCache {
	return &KeyringCache{}
}

// Remember stores the password for identifier in the system keyring.
func (c *KeyringCache) Remember(identifier, password string) error {
	if err := keyring.Set(keyringService, identifier, password); err != nil {
		return fmt.Errorf("storing key in system keyring: %w", err)
	}
	return nil
}

// Lookup retrieves the password for identifier from the system keyring.
func (c *KeyringCache) Lookup(identifier string) (string, error) {
	password, err := keyring.Get(keyringService, identifier)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", skerrors.NotFoundError{Kind: "cached key", Name: identifier}
		}
		return "", fmt.Errorf("querying system keyring: %w", err)
	}
	return password, nil
}

// Forget removes the password for identifier from the system keyring.
func (c *KeyringCache) Forget(identifier string) error {
	if err := keyring.Delete(keyringService, identifier); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return skerrors.NotFoundError{Kind: "cached key", Name: identifier}
		}
		return fmt.Errorf("removing key from system keyring: %w", err)
	}
	return nil
}

// List returns an empty list: go-keyring exposes no per-service
// enumeration, so age-based maintenance only applies to the file backend.
func (c *KeyringCache) List() ([]CachedKey, error) {
	return nil, nil
}

// KeyringAvailable reports whether a usable system keyring is likely
// present. Headless Linux sessions rarely run a Secret Service daemon.
func KeyringAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		if os.Getenv("CI") != "" {
			return false
		}
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return false
		}
		return true
	default:
		return false
	}
}

// Ensure KeyringCache implements Cache
var _ Cache = (*KeyringCache)(nil)
