// Package keycache persists safe passwords outside the project tree so
// authenticated operations can run without prompting. Each cached key is
// addressed by the safe's immutable identifier; possessing a readable
// cache entry is equivalent to possessing the password, so permissions
// are enforced when entries are created, never assumed.
package keycache

import "time"

// CachedKey describes one remembered password without exposing it.
type CachedKey struct {
	Identifier string
	ModTime    time.Time
	Age        time.Duration
}

// Cache stores and retrieves safe passwords by identifier.
type Cache interface {
	// Remember persists the password for a safe identifier.
	Remember(identifier, password string) error
	// Lookup returns the cached password, or a NotFoundError.
	Lookup(identifier string) (string, error)
	// Forget removes the cached password, or returns a NotFoundError.
	Forget(identifier string) error
	// List enumerates cached keys with their ages, newest first.
	// Backends that cannot enumerate return an empty list.
	List() ([]CachedKey, error)
}
