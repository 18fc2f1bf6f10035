// Package rotation re-encrypts a safe under a new password in one
// atomic step. The engine walks a fixed sequence: verify the old
// password, decrypt every encrypted entry into memory, accept a new
// password, re-encrypt everything with fresh salts, then hand the
// document to the store for a single save. Nothing reaches disk or the
// key cache until the whole safe has been re-encrypted.
package rotation

import (
	"errors"
	"fmt"

	"github.com/systmms/safekit/internal/crypto"
	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/keycache"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/store"
	"github.com/systmms/safekit/internal/validation"
)

// State tracks progress through the rotation sequence.
type State string

const (
	StateAwaitOldPassword State = "await-old-password" // nothing verified yet
	StateVerified         State = "verified"           // old password accepted, decryption in progress
	StateAwaitNewPassword State = "await-new-password" // all entries decrypted in memory
	StateCommitted        State = "committed"          // re-encrypted safe written to disk
)

// Result summarizes a committed rotation.
type Result struct {
	Identifier       string
	Rotated          int // encrypted entries re-encrypted under the new password
	Plain            int // plain entries carried over untouched
	CacheInvalidated bool
}

type decryptedEntry struct {
	key   string
	value []byte
}

// Engine performs one rotation for one safe.
type Engine struct {
	store  *store.Store
	crypto *crypto.Engine
	cache  keycache.Cache
	logger *logging.Logger

	state     State
	decrypted []decryptedEntry
}

// New creates a rotation engine for the safe held by st. cache may be
// nil when no key cache is configured.
func New(st *store.Store, engine *crypto.Engine, cache keycache.Cache, logger *logging.Logger) *Engine {
	return &Engine{
		store:  st,
		crypto: engine,
		cache:  cache,
		logger: logger,
		state:  StateAwaitOldPassword,
	}
}

// State returns the engine's position in the rotation sequence.
func (e *Engine) State() State {
	return e.state
}

// Begin verifies the old password and decrypts every encrypted entry
// into memory. A wrong password or an undecryptable entry aborts and
// returns the engine to its initial state with all plaintext wiped.
func (e *Engine) Begin(oldPassword []byte) error {
	if e.state != StateAwaitOldPassword {
		return fmt.Errorf("rotation already begun (state %s)", e.state)
	}

	doc := e.store.Document()
	if doc.PasswordHash == "" {
		return skerrors.AuthError{Reason: "safe has no password hash to verify against"}
	}
	if !e.crypto.VerifyPassword(oldPassword, doc.PasswordHash) {
		return skerrors.AuthError{Reason: "old password is incorrect"}
	}
	e.state = StateVerified
	e.logger.Debug("Old password verified for safe %s", doc.Identifier)

	for _, entry := range doc.Entries() {
		if entry.Kind != safe.KindEncrypted {
			continue
		}
		plaintext, err := e.crypto.DecryptValue(oldPassword, entry.Salt, entry.Ciphertext)
		if err != nil {
			e.discard()
			return err
		}
		e.decrypted = append(e.decrypted, decryptedEntry{key: entry.Key, value: plaintext})
	}

	e.state = StateAwaitNewPassword
	e.logger.Debug("Decrypted %d entries for rotation", len(e.decrypted))
	return nil
}

// Commit re-encrypts everything under newPassword, recomputes the
// password hash, and saves the document once. On success the key cache
// entry for this safe is invalidated, since any cached password is now
// stale. A failed commit leaves disk and cache untouched and the engine
// ready to retry.
func (e *Engine) Commit(newPassword []byte) (*Result, error) {
	if e.state != StateAwaitNewPassword {
		return nil, fmt.Errorf("rotation not ready to commit (state %s)", e.state)
	}
	if err := validation.ValidatePassword(string(newPassword)); err != nil {
		return nil, err
	}

	hash, err := e.crypto.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	doc := e.store.Document()
	for _, d := range e.decrypted {
		salt, ciphertext, err := e.crypto.EncryptValue(newPassword, d.value)
		if err != nil {
			return nil, err
		}
		if err := doc.SetEncrypted(d.key, salt, ciphertext); err != nil {
			return nil, err
		}
	}
	doc.PasswordHash = hash

	if err := e.store.Save(); err != nil {
		return nil, err
	}
	e.state = StateCommitted

	result := &Result{Identifier: doc.Identifier, Rotated: len(e.decrypted)}
	result.Plain, _ = doc.Counts()
	e.wipe()

	if e.cache != nil {
		var notFound skerrors.NotFoundError
		switch err := e.cache.Forget(doc.Identifier); {
		case err == nil:
			result.CacheInvalidated = true
			e.logger.Debug("Invalidated cached key for %s", doc.Identifier)
		case errors.As(err, &notFound):
			// nothing cached for this safe
		default:
			e.logger.Warn("Could not invalidate cached key for %s: %v", doc.Identifier, err)
		}
	}

	e.logger.Info("Rotated %d encrypted entries", result.Rotated)
	return result, nil
}

// discard wipes decrypted plaintext and rewinds to the initial state.
func (e *Engine) discard() {
	e.wipe()
	e.state = StateAwaitOldPassword
}

func (e *Engine) wipe() {
	for _, d := range e.decrypted {
		for i := range d.value {
			d.value[i] = 0
		}
	}
	e.decrypted = nil
}
