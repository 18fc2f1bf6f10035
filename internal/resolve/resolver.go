// Package resolve turns the various places a safe password can come from
// into a single verified credential.
//
// The precedence chain is fixed: an explicitly supplied password wins,
// then the SAFEKIT_KEY environment variable, then the key cache, then an
// interactive prompt. A wrong password from any non-interactive source is
// a hard authentication failure rather than a reason to try the next
// source, so a stale cached key or a misconfigured CI secret surfaces
// immediately instead of triggering a surprise prompt.
package resolve

import (
	"errors"
	"fmt"
	"os"

	"github.com/systmms/safekit/internal/crypto"
	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/keycache"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/secure"
)

// EnvPasswordVar is the environment variable consulted when no explicit
// password is supplied.
const EnvPasswordVar = "SAFEKIT_KEY"

// PromptFunc asks the user for a password. The CLI wires in a terminal
// prompt; tests wire in a stub.
type PromptFunc func(message string) (string, error)

// Source identifies where a resolved password came from.
type Source int

const (
	SourceExplicit Source = iota
	SourceEnvironment
	SourceCache
	SourcePrompt
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "explicit"
	case SourceEnvironment:
		return "environment"
	case SourceCache:
		return "key cache"
	case SourcePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}

// Credential is a password that has been verified against a safe's
// password hash. The plaintext lives in a secure enclave and is only
// exposed through WithPassword.
type Credential struct {
	Source Source

	buffer *secure.SecureBuffer
}

// WithPassword invokes fn with the plaintext password. The unlocked copy
// is wiped when fn returns.
func (c *Credential) WithPassword(fn func(password []byte) error) error {
	return c.buffer.WithBytes(fn)
}

// Destroy wipes the credential. Safe to call more than once.
func (c *Credential) Destroy() {
	if c.buffer != nil {
		c.buffer.Destroy()
	}
}

// Options carries the per-invocation inputs to Resolve.
type Options struct {
	// Explicit is a password supplied directly by the caller, typically
	// from a --key flag. When set it is the only candidate considered.
	Explicit string

	// NonInteractive disables the prompt fallback. When every earlier
	// source comes up empty, Resolve fails instead of blocking on input.
	NonInteractive bool

	// PromptMessage overrides the default prompt text.
	PromptMessage string
}

// Resolver walks the password precedence chain for a safe.
type Resolver struct {
	cache  keycache.Cache
	engine *crypto.Engine
	prompt PromptFunc
	logger *logging.Logger
	getenv func(string) string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithEnvLookup replaces the process environment lookup, which lets tests
// run hermetically.
func WithEnvLookup(lookup func(string) string) Option {
	return func(r *Resolver) {
		r.getenv = lookup
	}
}

// New creates a Resolver. cache may be nil when no key cache is
// configured; prompt may be nil when the caller never wants interactive
// input.
func New(cache keycache.Cache, engine *crypto.Engine, prompt PromptFunc, logger *logging.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		cache:  cache,
		engine: engine,
		prompt: prompt,
		logger: logger,
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds and verifies the password for doc. Explicit, environment,
// and cached candidates that fail verification stop the chain with an
// authentication error; only the absence of a candidate moves resolution
// to the next source.
func (r *Resolver) Resolve(doc *safe.Document, opts Options) (*Credential, error) {
	if doc.PasswordHash == "" {
		return nil, skerrors.AuthError{Reason: "safe has no password hash to verify against"}
	}

	if opts.Explicit != "" {
		r.logger.Debug("Verifying explicitly supplied password")
		if !r.engine.VerifyPassword([]byte(opts.Explicit), doc.PasswordHash) {
			return nil, skerrors.AuthError{Reason: "incorrect password"}
		}
		return newCredential(opts.Explicit, SourceExplicit)
	}

	if password := r.getenv(EnvPasswordVar); password != "" {
		if !r.engine.VerifyPassword([]byte(password), doc.PasswordHash) {
			return nil, skerrors.AuthError{Reason: fmt.Sprintf("password from %s is incorrect", EnvPasswordVar)}
		}
		r.logger.Info("Using safe key from environment")
		return newCredential(password, SourceEnvironment)
	}

	if r.cache != nil {
		password, err := r.cache.Lookup(doc.Identifier)
		switch {
		case err == nil:
			if !r.engine.VerifyPassword([]byte(password), doc.PasswordHash) {
				return nil, skerrors.AuthError{Reason: "cached key does not match this safe"}
			}
			r.logger.Info("Using saved safe key")
			return newCredential(password, SourceCache)
		case !isNotFound(err):
			return nil, err
		}
		r.logger.Debug("No cached key for safe %s", doc.Identifier)
	}

	if opts.NonInteractive || r.prompt == nil {
		return nil, skerrors.AuthError{Reason: "no password available and prompting is disabled"}
	}

	message := opts.PromptMessage
	if message == "" {
		message = "Enter safe password"
	}
	password, err := r.prompt(message)
	if err != nil {
		return nil, err
	}
	if !r.engine.VerifyPassword([]byte(password), doc.PasswordHash) {
		return nil, skerrors.AuthError{Reason: "incorrect password"}
	}
	return newCredential(password, SourcePrompt)
}

func newCredential(password string, source Source) (*Credential, error) {
	buf, err := secure.NewSecureBuffer([]byte(password))
	if err != nil {
		return nil, err
	}
	return &Credential{Source: source, buffer: buf}, nil
}

func isNotFound(err error) bool {
	var notFound skerrors.NotFoundError
	return errors.As(err, &notFound)
}
