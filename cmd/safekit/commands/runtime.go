// Package commands wires the safekit CLI. Each command constructor
// follows NewXCommand(rt *Runtime) and returns a cobra command whose
// RunE closure does the work; Runtime carries the parsed global flags
// and lazily built collaborators they share.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/systmms/safekit/internal/config"
	"github.com/systmms/safekit/internal/crypto"
	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/keycache"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/resolve"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/store"
	"github.com/systmms/safekit/internal/validation"
)

// Runtime is the shared state behind every command: global flag values
// filled in by the root command's PersistentPreRun, plus collaborators
// built on first use.
type Runtime struct {
	Logger         *logging.Logger
	SafeFlag       string // --safe as given; empty means not set
	ConfigPath     string
	Key            string // --key explicit password; prefer SAFEKIT_KEY
	NonInteractive bool

	project *config.File
	engine  *crypto.Engine
}

// Project loads the .safekit.yaml file once. A missing file yields
// defaults; a malformed one is an error.
func (rt *Runtime) Project() (*config.File, error) {
	if rt.project != nil {
		return rt.project, nil
	}
	path := rt.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	project, err := config.Load(path, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.project = project
	return project, nil
}

// SafePath resolves which safe file a command operates on: the --safe
// flag wins, then the project file, then the default. Bare names expand
// to hidden .safe files.
func (rt *Runtime) SafePath() (string, error) {
	if rt.SafeFlag != "" {
		return validation.NormalizeSafeName(rt.SafeFlag), nil
	}
	project, err := rt.Project()
	if err != nil {
		return "", err
	}
	if project.Safe != "" {
		return validation.NormalizeSafeName(project.Safe), nil
	}
	return validation.DefaultSafeName, nil
}

// Crypto returns the shared crypto engine.
func (rt *Runtime) Crypto() (*crypto.Engine, error) {
	if rt.engine != nil {
		return rt.engine, nil
	}
	engine, err := crypto.NewEngine()
	if err != nil {
		return nil, err
	}
	rt.engine = engine
	return engine, nil
}

// KeyCache returns the cache backend the project selects: the OS
// keyring when keyring is "system", per-user key files otherwise.
func (rt *Runtime) KeyCache() (keycache.Cache, error) {
	project, err := rt.Project()
	if err != nil {
		return nil, err
	}
	return rt.keyCacheFor(project.Keyring)
}

func (rt *Runtime) keyCacheFor(backend string) (keycache.Cache, error) {
	switch backend {
	case "system":
		if !keycache.KeyringAvailable() {
			return nil, skerrors.UserError{
				Message:    "System keyring is not available",
				Suggestion: "Use the file backend (keyring: file in .safekit.yaml) or check your desktop keyring service",
			}
		}
		return keycache.NewKeyringCache(), nil
	default:
		return keycache.NewFileCache(""), nil
	}
}

// OpenStore opens the resolved safe file.
func (rt *Runtime) OpenStore() (*store.Store, error) {
	path, err := rt.SafePath()
	if err != nil {
		return nil, err
	}
	return rt.OpenStoreAt(path)
}

// OpenStoreAt opens a specific safe file, bypassing the --safe
// resolution. Copy uses it to hold two safes open in one run.
func (rt *Runtime) OpenStoreAt(path string) (*store.Store, error) {
	engine, err := rt.Crypto()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path, engine, rt.Logger)
	if err != nil {
		var notFound skerrors.NotFoundError
		if errors.As(err, &notFound) {
			return nil, skerrors.UserError{
				Message:    fmt.Sprintf("No safe found at %s", path),
				Suggestion: "Run 'safekit init' to create one, or point --safe at an existing safe",
				Err:        err,
			}
		}
		return nil, err
	}
	return st, nil
}

// Resolver builds the password precedence chain for authenticated
// operations. Cache failures downgrade to a warning so a broken keyring
// never locks the user out of their safe.
func (rt *Runtime) Resolver() (*resolve.Resolver, error) {
	engine, err := rt.Crypto()
	if err != nil {
		return nil, err
	}
	cache, err := rt.KeyCache()
	if err != nil {
		rt.Logger.Warn("Key cache unavailable: %v", err)
		cache = nil
	}
	return resolve.New(cache, engine, promptPassword, rt.Logger), nil
}

// Authenticate resolves and verifies the password for the safe held by
// st, honoring the --key flag and the non-interactive switch. The
// caller owns the credential and must Destroy it.
func (rt *Runtime) Authenticate(st *store.Store, promptMessage string) (*resolve.Credential, error) {
	resolver, err := rt.Resolver()
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(st.Document(), resolve.Options{
		Explicit:       rt.Key,
		NonInteractive: rt.NonInteractive,
		PromptMessage:  promptMessage,
	})
}

// RevealAll decrypts the whole safe, authenticating only when an
// encrypted entry makes a password necessary.
func (rt *Runtime) RevealAll(st *store.Store) ([]store.RevealedEntry, error) {
	if !st.Document().HasEncrypted() {
		return st.RevealAll(nil)
	}
	cred, err := rt.Authenticate(st, "")
	if err != nil {
		return nil, err
	}
	defer cred.Destroy()

	var entries []store.RevealedEntry
	err = cred.WithPassword(func(password []byte) error {
		var revealErr error
		entries, revealErr = st.RevealAll(password)
		return revealErr
	})
	return entries, err
}

// plainEntries projects only the plain entries, which never needs a
// password.
func plainEntries(st *store.Store) []store.RevealedEntry {
	var entries []store.RevealedEntry
	for _, e := range st.Document().Entries() {
		if e.Kind == safe.KindPlain {
			entries = append(entries, store.RevealedEntry{Key: e.Key, Value: e.Value, Kind: e.Kind})
		}
	}
	return entries
}

// keyNotFound reports a missing key, listing the stored keys when the
// safe is small enough to enumerate inline.
func keyNotFound(st *store.Store, key string) error {
	keys := st.Document().Keys()
	suggestion := "Run 'safekit ls' to see the stored keys"
	if len(keys) > 0 && len(keys) <= 10 {
		suggestion = fmt.Sprintf("Stored keys: %v", keys)
	}
	return skerrors.UserError{
		Message:    fmt.Sprintf("Key '%s' not found in %s", key, st.Path()),
		Suggestion: suggestion,
		Err:        skerrors.NotFoundError{Kind: "key", Name: key},
	}
}

// ExitCodeError carries a child process exit code from exec up to main,
// which exits with it instead of printing an error.
type ExitCodeError struct {
	Code int
}

func (e ExitCodeError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// envPassword reads the SAFEKIT_KEY variable for commands that need a
// password before a hash exists (init, rotate's new password).
func envPassword() string {
	return os.Getenv(resolve.EnvPasswordVar)
}
