package resolve_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/safekit/internal/crypto"
	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/keycache"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/resolve"
	"github.com/systmms/safekit/internal/safe"
)

const (
	goodPassword = "Aa1-_@#abcdEF"
	badPassword  = "Zz9#_@-wrongg"
)

// fixture builds a document whose password hash matches goodPassword.
type fixture struct {
	engine *crypto.Engine
	doc    *safe.Document
	logger *logging.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	engine, err := crypto.NewEngine()
	require.NoError(t, err)

	doc := safe.NewDocument("resolver test safe")
	hash, err := engine.HashPassword([]byte(goodPassword))
	require.NoError(t, err)
	doc.PasswordHash = hash

	return &fixture{
		engine: engine,
		doc:    doc,
		logger: logging.New(false, true),
	}
}

func noEnv(string) string { return "" }

// forbidPrompt fails the test if the resolver falls through to prompting.
func forbidPrompt(t *testing.T) resolve.PromptFunc {
	return func(string) (string, error) {
		t.Error("prompt should not be reached")
		return "", errors.New("prompt reached")
	}
}

func passwordBytes(t *testing.T, cred *resolve.Credential) string {
	t.Helper()
	var got string
	require.NoError(t, cred.WithPassword(func(password []byte) error {
		got = string(password)
		return nil
	}))
	return got
}

func TestResolveExplicitPassword(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	r := resolve.New(nil, fx.engine, forbidPrompt(t), fx.logger, resolve.WithEnvLookup(noEnv))
	cred, err := r.Resolve(fx.doc, resolve.Options{Explicit: goodPassword})
	require.NoError(t, err)
	defer cred.Destroy()

	assert.Equal(t, resolve.SourceExplicit, cred.Source)
	assert.Equal(t, goodPassword, passwordBytes(t, cred))
}

func TestResolveWrongExplicitPasswordIsHardFailure(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	// Even with a correct password waiting in the environment, a wrong
	// explicit password must not fall through to it.
	env := func(name string) string {
		if name == resolve.EnvPasswordVar {
			return goodPassword
		}
		return ""
	}
	r := resolve.New(nil, fx.engine, forbidPrompt(t), fx.logger, resolve.WithEnvLookup(env))

	_, err := r.Resolve(fx.doc, resolve.Options{Explicit: badPassword})
	var authErr skerrors.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestResolveFromEnvironment(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	env := func(name string) string {
		if name == resolve.EnvPasswordVar {
			return goodPassword
		}
		return ""
	}
	r := resolve.New(nil, fx.engine, forbidPrompt(t), fx.logger, resolve.WithEnvLookup(env))

	cred, err := r.Resolve(fx.doc, resolve.Options{})
	require.NoError(t, err)
	defer cred.Destroy()

	assert.Equal(t, resolve.SourceEnvironment, cred.Source)
	assert.Equal(t, goodPassword, passwordBytes(t, cred))
}

func TestResolveWrongEnvironmentPasswordIsHardFailure(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	// A correct cached key must not rescue a wrong environment password.
	cache := keycache.NewFileCache(t.TempDir())
	require.NoError(t, cache.Remember(fx.doc.Identifier, goodPassword))

	env := func(name string) string {
		if name == resolve.EnvPasswordVar {
			return badPassword
		}
		return ""
	}
	r := resolve.New(cache, fx.engine, forbidPrompt(t), fx.logger, resolve.WithEnvLookup(env))

	_, err := r.Resolve(fx.doc, resolve.Options{})
	var authErr skerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), resolve.EnvPasswordVar)
}

func TestResolveFromKeyCache(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	cache := keycache.NewFileCache(t.TempDir())
	require.NoError(t, cache.Remember(fx.doc.Identifier, goodPassword))

	r := resolve.New(cache, fx.engine, forbidPrompt(t), fx.logger, resolve.WithEnvLookup(noEnv))

	cred, err := r.Resolve(fx.doc, resolve.Options{})
	require.NoError(t, err)
	defer cred.Destroy()

	assert.Equal(t, resolve.SourceCache, cred.Source)
	assert.Equal(t, goodPassword, passwordBytes(t, cred))
}

func TestResolveStaleCachedKeyIsHardFailure(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	// A cached key left over from before a rotation verifies against the
	// old hash only. It must fail loudly, not silently prompt.
	cache := keycache.NewFileCache(t.TempDir())
	require.NoError(t, cache.Remember(fx.doc.Identifier, badPassword))

	r := resolve.New(cache, fx.engine, forbidPrompt(t), fx.logger, resolve.WithEnvLookup(noEnv))

	_, err := r.Resolve(fx.doc, resolve.Options{})
	var authErr skerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "cached key")
}

func TestResolveFallsThroughToPrompt(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	var seenMessage string
	prompt := func(message string) (string, error) {
		seenMessage = message
		return goodPassword, nil
	}
	cache := keycache.NewFileCache(t.TempDir())
	r := resolve.New(cache, fx.engine, prompt, fx.logger, resolve.WithEnvLookup(noEnv))

	cred, err := r.Resolve(fx.doc, resolve.Options{})
	require.NoError(t, err)
	defer cred.Destroy()

	assert.Equal(t, resolve.SourcePrompt, cred.Source)
	assert.Equal(t, "Enter safe password", seenMessage)
}

func TestResolvePromptMessageOverride(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	var seenMessage string
	prompt := func(message string) (string, error) {
		seenMessage = message
		return goodPassword, nil
	}
	r := resolve.New(nil, fx.engine, prompt, fx.logger, resolve.WithEnvLookup(noEnv))

	cred, err := r.Resolve(fx.doc, resolve.Options{PromptMessage: "Enter old password"})
	require.NoError(t, err)
	defer cred.Destroy()

	assert.Equal(t, "Enter old password", seenMessage)
}

func TestResolveWrongPromptedPassword(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	prompt := func(string) (string, error) {
		return badPassword, nil
	}
	r := resolve.New(nil, fx.engine, prompt, fx.logger, resolve.WithEnvLookup(noEnv))

	_, err := r.Resolve(fx.doc, resolve.Options{})
	var authErr skerrors.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestResolveNonInteractiveWithoutCandidates(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	r := resolve.New(nil, fx.engine, forbidPrompt(t), fx.logger, resolve.WithEnvLookup(noEnv))

	_, err := r.Resolve(fx.doc, resolve.Options{NonInteractive: true})
	var authErr skerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "prompting is disabled")
}

func TestResolveNilPromptBehavesLikeNonInteractive(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	r := resolve.New(nil, fx.engine, nil, fx.logger, resolve.WithEnvLookup(noEnv))

	_, err := r.Resolve(fx.doc, resolve.Options{})
	var authErr skerrors.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestResolveSafeWithoutPasswordHash(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.doc.PasswordHash = ""

	r := resolve.New(nil, fx.engine, forbidPrompt(t), fx.logger, resolve.WithEnvLookup(noEnv))

	_, err := r.Resolve(fx.doc, resolve.Options{Explicit: goodPassword})
	var authErr skerrors.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestCredentialDestroyIsIdempotent(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	r := resolve.New(nil, fx.engine, nil, fx.logger, resolve.WithEnvLookup(noEnv))
	cred, err := r.Resolve(fx.doc, resolve.Options{Explicit: goodPassword})
	require.NoError(t, err)

	cred.Destroy()
	cred.Destroy()
}

func TestSourceString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source resolve.Source
		want   string
	}{
		{resolve.SourceExplicit, "explicit"},
		{resolve.SourceEnvironment, "environment"},
		{resolve.SourceCache, "key cache"},
		{resolve.SourcePrompt, "prompt"},
		{resolve.Source(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.source.String())
	}
}
