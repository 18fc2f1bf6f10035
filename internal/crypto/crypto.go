// Package crypto implements the two cryptographic duties of a safe:
// password authentication and per-entry confidentiality. The two are
// kept strictly apart. Authentication uses a PHC-encoded argon2id hash
// that is useless as key material; confidentiality derives a fresh
// AES-256 key per entry from the password and that entry's own salt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/allisson/go-pwdhash"
	"golang.org/x/crypto/argon2"

	skerrors "github.com/systmms/safekit/internal/errors"
)

const (
	// SaltSize is the per-entry salt length in bytes.
	SaltSize = 16
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16

	// argon2id parameters for per-entry key derivation
	deriveTime    = 3
	deriveMemory  = 64 * 1024
	deriveThreads = 1
	deriveKeyLen  = 32
)

// Engine performs password hashing, verification, and entry encryption.
type Engine struct {
	hasher *pwdhash.PasswordHasher
}

// NewEngine creates a crypto engine with the interactive argon2id policy
// for password hashing.
func NewEngine() (*Engine, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return nil, fmt.Errorf("initializing password hasher: %w", err)
	}
	return &Engine{hasher: hasher}, nil
}

// HashPassword returns a PHC-encoded argon2id hash of password. The
// salt and cost parameters travel inside the returned string, so
// verification needs no other input. The hash authenticates only; it is
// never used to derive encryption keys.
func (e *Engine) HashPassword(password []byte) (string, error) {
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

// VerifyPassword performs a constant-time check of password against a
// stored PHC hash. A malformed hash verifies as false.
func (e *Engine) VerifyPassword(password []byte, hash string) bool {
	ok, err := e.hasher.Verify(password, hash)
	if err != nil {
		return false
	}
	return ok
}

// EncryptValue seals plaintext under password with a fresh random salt
// and nonce. The returned ciphertext is the nonce followed by the
// authenticated cipher output; the salt is returned separately and must
// be stored alongside the ciphertext.
func (e *Engine) EncryptValue(password, plaintext []byte) (salt, ciphertext []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("generating salt: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, nil, err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	ciphertext = make([]byte, 0, len(nonce)+len(sealed))
	ciphertext = append(ciphertext, nonce...)
	ciphertext = append(ciphertext, sealed...)
	return salt, ciphertext, nil
}

// DecryptValue opens a sealed value. It fails closed: a wrong password,
// a foreign salt, or a single flipped bit yields an AuthError, never a
// corrupted plaintext.
func (e *Engine) DecryptValue(password, salt, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, skerrors.AuthError{Reason: "ciphertext too short"}
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	nonce, sealed := ciphertext[:NonceSize], ciphertext[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, skerrors.AuthError{Reason: "decryption failed, wrong password or tampered data"}
	}
	return plaintext, nil
}

func newGCM(password, salt []byte) (cipher.AEAD, error) {
	key := deriveKey(password, salt)
	// aes.NewCipher copies the key into its schedule; the slice can be
	// wiped as soon as the cipher exists.
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// deriveKey stretches password into an AES-256 key bound to one entry's
// salt. Entry salts live in a different namespace than password-hash
// salts, so the derived keys never collide with authentication state.
func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, deriveTime, deriveMemory, deriveThreads, deriveKeyLen)
}
