package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer provides memory-safe storage for a safe password between
// the moment it is resolved and the moment it is used for key derivation.
// It wraps memguard.Enclave to encrypt the password at rest in memory
// and protect it from swapping via mlock.
//
// Note: memguard.Enclave doesn't have a direct Destroy method. We track
// destruction ourselves so Destroy() is idempotent; the encrypted enclave
// data is safe even without explicit destruction. Call memguard.Purge()
// at process exit for full cleanup.
type SecureBuffer struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy() calls and prevents use after destroy
	destroyed bool
}

// NewSecureBuffer creates a protected buffer from secret bytes.
// The input is copied into a protected memory region; memguard wipes
// the source slice, so callers must not reuse it afterwards.
//
// If mlock is unavailable (e.g., due to RLIMIT_MEMLOCK), memguard
// degrades to standard allocation rather than failing.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	enclave := memguard.NewEnclave(data)

	return &SecureBuffer{
		enclave:   enclave,
		destroyed: false,
	}, nil
}

// Open decrypts and returns the protected data in a locked buffer.
// The caller MUST call Destroy() on the returned LockedBuffer when done
// to wipe the plaintext from memory.
//
// Example:
//
//	locked, err := buf.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	password := locked.Bytes()
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		// Return an empty locked buffer if already destroyed
		return memguard.NewBufferFromBytes([]byte{}), nil
	}

	return s.enclave.Open()
}

// WithBytes opens the buffer, invokes fn with the plaintext, and wipes
// the unlocked copy before returning. The slice passed to fn is only
// valid for the duration of the call; fn must not retain it.
func (s *SecureBuffer) WithBytes(fn func([]byte) error) error {
	locked, err := s.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy marks this SecureBuffer as destroyed and prevents further use.
// It is idempotent; after Destroy(), Open() returns an empty buffer.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	// The enclave's encrypted data will be garbage collected.
	s.enclave = nil
	s.destroyed = true
}
