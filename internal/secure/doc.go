// Package secure provides memory-safe handling of safe passwords.
//
// This package wraps the memguard library so that a password resolved
// once (from a flag, the environment, the key cache, or a prompt) can be
// held across several crypto operations without sitting in ordinary Go
// memory. It ensures that sensitive data is:
//
//   - Encrypted at rest in memory (XSalsa20Poly1305)
//   - Protected from swapping via mlock
//   - Securely wiped when no longer needed
//   - Protected from buffer overflow via guard pages
//
// # Usage
//
// Create a secure buffer from sensitive bytes:
//
//	buf, err := secure.NewSecureBuffer([]byte(password))
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	// Scoped access wipes the plaintext automatically:
//	err = buf.WithBytes(func(pw []byte) error {
//	    return engine.Decrypt(entry, pw)
//	})
//
// # Platform Behavior
//
// Memory locking behavior varies by platform:
//
//   - Linux: Requires RLIMIT_MEMLOCK to be set appropriately
//   - macOS: Works out of the box
//   - Windows: Uses VirtualLock
//
// If mlock is unavailable or fails, memguard continues with standard Go
// memory (graceful degradation).
//
// # Security Guarantees
//
// This package provides defense-in-depth against memory-based attacks:
//
//   - Core dumps will not contain plaintext passwords
//   - Passwords won't be swapped to disk
//   - Memory is overwritten with zeros on destruction
//
// It does NOT protect against:
//
//   - Attackers with root access to the running process
//   - Hardware-level attacks (cold boot, DMA)
//   - Spectre/Meltdown side-channel attacks
package secure
