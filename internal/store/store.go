// Package store persists safe documents on disk. Every mutation follows
// the same cycle: load the file, authenticate if the change touches
// encrypted data, mutate the in-memory document, then write the whole
// file back in one atomic save. A save that fails partway leaves the
// previous bytes untouched.
package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/systmms/safekit/internal/crypto"
	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/validation"
)

// Store binds one decoded document to the file it came from.
type Store struct {
	path   string
	doc    *safe.Document
	engine *crypto.Engine
	logger *logging.Logger
}

// Open reads and parses the safe at path. A missing file is a
// NotFoundError so callers can distinguish "no safe yet" from a broken
// one.
func Open(path string, engine *crypto.Engine, logger *logging.Logger) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, skerrors.NotFoundError{Kind: "safe", Name: path}
		}
		return nil, skerrors.IOError{Op: "read", Path: path, Err: err}
	}

	doc, err := safe.Parse(string(data))
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded safe %s (%d entries)", path, doc.Len())

	return &Store{path: path, doc: doc, engine: engine, logger: logger}, nil
}

// Create initializes a new safe at path with the given password and
// writes it to disk. The password must satisfy the password policy, and
// the path must not exist yet.
func Create(path, description string, password []byte, engine *crypto.Engine, logger *logging.Logger) (*Store, error) {
	if err := validation.ValidatePassword(string(password)); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, skerrors.IOError{Op: "create", Path: path, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, skerrors.IOError{Op: "stat", Path: path, Err: err}
	}

	hash, err := engine.HashPassword(password)
	if err != nil {
		return nil, err
	}

	doc := safe.NewDocument(description)
	doc.PasswordHash = hash

	s := &Store{path: path, doc: doc, engine: engine, logger: logger}
	if err := s.Save(); err != nil {
		return nil, err
	}
	logger.Debug("Created safe %s", path)
	return s, nil
}

// Path returns the file the store reads from and writes to.
func (s *Store) Path() string {
	return s.path
}

// Document exposes the in-memory document for metadata access and plain
// mutations. Changes only reach disk through Save.
func (s *Store) Document() *safe.Document {
	return s.doc
}

// Save stamps the document's updated timestamp and writes it out
// atomically: encode to a temp file in the same directory, flush, then
// rename over the destination.
func (s *Store) Save() error {
	s.doc.UpdatedAt = safe.Now()
	if err := atomicWrite(s.path, []byte(safe.Encode(s.doc))); err != nil {
		return err
	}
	s.logger.Debug("Saved safe %s", s.path)
	return nil
}

// SetSecret encrypts value under password with a fresh salt and stores
// it as an encrypted entry.
func (s *Store) SetSecret(key, value string, password []byte) error {
	salt, ciphertext, err := s.engine.EncryptValue(password, []byte(value))
	if err != nil {
		return err
	}
	return s.doc.SetEncrypted(key, salt, ciphertext)
}

// Reveal returns the plaintext of one entry. Plain entries never need a
// password; encrypted ones are decrypted with the supplied password.
func (s *Store) Reveal(key string, password []byte) (string, error) {
	entry, ok := s.doc.Get(key)
	if !ok {
		return "", skerrors.NotFoundError{Kind: "key", Name: key}
	}
	if entry.Kind == safe.KindPlain {
		return entry.Value, nil
	}
	plaintext, err := s.engine.DecryptValue(password, entry.Salt, entry.Ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// RevealedEntry is one decrypted entry, kind preserved for display.
type RevealedEntry struct {
	Key   string
	Value string
	Kind  safe.Kind
}

// RevealAll decrypts every entry in insertion order. Any decryption
// failure aborts the whole projection so callers never see a partially
// decrypted safe.
func (s *Store) RevealAll(password []byte) ([]RevealedEntry, error) {
	out := make([]RevealedEntry, 0, s.doc.Len())
	for _, entry := range s.doc.Entries() {
		value := entry.Value
		if entry.Kind == safe.KindEncrypted {
			plaintext, err := s.engine.DecryptValue(password, entry.Salt, entry.Ciphertext)
			if err != nil {
				return nil, err
			}
			value = string(plaintext)
		}
		out = append(out, RevealedEntry{Key: entry.Key, Value: value, Kind: entry.Kind})
	}
	return out, nil
}

// EnvMap flattens the fully decrypted safe into a name→value map for
// child process environments.
func (s *Store) EnvMap(password []byte) (map[string]string, error) {
	revealed, err := s.RevealAll(password)
	if err != nil {
		return nil, err
	}
	env := make(map[string]string, len(revealed))
	for _, entry := range revealed {
		env[entry.Key] = entry.Value
	}
	return env, nil
}

// ProjectedEntry is the password-free view of one entry. Value is empty
// for encrypted entries.
type ProjectedEntry struct {
	Key   string
	Kind  safe.Kind
	Value string
}

// Projection is the read-only view renderers work from. It requires no
// password; encrypted values stay opaque.
type Projection struct {
	Path        string
	Identifier  string
	Description string
	CreatedAt   string
	UpdatedAt   string
	SSMPrefix   string
	SSMRegion   string
	Entries     []ProjectedEntry
	Total       int
	Plain       int
	Encrypted   int
}

// Projection builds the password-free view of the safe.
func (s *Store) Projection() Projection {
	plain, encrypted := s.doc.Counts()
	p := Projection{
		Path:        s.path,
		Identifier:  s.doc.Identifier,
		Description: s.doc.Description,
		CreatedAt:   s.doc.CreatedAt,
		UpdatedAt:   s.doc.UpdatedAt,
		SSMPrefix:   s.doc.SSMPrefix,
		SSMRegion:   s.doc.SSMRegion,
		Total:       s.doc.Len(),
		Plain:       plain,
		Encrypted:   encrypted,
	}
	for _, entry := range s.doc.Entries() {
		pe := ProjectedEntry{Key: entry.Key, Kind: entry.Kind}
		if entry.Kind == safe.KindPlain {
			pe.Value = entry.Value
		}
		p.Entries = append(p.Entries, pe)
	}
	return p
}

// atomicWrite replaces path with data without ever exposing a partial
// file. The temp file lives in the destination directory so the final
// rename never crosses filesystems.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".safekit-*.tmp")
	if err != nil {
		return skerrors.IOError{Op: "create temp file in", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return skerrors.IOError{Op: "chmod", Path: tmpName, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return skerrors.IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return skerrors.IOError{Op: "flush", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return skerrors.IOError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return skerrors.IOError{Op: "save", Path: path, Err: err}
	}
	return nil
}
