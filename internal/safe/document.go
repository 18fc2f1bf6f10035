// Package safe defines the in-memory model of a safe file and the codec
// that reads and writes its on-disk format.
package safe

import (
	"time"

	"github.com/google/uuid"
	"github.com/systmms/safekit/internal/validation"
)

// FormatVersion is the only safe file version this build reads or writes.
const FormatVersion = "1.0"

// TimeFormat is the timestamp layout used in safe metadata. Timestamps
// are always UTC; the suffix is literal.
const TimeFormat = "2006-01-02 15:04:05 UTC"

// Now returns the current time formatted for safe metadata.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}

// Kind distinguishes plain entries from encrypted ones.
type Kind int

const (
	KindPlain Kind = iota
	KindEncrypted
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindEncrypted:
		return "encrypted"
	default:
		return "unknown"
	}
}

// Entry is a single KEY=VALUE record. Plain entries carry Value verbatim;
// encrypted entries carry a per-entry Salt and the sealed Ciphertext
// (nonce followed by the authenticated cipher output) instead.
type Entry struct {
	Key        string
	Kind       Kind
	Value      string
	Salt       []byte
	Ciphertext []byte
}

// Field is a metadata field preserved from a newer format version.
type Field struct {
	Name  string
	Value string
}

type lineKind int

const (
	lineEntry lineKind = iota
	lineComment
)

// bodyLine keeps entries and user comments interleaved in file order so
// a load/save round trip reproduces the body byte for byte.
type bodyLine struct {
	kind  lineKind
	raw   string
	entry *Entry
}

// Document is the decoded form of one safe file. Entry order is
// insertion order and survives round trips; metadata fields unknown to
// this version are carried in Extra and re-emitted on encode.
type Document struct {
	Identifier   string
	Version      string
	Description  string
	CreatedAt    string
	UpdatedAt    string
	PasswordHash string
	SSMPrefix    string
	SSMRegion    string
	Extra        []Field

	lines []bodyLine
	index map[string]int
}

// NewDocument creates an empty safe document with a freshly minted
// identifier. The identifier never changes for the life of the safe.
func NewDocument(description string) *Document {
	now := Now()
	return &Document{
		Identifier:  uuid.NewString(),
		Version:     FormatVersion,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		index:       make(map[string]int),
	}
}

// Get returns the entry for key.
func (d *Document) Get(key string) (Entry, bool) {
	i, ok := d.index[key]
	if !ok {
		return Entry{}, false
	}
	return *d.lines[i].entry, true
}

// Has reports whether key exists.
func (d *Document) Has(key string) bool {
	_, ok := d.index[key]
	return ok
}

// SetPlain stores a plain entry. Updating an existing key keeps its
// position; new keys append. Key names are validated before anything
// is touched.
func (d *Document) SetPlain(key, value string) error {
	if err := validation.ValidateImportedKey(key); err != nil {
		return err
	}
	d.put(Entry{Key: key, Kind: KindPlain, Value: value})
	return nil
}

// SetEncrypted stores an encrypted entry with its per-entry salt and
// sealed ciphertext.
func (d *Document) SetEncrypted(key string, salt, ciphertext []byte) error {
	if err := validation.ValidateImportedKey(key); err != nil {
		return err
	}
	d.put(Entry{Key: key, Kind: KindEncrypted, Salt: salt, Ciphertext: ciphertext})
	return nil
}

func (d *Document) put(e Entry) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[e.Key]; ok {
		d.lines[i].entry = &e
		return
	}
	d.lines = append(d.lines, bodyLine{kind: lineEntry, entry: &e})
	d.index[e.Key] = len(d.lines) - 1
}

// Remove deletes key and reports whether it existed.
func (d *Document) Remove(key string) bool {
	i, ok := d.index[key]
	if !ok {
		return false
	}
	d.lines = append(d.lines[:i], d.lines[i+1:]...)
	delete(d.index, key)
	for k, v := range d.index {
		if v > i {
			d.index[k] = v - 1
		}
	}
	return true
}

// Clear drops the entire body, entries and comments alike. Used by the
// import mapper's replace policy.
func (d *Document) Clear() {
	d.lines = nil
	d.index = make(map[string]int)
}

// Keys returns all entry keys in file order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.index))
	for _, line := range d.lines {
		if line.kind == lineEntry {
			keys = append(keys, line.entry.Key)
		}
	}
	return keys
}

// Entries returns copies of all entries in file order.
func (d *Document) Entries() []Entry {
	entries := make([]Entry, 0, len(d.index))
	for _, line := range d.lines {
		if line.kind == lineEntry {
			entries = append(entries, *line.entry)
		}
	}
	return entries
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.index)
}

// Counts returns how many entries are plain and how many are encrypted.
func (d *Document) Counts() (plain, encrypted int) {
	for _, line := range d.lines {
		if line.kind != lineEntry {
			continue
		}
		if line.entry.Kind == KindEncrypted {
			encrypted++
		} else {
			plain++
		}
	}
	return plain, encrypted
}

// HasEncrypted reports whether any entry is encrypted.
func (d *Document) HasEncrypted() bool {
	_, encrypted := d.Counts()
	return encrypted > 0
}

func (d *Document) appendComment(raw string) {
	d.lines = append(d.lines, bodyLine{kind: lineComment, raw: raw})
}
