// Package importer maps external parameter tuples onto a safe document.
// One mapper serves every source: SSM Parameter Store, Secrets Manager,
// and local cleartext files all reduce to ordered (path, value, type)
// tuples before they get here. Secret values are always re-encrypted
// locally; external encryption is never trusted or carried over.
package importer

import (
	"strings"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/safe"
	"github.com/systmms/safekit/internal/store"
	"github.com/systmms/safekit/internal/validation"
)

// SourceType classifies an incoming parameter value.
type SourceType string

const (
	SourceSecret      SourceType = "secret"       // becomes an encrypted entry, fresh salt
	SourcePlainString SourceType = "plain-string" // becomes a plain entry
	SourcePlainList   SourceType = "plain-list"   // comma-joined list, kept plain
)

// Parameter is one importable tuple.
type Parameter struct {
	Path  string
	Value string
	Type  SourceType
}

// MergePolicy picks what happens when an imported key already exists.
type MergePolicy string

const (
	MergeReplace   MergePolicy = "replace"         // drop all existing entries first
	MergeOverwrite MergePolicy = "merge-overwrite" // update existing keys in place
	MergeSkip      MergePolicy = "merge-skip"      // leave existing keys untouched
)

// Action describes what the importer did, or would do, with one key.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Change is one key's outcome in an import.
type Change struct {
	Key    string
	Action Action
	Kind   safe.Kind
}

// Report summarizes an import run. With DryRun set the changes were
// computed but the document was not touched.
type Report struct {
	Changes   []Change
	Added     int
	Updated   int
	Skipped   int
	Encrypted int
	Plain     int
	DryRun    bool
}

// SkippedKeys lists the keys a merge-skip run left untouched.
func (r *Report) SkippedKeys() []string {
	var keys []string
	for _, c := range r.Changes {
		if c.Action == ActionSkip {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Options carries the per-run import inputs.
type Options struct {
	// Prefix is stripped from parameter paths to form keys. Nested paths
	// keep their '/' separators.
	Prefix string

	// Policy defaults to MergeOverwrite.
	Policy MergePolicy

	// DryRun computes the report without mutating the document. No
	// password is needed since nothing gets encrypted.
	DryRun bool

	// Password encrypts secret-typed values. Required when any parameter
	// is a secret and DryRun is off.
	Password []byte
}

// Mapper applies parameter tuples to the safe held by a store.
type Mapper struct {
	store  *store.Store
	logger *logging.Logger
}

// New creates a Mapper for the safe held by st.
func New(st *store.Store, logger *logging.Logger) *Mapper {
	return &Mapper{store: st, logger: logger}
}

// Apply maps params onto the document under the given options. Every
// key is validated before anything is mutated, so a bad parameter
// anywhere in the batch leaves the document exactly as it was.
func (m *Mapper) Apply(params []Parameter, opts Options) (*Report, error) {
	policy := opts.Policy
	if policy == "" {
		policy = MergeOverwrite
	}
	switch policy {
	case MergeReplace, MergeOverwrite, MergeSkip:
	default:
		return nil, skerrors.ValidationError{Field: "merge policy", Message: "unknown policy '" + string(policy) + "'"}
	}

	keys := make([]string, len(params))
	needPassword := false
	for i, p := range params {
		key, err := KeyForPath(p.Path, opts.Prefix)
		if err != nil {
			return nil, err
		}
		keys[i] = key

		switch p.Type {
		case SourceSecret:
			needPassword = true
		case SourcePlainString, SourcePlainList:
		default:
			return nil, skerrors.ValidationError{Field: "source type", Message: "unknown source type '" + string(p.Type) + "' for " + p.Path}
		}
	}
	if needPassword && !opts.DryRun && len(opts.Password) == 0 {
		return nil, skerrors.AuthError{Reason: "password required to encrypt imported secrets"}
	}

	doc := m.store.Document()
	report := &Report{DryRun: opts.DryRun}

	// existing tracks presence as the batch lands, so a key imported
	// twice counts as an add followed by an update.
	existing := make(map[string]bool)
	if policy != MergeReplace {
		for _, k := range doc.Keys() {
			existing[k] = true
		}
	}
	if policy == MergeReplace && !opts.DryRun {
		doc.Clear()
	}

	for i, p := range params {
		key := keys[i]
		kind := safe.KindPlain
		if p.Type == SourceSecret {
			kind = safe.KindEncrypted
		}

		if policy == MergeSkip && existing[key] {
			report.Changes = append(report.Changes, Change{Key: key, Action: ActionSkip, Kind: kind})
			report.Skipped++
			continue
		}

		action := ActionAdd
		if existing[key] {
			action = ActionUpdate
		}

		if !opts.DryRun {
			if p.Type == SourceSecret {
				if err := m.store.SetSecret(key, p.Value, opts.Password); err != nil {
					return nil, err
				}
			} else {
				if err := doc.SetPlain(key, p.Value); err != nil {
					return nil, err
				}
			}
		}

		existing[key] = true
		report.Changes = append(report.Changes, Change{Key: key, Action: action, Kind: kind})
		if action == ActionAdd {
			report.Added++
		} else {
			report.Updated++
		}
		if kind == safe.KindEncrypted {
			report.Encrypted++
		} else {
			report.Plain++
		}
	}

	m.logger.Debug("Import mapped %d parameters: %d added, %d updated, %d skipped",
		len(params), report.Added, report.Updated, report.Skipped)
	return report, nil
}

// KeyForPath strips the caller's prefix and validates the remainder as
// an importable key. Parameter Store paths carry a leading '/', Secrets
// Manager names do not; both spellings of the prefix are stripped.
func KeyForPath(path, prefix string) (string, error) {
	key := path
	if prefix != "" {
		switch p := normalizePrefix(prefix); {
		case strings.HasPrefix(key, p):
			key = key[len(p):]
		case strings.HasPrefix(key, prefix):
			key = key[len(prefix):]
		}
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", skerrors.ValidationError{Field: "imported key", Message: "path '" + path + "' is empty after removing the prefix"}
	}
	if err := validation.ValidateImportedKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// normalizePrefix guarantees the leading '/' the parameter store uses.
func normalizePrefix(prefix string) string {
	if !strings.HasPrefix(prefix, "/") {
		return "/" + prefix
	}
	return prefix
}
