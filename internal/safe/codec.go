package safe

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/systmms/safekit/internal/crypto"
	skerrors "github.com/systmms/safekit/internal/errors"
)

const (
	fence         = "# ========================================"
	metadataTitle = "# SAFEKIT SAFE METADATA - DO NOT EDIT"
	secretsTitle  = "# SECRETS (KEY=VALUE or KEY=ENC~<salt>~<data>)"
	encPrefix     = "ENC~"
)

// Parse decodes safe file content into a Document.
//
// The format is line oriented. Banner fences and their decoration lines
// are structural and regenerated on encode; #@FIELD=value lines carry
// metadata, with unknown fields preserved for newer versions; everything
// else is either a KEY=VALUE entry or a user comment kept in place.
func Parse(content string) (*Document, error) {
	doc := &Document{index: make(map[string]int)}

	inBanner := false
	for i, raw := range splitLines(content) {
		lineNo := i + 1
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == fence:
			inBanner = !inBanner

		case strings.HasPrefix(trimmed, "#@"):
			name, value, ok := strings.Cut(trimmed[2:], "=")
			if !ok {
				return nil, skerrors.FormatError{
					Line:    lineNo,
					Message: "malformed metadata line, expected #@FIELD=value",
				}
			}
			switch name {
			case "VERSION":
				doc.Version = value
			case "UUID":
				doc.Identifier = value
			case "DESCRIPTION":
				doc.Description = value
			case "CREATED":
				doc.CreatedAt = value
			case "UPDATED":
				doc.UpdatedAt = value
			case "PASS_HASH":
				doc.PasswordHash = value
			case "SSM_PREFIX":
				doc.SSMPrefix = value
			case "SSM_REGION":
				doc.SSMRegion = value
			default:
				doc.Extra = append(doc.Extra, Field{Name: name, Value: value})
			}

		case inBanner:
			// banner decoration, regenerated on encode

		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			doc.appendComment(line)

		default:
			entry, err := parseEntry(trimmed, lineNo)
			if err != nil {
				return nil, err
			}
			if doc.Has(entry.Key) {
				return nil, skerrors.FormatError{
					Line:    lineNo,
					Message: fmt.Sprintf("duplicate key '%s'", entry.Key),
				}
			}
			doc.put(entry)
		}
	}

	if err := checkMetadata(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseEntry(line string, lineNo int) (Entry, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return Entry{}, skerrors.FormatError{
			Line:    lineNo,
			Message: "invalid line, expected KEY=VALUE",
		}
	}

	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return Entry{}, skerrors.FormatError{
			Line:    lineNo,
			Message: "empty key",
		}
	}

	if !strings.HasPrefix(value, encPrefix) {
		return Entry{Key: key, Kind: KindPlain, Value: value}, nil
	}

	saltB64, ctB64, ok := strings.Cut(value[len(encPrefix):], "~")
	if !ok || saltB64 == "" || ctB64 == "" {
		return Entry{}, skerrors.FormatError{
			Line:    lineNo,
			Message: fmt.Sprintf("malformed encrypted value for key '%s', expected ENC~<salt>~<data>", key),
		}
	}

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return Entry{}, skerrors.FormatError{
			Line:    lineNo,
			Message: fmt.Sprintf("encrypted value salt for key '%s' is not valid base64", key),
		}
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return Entry{}, skerrors.FormatError{
			Line:    lineNo,
			Message: fmt.Sprintf("encrypted value data for key '%s' is not valid base64", key),
		}
	}
	if len(ciphertext) < crypto.NonceSize+crypto.TagSize {
		return Entry{}, skerrors.FormatError{
			Line:    lineNo,
			Message: fmt.Sprintf("encrypted value for key '%s' is truncated", key),
		}
	}

	return Entry{Key: key, Kind: KindEncrypted, Salt: salt, Ciphertext: ciphertext}, nil
}

func checkMetadata(doc *Document) error {
	if doc.Version == "" {
		return skerrors.FormatError{Message: "missing #@VERSION field"}
	}
	if doc.Version != FormatVersion {
		return skerrors.FormatError{
			Message: fmt.Sprintf("unsupported safe version '%s', this build reads version %s", doc.Version, FormatVersion),
		}
	}
	if doc.Identifier == "" {
		return skerrors.FormatError{Message: "missing #@UUID field"}
	}
	if doc.CreatedAt == "" {
		return skerrors.FormatError{Message: "missing #@CREATED field"}
	}
	if doc.UpdatedAt == "" {
		return skerrors.FormatError{Message: "missing #@UPDATED field"}
	}

	if doc.HasEncrypted() {
		if doc.PasswordHash == "" {
			return skerrors.FormatError{
				Message: "missing #@PASS_HASH field, required once a safe holds encrypted entries",
			}
		}
		if !strings.HasPrefix(doc.PasswordHash, "$argon2id$") {
			return skerrors.FormatError{Message: "malformed #@PASS_HASH field"}
		}
	}
	return nil
}

// Encode serializes a Document back to safe file text. For any document
// produced by Parse, Encode reproduces the original bytes except where
// the caller changed metadata or entries in between.
func Encode(d *Document) string {
	var b strings.Builder

	writeLine := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	writeLine(fence)
	writeLine(metadataTitle)
	writeLine(fence)
	writeLine("#@VERSION=" + d.Version)
	writeLine("#@UUID=" + d.Identifier)
	writeLine("#@DESCRIPTION=" + d.Description)
	writeLine("#@CREATED=" + d.CreatedAt)
	writeLine("#@UPDATED=" + d.UpdatedAt)
	if d.PasswordHash != "" {
		writeLine("#@PASS_HASH=" + d.PasswordHash)
	}
	if d.SSMPrefix != "" {
		writeLine("#@SSM_PREFIX=" + d.SSMPrefix)
	}
	if d.SSMRegion != "" {
		writeLine("#@SSM_REGION=" + d.SSMRegion)
	}
	for _, f := range d.Extra {
		writeLine("#@" + f.Name + "=" + f.Value)
	}
	writeLine(fence)
	writeLine(secretsTitle)
	writeLine(fence)

	for _, line := range d.lines {
		switch line.kind {
		case lineComment:
			writeLine(line.raw)
		case lineEntry:
			writeLine(encodeEntry(line.entry))
		}
	}

	return b.String()
}

func encodeEntry(e *Entry) string {
	if e.Kind == KindEncrypted {
		return fmt.Sprintf("%s=%s%s~%s",
			e.Key,
			encPrefix,
			base64.StdEncoding.EncodeToString(e.Salt),
			base64.StdEncoding.EncodeToString(e.Ciphertext))
	}
	return e.Key + "=" + e.Value
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
