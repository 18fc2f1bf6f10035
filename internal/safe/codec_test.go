package safe_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/safe"
)

const testHash = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHQ$aGFzaGhhc2hoYXNo"

// testCiphertext returns a structurally valid sealed blob (nonce + tag
// sized); it does not need to decrypt for codec tests.
func testCiphertext() []byte {
	b := make([]byte, 28)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func testSalt() []byte {
	b := make([]byte, 16)
	for i := range b {
		b[i] = byte(0xA0 + i)
	}
	return b
}

// TestEncodeParseRoundTrip builds a document, encodes it, parses the
// text back, and checks every field and entry survived
func TestEncodeParseRoundTrip(t *testing.T) {
	t.Parallel()

	doc := safe.NewDocument("staging credentials")
	doc.PasswordHash = testHash
	doc.SSMPrefix = "/myapp/staging/"
	doc.SSMRegion = "eu-central-1"
	require.NoError(t, doc.SetPlain("LOG_LEVEL", "debug"))
	require.NoError(t, doc.SetEncrypted("API_TOKEN", testSalt(), testCiphertext()))
	require.NoError(t, doc.SetPlain("APP_ENV", "staging"))

	text := safe.Encode(doc)

	parsed, err := safe.Parse(text)
	require.NoError(t, err)

	assert.Equal(t, doc.Identifier, parsed.Identifier)
	assert.Equal(t, safe.FormatVersion, parsed.Version)
	assert.Equal(t, "staging credentials", parsed.Description)
	assert.Equal(t, doc.CreatedAt, parsed.CreatedAt)
	assert.Equal(t, doc.UpdatedAt, parsed.UpdatedAt)
	assert.Equal(t, testHash, parsed.PasswordHash)
	assert.Equal(t, "/myapp/staging/", parsed.SSMPrefix)
	assert.Equal(t, "eu-central-1", parsed.SSMRegion)

	assert.Equal(t, []string{"LOG_LEVEL", "API_TOKEN", "APP_ENV"}, parsed.Keys())

	token, ok := parsed.Get("API_TOKEN")
	require.True(t, ok)
	assert.Equal(t, safe.KindEncrypted, token.Kind)
	assert.Equal(t, testSalt(), token.Salt)
	assert.Equal(t, testCiphertext(), token.Ciphertext)

	level, ok := parsed.Get("LOG_LEVEL")
	require.True(t, ok)
	assert.Equal(t, safe.KindPlain, level.Kind)
	assert.Equal(t, "debug", level.Value)

	// Byte stability: re-encoding the parsed document reproduces the text
	assert.Equal(t, text, safe.Encode(parsed))
}

// TestParsePreservesCommentsAndUnknownFields feeds a canonical file with
// user comments, blank lines, and a field from a newer version, and
// expects the re-encoded output to be byte-identical
func TestParsePreservesCommentsAndUnknownFields(t *testing.T) {
	t.Parallel()

	input := "# ========================================\n" +
		"# SAFEKIT SAFE METADATA - DO NOT EDIT\n" +
		"# ========================================\n" +
		"#@VERSION=1.0\n" +
		"#@UUID=test-uuid-1234\n" +
		"#@DESCRIPTION=demo safe\n" +
		"#@CREATED=2026-08-20 09:00:00 UTC\n" +
		"#@UPDATED=2026-08-21 10:30:00 UTC\n" +
		"#@PASS_HASH=" + testHash + "\n" +
		"#@FUTURE_FIELD=preserved verbatim\n" +
		"# ========================================\n" +
		"# SECRETS (KEY=VALUE or KEY=ENC~<salt>~<data>)\n" +
		"# ========================================\n" +
		"# database settings\n" +
		"DB_HOST=localhost\n" +
		"\n" +
		"LOG_LEVEL=debug\n"

	doc, err := safe.Parse(input)
	require.NoError(t, err)

	require.Len(t, doc.Extra, 1)
	assert.Equal(t, "FUTURE_FIELD", doc.Extra[0].Name)
	assert.Equal(t, "preserved verbatim", doc.Extra[0].Value)

	assert.Equal(t, input, safe.Encode(doc))
}

// TestParseWithoutPassHashAllowsPlainOnlySafe verifies PASS_HASH is only
// required once a safe holds encrypted entries
func TestParseWithoutPassHashAllowsPlainOnlySafe(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"#@VERSION=1.0",
		"#@UUID=test-uuid-1234",
		"#@CREATED=2026-08-20 09:00:00 UTC",
		"#@UPDATED=2026-08-21 10:30:00 UTC",
		"LOG_LEVEL=debug",
	}, "\n") + "\n"

	doc, err := safe.Parse(input)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Len())
	assert.False(t, doc.HasEncrypted())

	enc := base64.StdEncoding
	withSecret := input + "API_TOKEN=ENC~" + enc.EncodeToString(testSalt()) + "~" + enc.EncodeToString(testCiphertext()) + "\n"

	_, err = safe.Parse(withSecret)
	var formatErr skerrors.FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Contains(t, formatErr.Message, "PASS_HASH")
}

func TestParseRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	header := strings.Join([]string{
		"#@VERSION=1.0",
		"#@UUID=test-uuid-1234",
		"#@CREATED=2026-08-20 09:00:00 UTC",
		"#@UPDATED=2026-08-21 10:30:00 UTC",
		"#@PASS_HASH=" + testHash,
	}, "\n") + "\n"

	tests := []struct {
		name     string
		input    string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "duplicate_key",
			input:    header + "A=1\nA=2\n",
			wantLine: 7,
			wantMsg:  "duplicate key 'A'",
		},
		{
			name:     "missing_equals",
			input:    header + "NOT A VALID LINE\n",
			wantLine: 6,
			wantMsg:  "expected KEY=VALUE",
		},
		{
			name:     "empty_key",
			input:    header + "=value\n",
			wantLine: 6,
			wantMsg:  "empty key",
		},
		{
			name:     "malformed_metadata",
			input:    "#@VERSION\n" + header,
			wantLine: 1,
			wantMsg:  "malformed metadata line",
		},
		{
			name:     "enc_missing_separator",
			input:    header + "API_TOKEN=ENC~onlyonepart\n",
			wantLine: 6,
			wantMsg:  "malformed encrypted value",
		},
		{
			name:     "enc_bad_salt_base64",
			input:    header + "API_TOKEN=ENC~!!!~AAAA\n",
			wantLine: 6,
			wantMsg:  "not valid base64",
		},
		{
			name:     "enc_bad_data_base64",
			input:    header + "API_TOKEN=ENC~AAAA~???\n",
			wantLine: 6,
			wantMsg:  "not valid base64",
		},
		{
			name:     "enc_truncated",
			input:    header + "API_TOKEN=ENC~AAAA~AAAA\n",
			wantLine: 6,
			wantMsg:  "truncated",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := safe.Parse(tt.input)
			require.Error(t, err)

			var formatErr skerrors.FormatError
			require.True(t, errors.As(err, &formatErr), "want FormatError, got %T", err)
			assert.Equal(t, tt.wantLine, formatErr.Line)
			assert.Contains(t, formatErr.Message, tt.wantMsg)
		})
	}
}

func TestParseRejectsMissingOrUnknownVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "missing_version",
			input:   "#@UUID=u\n#@CREATED=c\n#@UPDATED=d\n",
			wantMsg: "missing #@VERSION",
		},
		{
			name:    "unknown_version",
			input:   "#@VERSION=2.7\n#@UUID=u\n#@CREATED=c\n#@UPDATED=d\n",
			wantMsg: "unsupported safe version '2.7'",
		},
		{
			name:    "missing_uuid",
			input:   "#@VERSION=1.0\n#@CREATED=c\n#@UPDATED=d\n",
			wantMsg: "missing #@UUID",
		},
		{
			name:    "missing_created",
			input:   "#@VERSION=1.0\n#@UUID=u\n#@UPDATED=d\n",
			wantMsg: "missing #@CREATED",
		},
		{
			name:    "empty_file",
			input:   "",
			wantMsg: "missing #@VERSION",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := safe.Parse(tt.input)
			require.Error(t, err)

			var formatErr skerrors.FormatError
			require.True(t, errors.As(err, &formatErr))
			assert.Contains(t, formatErr.Message, tt.wantMsg)
		})
	}
}

// TestParseOptionalDescription verifies a safe without #@DESCRIPTION
// still parses; the field is optional free text
func TestParseOptionalDescription(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"#@VERSION=1.0",
		"#@UUID=test-uuid-1234",
		"#@CREATED=2026-08-20 09:00:00 UTC",
		"#@UPDATED=2026-08-21 10:30:00 UTC",
		"LOG_LEVEL=debug",
	}, "\n") + "\n"

	doc, err := safe.Parse(input)
	require.NoError(t, err)
	assert.Empty(t, doc.Description)
}

// TestParseValueWithEqualsSign verifies only the first '=' splits key
// from value
func TestParseValueWithEqualsSign(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"#@VERSION=1.0",
		"#@UUID=test-uuid-1234",
		"#@CREATED=2026-08-20 09:00:00 UTC",
		"#@UPDATED=2026-08-21 10:30:00 UTC",
		"DATABASE_URL=postgres://u:p@host/db?sslmode=require",
	}, "\n") + "\n"

	doc, err := safe.Parse(input)
	require.NoError(t, err)

	entry, ok := doc.Get("DATABASE_URL")
	require.True(t, ok)
	assert.Equal(t, "postgres://u:p@host/db?sslmode=require", entry.Value)
}
