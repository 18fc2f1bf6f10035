package importer

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/validation"
)

//go:embed import_schema.json
var importSchemaJSON string

// LoadFile reads a cleartext file and turns it into parameter tuples.
// The format follows the extension: .json and .yaml/.yml are structured
// documents, anything else parses as dotenv KEY=VALUE lines. Keys listed
// in plainKeys stay plain text; every other value imports as a secret.
func LoadFile(path string, plainKeys map[string]bool) ([]Parameter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, skerrors.NotFoundError{Kind: "import file", Name: path}
		}
		return nil, skerrors.IOError{Op: "read", Path: path, Err: err}
	}

	var params []Parameter
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		params, err = ParseJSON(data, plainKeys)
	case ".yaml", ".yml":
		params, err = ParseYAML(data, plainKeys)
	default:
		params, err = ParseEnvFile(string(data), plainKeys)
	}
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, skerrors.FormatError{Message: "no importable values found in " + path}
	}
	return params, nil
}

// ParseEnvFile parses dotenv-style KEY=VALUE lines. Blank lines and #
// comments are ignored; values wrapped in matching quotes are unwrapped.
func ParseEnvFile(content string, plainKeys map[string]bool) ([]Parameter, error) {
	var params []Parameter
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, skerrors.FormatError{Line: i + 1, Message: "invalid line, expected KEY=VALUE"}
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		if key == "" {
			return nil, skerrors.FormatError{Line: i + 1, Message: "empty key"}
		}
		if !validation.ValidKey(key) {
			return nil, skerrors.FormatError{Line: i + 1, Message: fmt.Sprintf("invalid key '%s', keys match [A-Za-z_][A-Za-z0-9_]*", key)}
		}

		params = append(params, Parameter{Path: key, Value: value, Type: typeFor(key, plainKeys)})
	}
	return params, nil
}

// ParseJSON validates the document against the import schema, then
// flattens it. Nested objects become slash-separated paths; member order
// is not significant in JSON, so keys sort alphabetically per level.
func ParseJSON(data []byte, plainKeys map[string]bool) ([]Parameter, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(importSchemaJSON), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, skerrors.FormatError{Message: "invalid JSON: " + err.Error()}
	}
	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return nil, skerrors.FormatError{Message: "import document rejected by schema:\n  - " + strings.Join(messages, "\n  - ")}
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, skerrors.FormatError{Message: "invalid JSON: " + err.Error()}
	}

	var params []Parameter
	if err := flattenMap("", doc, plainKeys, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// ParseYAML flattens a YAML mapping. Mapping order is meaningful in YAML
// and is preserved.
func ParseYAML(data []byte, plainKeys map[string]bool) ([]Parameter, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, skerrors.FormatError{Message: "invalid YAML: " + err.Error()}
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, skerrors.FormatError{Line: top.Line, Message: "import document must be a mapping of keys to values"}
	}

	var params []Parameter
	if err := flattenYAML("", top, plainKeys, &params); err != nil {
		return nil, err
	}
	return params, nil
}

func flattenMap(prefix string, m map[string]any, plainKeys map[string]bool, out *[]Parameter) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := joinPath(prefix, k)
		switch v := m[k].(type) {
		case map[string]any:
			if err := flattenMap(path, v, plainKeys, out); err != nil {
				return err
			}
		case []any:
			joined, err := joinList(path, v)
			if err != nil {
				return err
			}
			*out = append(*out, Parameter{Path: path, Value: joined, Type: SourcePlainList})
		case nil:
			return skerrors.FormatError{Message: "null value for key '" + path + "'"}
		default:
			*out = append(*out, Parameter{Path: path, Value: scalarString(v), Type: typeFor(path, plainKeys)})
		}
	}
	return nil
}

func flattenYAML(prefix string, node *yaml.Node, plainKeys map[string]bool, out *[]Parameter) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		path := joinPath(prefix, keyNode.Value)

		switch valueNode.Kind {
		case yaml.MappingNode:
			if err := flattenYAML(path, valueNode, plainKeys, out); err != nil {
				return err
			}
		case yaml.SequenceNode:
			items := make([]any, 0, len(valueNode.Content))
			for _, item := range valueNode.Content {
				if item.Kind != yaml.ScalarNode {
					return skerrors.FormatError{Line: item.Line, Message: "list for key '" + path + "' may only hold scalars"}
				}
				items = append(items, item.Value)
			}
			joined, err := joinList(path, items)
			if err != nil {
				return err
			}
			*out = append(*out, Parameter{Path: path, Value: joined, Type: SourcePlainList})
		case yaml.ScalarNode:
			if valueNode.Tag == "!!null" {
				return skerrors.FormatError{Line: valueNode.Line, Message: "null value for key '" + path + "'"}
			}
			*out = append(*out, Parameter{Path: path, Value: valueNode.Value, Type: typeFor(path, plainKeys)})
		default:
			return skerrors.FormatError{Line: valueNode.Line, Message: "unsupported value for key '" + path + "'"}
		}
	}
	return nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func joinList(path string, items []any) (string, error) {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch item.(type) {
		case map[string]any, []any:
			return "", skerrors.FormatError{Message: "list for key '" + path + "' may only hold scalars"}
		}
		parts = append(parts, scalarString(item))
	}
	return strings.Join(parts, ","), nil
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func typeFor(key string, plainKeys map[string]bool) SourceType {
	if plainKeys[key] {
		return SourcePlainString
	}
	return SourceSecret
}

// unquote strips one pair of matching single or double quotes.
func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
