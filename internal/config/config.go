// Package config loads the optional .safekit.yaml project file.
// Config values are defaults only; command-line flags always win,
// and a missing file means stock defaults rather than an error.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
)

//go:embed config_schema.json
var configSchemaJSON string

// DefaultPath is where the project file is looked up when --config is
// not given.
const DefaultPath = ".safekit.yaml"

// File is the parsed .safekit.yaml.
type File struct {
	Version int         `yaml:"version" json:"version"`
	Safe    string      `yaml:"safe,omitempty" json:"safe,omitempty"`
	Keyring string      `yaml:"keyring,omitempty" json:"keyring,omitempty"`
	SSM     SSMConfig   `yaml:"ssm,omitempty" json:"ssm,omitempty"`
	Cache   CacheConfig `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// SSMConfig carries Parameter Store defaults for pull and push.
type SSMConfig struct {
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
}

// CacheConfig carries key cache housekeeping defaults.
type CacheConfig struct {
	MaxAgeDays int `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`
}

// Load parses the project file at path. A missing file yields
// zero-value defaults.
func Load(path string, logger *logging.Logger) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("No project file at %s, using defaults", path)
			return &File{}, nil
		}
		return nil, skerrors.IOError{Op: "read", Path: path, Err: err}
	}
	return Parse(data, path)
}

// Parse validates project file bytes against the embedded schema and
// decodes them. Unknown fields fail validation rather than being
// silently dropped.
func Parse(data []byte, path string) (*File, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, skerrors.ConfigError{
			Field:      "path",
			Value:      path,
			Message:    "invalid YAML syntax",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}
	if raw == nil {
		return &File{}, nil
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, skerrors.ConfigError{
			Field:   "path",
			Value:   path,
			Message: "cannot prepare file for validation: " + err.Error(),
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return nil, skerrors.ConfigError{
			Field:   "path",
			Value:   path,
			Message: "schema validation error: " + err.Error(),
		}
	}
	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return nil, skerrors.ConfigError{
			Field:      "path",
			Value:      path,
			Message:    "project file rejected by schema:\n  - " + strings.Join(messages, "\n  - "),
			Suggestion: "Fix the listed fields; see the documented .safekit.yaml layout",
		}
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, skerrors.ConfigError{
			Field:   "path",
			Value:   path,
			Message: "cannot decode project file: " + err.Error(),
		}
	}
	return &file, nil
}
