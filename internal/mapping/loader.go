package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a mapping file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension. Anything other than
// .toml is read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}

	return FormatYAML
}

// LoadFile loads and parses a mapping file from the given path.
func LoadFile(path string) (*MappingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}

	return ParseFormat(data, FormatOf(path))
}

// Parse parses YAML data into a MappingFile.
func Parse(data []byte) (*MappingFile, error) {
	return ParseFormat(data, FormatYAML)
}

// ParseFormat parses data in the given format into a MappingFile.
func ParseFormat(data []byte, format Format) (*MappingFile, error) {
	var mf MappingFile

	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("failed to parse mapping TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
		}
	}

	applyDefaults(&mf)

	return &mf, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(mf *MappingFile) {
	if mf.Version == "" {
		mf.Version = CurrentVersion
	}

	for i := range mf.Types {
		tm := &mf.Types[i]
		tm.Type = strings.TrimSpace(tm.Type)

		if tm.Fields == nil {
			tm.Fields = make(map[string]FieldMapping)
		}
	}
}

// Marshal serializes a MappingFile in the given format.
func Marshal(mf *MappingFile, format Format) ([]byte, error) {
	if format == FormatTOML {
		return toml.Marshal(*mf)
	}

	return yaml.Marshal(mf)
}

// WriteFile writes a MappingFile to the given path, in the format its
// extension selects.
func WriteFile(mf *MappingFile, path string) error {
	data, err := Marshal(mf, FormatOf(path))
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping file %s: %w", path, err)
	}

	return nil
}
