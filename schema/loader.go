package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk YAML layout: a list of entity definitions, with
// dynamic-templates and runtime-fields JSON referenced by path and resolved
// at load time so downstream compilation stays free of I/O.
type schemaFile struct {
	Entities []*fileEntity `yaml:"entities"`
}

type fileEntity struct {
	Entity               `yaml:",inline"`
	WriteTypeHints       *bool  `yaml:"writeTypeHints"`
	DynamicTemplatesPath string `yaml:"dynamicTemplatesPath"`
	RuntimeFieldsPath    string `yaml:"runtimeFieldsPath"`
}

// LoadFile parses a YAML schema file into entity definitions. Referenced
// dynamic-templates and runtime-fields files are read relative to the
// schema file's directory and must contain valid JSON.
func LoadFile(path string) ([]*Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return parseSchema(data, filepath.Dir(path))
}

func parseSchema(data []byte, baseDir string) ([]*Entity, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}

	entities := make([]*Entity, 0, len(file.Entities))
	for _, fe := range file.Entities {
		e := fe.Entity
		if fe.WriteTypeHints != nil {
			if *fe.WriteTypeHints {
				e.WriteTypeHints = TypeHintTrue
			} else {
				e.WriteTypeHints = TypeHintFalse
			}
		}
		if fe.DynamicTemplatesPath != "" {
			raw, err := readJSONFile(baseDir, fe.DynamicTemplatesPath)
			if err != nil {
				return nil, fmt.Errorf("entity %q dynamic templates: %w", e.Name, err)
			}
			e.DynamicTemplates = raw
		}
		if fe.RuntimeFieldsPath != "" {
			raw, err := readJSONFile(baseDir, fe.RuntimeFieldsPath)
			if err != nil {
				return nil, fmt.Errorf("entity %q runtime fields: %w", e.Name, err)
			}
			e.RuntimeFields = raw
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		entities = append(entities, &e)
	}
	return entities, nil
}

// RegisterFile loads a schema file and registers every entity it defines.
func RegisterFile(registry *Registry, path string) ([]*Entity, error) {
	entities, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	registered := make([]*Entity, 0, len(entities))
	for _, e := range entities {
		r, err := registry.Register(e)
		if err != nil {
			return nil, err
		}
		registered = append(registered, r)
	}
	return registered, nil
}

func readJSONFile(baseDir, path string) (json.RawMessage, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: not valid JSON", path)
	}
	return json.RawMessage(data), nil
}
