package schema_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonesrussell/esodm/schema"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const personSchema = `
entities:
  - name: person
    indexName: people
    dynamic: strict
    writeTypeHints: false
    dynamicDateFormats:
      - yyyy-MM-dd
    dynamicTemplatesPath: templates.json
    runtimeFieldsPath: runtime.json
    aliases:
      - name: people-read
        routing: shard-a
    properties:
      - name: firstName
        wireName: first-name
        type: keyword
      - name: birthDate
        kind: date
        patterns:
          - dd.MM.uuuu
        valueLayout: "02.01.2006"
      - name: address
        kind: object
        ref: address
  - name: address
    properties:
      - name: city
        wireName: ci-ty
        type: keyword
`

// --- Loading ---

func TestLoadFile(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "templates.json", `[{"strings":{"match_mapping_type":"string","mapping":{"type":"keyword"}}}]`)
	writeFile(t, dir, "runtime.json", `{"age":{"type":"long"}}`)
	path := writeFile(t, dir, "schema.yaml", personSchema)

	entities, err := schema.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("LoadFile() returned %d entities, want 2", len(entities))
	}

	person := entities[0]
	if person.Name != "person" {
		t.Errorf("Name = %q, want person", person.Name)
	}
	if person.IndexName != "people" {
		t.Errorf("IndexName = %q, want people", person.IndexName)
	}
	if person.Dynamic != schema.DynamicStrict {
		t.Errorf("Dynamic = %q, want strict", person.Dynamic)
	}
	if person.WriteTypeHints != schema.TypeHintFalse {
		t.Errorf("WriteTypeHints = %v, want TypeHintFalse", person.WriteTypeHints)
	}
	if len(person.DynamicTemplates) == 0 {
		t.Error("DynamicTemplates not loaded from referenced file")
	}
	if len(person.RuntimeFields) == 0 {
		t.Error("RuntimeFields not loaded from referenced file")
	}
	if len(person.Aliases) != 1 || person.Aliases[0].Name != "people-read" || person.Aliases[0].Routing != "shard-a" {
		t.Errorf("Aliases = %v", person.Aliases)
	}
	if len(person.Properties) != 3 {
		t.Fatalf("person has %d properties, want 3", len(person.Properties))
	}

	first := person.Properties[0]
	if first.Name != "firstName" || first.WireName != "first-name" || first.Type != schema.TypeKeyword {
		t.Errorf("firstName property = %+v", first)
	}
	birth := person.Properties[1]
	if birth.Kind != schema.KindDate || birth.ValueLayout != "02.01.2006" {
		t.Errorf("birthDate property = %+v", birth)
	}
	if len(birth.DatePatterns) != 1 || birth.DatePatterns[0] != "dd.MM.uuuu" {
		t.Errorf("birthDate patterns = %v", birth.DatePatterns)
	}
	addr := person.Properties[2]
	if addr.Kind != schema.KindObject || addr.Ref != "address" {
		t.Errorf("address property = %+v", addr)
	}
}

func TestLoadFile_WriteTypeHintsDefaultsToInherit(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	path := writeFile(t, dir, "schema.yaml", `
entities:
  - name: minimal
    properties:
      - name: id
        type: keyword
`)

	entities, err := schema.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if entities[0].WriteTypeHints != schema.TypeHintInherit {
		t.Errorf("WriteTypeHints = %v, want TypeHintInherit", entities[0].WriteTypeHints)
	}
}

// --- Load failures ---

func TestLoadFile_MissingTemplateFile(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	path := writeFile(t, dir, "schema.yaml", `
entities:
  - name: doc
    dynamicTemplatesPath: nope.json
    properties:
      - name: id
`)

	if _, err := schema.LoadFile(path); err == nil {
		t.Fatal("LoadFile() succeeded with missing templates file")
	}
}

func TestLoadFile_InvalidTemplateJSON(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "templates.json", `{not json`)
	path := writeFile(t, dir, "schema.yaml", `
entities:
  - name: doc
    dynamicTemplatesPath: templates.json
    properties:
      - name: id
`)

	_, err := schema.LoadFile(path)
	if err == nil {
		t.Fatal("LoadFile() succeeded with invalid templates JSON")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("error = %v, want mention of invalid JSON", err)
	}
}

func TestLoadFile_ValidationFailure(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	path := writeFile(t, dir, "schema.yaml", `
entities:
  - name: doc
    properties:
      - name: a
        wireName: shared
      - name: b
        wireName: shared
`)

	if _, err := schema.LoadFile(path); err == nil {
		t.Fatal("LoadFile() succeeded despite duplicate wire names")
	}
}

// --- RegisterFile ---

func TestRegisterFile(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "templates.json", `[]`)
	writeFile(t, dir, "runtime.json", `{}`)
	path := writeFile(t, dir, "schema.yaml", personSchema)

	registry := schema.NewRegistry()
	entities, err := schema.RegisterFile(registry, path)
	if err != nil {
		t.Fatalf("RegisterFile() error = %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("RegisterFile() returned %d entities, want 2", len(entities))
	}
	for _, name := range []string{"person", "address"} {
		if _, ok := registry.Get(name); !ok {
			t.Errorf("entity %q not registered", name)
		}
	}
}
