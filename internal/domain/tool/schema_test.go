package tool

import (
	"encoding/json"
	"testing"
)

func compileString(t *testing.T, raw string) *Schema {
	t.Helper()
	s, err := Compile(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return s
}

func TestCompilePrimitives(t *testing.T) {
	s := compileString(t, `{"type":"string"}`)
	if err := s.Validate("hello"); err != nil {
		t.Errorf("expected string to validate, got %v", err)
	}
	if err := s.Validate(42.0); err == nil {
		t.Errorf("expected number to fail string schema")
	}
}

func TestCompileObjectRequired(t *testing.T) {
	s := compileString(t, `{
		"type": "object",
		"properties": {"name": {"type": "string"}, "age": {"type": "integer"}},
		"required": ["name"]
	}`)

	if err := s.Validate(map[string]any{"name": "a"}); err != nil {
		t.Errorf("expected valid object, got %v", err)
	}
	if err := s.Validate(map[string]any{"age": 5.0}); err == nil {
		t.Errorf("expected missing required field to fail")
	}
	if err := s.Validate(map[string]any{"name": "a", "age": 5.5}); err == nil {
		t.Errorf("expected non-integer age to fail")
	}
}

func TestCompileArray(t *testing.T) {
	s := compileString(t, `{"type":"array","items":{"type":"number"}}`)
	if err := s.Validate([]any{1.0, 2.0, 3.0}); err != nil {
		t.Errorf("expected valid array, got %v", err)
	}
	if err := s.Validate([]any{1.0, "x"}); err == nil {
		t.Errorf("expected non-number element to fail")
	}
}

func TestCompileEnum(t *testing.T) {
	s := compileString(t, `{"enum": ["a", "b", "c"]}`)
	if err := s.Validate("b"); err != nil {
		t.Errorf("expected enum member to validate, got %v", err)
	}
	if err := s.Validate("z"); err == nil {
		t.Errorf("expected non-member to fail")
	}
}

func TestCompileUnionCoarsesEnum(t *testing.T) {
	s := compileString(t, `{"anyOf": [{"enum": ["a","b"]}, {"type": "integer"}]}`)
	if err := s.Validate("a"); err != nil {
		t.Errorf("expected enum alt's base primitive to accept any string, got %v", err)
	}
	if err := s.Validate(3.0); err != nil {
		t.Errorf("expected integer alt to validate, got %v", err)
	}
	if err := s.Validate(true); err == nil {
		t.Errorf("expected boolean to fail both alternatives")
	}
}

func TestCompileSelfRecursiveRef(t *testing.T) {
	s := compileString(t, `{
		"$defs": {
			"node": {
				"type": "object",
				"properties": {
					"value": {"type": "string"},
					"children": {"type": "array", "items": {"$ref": "#/$defs/node"}}
				}
			}
		},
		"$ref": "#/$defs/node"
	}`)

	data := map[string]any{
		"value": "root",
		"children": []any{
			map[string]any{"value": "child", "children": []any{}},
		},
	}
	if err := s.Validate(data); err != nil {
		t.Errorf("expected recursive structure to validate, got %v", err)
	}
}

func TestCompileUnknownRefFallsBackToAny(t *testing.T) {
	s := compileString(t, `{"$ref": "#/$defs/missing"}`)
	if err := s.Validate("anything at all"); err != nil {
		t.Errorf("unresolved ref should accept anything, got %v", err)
	}
}

func TestAliasesStripLeadingUnderscoresWithDedup(t *testing.T) {
	s := compileString(t, `{
		"type": "object",
		"properties": {
			"_id": {"type": "string"},
			"__id": {"type": "string"},
			"name": {"type": "string"}
		}
	}`)

	aliases := s.Aliases()
	if len(aliases) != 2 {
		t.Fatalf("expected 2 aliases for underscore-prefixed fields, got %d: %+v", len(aliases), aliases)
	}

	seen := map[string]string{}
	for _, a := range aliases {
		seen[a.WireName] = a.StoredName
	}
	if seen["_id"] == seen["__id"] {
		t.Errorf("expected distinct stored names on collision, got %q and %q", seen["_id"], seen["__id"])
	}
	if seen["_id"] != "id" && seen["__id"] != "id" {
		t.Errorf("expected one of the underscore fields to strip to %q, got %+v", "id", seen)
	}
}

func TestFragmentUsesStoredNames(t *testing.T) {
	s := compileString(t, `{
		"type": "object",
		"properties": {"_id": {"type": "string"}},
		"required": ["_id"]
	}`)
	frag := s.Fragment()
	if frag.Type != "object" {
		t.Fatalf("expected object fragment, got %q", frag.Type)
	}
	if _, ok := frag.Properties["id"]; !ok {
		t.Errorf("expected fragment property keyed by stored name %q, got %+v", "id", frag.Properties)
	}
	if len(frag.Required) != 1 || frag.Required[0] != "id" {
		t.Errorf("expected required list to use stored name, got %+v", frag.Required)
	}
}

func TestEmptySchemaIsAny(t *testing.T) {
	s := compileString(t, `{}`)
	if err := s.Validate(map[string]any{"anything": 1.0}); err != nil {
		t.Errorf("empty schema should accept anything, got %v", err)
	}
	if err := s.Validate(nil); err != nil {
		t.Errorf("empty schema should accept nil, got %v", err)
	}
}
