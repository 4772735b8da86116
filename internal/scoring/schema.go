package scoring

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type documentSchema struct {
	name       string
	definition string
}

var (
	curveSchema = documentSchema{
		name: "curve",
		definition: `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["raw", "lower", "upper"],
    "properties": {
      "raw":   {"type": "integer"},
      "lower": {"type": "integer"},
      "upper": {"type": "integer"}
    }
  }
}`,
	}

	templateSchema = documentSchema{
		name: "template",
		definition: `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "type": "array",
    "items": {"type": "string", "minLength": 1}
  }
}`,
	}
)

// schemaCache caches compiled schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

func validateDocument(s documentSchema, raw []byte) error {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	compiled, err := compiledSchema(s)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", s.name, err)
	}
	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func compiledSchema(s documentSchema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(s.name); ok {
		return cached.(*jsonschema.Schema), nil
	}
	def, err := jsonschema.UnmarshalJSON(strings.NewReader(s.definition))
	if err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", s.name)
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	schemaCache.Store(s.name, compiled)
	return compiled, nil
}

// ParseTemplateSections validates a stored {"section": [modules]} document and
// decodes it in declaration order.
func ParseTemplateSections(data []byte) ([]Section, error) {
	if err := validateDocument(templateSchema, data); err != nil {
		return nil, &ConfigError{Scope: "template", Reason: err.Error()}
	}
	secs, err := ParseSections(data)
	if err != nil {
		return nil, &ConfigError{Scope: "template", Reason: err.Error()}
	}
	return secs, nil
}
