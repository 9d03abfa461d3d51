package datagen

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Schema is the subset of JSON Schema used for mock payloads
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Format     string             `json:"format,omitempty"`
	Example    any                `json:"example,omitempty"`
}

// SchemaGenerator generates data from schemas
type SchemaGenerator struct {
	gen *DataGenerator
}

// NewSchemaGenerator wraps a data generator
func NewSchemaGenerator(gen *DataGenerator) *SchemaGenerator {
	if gen == nil {
		gen = NewDataGenerator()
	}
	return &SchemaGenerator{gen: gen}
}

// SchemaFromParams builds an object schema with one property per
// parameter. Required keeps declaration order.
func SchemaFromParams(params []model.Parameter) *Schema {
	s := &Schema{Type: "object", Properties: make(map[string]*Schema, len(params))}
	for _, p := range params {
		t := p.Type
		if t == "" || t == "file" {
			t = "string"
		}
		prop := &Schema{Type: t, Format: formatFor(p.Name)}
		if t == "array" {
			prop.Items = &Schema{Type: "string"}
		}
		s.Properties[p.Name] = prop
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// Generate produces a value for schema. Object properties are generated in
// name order so the draw sequence is stable.
func (sg *SchemaGenerator) Generate(schema *Schema, fieldName string) any {
	if schema == nil {
		return nil
	}
	if schema.Example != nil {
		return schema.Example
	}

	switch schema.Type {
	case "object":
		out := make(map[string]any, len(schema.Properties))
		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out[name] = sg.Generate(schema.Properties[name], name)
		}
		return out
	case "array":
		item := schema.Items
		if item == nil {
			item = &Schema{Type: "string"}
		}
		return []any{sg.Generate(item, singular(fieldName))}
	case "string":
		return sg.generateString(schema, fieldName)
	default:
		return sg.gen.ValueFor(fieldName, schema.Type)
	}
}

func (sg *SchemaGenerator) generateString(schema *Schema, fieldName string) any {
	switch schema.Format {
	case "email":
		return sg.gen.Email()
	case "date-time":
		return sg.gen.DateTime()
	case "uri":
		return sg.gen.URL()
	case "uuid":
		return sg.gen.UUID()
	}
	return sg.gen.ValueFor(fieldName, "string")
}

// GenerateFromJSON parses a JSON schema document and generates from it
func (sg *SchemaGenerator) GenerateFromJSON(schemaJSON string) (any, error) {
	var schema Schema
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return sg.Generate(&schema, ""), nil
}

// InferSchema derives a schema from a decoded JSON sample, e.g. a request
// body example found next to a handler.
func InferSchema(fieldName string, value any) *Schema {
	switch v := value.(type) {
	case string:
		return &Schema{Type: "string", Format: formatFor(fieldName)}
	case float64:
		if v == float64(int64(v)) {
			return &Schema{Type: "integer"}
		}
		return &Schema{Type: "number"}
	case bool:
		return &Schema{Type: "boolean"}
	case []any:
		if len(v) > 0 {
			return &Schema{Type: "array", Items: InferSchema(fieldName, v[0])}
		}
		return &Schema{Type: "array"}
	case map[string]any:
		s := &Schema{Type: "object", Properties: make(map[string]*Schema, len(v))}
		for key, val := range v {
			s.Properties[key] = InferSchema(key, val)
		}
		return s
	default:
		return &Schema{Type: "string"}
	}
}

func formatFor(fieldName string) string {
	f := strings.ToLower(fieldName)
	switch {
	case strings.Contains(f, "email"):
		return "email"
	case strings.Contains(f, "date") || strings.HasSuffix(f, "_at"):
		return "date-time"
	case strings.Contains(f, "url") || strings.Contains(f, "link"):
		return "uri"
	case f == "uuid":
		return "uuid"
	}
	return ""
}

func singular(name string) string {
	if strings.HasSuffix(name, "s") && len(name) > 1 {
		return name[:len(name)-1]
	}
	return name
}
