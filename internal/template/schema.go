package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaHint renders the nested schema shown to the model. Key order follows
// the catalog so the prompt reads top to bottom like the workbook.
func (t Template) SchemaHint(v Variant) string {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	sections := t.SectionsFor(v)
	for i, s := range sections {
		writeKey(&buf, 1, s.Key)
		switch s.Shape {
		case ShapeTabular:
			buf.WriteString("[\n")
			indent(&buf, 2)
			writeFields(&buf, 2, s.Columns)
			buf.WriteString("\n")
			indent(&buf, 1)
			buf.WriteString("]")
		case ShapeReference:
			fields := []Field{}
			for _, g := range s.Groups {
				fields = append(fields, g.Fields...)
			}
			writeFields(&buf, 1, fields)
		default:
			buf.WriteString("{\n")
			for j, g := range s.Groups {
				writeKey(&buf, 2, g.Name)
				writeFields(&buf, 2, g.Fields)
				if j < len(s.Groups)-1 {
					buf.WriteString(",")
				}
				buf.WriteString("\n")
			}
			indent(&buf, 1)
			buf.WriteString("}")
		}
		if i < len(sections)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.String()
}

func writeFields(buf *bytes.Buffer, depth int, fields []Field) {
	buf.WriteString("{\n")
	for i, f := range fields {
		writeKey(buf, depth+1, f.Name)
		buf.WriteString(kindHint(f.Kind))
		if i < len(fields)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	indent(buf, depth)
	buf.WriteString("}")
}

func writeKey(buf *bytes.Buffer, depth int, name string) {
	indent(buf, depth)
	b, _ := json.Marshal(name)
	buf.Write(b)
	buf.WriteString(": ")
}

func indent(buf *bytes.Buffer, depth int) {
	buf.WriteString(strings.Repeat("  ", depth))
}

func kindHint(k Kind) string {
	switch k {
	case KindNumber:
		return `"number or null"`
	case KindStringList:
		return `["string"]`
	case KindRequiredString:
		return `"string"`
	default:
		return `"string or null"`
	}
}

// JSONSchema exports a permissive JSON Schema for the full variant. Every leaf
// is nullable and unknown properties are allowed, so the schema only flags
// values of the wrong type.
func (t Template) JSONSchema() ([]byte, error) {
	props := map[string]any{}
	for _, s := range t.Sections {
		switch s.Shape {
		case ShapeTabular:
			props[s.Key] = map[string]any{
				"type":  []string{"array", "null"},
				"items": objectSchema(s.Columns),
			}
		case ShapeReference:
			var fields []Field
			for _, g := range s.Groups {
				fields = append(fields, g.Fields...)
			}
			props[s.Key] = objectSchema(fields)
		default:
			groups := map[string]any{}
			for _, g := range s.Groups {
				groups[g.Name] = objectSchema(g.Fields)
			}
			props[s.Key] = map[string]any{
				"type":       []string{"object", "null"},
				"properties": groups,
			}
		}
	}
	doc := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"title":      t.Name,
		"type":       "object",
		"properties": props,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func objectSchema(fields []Field) map[string]any {
	props := map[string]any{}
	for _, f := range fields {
		switch f.Kind {
		case KindNumber:
			props[f.Name] = map[string]any{"type": []string{"number", "null"}}
		case KindStringList:
			props[f.Name] = map[string]any{
				"type":  []string{"array", "null"},
				"items": map[string]any{"type": []string{"string", "null"}},
			}
		default:
			props[f.Name] = map[string]any{"type": []string{"string", "null"}}
		}
	}
	return map[string]any{
		"type":       []string{"object", "null"},
		"properties": props,
	}
}

// CompileJSONSchema compiles JSONSchema for validating decoded documents.
func (t Template) CompileJSONSchema() (*jsonschema.Schema, error) {
	raw, err := t.JSONSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaCompile, err)
	}
	url := fmt.Sprintf("template-%d.json", t.ID)
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaCompile, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaCompile, err)
	}
	return schema, nil
}
