package record

import "time"

// MetadataKey is the reserved top-level key for provenance data.
const MetadataKey = "_metadata"

// ProcessorVersion tags records produced by this structuring pipeline.
const ProcessorVersion = "2.3.0"

// Metadata describes how a record was produced. It is attached after
// validation and is never rendered as domain data.
type Metadata struct {
	ExtractionTimestamp time.Time
	TemplateName        string
	TemplateID          int
	TemplateVersion     string
	ProcessorVersion    string
	DataPoints          int
	Model               string
	SchemaWarnings      int
}

// Value converts m to its record form.
func (m Metadata) Value() Value {
	out := NewMap().
		Set("extraction_timestamp", String(m.ExtractionTimestamp.Format(time.RFC3339))).
		Set("template_name", String(m.TemplateName)).
		Set("template_id", Number(float64(m.TemplateID))).
		Set("template_version", String(m.TemplateVersion)).
		Set("processor_version", String(m.ProcessorVersion)).
		Set("data_points", Number(float64(m.DataPoints)))
	if m.Model != "" {
		out.Set("model", String(m.Model))
	}
	out.Set("schema_warnings", Number(float64(m.SchemaWarnings)))
	return MapValue(out)
}

// WithMetadata returns a copy of rec (which must be a map) with meta attached.
func WithMetadata(rec Value, meta Metadata) Value {
	m, ok := rec.AsMap()
	if !ok {
		return rec
	}
	out := m.Clone()
	out.Set(MetadataKey, meta.Value())
	return MapValue(out)
}

// StripMetadata returns a copy of rec without the metadata key.
func StripMetadata(rec Value) Value {
	m, ok := rec.AsMap()
	if !ok {
		return rec
	}
	out := m.Clone()
	out.Delete(MetadataKey)
	return MapValue(out)
}
