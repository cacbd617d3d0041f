package template

import "errors"

var (
	// ErrUnknownTemplate is returned for ids outside the catalog.
	ErrUnknownTemplate = errors.New("invalid template id")

	// ErrSchemaCompile is returned when the exported JSON Schema fails to compile.
	ErrSchemaCompile = errors.New("failed to compile template json schema")
)
