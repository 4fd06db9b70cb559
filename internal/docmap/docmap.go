// Package docmap is the index-configuration capability consumed by the
// indexer stage. It owns everything schema-shaped: which fields exist,
// how they map onto the segment writer, which field carries the event
// timestamp, and how a raw JSON payload becomes a structured document.
//
// The stage depends only on the Mapper interface; the JSON mapper is
// the one supported implementation.
package docmap

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2/mapping"
)

// FieldType is the set of supported field types.
type FieldType string

const (
	// FieldTypeText is analyzed full-text content.
	FieldTypeText FieldType = "text"
	// FieldTypeKeyword is a non-analyzed exact-match string.
	FieldTypeKeyword FieldType = "keyword"
	// FieldTypeLong is a 64-bit integer.
	FieldTypeLong FieldType = "long"
	// FieldTypeDatetime is a timestamp, indexed as epoch milliseconds.
	FieldTypeDatetime FieldType = "datetime"
)

// Field declares one schema field.
type Field struct {
	Name  string    `yaml:"name"`
	Type  FieldType `yaml:"type"`
	Store bool      `yaml:"store"`
}

// Config declares the document schema for one index.
type Config struct {
	// Fields are the declared schema fields.
	Fields []Field `yaml:"fields"`

	// TimestampField names the field whose values bound each split's
	// time range. Must be declared with type long or datetime.
	TimestampField string `yaml:"timestamp_field"`
}

// Validate checks the schema declaration for internal consistency.
func (c Config) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("mapping declares no fields")
	}
	seen := make(map[string]FieldType, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("mapping field with empty name")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate mapping field %q", f.Name)
		}
		switch f.Type {
		case FieldTypeText, FieldTypeKeyword, FieldTypeLong, FieldTypeDatetime:
		default:
			return fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}
		seen[f.Name] = f.Type
	}
	if c.TimestampField != "" {
		ft, ok := seen[c.TimestampField]
		if !ok {
			return fmt.Errorf("timestamp field %q is not declared", c.TimestampField)
		}
		if ft != FieldTypeLong && ft != FieldTypeDatetime {
			return fmt.Errorf("timestamp field %q must be long or datetime, got %q", c.TimestampField, ft)
		}
	}
	return nil
}

// Document is one parsed document ready for the segment writer.
type Document struct {
	// ID identifies the document within its split.
	ID string

	// Fields holds the typed field values keyed by field name.
	// Long and datetime values are int64 (datetime as epoch millis).
	Fields map[string]any
}

// Timestamp returns the int64 value of the named field, if present.
func (d *Document) Timestamp(field string) (int64, bool) {
	if field == "" {
		return 0, false
	}
	v, ok := d.Fields[field]
	if !ok {
		return 0, false
	}
	ts, ok := v.(int64)
	return ts, ok
}

// Mapper is the capability the indexer stage consumes. Implementations
// are read-only after construction and safe for sequential reuse.
type Mapper interface {
	// Schema returns the segment writer's index mapping.
	Schema() mapping.IndexMapping

	// TimestampField reports the designated timestamp field, if any.
	TimestampField() (string, bool)

	// DocFromJSON converts one raw JSON payload into a Document.
	// A non-nil error means the payload is malformed; the caller
	// counts and skips it.
	DocFromJSON(raw []byte) (*Document, error)
}

// parseDatetime accepts epoch milliseconds or an RFC3339 string.
func parseDatetime(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return 0, fmt.Errorf("invalid datetime %q: %w", t, err)
		}
		return parsed.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("invalid datetime value of type %T", v)
	}
}
