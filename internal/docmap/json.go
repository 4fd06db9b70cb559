package docmap

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	ingesterr "github.com/loamsearch/ingest/internal/errors"
)

// idField is the reserved document-id field in raw payloads.
const idField = "_id"

// JSONMapper converts newline-delimited JSON payloads into documents
// according to a declared schema.
type JSONMapper struct {
	cfg    Config
	schema *mapping.IndexMappingImpl
	types  map[string]FieldType
}

var _ Mapper = (*JSONMapper)(nil)

// NewJSONMapper builds a JSON mapper and its bleve index mapping from
// the declared schema.
func NewJSONMapper(cfg Config) (*JSONMapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()
	types := make(map[string]FieldType, len(cfg.Fields))
	for _, f := range cfg.Fields {
		var fm *mapping.FieldMapping
		switch f.Type {
		case FieldTypeText:
			fm = bleve.NewTextFieldMapping()
		case FieldTypeKeyword:
			fm = bleve.NewKeywordFieldMapping()
		case FieldTypeLong, FieldTypeDatetime:
			// Datetimes are normalized to epoch millis before indexing.
			fm = bleve.NewNumericFieldMapping()
		}
		fm.Store = f.Store
		docMapping.AddFieldMappingsAt(f.Name, fm)
		types[f.Name] = f.Type
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping

	return &JSONMapper{
		cfg:    cfg,
		schema: indexMapping,
		types:  types,
	}, nil
}

// Schema returns the bleve index mapping for the declared schema.
func (m *JSONMapper) Schema() mapping.IndexMapping {
	return m.schema
}

// TimestampField reports the designated timestamp field, if any.
func (m *JSONMapper) TimestampField() (string, bool) {
	return m.cfg.TimestampField, m.cfg.TimestampField != ""
}

// DocFromJSON parses one raw JSON object into a Document. Fields not
// declared in the schema are dropped; declared fields with values of
// the wrong type make the whole payload a parse failure.
func (m *JSONMapper) DocFromJSON(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, ingesterr.ParseError("document is not a JSON object", err)
	}

	doc := &Document{
		Fields: make(map[string]any, len(m.types)),
	}

	if id, ok := obj[idField].(string); ok && id != "" {
		doc.ID = id
	} else {
		doc.ID = uuid.NewString()
	}

	for name, ft := range m.types {
		v, ok := obj[name]
		if !ok {
			continue
		}
		coerced, err := coerce(v, ft)
		if err != nil {
			if name == m.cfg.TimestampField {
				return nil, ingesterr.New(ingesterr.ErrCodeTimestampType,
					fmt.Sprintf("field %q: %v", name, err), err)
			}
			return nil, ingesterr.ParseError(fmt.Sprintf("field %q: %v", name, err), err)
		}
		doc.Fields[name] = coerced
	}

	return doc, nil
}

// coerce converts a decoded JSON value to the declared field type.
func coerce(v any, ft FieldType) (any, error) {
	switch ft {
	case FieldTypeText, FieldTypeKeyword:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case FieldTypeLong:
		num, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
		i, err := num.Int64()
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", num.String())
		}
		return i, nil
	case FieldTypeDatetime:
		if num, ok := v.(json.Number); ok {
			i, err := num.Int64()
			if err != nil {
				return nil, fmt.Errorf("expected epoch millis, got %q", num.String())
			}
			return i, nil
		}
		return parseDatetime(v)
	}
	return nil, fmt.Errorf("unknown field type %q", ft)
}
