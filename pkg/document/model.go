package document

import (
	"fmt"
	"sort"
	"strings"
)

// IDField is the document identifier. Every schema implicitly requires it.
const IDField = "_id"

// FieldKind marks a schema field as optional or required.
type FieldKind int

const (
	Field FieldKind = iota + 1
	Required
)

func (k FieldKind) String() string {
	switch k {
	case Field:
		return "field"
	case Required:
		return "required"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// ParseFieldKind accepts "field" or "required", in any case.
func ParseFieldKind(s string) (FieldKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "field":
		return Field, nil
	case "required":
		return Required, nil
	}
	return 0, fmt.Errorf("%w: unknown field kind %q", ErrSchema, s)
}

// Schema declares the fields of a model.
type Schema map[string]FieldKind

// Declared reports whether field is part of the schema. _id always is.
func (s Schema) Declared(field string) bool {
	if field == IDField {
		return true
	}
	_, ok := s[field]
	return ok
}

// IsRequired reports whether field must be present. _id always is.
func (s Schema) IsRequired(field string) bool {
	return field == IDField || s[field] == Required
}

// RequiredFields lists required fields in sorted order, _id excluded.
func (s Schema) RequiredFields() []string {
	var out []string
	for name, kind := range s {
		if kind == Required && name != IDField {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Override replaces the generic accessor path for one field. Any nil
// function falls back to the generic behaviour. Overrides read and write the
// raw document through Record.Lookup and Record.Assign.
type Override struct {
	Get    func(r *Record) (any, error)
	Set    func(r *Record, value any) error
	Has    func(r *Record) (bool, error)
	Remove func(r *Record) error
}

// Model describes one kind of record: its name, its schema, whether records
// are strict by default and any per-field accessor overrides.
type Model struct {
	Name      string
	Schema    Schema
	Strict    bool
	Overrides map[string]Override
}

// NewModel validates schema and returns a model. The schema is copied and
// _id is added as required.
func NewModel(name string, schema Schema, strict bool) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrSchema)
	}
	if schema == nil {
		return nil, fmt.Errorf("%w: %s: schema must be a field mapping", ErrSchema, name)
	}
	s := make(Schema, len(schema)+1)
	for field, kind := range schema {
		if field == "" {
			return nil, fmt.Errorf("%w: %s: empty field name", ErrSchema, name)
		}
		if kind != Field && kind != Required {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrSchema, name, field, kind)
		}
		s[field] = kind
	}
	s[IDField] = Required
	return &Model{Name: name, Schema: s, Strict: strict, Overrides: map[string]Override{}}, nil
}

// MustModel is like NewModel but panics on error. Intended for package-level
// model declarations.
func MustModel(name string, schema Schema, strict bool) *Model {
	m, err := NewModel(name, schema, strict)
	if err != nil {
		panic(err)
	}
	return m
}

// SchemaFromMap builds a schema from a decoded configuration mapping such as
// {"title": "required", "body": "field"}.
func SchemaFromMap(raw map[string]any) (Schema, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: schema must be a field mapping", ErrSchema)
	}
	s := make(Schema, len(raw))
	for field, v := range raw {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: kind must be a string", ErrSchema, field)
		}
		kind, err := ParseFieldKind(str)
		if err != nil {
			return nil, err
		}
		s[field] = kind
	}
	return s, nil
}

// WithOverride installs an accessor override for field and returns m.
func (m *Model) WithOverride(field string, o Override) *Model {
	if m.Overrides == nil {
		m.Overrides = map[string]Override{}
	}
	m.Overrides[field] = o
	return m
}

func (m *Model) override(field string) (Override, bool) {
	o, ok := m.Overrides[field]
	return o, ok
}
