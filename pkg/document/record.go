package document

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson"
)

// Accessor operations.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpHas    = "has"
	OpRemove = "remove"
)

// Record is a document bound to a Model. A strict record only accepts the
// fields its schema declares; a lenient one behaves as an open mapping.
// Strictness is fixed when the record is built.
type Record struct {
	model  *Model
	doc    bson.M
	strict bool
}

// NewRecord builds a record of model from doc, assigning every key through
// Set so that strict records reject undeclared fields up front.
func NewRecord(model *Model, doc bson.M, strict bool) (*Record, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model is required", ErrSchema)
	}
	r := &Record{model: model, doc: bson.M{}, strict: strict}
	for k, v := range doc {
		if err := r.Set(k, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// New builds a record with the model's default strictness.
func (m *Model) New(doc bson.M) (*Record, error) {
	return NewRecord(m, doc, m.Strict)
}

// Model returns the model the record belongs to.
func (r *Record) Model() *Model { return r.model }

// Strict reports whether the record rejects undeclared fields.
func (r *Record) Strict() bool { return r.strict }

// Get returns the value of field, or nil when it is unset.
func (r *Record) Get(field string) (any, error) {
	if field == "" {
		return nil, ErrEmptyField
	}
	if o, ok := r.model.override(field); ok && o.Get != nil {
		return o.Get(r)
	}
	if err := r.checkDeclared(field); err != nil {
		return nil, err
	}
	return r.doc[field], nil
}

// Set inserts or overwrites field.
func (r *Record) Set(field string, value any) error {
	if field == "" {
		return ErrEmptyField
	}
	if o, ok := r.model.override(field); ok && o.Set != nil {
		return o.Set(r, value)
	}
	if err := r.checkDeclared(field); err != nil {
		return err
	}
	r.doc[field] = value
	return nil
}

// Has reports whether field is present in the document.
func (r *Record) Has(field string) (bool, error) {
	if field == "" {
		return false, ErrEmptyField
	}
	if o, ok := r.model.override(field); ok && o.Has != nil {
		return o.Has(r)
	}
	if err := r.checkDeclared(field); err != nil {
		return false, err
	}
	_, ok := r.doc[field]
	return ok, nil
}

// Remove deletes field. Removing an absent field is a no-op. Strict records
// refuse undeclared fields, required fields and _id.
func (r *Record) Remove(field string) error {
	if field == "" {
		return ErrEmptyField
	}
	if o, ok := r.model.override(field); ok && o.Remove != nil {
		return o.Remove(r)
	}
	if err := r.checkDeclared(field); err != nil {
		return err
	}
	if r.strict && r.model.Schema.IsRequired(field) {
		return fieldError(r.model.Name, field, ErrFieldRequired)
	}
	delete(r.doc, field)
	return nil
}

func (r *Record) checkDeclared(field string) error {
	if r.strict && !r.model.Schema.Declared(field) {
		return fieldError(r.model.Name, field, ErrFieldNotDeclared)
	}
	return nil
}

// Lookup reads field from the raw document, bypassing overrides and schema
// checks.
func (r *Record) Lookup(field string) (any, bool) {
	v, ok := r.doc[field]
	return v, ok
}

// Assign writes field to the raw document, bypassing overrides and schema
// checks.
func (r *Record) Assign(field string, value any) {
	r.doc[field] = value
}

// Unset deletes field from the raw document.
func (r *Record) Unset(field string) {
	delete(r.doc, field)
}

// ID returns the document identifier, or nil.
func (r *Record) ID() any { return r.doc[IDField] }

// HasID reports whether the record carries an identifier.
func (r *Record) HasID() bool {
	id, ok := r.doc[IDField]
	return ok && id != nil
}

// SetID assigns the identifier.
func (r *Record) SetID(id any) { r.doc[IDField] = id }

// Document returns a shallow copy of the underlying document.
func (r *Record) Document() bson.M {
	out := make(bson.M, len(r.doc))
	for k, v := range r.doc {
		out[k] = v
	}
	return out
}

// ordered returns the document with every embedded map turned into a bson.D
// sorted by key. Embedded bson.D values keep their order.
func (r *Record) ordered() bson.M {
	out := make(bson.M, len(r.doc))
	for k, v := range r.doc {
		out[k] = orderedValue(v)
	}
	return out
}

func orderedValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return orderedMap(t)
	case map[string]any:
		return orderedMap(t)
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: orderedValue(e.Value)}
		}
		return out
	case bson.A:
		return orderedSlice(t)
	case []any:
		return orderedSlice(t)
	default:
		return v
	}
}

func orderedMap(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, len(keys))
	for i, k := range keys {
		out[i] = bson.E{Key: k, Value: orderedValue(m[k])}
	}
	return out
}

func orderedSlice(s []any) bson.A {
	out := make(bson.A, len(s))
	for i, v := range s {
		out[i] = orderedValue(v)
	}
	return out
}

// Decode unmarshals the record into a typed value using bson struct tags.
func (r *Record) Decode(v any) error {
	data, err := bson.Marshal(r.doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", r.model.Name, err)
	}
	if err := bson.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s record: %w", r.model.Name, err)
	}
	return nil
}

// FromStruct builds a record from a bson-tagged struct. With strict set, the
// struct's fields are validated against the schema at construction.
func FromStruct(model *Model, v any, strict bool) (*Record, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	doc := bson.M{}
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return NewRecord(model, doc, strict)
}

// Invoke resolves a generated accessor name such as "getFirstName" or
// "removeTags" to the matching operation on the snake_case field. Set takes
// its value from the last argument.
func (r *Record) Invoke(accessor string, args ...any) (any, error) {
	op, rest := splitAccessor(accessor)
	if op == "" {
		return nil, fmt.Errorf("%w: %q on %s", ErrUnknownAccessor, accessor, r.model.Name)
	}
	field := SnakeCase(rest)
	if field == "" {
		return nil, ErrEmptyField
	}
	if _, overridden := r.model.override(field); !overridden {
		if err := r.checkDeclared(field); err != nil {
			return nil, err
		}
	}

	switch op {
	case OpGet:
		return r.Get(field)
	case OpSet:
		var value any
		if len(args) > 0 {
			value = args[len(args)-1]
		}
		return nil, r.Set(field, value)
	case OpHas:
		return r.Has(field)
	default:
		return nil, r.Remove(field)
	}
}

// AccessorName builds the accessor name for op on field, e.g.
// AccessorName("get", "first_name") == "getFirstName".
func AccessorName(op, field string) string {
	var b strings.Builder
	b.WriteString(op)
	for _, word := range strings.Split(field, "_") {
		if word == "" {
			continue
		}
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

func splitAccessor(accessor string) (op, rest string) {
	for _, candidate := range []string{OpGet, OpSet, OpRemove, OpHas} {
		if strings.HasPrefix(accessor, candidate) {
			return candidate, accessor[len(candidate):]
		}
	}
	return "", ""
}

// SnakeCase converts an UpperCamelCase name to snake_case. Runs of capitals
// are kept together as one word: "UserID" becomes "user_id" and
// "HTMLTitle" becomes "html_title".
func SnakeCase(name string) string {
	return strings.Join(camelWords(name), "_")
}

func camelWords(name string) []string {
	runes := []rune(name)
	var words []string
	for i := 0; i < len(runes); {
		switch {
		case unicode.IsUpper(runes[i]):
			j := i + 1
			for j < len(runes) && (unicode.IsUpper(runes[j]) || unicode.IsDigit(runes[j])) {
				j++
			}
			if j < len(runes) && unicode.IsLower(runes[j]) && j-i > 1 {
				// acronym followed by a capitalised word
				words = append(words, strings.ToLower(string(runes[i:j-1])))
				i = j - 1
				continue
			}
			if j == len(runes) || j-i > 1 {
				words = append(words, strings.ToLower(string(runes[i:j])))
				i = j
				continue
			}
			k := j
			for k < len(runes) && (unicode.IsLower(runes[k]) || unicode.IsDigit(runes[k])) {
				k++
			}
			words = append(words, strings.ToLower(string(runes[i:k])))
			i = k
		case unicode.IsLower(runes[i]) || unicode.IsDigit(runes[i]):
			k := i + 1
			for k < len(runes) && (unicode.IsLower(runes[k]) || unicode.IsDigit(runes[k])) {
				k++
			}
			words = append(words, string(runes[i:k]))
			i = k
		default:
			i++
		}
	}
	return words
}
