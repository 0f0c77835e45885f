package document

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.mongodb.org/mongo-driver/bson"
)

func personModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel("person", Schema{"name": Field, "age": Required, "first_name": Field}, true)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	return m
}

func TestStrictRecord(t *testing.T) {
	rec, err := NewRecord(personModel(t), nil, true)
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}

	if _, err := rec.Get("unknown"); !errors.Is(err, ErrFieldNotDeclared) {
		t.Fatalf("Get(unknown) error = %v, want ErrFieldNotDeclared", err)
	}
	if err := rec.Set("unknown", 1); !errors.Is(err, ErrFieldNotDeclared) {
		t.Fatalf("Set(unknown) error = %v", err)
	}
	if _, err := rec.Has("unknown"); !errors.Is(err, ErrFieldNotDeclared) {
		t.Fatalf("Has(unknown) error = %v", err)
	}
	if err := rec.Remove("unknown"); !errors.Is(err, ErrFieldNotDeclared) {
		t.Fatalf("Remove(unknown) error = %v, want ErrFieldNotDeclared", err)
	}
	if _, err := rec.Invoke("removeUnknown"); !errors.Is(err, ErrFieldNotDeclared) {
		t.Fatalf("Invoke(removeUnknown) error = %v, want ErrFieldNotDeclared", err)
	}
	if err := rec.Remove("age"); !errors.Is(err, ErrFieldRequired) {
		t.Fatalf("Remove(age) error = %v, want ErrFieldRequired", err)
	}
	if err := rec.Remove(IDField); !errors.Is(err, ErrFieldRequired) {
		t.Fatalf("Remove(_id) error = %v, want ErrFieldRequired", err)
	}

	v, err := rec.Get("name")
	if err != nil || v != nil {
		t.Fatalf("Get(name) = %v, %v; want nil, nil", v, err)
	}
	if err := rec.Remove("name"); err != nil {
		t.Fatalf("Remove(absent optional) error = %v", err)
	}

	var fe *FieldError
	_, err = rec.Get("unknown")
	if !errors.As(err, &fe) || fe.Field != "unknown" || fe.Model != "person" {
		t.Fatalf("expected FieldError for unknown, got %v", err)
	}
}

func TestStrictRecord_RejectsUndeclaredOnConstruction(t *testing.T) {
	if _, err := NewRecord(personModel(t), bson.M{"name": "a", "extra": 1}, true); !errors.Is(err, ErrFieldNotDeclared) {
		t.Fatalf("NewRecord() error = %v", err)
	}
}

func TestLenientRecord(t *testing.T) {
	rec, err := NewRecord(personModel(t), bson.M{"extra": 1}, false)
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}
	if v, _ := rec.Get("extra"); v != 1 {
		t.Fatalf("Get(extra) = %v", v)
	}
	if err := rec.Remove("age"); err != nil {
		t.Fatalf("lenient Remove(age) error = %v", err)
	}
	if err := rec.Remove("missing"); err != nil {
		t.Fatalf("Remove(missing) error = %v", err)
	}
	if ok, _ := rec.Has("extra"); !ok {
		t.Fatal("expected Has(extra)")
	}
}

func TestRecord_EmptyField(t *testing.T) {
	rec, _ := NewRecord(personModel(t), nil, false)
	if _, err := rec.Get(""); !errors.Is(err, ErrEmptyField) {
		t.Fatalf("Get(\"\") error = %v", err)
	}
	if err := rec.Set("", 1); !errors.Is(err, ErrEmptyField) {
		t.Fatalf("Set(\"\") error = %v", err)
	}
	if _, err := rec.Has(""); !errors.Is(err, ErrEmptyField) {
		t.Fatalf("Has(\"\") error = %v", err)
	}
	if err := rec.Remove(""); !errors.Is(err, ErrEmptyField) {
		t.Fatalf("Remove(\"\") error = %v", err)
	}
}

func TestRecord_Invoke(t *testing.T) {
	rec, _ := NewRecord(personModel(t), nil, true)

	if _, err := rec.Invoke("setFirstName", "Ada"); err != nil {
		t.Fatalf("setFirstName error = %v", err)
	}
	v, err := rec.Invoke("getFirstName")
	if err != nil || v != "Ada" {
		t.Fatalf("getFirstName = %v, %v", v, err)
	}
	if has, _ := rec.Invoke("hasFirstName"); has != true {
		t.Fatalf("hasFirstName = %v", has)
	}
	if _, err := rec.Invoke("removeFirstName"); err != nil {
		t.Fatalf("removeFirstName error = %v", err)
	}
	if has, _ := rec.Invoke("hasFirstName"); has != false {
		t.Fatalf("hasFirstName after remove = %v", has)
	}
	if _, err := rec.Invoke("getLastName"); !errors.Is(err, ErrFieldNotDeclared) {
		t.Fatalf("getLastName error = %v", err)
	}
	if _, err := rec.Invoke("fetchName"); !errors.Is(err, ErrUnknownAccessor) {
		t.Fatalf("fetchName error = %v", err)
	}
	if _, err := rec.Invoke("get"); !errors.Is(err, ErrEmptyField) {
		t.Fatalf("get error = %v", err)
	}
}

func TestRecord_Overrides(t *testing.T) {
	m := personModel(t)
	m.WithOverride("display", Override{
		Get: func(r *Record) (any, error) {
			name, _ := r.Lookup("name")
			age, _ := r.Lookup("age")
			return name.(string) + " (" + age.(string) + ")", nil
		},
	})
	m.WithOverride("name", Override{
		Set: func(r *Record, v any) error {
			r.Assign("name", "Dr. "+v.(string))
			return nil
		},
	})

	rec, err := m.New(bson.M{"name": "Who", "age": "900"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// display is undeclared but overridden, so strict mode lets it through.
	v, err := rec.Invoke("getDisplay")
	if err != nil || v != "Dr. Who (900)" {
		t.Fatalf("getDisplay = %v, %v", v, err)
	}
	if got, _ := rec.Get("name"); got != "Dr. Who" {
		t.Fatalf("Get(name) = %v; override Set not applied", got)
	}
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"FirstName":  "first_name",
		"Name":       "name",
		"UserID":     "user_id",
		"HTMLTitle":  "html_title",
		"ID":         "id",
		"CreatedAt2": "created_at2",
	}
	for in, want := range tests {
		if got := SnakeCase(in); got != want {
			t.Errorf("SnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
	if got := AccessorName(OpRemove, "first_name"); got != "removeFirstName" {
		t.Fatalf("AccessorName() = %q", got)
	}
}

func TestAccessorNameRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("snake_case field survives accessor naming", prop.ForAll(
		func(field string) bool {
			op, rest := splitAccessor(AccessorName(OpGet, field))
			return op == OpGet && SnakeCase(rest) == field
		},
		gen.RegexMatch(`^[a-z]{1,8}(_[a-z]{1,8}){0,3}$`),
	))

	properties.TestingRun(t)
}

func TestNewModel(t *testing.T) {
	if _, err := NewModel("x", nil, false); !errors.Is(err, ErrSchema) {
		t.Fatalf("nil schema error = %v", err)
	}
	if _, err := NewModel("x", Schema{"a": FieldKind(9)}, false); !errors.Is(err, ErrSchema) {
		t.Fatalf("bad kind error = %v", err)
	}
	m := MustModel("x", Schema{"a": Field}, false)
	if !m.Schema.IsRequired(IDField) || !m.Schema.Declared(IDField) {
		t.Fatal("_id must be declared and required")
	}
	if got := m.Schema.RequiredFields(); len(got) != 0 {
		t.Fatalf("RequiredFields() = %v, want none", got)
	}

	s, err := SchemaFromMap(map[string]any{"title": "REQUIRED", "body": "field"})
	if err != nil || s["title"] != Required || s["body"] != Field {
		t.Fatalf("SchemaFromMap() = %v, %v", s, err)
	}
	if _, err := SchemaFromMap(map[string]any{"title": 1}); !errors.Is(err, ErrSchema) {
		t.Fatalf("SchemaFromMap(bad) error = %v", err)
	}
}

type person struct {
	Name string `bson:"name"`
	Age  int    `bson:"age"`
}

func TestRecord_StructBridge(t *testing.T) {
	m := personModel(t)
	rec, err := FromStruct(m, person{Name: "Ada", Age: 36}, true)
	if err != nil {
		t.Fatalf("FromStruct() error = %v", err)
	}
	var p person
	if err := rec.Decode(&p); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.Name != "Ada" || p.Age != 36 {
		t.Fatalf("Decode() = %+v", p)
	}

	type extra struct {
		Nick string `bson:"nick"`
	}
	if _, err := FromStruct(m, extra{Nick: "x"}, true); !errors.Is(err, ErrFieldNotDeclared) {
		t.Fatalf("FromStruct(extra) error = %v", err)
	}
}
