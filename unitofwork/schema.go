package unitofwork

import (
	"fmt"
	"reflect"
)

// FieldKind tells the tracker how changes of a field can be detected.
type FieldKind int

const (
	// ScalarField has value semantics, comparing against the baseline detects every change.
	ScalarField FieldKind = iota

	// CollectionField has reference semantics, in-place mutation keeps its identity.
	CollectionField
)

// String provides a string representation of FieldKind for logging and debugging.
func (k FieldKind) String() string {
	switch k {
	case ScalarField:
		return "scalar"
	case CollectionField:
		return "collection"
	default:
		return "unknown"
	}
}

// Field declares one field of an entity schema.
type Field struct {
	name string
	kind FieldKind
	typ  reflect.Type
}

// Scalar declares a scalar field holding values of type T.
func Scalar[T any](name string) Field {
	return Field{name: name, kind: ScalarField, typ: reflect.TypeFor[T]()}
}

// Collection declares a collection field holding values of type []T.
func Collection[T any](name string) Field {
	return Field{name: name, kind: CollectionField, typ: reflect.TypeFor[[]T]()}
}

// Name returns the field name.
func (f Field) Name() string {
	return f.name
}

// Kind returns the field kind.
func (f Field) Kind() FieldKind {
	return f.kind
}

// Type returns the Go type of the field values.
func (f Field) Type() reflect.Type {
	return f.typ
}

// Schema is the ordered, immutable set of fields of an entity type.
type Schema struct {
	fields []Field
	index  map[string]int
}

// BuildSchema is a factory method for Schema.
//
// Returns an error if a field name is empty or declared twice.
func BuildSchema(fields ...Field) (Schema, error) {
	schema := Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	for _, field := range fields {
		if field.name == "" {
			return Schema{}, ErrEmptyFieldName
		}

		if _, ok := schema.index[field.name]; ok {
			return Schema{}, fmt.Errorf("%w: %s", ErrDuplicateField, field.name)
		}

		schema.index[field.name] = len(schema.fields)
		schema.fields = append(schema.fields, field)
	}

	return schema, nil
}

// MustBuildSchema is like BuildSchema but panics on error. Meant for package-level schema variables.
func MustBuildSchema(fields ...Field) Schema {
	schema, err := BuildSchema(fields...)
	if err != nil {
		panic(err)
	}

	return schema
}

// Fields returns a copy of the declared fields in declaration order.
func (s Schema) Fields() []Field {
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)

	return fields
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}

	return s.fields[i], true
}

// Has reports whether the schema declares the named field.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of declared fields.
func (s Schema) Len() int {
	return len(s.fields)
}
