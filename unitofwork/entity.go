package unitofwork

import (
	"errors"
	"fmt"
	"reflect"
)

// FieldValues maps field names to values. It is the payload handed to a Backend on
// persist and the result of a Backend load.
type FieldValues = map[string]any

// Identity is the stable identity of an entity: its kind (e.g. the table) and its primary key.
// Key must be comparable.
type Identity struct {
	Kind string
	Key  any
}

// NewIdentity is a factory method for Identity.
func NewIdentity(kind string, key any) Identity {
	return Identity{Kind: kind, Key: key}
}

// Validate ensures the identity can be used as a map key and addresses something.
func (id Identity) Validate() error {
	if id.Kind == "" || id.Key == nil {
		return ErrInvalidIdentity
	}

	// the dynamic check also rejects structs and interfaces that hold a slice, map or func
	if !reflect.ValueOf(id.Key).Comparable() {
		return errors.Join(ErrInvalidIdentity, fmt.Errorf("key of type %T is not comparable", id.Key))
	}

	return nil
}

// String provides a string representation of Identity for logging and debugging.
func (id Identity) String() string {
	return fmt.Sprintf("%s/%v", id.Kind, id.Key)
}

// Entity is the capability surface a type needs to be tracked: a stable identity,
// a schema and read access to its fields. Entities don't carry persistence behavior,
// they are handed to a UnitOfWork instead.
//
// Implementations must be pointer types, tracking is per instance.
type Entity interface {
	Identity() Identity
	Schema() Schema
	FieldValue(name string) any
}

// Assignable is implemented by entities that allow tracked assignment through UnitOfWork.Assign.
type Assignable interface {
	Entity
	AssignField(name string, value any) error
}

func validateEntity(entity Entity) error {
	if entity == nil {
		return ErrNilEntity
	}

	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer {
		return ErrEntityNotPointer
	}

	if rv.IsNil() {
		return ErrNilEntity
	}

	return entity.Identity().Validate()
}

// currentValues reads all schema fields of the entity.
func currentValues(entity Entity) FieldValues {
	schema := entity.Schema()
	values := make(FieldValues, schema.Len())

	for _, field := range schema.Fields() {
		values[field.Name()] = entity.FieldValue(field.Name())
	}

	return values
}
