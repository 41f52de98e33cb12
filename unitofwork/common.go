package unitofwork

import "errors"

var (
	// ErrAlreadyAttached is returned when an entity is attached while another open Unit of Work still tracks it.
	ErrAlreadyAttached = errors.New("entity is already attached to another open unit of work")

	// ErrDetachedEntity is returned when an entity that is not attached to the Unit of Work is marked, assigned or inspected.
	ErrDetachedEntity = errors.New("entity is not attached to this unit of work")

	// ErrUnknownField is returned when a field name is not declared in the entity's schema.
	ErrUnknownField = errors.New("field is not declared in the entity schema")

	// ErrPersistenceFailed is returned when the Backend failed to persist or load an entity.
	ErrPersistenceFailed = errors.New("persistence backend operation failed")

	// ErrNotFound is returned by a Backend when no persisted state exists for an identity.
	ErrNotFound = errors.New("entity not found")

	// ErrUnitOfWorkClosed is returned when a closed Unit of Work is used.
	ErrUnitOfWorkClosed = errors.New("unit of work is closed")

	// ErrIdentityConflict is returned when two different instances with the same identity meet in one Unit of Work.
	ErrIdentityConflict = errors.New("another instance with the same identity is attached to this unit of work")

	// ErrInvalidIdentity is returned for identities with an empty kind or a nil or non-comparable key.
	ErrInvalidIdentity = errors.New("entity identity is not valid")

	// ErrNilEntity is returned when a nil entity is supplied.
	ErrNilEntity = errors.New("entity must not be nil")

	// ErrEntityNotPointer is returned when an entity is not a pointer, so instances can't be told apart.
	ErrEntityNotPointer = errors.New("entity must be a pointer type")

	// ErrNotAssignable is returned by Assign when the entity does not implement Assignable.
	ErrNotAssignable = errors.New("entity does not support tracked assignment")

	// ErrNilBackend is returned when a Tracker is constructed without a Backend.
	ErrNilBackend = errors.New("nil backend supplied")

	// ErrCreateNotSupported is returned when an added entity is flushed but the Backend can't create entities.
	ErrCreateNotSupported = errors.New("backend does not support creating entities")

	// ErrDeleteNotSupported is returned when a removed entity is flushed but the Backend can't delete entities.
	ErrDeleteNotSupported = errors.New("backend does not support deleting entities")

	// ErrEmptyFieldName is returned when a schema field has an empty name.
	ErrEmptyFieldName = errors.New("field name must not be empty")

	// ErrDuplicateField is returned when a schema declares the same field twice.
	ErrDuplicateField = errors.New("field is declared more than once")
)
