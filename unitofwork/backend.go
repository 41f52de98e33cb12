package unitofwork

import "context"

// Backend is the persistence collaborator of the tracker. It is only reached on Flush, Load and Reattach.
//
// Persist receives exactly the fields the tracker selected as dirty for one entity.
// Load returns the persisted field values or an error that matches ErrNotFound.
type Backend interface {
	Persist(ctx context.Context, id Identity, values FieldValues) error
	Load(ctx context.Context, id Identity) (FieldValues, error)
}

// Creator is implemented by backends that can store entities that were never persisted before.
// Entities attached with UnitOfWork.Add are flushed through Create the first time.
type Creator interface {
	Create(ctx context.Context, id Identity, values FieldValues) error
}

// Deleter is implemented by backends that can remove persisted entities.
// Entities scheduled with UnitOfWork.Remove are deleted through Delete on the next Flush.
type Deleter interface {
	Delete(ctx context.Context, id Identity) error
}
