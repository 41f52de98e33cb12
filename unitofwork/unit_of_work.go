package unitofwork

import (
	"context"
	"errors"
	"fmt"
)

// UnitOfWork is a bounded scope that tracks attached entities and persists their changes on Flush.
//
// A UnitOfWork is used by one goroutine at a time, it does no locking of its own.
type UnitOfWork struct {
	id         string
	tracker    *Tracker
	entries    []*entry // attach order, flush order
	byEntity   map[Entity]*entry
	byIdentity map[Identity]*entry
	detached   map[Entity]struct{}
	closed     bool
}

// entry is the tracking state of one attached entity.
type entry struct {
	entity   Entity
	identity Identity
	baseline baseline // nil while the entity was never persisted
	marked   map[string]struct{}
	removed  bool // delete on the next Flush
}

// ID returns the unique id of the Unit of Work.
func (u *UnitOfWork) ID() string {
	return u.id
}

// Closed reports whether Close was called.
func (u *UnitOfWork) Closed() bool {
	return u.closed
}

// Entities returns the attached entities in attach order.
func (u *UnitOfWork) Entities() []Entity {
	entities := make([]Entity, 0, len(u.entries))
	for _, e := range u.entries {
		entities = append(entities, e.entity)
	}

	return entities
}

// Attach registers an entity that reflects persisted state. Its current field values become the baseline.
//
// Attaching an entity that is already attached to this Unit of Work is a no-op.
// Fails with ErrAlreadyAttached if another open Unit of Work tracks the entity.
func (u *UnitOfWork) Attach(entity Entity) error {
	return u.attach(entity, func() baseline {
		return u.tracker.snapshot(entity.Schema(), currentValues(entity))
	})
}

// Add registers a new entity that was never persisted. All of its fields are dirty,
// the next Flush stores it through the Backend's Create method.
func (u *UnitOfWork) Add(entity Entity) error {
	return u.attach(entity, func() baseline {
		return nil
	})
}

// Reattach transfers a detached entity into this Unit of Work. The entity must not be
// attached to another open Unit of Work. Its baseline is loaded from the Backend, so
// changes made while it was detached are dirty and get persisted on the next Flush.
func (u *UnitOfWork) Reattach(ctx context.Context, entity Entity) error {
	if err := u.checkAttachable(entity); err != nil {
		return err
	}

	if _, ok := u.byEntity[entity]; ok {
		return nil
	}

	id := entity.Identity()

	if u.tracker.IsAttached(entity) {
		u.tracker.recordAttachConflict(ctx, u.id, id)
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, id)
	}

	persisted, loadErr := u.tracker.backend.Load(ctx, id)
	if loadErr != nil {
		u.tracker.recordLoadError(ctx, u.id, id, loadErr)
		return errors.Join(ErrPersistenceFailed, loadErr)
	}

	return u.attach(entity, func() baseline {
		return u.tracker.snapshot(entity.Schema(), persisted)
	})
}

// Load returns the entity with the given identity. An instance already attached to this
// Unit of Work is returned as is. Otherwise, the persisted values are loaded from the
// Backend, construct builds the entity and it is attached with those values as baseline.
func (u *UnitOfWork) Load(
	ctx context.Context,
	id Identity,
	construct func(values FieldValues) (Entity, error),
) (Entity, error) {

	if u.closed {
		return nil, ErrUnitOfWorkClosed
	}

	if err := id.Validate(); err != nil {
		return nil, err
	}

	if e, ok := u.byIdentity[id]; ok {
		return e.entity, nil
	}

	persisted, loadErr := u.tracker.backend.Load(ctx, id)
	if loadErr != nil {
		u.tracker.recordLoadError(ctx, u.id, id, loadErr)
		return nil, errors.Join(ErrPersistenceFailed, loadErr)
	}

	entity, constructErr := construct(persisted)
	if constructErr != nil {
		return nil, constructErr
	}

	if entity == nil {
		return nil, ErrNilEntity
	}

	if entity.Identity() != id {
		return nil, fmt.Errorf("%w: loaded %s, constructed %s", ErrIdentityConflict, id, entity.Identity())
	}

	if err := u.Attach(entity); err != nil {
		return nil, err
	}

	return entity, nil
}

func (u *UnitOfWork) checkAttachable(entity Entity) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}

	return validateEntity(entity)
}

func (u *UnitOfWork) attach(entity Entity, makeBaseline func() baseline) error {
	if err := u.checkAttachable(entity); err != nil {
		return err
	}

	if _, ok := u.byEntity[entity]; ok {
		return nil
	}

	id := entity.Identity()

	if _, ok := u.byIdentity[id]; ok {
		return fmt.Errorf("%w: %s", ErrIdentityConflict, id)
	}

	if err := u.tracker.claim(entity, u); err != nil {
		u.tracker.recordAttachConflict(context.Background(), u.id, id)
		return fmt.Errorf("%w: %s", err, id)
	}

	e := &entry{
		entity:   entity,
		identity: id,
		baseline: makeBaseline(),
		marked:   make(map[string]struct{}),
	}

	u.entries = append(u.entries, e)
	u.byEntity[entity] = e
	u.byIdentity[id] = e
	delete(u.detached, entity)

	u.tracker.logDebug(logMsgAttached, logAttrUnitOfWorkID, u.id, logAttrIdentity, id.String())

	return nil
}

// Remove schedules the entity for deletion. The next Flush deletes it through the Backend's
// Delete method and detaches it afterward. Until then the entity stays attached and Dirty.
//
// An entity attached with Add that was never flushed is detached right away, there is nothing to delete.
// Removing an entity twice is a no-op.
func (u *UnitOfWork) Remove(entity Entity) error {
	e, err := u.lookup(entity)
	if err != nil {
		return err
	}

	if e.baseline == nil {
		u.remove(e)
		return nil
	}

	e.removed = true

	return nil
}

// MarkDirty declares that the named field must be persisted on the next Flush, whether
// or not a change can be detected. It is required after in-place mutations of collection
// fields (item assignment, sorting, appending into spare capacity of an aliased slice).
func (u *UnitOfWork) MarkDirty(entity Entity, fieldName string) error {
	e, err := u.lookup(entity)
	if err != nil {
		return err
	}

	if !entity.Schema().Has(fieldName) {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldName)
	}

	e.marked[fieldName] = struct{}{}

	return nil
}

// Assign sets a field through the entity's Assignable implementation. Unlike a plain
// assignment it fails on entities that are not attached. Assigned collection fields are
// marked dirty, assigned scalars are dirty only if the value differs from the baseline.
func (u *UnitOfWork) Assign(entity Entity, fieldName string, value any) error {
	e, err := u.lookup(entity)
	if err != nil {
		return err
	}

	field, ok := entity.Schema().Field(fieldName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldName)
	}

	assignable, ok := entity.(Assignable)
	if !ok {
		return ErrNotAssignable
	}

	if err := assignable.AssignField(fieldName, value); err != nil {
		return err
	}

	if field.Kind() == CollectionField {
		e.marked[fieldName] = struct{}{}
	}

	return nil
}

// DirtyFields returns the names of the fields the next Flush would persist for the entity, in schema order.
func (u *UnitOfWork) DirtyFields(entity Entity) ([]string, error) {
	e, err := u.lookup(entity)
	if err != nil {
		return nil, err
	}

	return u.dirtyFields(e), nil
}

func (u *UnitOfWork) dirtyFields(e *entry) []string {
	dirty := make([]string, 0)

	for _, field := range e.entity.Schema().Fields() {
		name := field.Name()

		if _, ok := e.marked[name]; ok {
			dirty = append(dirty, name)
			continue
		}

		snap, ok := e.baseline[name]
		if !ok {
			dirty = append(dirty, name)
			continue
		}

		if u.tracker.changed(field, snap, e.entity.FieldValue(name)) {
			dirty = append(dirty, name)
		}
	}

	return dirty
}

// pending reports whether the next Flush has work to do for the entry.
func (u *UnitOfWork) pending(e *entry) bool {
	return e.removed || len(u.dirtyFields(e)) > 0
}

// State returns the state of the entity relative to this Unit of Work.
func (u *UnitOfWork) State(entity Entity) EntityState {
	if validateEntity(entity) != nil {
		return Unattached
	}

	if e, ok := u.byEntity[entity]; ok {
		if u.pending(e) {
			return Dirty
		}

		return Clean
	}

	if _, ok := u.detached[entity]; ok {
		return Detached
	}

	return Unattached
}

// Detach stops tracking the entity. It is free to be attached elsewhere afterward.
// Pending changes are not persisted.
func (u *UnitOfWork) Detach(entity Entity) error {
	e, err := u.lookup(entity)
	if err != nil {
		return err
	}

	u.remove(e)

	return nil
}

// Close detaches all entities. Further use of the Unit of Work fails with ErrUnitOfWorkClosed.
// Closing twice is a no-op. Pending changes and removals are dropped, call Flush first.
func (u *UnitOfWork) Close() error {
	if u.closed {
		return nil
	}

	for _, e := range u.Entities() {
		u.remove(u.byEntity[e])
	}

	u.closed = true
	u.tracker.logDebug(logMsgClosed, logAttrUnitOfWorkID, u.id)

	return nil
}

func (u *UnitOfWork) lookup(entity Entity) (*entry, error) {
	if err := validateEntity(entity); err != nil {
		return nil, err
	}

	if u.closed {
		return nil, errors.Join(ErrDetachedEntity, ErrUnitOfWorkClosed)
	}

	e, ok := u.byEntity[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDetachedEntity, entity.Identity())
	}

	return e, nil
}

func (u *UnitOfWork) remove(e *entry) {
	delete(u.byEntity, e.entity)
	delete(u.byIdentity, e.identity)

	for i, candidate := range u.entries {
		if candidate == e {
			u.entries = append(u.entries[:i], u.entries[i+1:]...)
			break
		}
	}

	u.detached[e.entity] = struct{}{}
	u.tracker.release(e.entity, u)
	u.tracker.logDebug(logMsgDetached, logAttrUnitOfWorkID, u.id, logAttrIdentity, e.identity.String())
}
