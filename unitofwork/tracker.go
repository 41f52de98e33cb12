package unitofwork

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Tracker hands out Units of Work and owns the cross-unit rule that an entity instance
// is attached to at most one open Unit of Work. It is constructed explicitly and passed
// to whoever needs it; there is no package-level instance.
type Tracker struct {
	backend          Backend
	structuralDiff   bool
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector

	mu     sync.Mutex
	owners map[Entity]*UnitOfWork
}

// NewTracker creates a new Tracker persisting through the given Backend with optional configuration.
func NewTracker(backend Backend, options ...Option) (*Tracker, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}

	t := &Tracker{
		backend: backend,
		owners:  make(map[Entity]*UnitOfWork),
	}

	for _, option := range options {
		if err := option(t); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Begin opens a new Unit of Work. The caller owns it and must Close it on every path,
// typically with defer. Run does that automatically.
func (t *Tracker) Begin() *UnitOfWork {
	uow := &UnitOfWork{
		id:         uuid.NewString(),
		tracker:    t,
		byEntity:   make(map[Entity]*entry),
		byIdentity: make(map[Identity]*entry),
		detached:   make(map[Entity]struct{}),
	}

	t.logDebug(logMsgBegin, logAttrUnitOfWorkID, uow.id)

	return uow
}

// Run opens a Unit of Work, calls fn with it and flushes it if fn succeeds.
// The Unit of Work is closed on every exit path, including errors and panics in fn.
func (t *Tracker) Run(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) (err error) {
	uow := t.Begin()
	defer func() {
		err = errors.Join(err, uow.Close())
	}()

	if err = fn(ctx, uow); err != nil {
		return err
	}

	_, err = uow.Flush(ctx)

	return err
}

// IsAttached reports whether an open Unit of Work currently tracks the entity.
func (t *Tracker) IsAttached(entity Entity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.owners[entity]

	return ok
}

// claim registers uow as the owner of entity.
func (t *Tracker) claim(entity Entity, uow *UnitOfWork) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if owner, ok := t.owners[entity]; ok && owner != uow {
		return ErrAlreadyAttached
	}

	t.owners[entity] = uow

	return nil
}

// release removes uow as the owner of entity, if it is the owner.
func (t *Tracker) release(entity Entity, uow *UnitOfWork) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if owner, ok := t.owners[entity]; ok && owner == uow {
		delete(t.owners, entity)
	}
}
