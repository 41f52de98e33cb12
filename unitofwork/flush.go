package unitofwork

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// FlushReport tells which entities a Flush persisted or deleted, which one failed and which were not attempted.
// Entities without dirty fields or a pending removal appear in none of the lists.
type FlushReport struct {
	Persisted    []Identity
	Deleted      []Identity
	Failed       []Identity
	NotAttempted []Identity
}

// FlushError is returned by Flush when the Backend failed for one entity.
// It matches ErrPersistenceFailed with errors.Is and wraps the Backend's error.
type FlushError struct {
	Report   FlushReport
	Identity Identity
	Err      error
}

// Error implements the error interface.
func (e *FlushError) Error() string {
	return fmt.Sprintf("%s: persisting %s: %v", ErrPersistenceFailed, e.Identity, e.Err)
}

// Unwrap exposes ErrPersistenceFailed and the Backend's error to errors.Is and errors.As.
func (e *FlushError) Unwrap() []error {
	return []error{ErrPersistenceFailed, e.Err}
}

// Flush persists the dirty fields of every attached entity, in attach order, with one
// Backend call per dirty entity. A persisted entity gets its baseline reset to its
// current values and its marks cleared, so flushing again without further changes is a no-op.
// Entities scheduled with Remove are deleted at their position in that order and detached
// once the Backend deleted them.
//
// Flush stops at the first Backend failure. Entities persisted before it stay clean,
// already persisted data is not rolled back. The failed entity and the ones not
// attempted stay dirty, the returned *FlushError holds the FlushReport.
func (u *UnitOfWork) Flush(ctx context.Context) (FlushReport, error) {
	report := FlushReport{}

	if u.closed {
		return report, errors.Join(ErrDetachedEntity, ErrUnitOfWorkClosed)
	}

	observer, ctx := u.tracker.startFlushObserver(ctx, u.id, len(u.entries))
	entries := slices.Clone(u.entries) // deleted entities leave u.entries during the loop

	for i, e := range entries {
		var (
			errorType string
			err       error
		)

		if e.removed {
			errorType, err = u.deleteEntity(ctx, e)
		} else {
			dirty := u.dirtyFields(e)
			if len(dirty) == 0 {
				continue
			}

			values := make(FieldValues, len(dirty))
			for _, name := range dirty {
				values[name] = e.entity.FieldValue(name)
			}

			errorType, err = u.persist(ctx, e, values)
		}

		if err != nil {
			report.Failed = append(report.Failed, e.identity)
			report.NotAttempted = u.pendingIdentities(entries[i+1:])
			observer.finishError(e.identity, errorType, err, len(report.Persisted), len(report.NotAttempted))

			return report, &FlushError{Report: report, Identity: e.identity, Err: err}
		}

		if e.removed {
			u.remove(e)
			report.Deleted = append(report.Deleted, e.identity)

			continue
		}

		e.baseline = u.tracker.snapshot(e.entity.Schema(), currentValues(e.entity))
		e.marked = make(map[string]struct{})
		report.Persisted = append(report.Persisted, e.identity)
	}

	observer.finishSuccess(len(report.Persisted), len(report.Deleted))

	return report, nil
}

func (u *UnitOfWork) persist(ctx context.Context, e *entry, values FieldValues) (string, error) {
	if e.baseline != nil {
		if err := u.tracker.backend.Persist(ctx, e.identity, values); err != nil {
			return errorTypePersistence, err
		}

		return "", nil
	}

	creator, ok := u.tracker.backend.(Creator)
	if !ok {
		return errorTypeCreateUnsupported, ErrCreateNotSupported
	}

	if err := creator.Create(ctx, e.identity, values); err != nil {
		return errorTypePersistence, err
	}

	return "", nil
}

func (u *UnitOfWork) deleteEntity(ctx context.Context, e *entry) (string, error) {
	deleter, ok := u.tracker.backend.(Deleter)
	if !ok {
		return errorTypeDeleteUnsupported, ErrDeleteNotSupported
	}

	if err := deleter.Delete(ctx, e.identity); err != nil {
		return errorTypePersistence, err
	}

	return "", nil
}

func (u *UnitOfWork) pendingIdentities(entries []*entry) []Identity {
	var ids []Identity

	for _, e := range entries {
		if u.pending(e) {
			ids = append(ids, e.identity)
		}
	}

	return ids
}
