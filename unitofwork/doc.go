// Package unitofwork provides a session-scoped mutation tracker for entities
// with scalar and collection-valued fields.
//
// A Tracker hands out bounded Units of Work. Entities attached to a Unit of Work
// are snapshotted (the baseline) and every Flush persists exactly the fields that
// changed since then through a Backend. Scalar fields are compared by value.
// Collection fields (slices, maps) are reference typed: mutating them in place does
// not change what the tracker can observe, so a collection field is only persisted
// when one of these holds:
//   - it was marked with MarkDirty after an in-place mutation
//   - it was replaced wholesale (new slice header or map), copy-modify-reassign style
//   - the Tracker was built WithStructuralDiff and its content differs from the baseline
//
// Add registers entities that were never persisted, Remove schedules persisted ones
// for deletion. Both reach the Backend on the next Flush, through the optional
// Creator and Deleter interfaces.
//
// An entity instance is tracked by at most one open Unit of Work. Closing a Unit of
// Work detaches all of its entities; a detached entity has to be re-attached (or
// reattached against the persisted state) before it can be persisted again.
//
// Common usage pattern:
//
//	tracker, err := unitofwork.NewTracker(backend, unitofwork.WithLogger(logger))
//	if err != nil {
//		// handle error
//	}
//
//	err = tracker.Run(ctx, func(ctx context.Context, uow *unitofwork.UnitOfWork) error {
//		entity, err := uow.Load(ctx, profiles.IdentityOf(1), profiles.FromFieldValues(1))
//		if err != nil {
//			return err
//		}
//
//		profile := entity.(*profiles.Profile)
//		profile.Cost = append(profile.Cost, 2.0)
//
//		return uow.MarkDirty(profile, "cost")
//	}) // flushes on success, always closes
package unitofwork
