package unitofwork_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/unitofwork-go/example/profiles"
	. "github.com/AntonStoeckl/unitofwork-go/testutil/helper" //nolint:revive
	"github.com/AntonStoeckl/unitofwork-go/unitofwork"
)

var errBackendDown = errors.New("backend down")

func givenPersistedProfile(t *testing.T, backend *BackendSpy, profileID int, cost []float64) {
	t.Helper()

	backend.Seed(profiles.IdentityOf(profileID), unitofwork.FieldValues{
		profiles.FieldProfile:  "some magic json profile",
		profiles.FieldNumEvals: 0,
		profiles.FieldCost:     cost,
		profiles.FieldKPIs:     []string{},
	})
}

func givenTracker(t *testing.T, backend unitofwork.Backend, options ...unitofwork.Option) *unitofwork.Tracker {
	t.Helper()

	tracker, err := unitofwork.NewTracker(backend, options...)
	require.NoError(t, err)

	return tracker
}

func loadProfile(t *testing.T, uow *unitofwork.UnitOfWork, profileID int) *profiles.Profile {
	t.Helper()

	p, err := profiles.Load(context.Background(), uow, profileID)
	require.NoError(t, err)

	return p
}

func Test_NewTracker_ShouldFail_WithNilBackend(t *testing.T) {
	_, err := unitofwork.NewTracker(nil)

	assert.ErrorIs(t, err, unitofwork.ErrNilBackend)
}

func Test_DirtyFields_ShouldContainScalar_WhenReassignedToDifferentValue(t *testing.T) {
	// arrange
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)

	// act
	p.NumEvals = 1

	// assert
	dirty, err := uow.DirtyFields(p)
	require.NoError(t, err)
	assert.Equal(t, []string{profiles.FieldNumEvals}, dirty)
	assert.Equal(t, unitofwork.Dirty, uow.State(p))
}

func Test_DirtyFields_ShouldNotContainScalar_WhenReassignedToBaselineValue(t *testing.T) {
	// arrange
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)

	// act
	p.NumEvals = 5
	p.NumEvals = 0
	p.Profile = "some magic json profile"

	// assert
	dirty, err := uow.DirtyFields(p)
	require.NoError(t, err)
	assert.Empty(t, dirty)
	assert.Equal(t, unitofwork.Clean, uow.State(p))
}

func Test_Flush_ShouldBeIdempotent_WithoutFurtherMutation(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)
	p.NumEvals = 1

	// act
	firstReport, firstErr := uow.Flush(ctx)
	secondReport, secondErr := uow.Flush(ctx)

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.Equal(t, []unitofwork.Identity{p.Identity()}, firstReport.Persisted)
	assert.Empty(t, secondReport.Persisted)
	assert.Equal(t, 1, backend.CallCount())
	assert.Equal(t, unitofwork.Clean, uow.State(p))
}

func Test_Flush_ShouldNotPersist_CollectionMutatedInPlace_WithoutMarkDirty(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{1.0})
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)

	// act
	p.Cost[0] = 1234.12
	_, err := uow.Flush(ctx)

	// assert
	require.NoError(t, err)
	assert.Zero(t, backend.CallCount())

	persisted, loadErr := backend.Load(ctx, p.Identity())
	require.NoError(t, loadErr)
	assert.Equal(t, []float64{1.0}, persisted[profiles.FieldCost])
}

func Test_Flush_ShouldPersist_CollectionMutatedInPlace_WithMarkDirty(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{1.0})
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)

	// act
	p.Cost[0] = 1234.12
	require.NoError(t, uow.MarkDirty(p, profiles.FieldCost))
	_, firstErr := uow.Flush(ctx)
	_, secondErr := uow.Flush(ctx)

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	require.Equal(t, 1, backend.CallCount())
	assert.Equal(t, unitofwork.FieldValues{profiles.FieldCost: []float64{1234.12}}, backend.Calls()[0].Values)

	persisted, loadErr := backend.Load(ctx, p.Identity())
	require.NoError(t, loadErr)
	assert.Equal(t, []float64{1234.12}, persisted[profiles.FieldCost])
}

func Test_Flush_EndToEnd_AppendMarkDirtyFlush_ShouldPersistCostOnce(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{1.0})
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)

	// act
	p.Cost = append(p.Cost, 2.0)
	require.NoError(t, uow.MarkDirty(p, "cost"))
	_, err := uow.Flush(ctx)

	// assert
	require.NoError(t, err)
	require.Len(t, backend.Calls(), 1)
	assert.Equal(t, profiles.IdentityOf(1), backend.Calls()[0].Identity)
	assert.Equal(t, unitofwork.FieldValues{"cost": []float64{1.0, 2.0}}, backend.Calls()[0].Values)
}

func Test_Flush_ShouldPersist_WholesaleReplacedCollections_WithoutMarkDirty(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{1.0})
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)

	// act
	p.RecordEvaluation(2.0, "KPI Model 1")
	_, err := uow.Flush(ctx)

	// assert
	require.NoError(t, err)
	require.Equal(t, 1, backend.CallCount())
	assert.Equal(t, unitofwork.FieldValues{
		profiles.FieldNumEvals: 1,
		profiles.FieldCost:     []float64{1.0, 2.0},
		profiles.FieldKPIs:     []string{"KPI Model 1"},
	}, backend.Calls()[0].Values)
}

func Test_StructuralDiff_ShouldDetect_InPlaceMutation_WithoutMarkDirty(t *testing.T) {
	// arrange
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{1.0})
	uow := givenTracker(t, backend, unitofwork.WithStructuralDiff()).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)

	// act
	p.Cost[0] = 3.5

	// assert
	dirty, err := uow.DirtyFields(p)
	require.NoError(t, err)
	assert.Equal(t, []string{profiles.FieldCost}, dirty)
}

func Test_StructuralDiff_ShouldIgnore_ReplacementWithEqualContent(t *testing.T) {
	// arrange
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{1.0})
	uow := givenTracker(t, backend, unitofwork.WithStructuralDiff()).Begin()
	defer func() { _ = uow.Close() }()
	p := loadProfile(t, uow, 1)

	// act
	p.Cost = []float64{1.0}

	// assert
	assert.Equal(t, unitofwork.Clean, uow.State(p))
}

func Test_Attach_ShouldFail_WhenAttachedToAnotherOpenUnitOfWork(t *testing.T) {
	// arrange
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	tracker := givenTracker(t, backend)
	first := tracker.Begin()
	second := tracker.Begin()
	defer func() { _ = second.Close() }()
	p := loadProfile(t, first, 1)

	// act
	err := second.Attach(p)

	// assert
	assert.ErrorIs(t, err, unitofwork.ErrAlreadyAttached)
	assert.Equal(t, unitofwork.Unattached, second.State(p))

	// act again, after the first unit of work was closed
	require.NoError(t, first.Close())
	err = second.Attach(p)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, unitofwork.Clean, second.State(p))
	assert.Equal(t, unitofwork.Detached, first.State(p))
}

func Test_Attach_ShouldFail_ForSecondInstanceWithSameIdentity(t *testing.T) {
	uow := givenTracker(t, NewBackendSpy()).Begin()
	defer func() { _ = uow.Close() }()
	require.NoError(t, uow.Attach(profiles.New(1, "a")))

	err := uow.Attach(profiles.New(1, "b"))

	assert.ErrorIs(t, err, unitofwork.ErrIdentityConflict)
}

func Test_Attach_ShouldBeNoOp_ForAlreadyAttachedInstance(t *testing.T) {
	uow := givenTracker(t, NewBackendSpy()).Begin()
	defer func() { _ = uow.Close() }()
	p := profiles.New(1, "a")
	require.NoError(t, uow.Attach(p))
	p.NumEvals = 3

	err := uow.Attach(p)

	assert.NoError(t, err)
	assert.Equal(t, unitofwork.Dirty, uow.State(p), "re-attaching must not reset the baseline")
	assert.Len(t, uow.Entities(), 1)
}

type valueEntity struct{}

func (valueEntity) Identity() unitofwork.Identity { return unitofwork.NewIdentity("values", 1) }
func (valueEntity) Schema() unitofwork.Schema     { return unitofwork.MustBuildSchema() }
func (valueEntity) FieldValue(string) any         { return nil }

func Test_Attach_ShouldFail_ForInvalidEntities(t *testing.T) {
	testCases := []struct {
		name        string
		entity      unitofwork.Entity
		expectedErr error
	}{
		{name: "nil entity", entity: nil, expectedErr: unitofwork.ErrNilEntity},
		{name: "nil pointer", entity: (*profiles.Profile)(nil), expectedErr: unitofwork.ErrNilEntity},
		{name: "non-pointer entity", entity: valueEntity{}, expectedErr: unitofwork.ErrEntityNotPointer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			uow := givenTracker(t, NewBackendSpy()).Begin()
			defer func() { _ = uow.Close() }()

			err := uow.Attach(tc.entity)

			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_Identity_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		id      unitofwork.Identity
		isValid bool
	}{
		{name: "valid", id: unitofwork.NewIdentity("profiles", 1), isValid: true},
		{name: "empty kind", id: unitofwork.NewIdentity("", 1)},
		{name: "nil key", id: unitofwork.NewIdentity("profiles", nil)},
		{name: "non-comparable key", id: unitofwork.NewIdentity("profiles", []int{1})},
		{name: "struct key", id: unitofwork.NewIdentity("profiles", struct{ A, B int }{1, 2}), isValid: true},
		{name: "struct key holding a slice", id: unitofwork.NewIdentity("profiles", struct{ V any }{V: []int{1}})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.id.Validate()

			if tc.isValid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, unitofwork.ErrInvalidIdentity)
			}
		})
	}
}

func Test_MarkDirty_ShouldFail_ForUnknownField(t *testing.T) {
	uow := givenTracker(t, NewBackendSpy()).Begin()
	defer func() { _ = uow.Close() }()
	p := profiles.New(1, "a")
	require.NoError(t, uow.Attach(p))

	err := uow.MarkDirty(p, "generation_num")

	assert.ErrorIs(t, err, unitofwork.ErrUnknownField)
}

func Test_MarkDirty_ShouldFail_ForDetachedEntity(t *testing.T) {
	// arrange
	uow := givenTracker(t, NewBackendSpy()).Begin()
	p := profiles.New(1, "a")
	require.NoError(t, uow.Attach(p))
	require.NoError(t, uow.Close())

	// act
	p.Cost = append(p.Cost, 1.0)
	err := uow.MarkDirty(p, profiles.FieldCost)

	// assert
	assert.ErrorIs(t, err, unitofwork.ErrDetachedEntity)
	assert.Equal(t, unitofwork.Detached, uow.State(p))
}

func Test_Detach_ShouldStopTracking_AndFreeTheEntity(t *testing.T) {
	// arrange
	tracker := givenTracker(t, NewBackendSpy())
	first := tracker.Begin()
	second := tracker.Begin()
	defer func() { _ = first.Close() }()
	defer func() { _ = second.Close() }()
	p := profiles.New(1, "a")
	require.NoError(t, first.Attach(p))

	// act
	err := first.Detach(p)

	// assert
	require.NoError(t, err)
	assert.Equal(t, unitofwork.Detached, first.State(p))
	assert.False(t, tracker.IsAttached(p))
	assert.NoError(t, second.Attach(p))
	assert.ErrorIs(t, first.Detach(p), unitofwork.ErrDetachedEntity)
}

func Test_Flush_ShouldReportPartialFailure_WithoutRollback(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	for id := 1; id <= 4; id++ {
		givenPersistedProfile(t, backend, id, []float64{})
	}
	backend.FailFor(profiles.IdentityOf(2), errBackendDown)
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p1, p2, p3, p4 := loadProfile(t, uow, 1), loadProfile(t, uow, 2), loadProfile(t, uow, 3), loadProfile(t, uow, 4)
	p1.NumEvals, p2.NumEvals, p3.NumEvals = 1, 1, 1 // p4 stays clean

	// act
	report, err := uow.Flush(ctx)

	// assert
	assert.ErrorIs(t, err, unitofwork.ErrPersistenceFailed)
	assert.ErrorIs(t, err, errBackendDown)

	var flushErr *unitofwork.FlushError
	require.ErrorAs(t, err, &flushErr)
	assert.Equal(t, p2.Identity(), flushErr.Identity)
	assert.Equal(t, report, flushErr.Report)

	assert.Equal(t, []unitofwork.Identity{p1.Identity()}, report.Persisted)
	assert.Equal(t, []unitofwork.Identity{p2.Identity()}, report.Failed)
	assert.Equal(t, []unitofwork.Identity{p3.Identity()}, report.NotAttempted)
	assert.Equal(t, unitofwork.Clean, uow.State(p1))
	assert.Equal(t, unitofwork.Dirty, uow.State(p2))
	assert.Equal(t, unitofwork.Dirty, uow.State(p3))
	assert.Equal(t, unitofwork.Clean, uow.State(p4))
	assert.Equal(t, 2, backend.CallCount())
}

func Test_Close_ShouldDetachAll_AndRejectFurtherUse(t *testing.T) {
	// arrange
	ctx := context.Background()
	tracker := givenTracker(t, NewBackendSpy())
	uow := tracker.Begin()
	p := profiles.New(1, "a")
	require.NoError(t, uow.Attach(p))

	// act
	closeErr := uow.Close()

	// assert
	require.NoError(t, closeErr)
	assert.NoError(t, uow.Close(), "closing twice is a no-op")
	assert.True(t, uow.Closed())
	assert.False(t, tracker.IsAttached(p))
	assert.Empty(t, uow.Entities())

	_, flushErr := uow.Flush(ctx)
	assert.ErrorIs(t, flushErr, unitofwork.ErrUnitOfWorkClosed)
	assert.ErrorIs(t, uow.Attach(p), unitofwork.ErrUnitOfWorkClosed)
}

func Test_Flush_ShouldFailWithDetachedEntity_AfterClose(t *testing.T) {
	// arrange
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	uow := givenTracker(t, backend).Begin()
	p := loadProfile(t, uow, 1)
	require.NoError(t, uow.Close())

	// act
	p.NumEvals = 1
	report, err := uow.Flush(context.Background())

	// assert
	assert.ErrorIs(t, err, unitofwork.ErrDetachedEntity)
	assert.ErrorIs(t, err, unitofwork.ErrUnitOfWorkClosed)
	assert.Empty(t, report.Persisted)
	assert.Zero(t, backend.CallCount())
}

func Test_Run_ShouldFlushAndClose_OnSuccess(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	tracker := givenTracker(t, backend)
	var p *profiles.Profile

	// act
	err := tracker.Run(ctx, func(ctx context.Context, uow *unitofwork.UnitOfWork) error {
		var loadErr error
		p, loadErr = profiles.Load(ctx, uow, 1)
		if loadErr != nil {
			return loadErr
		}

		p.NumEvals = 1

		return nil
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, backend.CallCount())
	assert.False(t, tracker.IsAttached(p))
}

func Test_Run_ShouldCloseWithoutFlushing_OnError(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	tracker := givenTracker(t, backend)
	var p *profiles.Profile

	// act
	err := tracker.Run(ctx, func(ctx context.Context, uow *unitofwork.UnitOfWork) error {
		p = loadProfile(t, uow, 1)
		p.NumEvals = 1

		return errBackendDown
	})

	// assert
	assert.ErrorIs(t, err, errBackendDown)
	assert.Zero(t, backend.CallCount())
	assert.False(t, tracker.IsAttached(p))
}

func Test_Run_ShouldClose_WhenFnPanics(t *testing.T) {
	tracker := givenTracker(t, NewBackendSpy())
	p := profiles.New(1, "a")

	assert.Panics(t, func() {
		_ = tracker.Run(context.Background(), func(_ context.Context, uow *unitofwork.UnitOfWork) error {
			_ = uow.Attach(p)
			panic("boom")
		})
	})

	assert.False(t, tracker.IsAttached(p))
}

func Test_Reattach_ShouldPersistChangesMadeWhileDetached(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	tracker := givenTracker(t, backend, unitofwork.WithStructuralDiff())
	first := tracker.Begin()
	p := loadProfile(t, first, 1)
	require.NoError(t, first.Close())
	p.NumEvals = 7

	// act
	second := tracker.Begin()
	defer func() { _ = second.Close() }()
	reattachErr := second.Reattach(ctx, p)
	_, flushErr := second.Flush(ctx)

	// assert
	require.NoError(t, reattachErr)
	require.NoError(t, flushErr)
	require.Equal(t, 1, backend.CallCount())
	assert.Equal(t, unitofwork.FieldValues{profiles.FieldNumEvals: 7}, backend.Calls()[0].Values)
}

func Test_Reattach_ShouldFail_WhileAttachedToAnotherOpenUnitOfWork(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	tracker := givenTracker(t, backend)
	first := tracker.Begin()
	defer func() { _ = first.Close() }()
	second := tracker.Begin()
	defer func() { _ = second.Close() }()
	p := loadProfile(t, first, 1)

	// act
	err := second.Reattach(ctx, p)

	// assert
	assert.ErrorIs(t, err, unitofwork.ErrAlreadyAttached)
}

func Test_Load_ShouldReturnAttachedInstance_ForSameIdentity(t *testing.T) {
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()

	first := loadProfile(t, uow, 1)
	second := loadProfile(t, uow, 1)

	assert.Same(t, first, second)
}

func Test_Load_ShouldFail_WhenNotPersisted(t *testing.T) {
	uow := givenTracker(t, NewBackendSpy()).Begin()
	defer func() { _ = uow.Close() }()

	_, err := profiles.Load(context.Background(), uow, 42)

	assert.ErrorIs(t, err, unitofwork.ErrNotFound)
	assert.ErrorIs(t, err, unitofwork.ErrPersistenceFailed)
}

func Test_Add_ShouldCreateAllFields_OnFirstFlush_AndPersistAfterwards(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	uow := givenTracker(t, backend).Begin()
	defer func() { _ = uow.Close() }()
	p := profiles.New(1, "some magic json profile")

	// act
	require.NoError(t, uow.Add(p))
	_, createErr := uow.Flush(ctx)
	p.NumEvals = 1
	_, persistErr := uow.Flush(ctx)

	// assert
	require.NoError(t, createErr)
	require.NoError(t, persistErr)
	calls := backend.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Create)
	assert.Len(t, calls[0].Values, profiles.Schema.Len())
	assert.False(t, calls[1].Create)
	assert.Equal(t, unitofwork.FieldValues{profiles.FieldNumEvals: 1}, calls[1].Values)
}

func Test_Add_ShouldFail_OnFlush_WhenBackendCanNotCreate(t *testing.T) {
	uow := givenTracker(t, PersistOnlyBackend{Backend: NewBackendSpy()}).Begin()
	defer func() { _ = uow.Close() }()
	p := profiles.New(1, "a")
	require.NoError(t, uow.Add(p))

	report, err := uow.Flush(context.Background())

	assert.ErrorIs(t, err, unitofwork.ErrCreateNotSupported)
	assert.Equal(t, []unitofwork.Identity{p.Identity()}, report.Failed)
}

func Test_Assign_ShouldTrackAssignments(t *testing.T) {
	// arrange
	uow := givenTracker(t, NewBackendSpy()).Begin()
	defer func() { _ = uow.Close() }()
	p := profiles.New(1, "a")
	require.NoError(t, uow.Attach(p))

	// act
	require.NoError(t, uow.Assign(p, profiles.FieldKPIs, []string{}))
	require.NoError(t, uow.Assign(p, profiles.FieldProfile, "a"))

	// assert
	dirty, err := uow.DirtyFields(p)
	require.NoError(t, err)
	assert.Equal(t, []string{profiles.FieldKPIs}, dirty)
	assert.ErrorIs(t, uow.Assign(p, "nope", 1), unitofwork.ErrUnknownField)
}

func Test_Assign_ShouldFail_ForDetachedEntity(t *testing.T) {
	uow := givenTracker(t, NewBackendSpy()).Begin()
	defer func() { _ = uow.Close() }()
	p := profiles.New(1, "a")

	err := uow.Assign(p, profiles.FieldNumEvals, 3)

	assert.ErrorIs(t, err, unitofwork.ErrDetachedEntity)
	assert.Zero(t, p.NumEvals)
}

func Test_Flush_ShouldLogAndRecordMetrics(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	givenPersistedProfile(t, backend, 2, []float64{})
	backend.FailFor(profiles.IdentityOf(2), errBackendDown)
	logSpy := NewLogHandlerSpy(false)
	metricsSpy := NewMetricsCollectorSpy()
	tracker := givenTracker(t, backend, unitofwork.WithLogger(slog.New(logSpy)), unitofwork.WithMetrics(metricsSpy))

	// act
	okUOW := tracker.Begin()
	loadProfile(t, okUOW, 1).NumEvals = 1
	_, okErr := okUOW.Flush(ctx)
	require.NoError(t, okUOW.Close())

	failingUOW := tracker.Begin()
	loadProfile(t, failingUOW, 2).NumEvals = 1
	_, failErr := failingUOW.Flush(ctx)
	require.NoError(t, failingUOW.Close())

	// assert
	require.NoError(t, okErr)
	require.Error(t, failErr)
	assert.True(t, logSpy.HasLog(slog.LevelInfo, "unitofwork operation: flush completed"))
	assert.True(t, logSpy.HasLogWithAttr("unitofwork operation: flush completed", "unit_of_work_id"))
	assert.True(t, logSpy.HasLog(slog.LevelError, "persisting entity failed"))
	assert.True(t, metricsSpy.HasDurationRecord("unitofwork_flush_duration_seconds", "success"))
	assert.True(t, metricsSpy.HasDurationRecord("unitofwork_flush_duration_seconds", "error"))
	assert.Equal(t, 1, metricsSpy.CounterCount("unitofwork_persistence_errors_total"))

	persisted, ok := metricsSpy.LastValue("unitofwork_entities_persisted")
	assert.True(t, ok)
	assert.Zero(t, persisted, "the failing flush persisted nothing")
}

func Test_Attach_ShouldRecordConflictMetric(t *testing.T) {
	metricsSpy := NewMetricsCollectorSpy()
	tracker := givenTracker(t, NewBackendSpy(), unitofwork.WithMetrics(metricsSpy))
	first, second := tracker.Begin(), tracker.Begin()
	defer func() { _ = first.Close() }()
	defer func() { _ = second.Close() }()
	p := profiles.New(1, "a")
	require.NoError(t, first.Attach(p))

	_ = second.Attach(p)

	assert.Equal(t, 1, metricsSpy.CounterCount("unitofwork_attach_conflicts_total"))
}

func Test_Flush_ShouldTraceSpans(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	givenPersistedProfile(t, backend, 1, []float64{})
	tracingSpy := NewTracingCollectorSpy()
	uow := givenTracker(t, backend, unitofwork.WithTracing(tracingSpy)).Begin()
	defer func() { _ = uow.Close() }()
	loadProfile(t, uow, 1).NumEvals = 1

	// act
	_, err := uow.Flush(ctx)

	// assert
	require.NoError(t, err)
	spans := tracingSpy.SpanRecords()
	require.Len(t, spans, 1)
	assert.Equal(t, "unitofwork.flush", spans[0].Name)
	assert.Equal(t, uow.ID(), spans[0].StartAttributes["unit_of_work_id"])
	assert.Equal(t, "success", spans[0].Status)
	assert.Equal(t, "1", spans[0].EndAttributes["entity_count"])
}

func Test_Flush_ShouldLogWithContextualLogger(t *testing.T) {
	backend := NewBackendSpy()
	logSpy := NewLogHandlerSpy(false)
	uow := givenTracker(t, backend, unitofwork.WithContextualLogger(slog.New(logSpy))).Begin()
	defer func() { _ = uow.Close() }()

	_, err := uow.Flush(context.Background())

	require.NoError(t, err)
	assert.True(t, logSpy.HasLog(slog.LevelInfo, "unitofwork operation: flush completed"))
}
