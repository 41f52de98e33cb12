package profiles_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/unitofwork-go/example/profiles"
	. "github.com/AntonStoeckl/unitofwork-go/testutil/helper" //nolint:revive
	"github.com/AntonStoeckl/unitofwork-go/unitofwork"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func Test_RunWithRetry_ShouldRerunUnitOfWork_AfterTransientFlushFailure(t *testing.T) {
	// arrange
	ctx := context.Background()
	backend := NewBackendSpy()
	tracker := givenTracker(t, backend)
	require.NoError(t, profiles.Save(ctx, tracker, profiles.New(1, "p")))
	backend.FailFor(profiles.IdentityOf(1), errTransient)
	attempts := 0

	// act
	err := profiles.RunWithRetry(ctx, tracker, isTransient, func(ctx context.Context, uow *unitofwork.UnitOfWork) error {
		attempts++
		if attempts == 2 {
			backend.FailFor(profiles.IdentityOf(1), nil)
		}

		p, loadErr := profiles.Load(ctx, uow, 1)
		if loadErr != nil {
			return loadErr
		}

		p.RecordEvaluation(0.5, "KPI Model 1")

		return nil
	}, profiles.WithBaseDelay(time.Millisecond))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	persisted, loadErr := backend.Load(ctx, profiles.IdentityOf(1))
	require.NoError(t, loadErr)
	assert.Equal(t, 1, persisted[profiles.FieldNumEvals])
	assert.Equal(t, []float64{0.5}, persisted[profiles.FieldCost])
}

func Test_RunWithRetry_ShouldFailFast_OnPermanentError(t *testing.T) {
	ctx := context.Background()
	tracker := givenTracker(t, NewBackendSpy())
	attempts := 0

	err := profiles.RunWithRetry(ctx, tracker, isTransient, func(ctx context.Context, uow *unitofwork.UnitOfWork) error {
		attempts++
		_, loadErr := profiles.Load(ctx, uow, 1)

		return loadErr
	})

	assert.ErrorIs(t, err, unitofwork.ErrNotFound)
	assert.Equal(t, 1, attempts)
}

func Test_RunWithRetry_ShouldGiveUp_AfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	tracker := givenTracker(t, NewBackendSpy())
	attempts := 0

	err := profiles.RunWithRetry(ctx, tracker, isTransient, func(context.Context, *unitofwork.UnitOfWork) error {
		attempts++
		return errTransient
	}, profiles.WithMaxAttempts(3), profiles.WithBaseDelay(0), profiles.WithJitterFactor(0))

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
}

func Test_RunWithRetry_ShouldRejectInvalidOptions(t *testing.T) {
	testCases := []struct {
		name        string
		option      profiles.RetryOption
		expectedErr error
	}{
		{name: "max attempts", option: profiles.WithMaxAttempts(0), expectedErr: profiles.ErrInvalidMaxAttempts},
		{name: "base delay", option: profiles.WithBaseDelay(-time.Second), expectedErr: profiles.ErrNegativeBaseDelay},
		{name: "jitter factor", option: profiles.WithJitterFactor(1.5), expectedErr: profiles.ErrInvalidJitterFactor},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := profiles.RunWithRetry(
				context.Background(),
				givenTracker(t, NewBackendSpy()),
				isTransient,
				func(context.Context, *unitofwork.UnitOfWork) error { return nil },
				tc.option,
			)

			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}
