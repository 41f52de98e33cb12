package unitofwork_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/unitofwork-go/unitofwork"
)

func Test_BuildSchema_ShouldKeepFieldOrder(t *testing.T) {
	schema, err := unitofwork.BuildSchema(
		unitofwork.Scalar[string]("profile"),
		unitofwork.Collection[float64]("cost"),
	)

	require.NoError(t, err)
	require.Equal(t, 2, schema.Len())
	assert.Equal(t, "profile", schema.Fields()[0].Name())
	assert.Equal(t, unitofwork.ScalarField, schema.Fields()[0].Kind())
	assert.Equal(t, reflect.TypeFor[[]float64](), schema.Fields()[1].Type())
	assert.Equal(t, "collection", schema.Fields()[1].Kind().String())
	assert.True(t, schema.Has("cost"))
	assert.False(t, schema.Has("kpis"))
}

func Test_BuildSchema_ShouldFail(t *testing.T) {
	testCases := []struct {
		name        string
		fields      []unitofwork.Field
		expectedErr error
	}{
		{
			name:        "empty field name",
			fields:      []unitofwork.Field{unitofwork.Scalar[int]("")},
			expectedErr: unitofwork.ErrEmptyFieldName,
		},
		{
			name:        "duplicate field",
			fields:      []unitofwork.Field{unitofwork.Scalar[int]("cost"), unitofwork.Collection[float64]("cost")},
			expectedErr: unitofwork.ErrDuplicateField,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := unitofwork.BuildSchema(tc.fields...)

			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Panics(t, func() { unitofwork.MustBuildSchema(tc.fields...) })
		})
	}
}

func Test_Schema_Fields_ShouldReturnCopy(t *testing.T) {
	schema := unitofwork.MustBuildSchema(unitofwork.Scalar[int]("num_evals"))

	fields := schema.Fields()
	fields[0] = unitofwork.Scalar[int]("changed")

	assert.Equal(t, "num_evals", schema.Fields()[0].Name())
}
