package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/scholarship-api/internal/types"
	"github.com/aanand-mishra/scholarship-api/internal/update"
	"github.com/aanand-mishra/scholarship-api/internal/utils/apperr"
)

func TestKnownPaths(t *testing.T) {
	for _, p := range []string{"name", "age", "major", "scholarship", "scholarship.merit", "scholarship.other"} {
		assert.True(t, Known(p), p)
	}
	for _, p := range []string{"id", "merit", "other", "x", "scholarship.need", ""} {
		assert.False(t, Known(p), p)
	}
}

func TestValidate(t *testing.T) {
	ok := types.Student{Name: "A", Age: 20, Major: "CS", Scholarship: types.Scholarship{Merit: 100}}
	require.NoError(t, Validate(ok))

	bad := ok
	bad.Name = ""
	bad.Scholarship.Other = -1
	err := Validate(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSanitizeCastsAndDropsUnknown(t *testing.T) {
	spec := update.Spec{
		"age":               "21",
		"scholarship.merit": float64(300),
		"x":                 "ignored",
		"id":                "cannot-change",
	}

	out, err := Sanitize(spec, true)
	require.NoError(t, err)
	assert.Equal(t, update.Spec{
		"age":               types.Amount(21),
		"scholarship.merit": types.Amount(300),
	}, out)
}

func TestSanitizeValidatesOnlyWrittenFields(t *testing.T) {
	// name and major are required on a full document but are not part of
	// this update, so they must not be checked.
	out, err := Sanitize(update.Spec{"scholarship.other": 0}, true)
	require.NoError(t, err)
	assert.Equal(t, update.Spec{"scholarship.other": types.Amount(0)}, out)

	_, err = Sanitize(update.Spec{"scholarship.other": -5}, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = Sanitize(update.Spec{"name": ""}, true)
	require.Error(t, err)
}

func TestSanitizeWithoutValidation(t *testing.T) {
	out, err := Sanitize(update.Spec{"age": -3}, false)
	require.NoError(t, err)
	assert.Equal(t, update.Spec{"age": types.Amount(-3)}, out)
}

func TestSanitizeCastFailure(t *testing.T) {
	_, err := Sanitize(update.Spec{"age": "old"}, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = Sanitize(update.Spec{"name": 12}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cast to string failed")
}

func TestSanitizeWholeSubdocument(t *testing.T) {
	out, err := Sanitize(update.Spec{"scholarship": map[string]any{"merit": "5", "bogus": 1}}, true)
	require.NoError(t, err)
	assert.Equal(t, update.Spec{"scholarship": types.Scholarship{Merit: 5}}, out)
}

func TestSanitizeRejectsConflictingPaths(t *testing.T) {
	_, err := Sanitize(update.Spec{
		"scholarship":       map[string]any{"merit": 1, "other": 1},
		"scholarship.merit": 2,
	}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict")
}

func TestSanitizeEmpty(t *testing.T) {
	out, err := Sanitize(update.Spec{}, true)
	require.NoError(t, err)
	assert.Empty(t, out)
}
