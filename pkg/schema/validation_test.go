package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResultSeveritySplit(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("nodes[a]", ErrCodeValidation, "first warning")
	r.AddError("edges[e1]", ErrCodeNotFound, "dangling edge")
	r.AddWarning("nodes[b]", ErrCodeValidation, "second warning")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors(), 1)
	assert.Equal(t, "edges[e1]", r.Errors()[0].Path)

	warnings := r.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, "first warning", warnings[0].Message)
	assert.Equal(t, "second warning", warnings[1].Message)
}

func TestValidationResultMergePreservesOrder(t *testing.T) {
	a := &ValidationResult{}
	a.AddWarning("nodes[x]", ErrCodeValidation, "from a")
	b := &ValidationResult{}
	b.AddError("nodes[y]", ErrCodeValidation, "from b")

	a.Merge(b)
	a.Merge(nil)
	require.Len(t, a.Issues, 2)
	assert.Equal(t, "from a", a.Issues[0].Message)
	assert.False(t, a.Valid())
}

func TestValidationResultToError(t *testing.T) {
	r := &ValidationResult{}
	assert.NoError(t, r.ToError())

	r.AddWarning("nodes[a]", ErrCodeValidation, "advisory only")
	assert.NoError(t, r.ToError())

	r.AddError("nodes[b]", ErrCodeValidation, "broken")
	err := r.ToError()
	require.Error(t, err)

	var flowErr *FlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, ErrCodeValidation, flowErr.Code)
	assert.Contains(t, flowErr.Message, "broken")
}
