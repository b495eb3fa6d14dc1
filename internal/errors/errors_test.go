package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/errors"
)

func TestErrorMessage(t *testing.T) {
	err := errors.NewColumnNotFoundError("Filter", "age")
	msg := err.Error()
	assert.Contains(t, msg, "ColumnNotFoundError")
	assert.Contains(t, msg, "Filter")
	assert.Contains(t, msg, `"age"`)
	assert.Contains(t, msg, "column does not exist")
}

func TestWithExpr(t *testing.T) {
	err := errors.NewTypeError("Select", "operands are incompatible").WithExpr("(a + b)")
	assert.Contains(t, err.Error(), "in expression (a + b)")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "SchemaError", errors.KindSchema.String())
	assert.Equal(t, "CastError", errors.KindCast.String())
	assert.Equal(t, "Error", errors.Kind(99).String())
}

func TestIsMatchesKindSentinel(t *testing.T) {
	err := errors.NewCastError("Cast", "score", "value 300 out of range")
	assert.True(t, stderrors.Is(err, errors.ErrCast))
	assert.False(t, stderrors.Is(err, errors.ErrSchema))
}

func TestIsNarrowerTarget(t *testing.T) {
	err := errors.NewColumnNotFoundError("Join", "id")
	assert.True(t, stderrors.Is(err, &errors.Error{Kind: errors.KindColumnNotFound, Op: "Join"}))
	assert.False(t, stderrors.Is(err, &errors.Error{Kind: errors.KindColumnNotFound, Op: "Sort"}))
	assert.False(t, stderrors.Is(err, &errors.Error{Kind: errors.KindColumnNotFound, Column: "name"}))
}

func TestWrapPreservesEngineError(t *testing.T) {
	inner := errors.NewSchemaError("", "union inputs differ")
	wrapped := errors.Wrap("Union", inner)
	assert.Equal(t, "Union", wrapped.Op)
	assert.True(t, stderrors.Is(wrapped, errors.ErrSchema))
}

func TestWrapForeignError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	wrapped := errors.Wrap("Scan", cause)
	require.NotNil(t, wrapped)
	assert.Equal(t, errors.KindCompute, wrapped.Kind)
	assert.ErrorIs(t, wrapped, cause)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, errors.Wrap("Scan", nil))
}

func TestOutOfBounds(t *testing.T) {
	err := errors.NewOutOfBoundsError("Take", 7, 5)
	assert.Contains(t, err.Error(), "index 7 out of bounds for length 5")
	assert.True(t, stderrors.Is(err, errors.ErrOutOfBounds))
}
