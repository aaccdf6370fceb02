package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"not found", ErrNotFound, KindNotFound},
		{"wrapped validation", fmt.Errorf("enroll: %w", ErrValidation), KindValidation},
		{"conflict", Wrap(ErrConflict, "enrollment"), KindConflict},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", netTimeout{}, KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"dependency", MarkKind(errors.New("pg down"), KindDependencyFailure), KindDependencyFailure},
		{"join picks priority", errors.Join(ErrInternal, ErrNotFound), KindNotFound},
		{"canceled beats everything", errors.Join(ErrNotFound, context.Canceled), KindCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMarkKind(t *testing.T) {
	base := errors.New("no rows in result set")

	marked := MarkKind(base, KindNotFound)
	require.Error(t, marked)
	assert.True(t, IsNotFound(marked))
	assert.ErrorIs(t, marked, base)

	t.Run("idempotent", func(t *testing.T) {
		assert.Same(t, marked, MarkKind(marked, KindNotFound))
	})

	t.Run("dependency failure", func(t *testing.T) {
		err := MarkKind(base, KindDependencyFailure)
		assert.True(t, IsDependencyFailure(err))
		assert.False(t, IsDependencyFailure(marked))
	})

	t.Run("nil error yields sentinel", func(t *testing.T) {
		assert.Equal(t, ErrConflict, MarkKind(nil, KindConflict))
	})

	t.Run("unknown kind leaves error untouched", func(t *testing.T) {
		assert.Equal(t, base, MarkKind(base, KindUnknown))
		assert.Equal(t, base, MarkKind(base, KindCanceled))
	})
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ctx"))
	assert.NoError(t, Wrapf(nil, "ctx %d", 1))

	err := Wrapf(ErrNotFound, "item %s", "abc")
	assert.EqualError(t, err, "item abc: not found")
	assert.True(t, IsNotFound(err))

	assert.Equal(t, ErrConflict, Wrap(ErrConflict, ""))
}

func TestInvariantAndValidation(t *testing.T) {
	assert.NoError(t, Invariant(true, "never"))

	err := Invariant(false, "read is terminal")
	assert.True(t, IsInvariantViolated(err))
	assert.Contains(t, err.Error(), "read is terminal")

	verr := Validationf("duration %d not allowed", 45)
	assert.True(t, IsValidation(verr))
	assert.Equal(t, KindValidation, KindOf(verr))
	assert.Contains(t, verr.Error(), "45")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "NotFound", KindNotFound.String())
	assert.Equal(t, "DependencyFailure", KindDependencyFailure.String())
	assert.Equal(t, "Unknown", Kind(99).String())
}
