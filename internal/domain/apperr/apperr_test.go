package apperr

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	sentinel := New(NotFound, "thing not found")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: Unknown},
		{name: "plain", err: errors.New("boom"), want: Unknown},
		{name: "sentinel", err: sentinel, want: NotFound},
		{name: "wrapped", err: errors.Wrap(sentinel, "find"), want: NotFound},
		{name: "fmt wrapped", err: fmt.Errorf("repo: %w", New(Conflict, "dup")), want: Conflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelIdentity(t *testing.T) {
	a := New(NotFound, "x")
	b := New(NotFound, "x")
	assert.ErrorIs(t, errors.Wrap(a, "ctx"), a)
	assert.NotErrorIs(t, a, b)
}

func TestClientFacing(t *testing.T) {
	assert.True(t, NotFound.ClientFacing())
	assert.True(t, Conflict.ClientFacing())
	assert.True(t, Validation.ClientFacing())
	assert.False(t, RetryExhausted.ClientFacing())
	assert.False(t, Integrity.ClientFacing())
	assert.False(t, Unknown.ClientFacing())
}
