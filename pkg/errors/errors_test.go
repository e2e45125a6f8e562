package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error with cause",
			err:  Wrap(KindTransport, "connect failed", errors.New("dial tcp: refused")),
			want: "transport: connect failed: dial tcp: refused",
		},
		{
			name: "error without cause",
			err:  New(KindNotFound, "tool not found"),
			want: "not_found: tool not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := Wrap(KindDeadline, "exceeded", cause)
	assert.Equal(t, cause, err.Unwrap())

	noCause := New(KindDeadline, "exceeded")
	assert.Nil(t, noCause.Unwrap())
}

func TestError_Is(t *testing.T) {
	t.Parallel()

	a := New(KindProtocol, "bad json")
	b := New(KindProtocol, "different message")
	c := New(KindApplication, "app error")

	assert.True(t, errors.Is(a, b), "same kind should match regardless of message")
	assert.False(t, errors.Is(a, c), "different kind must not match")
	assert.False(t, errors.Is(a, errors.New("plain")), "non-*Error target never matches")
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindNotFound, KindOf(New(KindNotFound, "x")))
	assert.Equal(t, KindTransport, KindOf(errors.New("unclassified")))

	wrapped := errors.Join(errors.New("context"), New(KindDeadline, "too slow"))
	assert.Equal(t, KindDeadline, KindOf(wrapped))
}
