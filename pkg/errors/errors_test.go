package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("not found")
	wrapped := sentinel.Wrap(fmt.Errorf("key %q", "a"))

	assert.True(t, Is(wrapped, sentinel))
	assert.Nil(t, sentinel.Unwrap(), "wrapping must not mutate the sentinel")
	assert.Equal(t, "not found", sentinel.Error())
	assert.Equal(t, `not found: key "a"`, wrapped.Error())

	again := wrapped.WrapMessage("resource %s", "data")
	assert.True(t, Is(again, sentinel))
	assert.Equal(t, "not found: resource data", again.Error())

	other := New("not found")
	assert.False(t, Is(wrapped, other), "sentinels with the same message are distinct")
}

func TestAs(t *testing.T) {
	sentinel := New("mismatch")
	err := fmt.Errorf("restore: %w", sentinel.WrapMessage("hash %s", "abc"))

	var target *Error
	require.True(t, As(err, &target))
	assert.True(t, Is(target, sentinel))
}
