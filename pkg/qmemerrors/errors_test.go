package qmemerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNoCause(t *testing.T) {
	err := New(CodeFraming, "bad magic")
	assert.Equal(t, "framing: bad magic", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodePluginABI, "load plugin foo.so", cause)

	assert.Equal(t, "plugin_abi: load plugin foo.so: connection reset", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestWithContextCarriesFields(t *testing.T) {
	err := WithContext(CodeCapacity, "snapshot truncated", map[string]any{"tick": uint64(7)})
	assert.Equal(t, uint64(7), err.Context["tick"])
	assert.True(t, Is(err, CodeCapacity))
	assert.False(t, Is(err, CodeFatal))
}

func TestIsRejectsPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), CodeTransient))
}
