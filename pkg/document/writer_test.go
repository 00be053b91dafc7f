package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterBasicObject(t *testing.T) {
	w := NewWriter(0)
	w.BeginObject()
	w.Key("a")
	w.Int64(1)
	w.Key("b")
	w.String("x")
	w.EndObject()

	require.False(t, w.Overflowed())
	assert.Equal(t, `{"a":1,"b":"x"}`, string(w.Bytes()))
}

func TestWriterNestedArrayAndObjects(t *testing.T) {
	w := NewWriter(0)
	w.BeginObject()
	w.Key("items")
	w.BeginArray()
	w.BeginObject()
	w.Key("pid")
	w.Int64(100)
	w.EndObject()
	w.BeginObject()
	w.Key("pid")
	w.Int64(200)
	w.EndObject()
	w.EndArray()
	w.EndObject()

	assert.Equal(t, `{"items":[{"pid":100},{"pid":200}]}`, string(w.Bytes()))
}

func TestWriterValueDeltaOmitsFirstTick(t *testing.T) {
	w := NewWriter(0)
	w.ValueDelta(42, 7, false)
	assert.Equal(t, `{"value":42}`, string(w.Bytes()))

	w2 := NewWriter(0)
	w2.ValueDelta(42, 7, true)
	assert.Equal(t, `{"value":42,"delta":7}`, string(w2.Bytes()))
}

func TestWriterEscaping(t *testing.T) {
	w := NewWriter(0)
	w.String("a\"b\\c\nd\x01e")
	assert.Equal(t, `"a\"b\\c\nde"`, string(w.Bytes()))
}

func TestWriterOverflowLatchesAndNoOps(t *testing.T) {
	w := NewWriter(4)
	w.BeginObject()
	w.Key("k")
	w.String("this is long enough to overflow")
	require.True(t, w.Overflowed())

	before := w.Bytes()
	w.Key("another")
	w.Int64(5)
	w.EndObject()
	assert.Equal(t, before, w.Bytes(), "writes after overflow must be no-ops")
}

func TestWriterNullForAbsentSnapshot(t *testing.T) {
	w := NewWriter(0)
	w.BeginObject()
	w.Key("svc")
	w.Null()
	w.EndObject()
	assert.Equal(t, `{"svc":null}`, string(w.Bytes()))
}
