package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/manager"
)

// Real plugin .so loading (Load/Unload's happy path) requires an actual
// shared object built with `go build -buildmode=plugin`, which these tests
// cannot produce. What follows exercises the bookkeeping that does not
// require opening one: directory discovery, the tick-boundary event queue,
// and the loaded-plugin count.

func TestLoadAllCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plugins")
	l := NewLoader(dir, manager.New(), collector.Config{})

	n, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.DirExists(t, dir)
}

func TestLoadAllSkipsNonSharedObjectFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a plugin"), 0o644))

	l := NewLoader(dir, manager.New(), collector.Config{})
	n, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, l.Count())
}

func TestDrainReturnsAndClearsQueuedEvents(t *testing.T) {
	l := NewLoader(t.TempDir(), manager.New(), collector.Config{})

	ran := 0
	l.enqueue(func() { ran++ })
	l.enqueue(func() { ran += 2 })

	applied := l.Drain()
	require.Len(t, applied, 2)
	for _, fn := range applied {
		fn()
	}
	assert.Equal(t, 3, ran)

	assert.Empty(t, l.Drain())
}

func TestUnloadUnknownNameIsNoop(t *testing.T) {
	l := NewLoader(t.TempDir(), manager.New(), collector.Config{})
	require.NoError(t, l.Unload("does-not-exist"))
}

func TestCloseOnEmptyLoaderIsNoop(t *testing.T) {
	l := NewLoader(t.TempDir(), manager.New(), collector.Config{})
	require.NoError(t, l.Close())
}
