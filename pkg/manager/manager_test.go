package manager

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/document"
)

type fakeCollector struct {
	name        string
	collectErr  error
	snapshotVal int64
	hint        any
	destroyed   bool
	order       *[]string
}

func (f *fakeCollector) Init(collector.Config) error { return nil }
func (f *fakeCollector) Collect(collector.HintProvider) error {
	return f.collectErr
}
func (f *fakeCollector) Snapshot(w *document.Writer) error {
	w.BeginObject()
	w.Key("value")
	w.Int64(f.snapshotVal)
	w.EndObject()
	return nil
}
func (f *fakeCollector) Destroy() error {
	f.destroyed = true
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	return nil
}
func (f *fakeCollector) PublishHint() any {
	return f.hint
}

func TestManagerRegisterRejectsDuplicateName(t *testing.T) {
	m := New()
	c1 := &fakeCollector{name: "a"}
	require.NoError(t, m.Register(&collector.Record{Name: "a", Collector: c1, Enabled: true}, collector.Config{}))

	c2 := &fakeCollector{name: "a"}
	err := m.Register(&collector.Record{Name: "a", Collector: c2, Enabled: true}, collector.Config{})
	assert.Error(t, err)
	assert.Equal(t, 1, m.Count())
}

func TestManagerCollectAllIsolatesFailures(t *testing.T) {
	m := New()
	good := &fakeCollector{name: "good"}
	bad := &fakeCollector{name: "bad", collectErr: errors.New("boom")}

	require.NoError(t, m.Register(&collector.Record{Name: "good", Collector: good, Enabled: true}, collector.Config{}))
	require.NoError(t, m.Register(&collector.Record{Name: "bad", Collector: bad, Enabled: true}, collector.Config{}))

	failures := m.CollectAll()
	assert.Equal(t, 1, failures)
}

func TestManagerSnapshotAllPreservesOrderAndNullsDisabled(t *testing.T) {
	m := New()
	a := &fakeCollector{name: "a", snapshotVal: 1}
	b := &fakeCollector{name: "b", snapshotVal: 2}

	require.NoError(t, m.Register(&collector.Record{Name: "a", Collector: a, Enabled: true}, collector.Config{}))
	require.NoError(t, m.Register(&collector.Record{Name: "b", Collector: b, Enabled: false}, collector.Config{}))

	w := document.NewWriter(0)
	m.SnapshotAll(w, 1, 1000)
	assert.Equal(t, `{"tick":1,"timestamp":1000,"services":{"a":{"value":1},"b":null}}`, string(w.Bytes()))
}

func TestManagerHintProviderReadsPublishedHint(t *testing.T) {
	m := New()
	producer := &fakeCollector{name: "procmem", hint: []int32{100, 300}}
	require.NoError(t, m.Register(&collector.Record{Name: "procmem", Collector: producer, Enabled: true}, collector.Config{}))

	_, ok := m.Hint("procmem")
	assert.False(t, ok, "no hint published before the first CollectAll")

	m.CollectAll()
	_, ok = m.Hint("procmem")
	assert.False(t, ok, "a hint published this tick must not be visible until the next tick (SPEC_FULL.md §13)")

	m.CollectAll()
	v, ok := m.Hint("procmem")
	require.True(t, ok)
	assert.Equal(t, []int32{100, 300}, v)
}

func TestManagerUnregisterPreservesOrder(t *testing.T) {
	m := New()
	a := &fakeCollector{name: "a"}
	b := &fakeCollector{name: "b"}
	c := &fakeCollector{name: "c"}
	require.NoError(t, m.Register(&collector.Record{Name: "a", Collector: a, Enabled: true}, collector.Config{}))
	require.NoError(t, m.Register(&collector.Record{Name: "b", Collector: b, Enabled: true}, collector.Config{}))
	require.NoError(t, m.Register(&collector.Record{Name: "c", Collector: c, Enabled: true}, collector.Config{}))

	require.NoError(t, m.Unregister("b"))
	assert.True(t, b.destroyed)

	recs := m.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Name)
	assert.Equal(t, "c", recs[1].Name)
}

func TestManagerShutdownDestroysReverseOrder(t *testing.T) {
	m := New()
	var order []string
	a := &fakeCollector{name: "a", order: &order}
	b := &fakeCollector{name: "b", order: &order}
	require.NoError(t, m.Register(&collector.Record{Name: "a", Collector: a, Enabled: true}, collector.Config{}))
	require.NoError(t, m.Register(&collector.Record{Name: "b", Collector: b, Enabled: true}, collector.Config{}))
	m.Shutdown()
	assert.Equal(t, []string{"b", "a"}, order)
	assert.True(t, a.destroyed)
	assert.True(t, b.destroyed)
	assert.Equal(t, 0, m.Count())
}
