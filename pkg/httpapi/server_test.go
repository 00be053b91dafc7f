package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	doc  []byte
	tick uint64
}

func (f fakeSnapshots) Current() []byte { return f.doc }
func (f fakeSnapshots) Tick() uint64    { return f.tick }

func TestHandleSnapshotNoneYet(t *testing.T) {
	s := New(DefaultConfig(":0"), fakeSnapshots{})
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()
	s.handleSnapshot(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSnapshotReturnsCurrent(t *testing.T) {
	s := New(DefaultConfig(":0"), fakeSnapshots{doc: []byte(`{"tick":1}`), tick: 1})
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()
	s.handleSnapshot(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"tick":1}`, rec.Body.String())
}

func TestHandleStatusAliasesSnapshot(t *testing.T) {
	s := New(DefaultConfig(":0"), fakeSnapshots{doc: []byte(`{"tick":42}`), tick: 42})
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"tick":42}`, rec.Body.String())
}

func TestHandleStatusNoneYet(t *testing.T) {
	s := New(DefaultConfig(":0"), fakeSnapshots{})
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealthBeforeReady(t *testing.T) {
	s := New(DefaultConfig(":0"), fakeSnapshots{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"starting"`)
}

func TestWithRateLimitRejectsNonGet(t *testing.T) {
	s := New(DefaultConfig(":0"), fakeSnapshots{})
	wrapped := s.withRateLimit(s.handleHealth)
	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	rec := httptest.NewRecorder()
	wrapped(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
