package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/history"
)

type fakeSource struct {
	doc          []byte
	shutdownHit  bool
}

func (f *fakeSource) Current() []byte { return f.doc }
func (f *fakeSource) RequestShutdown() { f.shutdownHit = true }

type fakeServices struct{}

func (fakeServices) WriteServices(w *document.Writer) {
	w.BeginObject()
	w.Key("meminfo")
	w.Bool(true)
	w.EndObject()
}

func startTestServer(t *testing.T) (*Server, *fakeSource, string) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "qmem.sock")

	src := &fakeSource{doc: []byte(`{"tick":1}`)}
	srv, err := NewServer(sockPath, src, fakeServices{}, history.NewRing(4))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx) }()
	t.Cleanup(cancel)

	return srv, src, sockPath
}

func dialAndRoundTrip(t *testing.T, sockPath string, reqType ReqType, seq uint32, payload []byte) (Header, []byte) {
	t.Helper()
	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, WriteFrame(conn, reqType, seq, payload))
	h, resp, err := ReadFrame(conn)
	require.NoError(t, err)
	return h, resp
}

func TestIPCServerSnapshotRoundTrip(t *testing.T) {
	_, _, sockPath := startTestServer(t)

	h, resp := dialAndRoundTrip(t, sockPath, ReqSnapshot, 7, nil)
	assert.Equal(t, uint32(7), h.Seq)
	assert.Equal(t, Magic, h.Magic)
	assert.Equal(t, `{"tick":1}`, string(resp))
}

func TestIPCServerServicesRoundTrip(t *testing.T) {
	_, _, sockPath := startTestServer(t)
	_, resp := dialAndRoundTrip(t, sockPath, ReqServices, 1, nil)
	assert.Equal(t, `{"meminfo":true}`, string(resp))
}

func TestIPCServerShutdownTriggersCallback(t *testing.T) {
	_, src, sockPath := startTestServer(t)
	dialAndRoundTrip(t, sockPath, ReqShutdown, 1, nil)
	assert.Eventually(t, func() bool { return src.shutdownHit }, time.Second, 10*time.Millisecond)
}

func TestIPCServerSubsequentClientUnaffectedByFramingError(t *testing.T) {
	_, _, sockPath := startTestServer(t)

	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	require.NoError(t, err)
	_, _ = conn.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	conn.Close()

	h, resp := dialAndRoundTrip(t, sockPath, ReqSnapshot, 99, nil)
	assert.Equal(t, uint32(99), h.Seq)
	assert.Equal(t, `{"tick":1}`, string(resp))
}
