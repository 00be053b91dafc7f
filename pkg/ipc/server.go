package ipc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/history"
	"github.com/qscuio/qmemd/pkg/metrics"
)

// SnapshotSource is the narrow read surface the IPC server needs from the
// Tick Scheduler: the current published snapshot and the shutdown trigger
// for the SHUTDOWN request.
type SnapshotSource interface {
	Current() []byte
	RequestShutdown()
}

// ServicesLister answers the SERVICES request.
type ServicesLister interface {
	WriteServices(w *document.Writer)
}

// connTimeout bounds recv/send on each accepted connection so a slow
// client can never hold a connection across a tick boundary (spec
// §4.6/§5). Accept itself has no timeout; Serve unblocks it by closing the
// listener when its ctx is canceled.
const connTimeout = 5 * time.Second

// Server is the local administrative IPC server: one listener, one
// background accept loop, one goroutine per connection, each handling
// exactly one framed request/reply before closing (spec §4.6).
type Server struct {
	path        string
	listener    net.Listener
	snapshots   SnapshotSource
	services    ServicesLister
	history     *history.Ring
	rateLimiter *rate.Limiter
}

// NewServer binds a Unix-domain socket at path (removing any stale socket
// file first) restricted to the owning user.
func NewServer(path string, snapshots SnapshotSource, services ServicesLister, hist *history.Ring) (*Server, error) {
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, err
	}

	return &Server{
		path:        path,
		listener:    ln,
		snapshots:   snapshots,
		services:    services,
		history:     hist,
		rateLimiter: rate.NewLimiter(rate.Limit(50), 100),
	}, nil
}

// NewServerFromListener wraps an already-bound listener -- the socket
// systemd hands down via LISTEN_FDS socket activation -- instead of
// binding one itself. Close does not attempt to remove a socket path,
// since systemd owns that file's lifecycle in this mode.
func NewServerFromListener(ln net.Listener, snapshots SnapshotSource, services ServicesLister, hist *history.Ring) *Server {
	return &Server{
		listener:    ln,
		snapshots:   snapshots,
		services:    services,
		history:     hist,
		rateLimiter: rate.NewLimiter(rate.Limit(50), 100),
	}
}

// Serve accepts connections until ctx is canceled, handling each on its own
// goroutine. The accept loop itself is the IPC worker thread of spec §5; it
// only ever reads the published snapshot and history ring.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
		if s.path != "" {
			os.Remove(s.path)
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()

	if !s.rateLimiter.Allow() {
		slog.Debug("ipc connection rejected by rate limiter", slog.String("conn", connID))
		metrics.IPCRequestsTotal.WithLabelValues("unknown", "rate_limited").Inc()
		return
	}

	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	h, payload, err := ReadFrame(conn)
	if err != nil {
		var fe *FrameError
		if errors.As(err, &fe) {
			slog.Debug("ipc framing error", slog.String("conn", connID), slog.String("error", fe.Error()))
			metrics.IPCRequestsTotal.WithLabelValues("unknown", "framing_error").Inc()
			return
		}
		slog.Debug("ipc connection closed", slog.String("conn", connID), slog.String("error", err.Error()))
		return
	}

	resp := s.dispatch(h, payload)
	metrics.IPCRequestsTotal.WithLabelValues(reqTypeName(h.Type), "ok").Inc()
	if err := WriteFrame(conn, h.Type, h.Seq, resp); err != nil {
		slog.Debug("ipc write failed", slog.String("conn", connID), slog.String("error", err.Error()))
	}
}

func reqTypeName(t ReqType) string {
	switch t {
	case ReqStatus:
		return "status"
	case ReqSnapshot:
		return "snapshot"
	case ReqHistory:
		return "history"
	case ReqSubscribe:
		return "subscribe"
	case ReqServices:
		return "services"
	case ReqShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

func (s *Server) dispatch(h Header, payload []byte) []byte {
	switch h.Type {
	case ReqStatus, ReqSnapshot:
		if doc := s.snapshots.Current(); doc != nil {
			return doc
		}
		return errorDoc("no snapshot available yet")

	case ReqHistory:
		return s.handleHistory(payload)

	case ReqServices:
		w := document.NewWriter(0)
		s.services.WriteServices(w)
		return w.Bytes()

	case ReqSubscribe:
		return errorDoc("streaming not supported in core")

	case ReqShutdown:
		s.snapshots.RequestShutdown()
		return []byte(`{}`)

	default:
		return errorDoc("unknown request type")
	}
}

func (s *Server) handleHistory(payload []byte) []byte {
	count := -1
	if len(payload) >= 4 {
		count = int(int32(payload[0]) | int32(payload[1])<<8 | int32(payload[2])<<16 | int32(payload[3])<<24)
	}

	entries := s.history.RecentAll(count)
	w := document.NewWriter(0)
	w.BeginObject()
	w.Key("entries")
	w.BeginArray()
	for i, e := range entries {
		w.BeginObject()
		w.Key("index")
		w.Int64(int64(i))
		w.Key("timestamp")
		w.Int64(e.Timestamp.Unix())
		w.EndObject()
	}
	w.EndArray()
	w.EndObject()
	return w.Bytes()
}

func errorDoc(msg string) []byte {
	w := document.NewWriter(0)
	w.BeginObject()
	w.Key("error")
	w.String(msg)
	w.EndObject()
	return w.Bytes()
}

// Close shuts the listener down immediately (used in tests; production
// shutdown goes through the ctx passed to Serve).
func (s *Server) Close() error {
	return s.listener.Close()
}
