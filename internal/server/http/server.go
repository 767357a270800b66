package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/whistlegraph/dp1-feed/internal/runtime"
	feedsvc "github.com/whistlegraph/dp1-feed/internal/services/feeds"
	"github.com/whistlegraph/dp1-feed/pkg/id"
	"github.com/whistlegraph/dp1-feed/pkg/log"
)

// Server serves the feed API over HTTP.
type Server struct {
	rt     *runtime.Runtime
	svc    *feedsvc.Service
	srv    *http.Server
	lis    net.Listener
	logger log.Logger
	ids    *id.Generator
}

// New builds a Server around the runtime with a discarding logger.
func New(rt *runtime.Runtime) *Server {
	return NewWithLogger(rt, log.NewLogger(log.WithOutput(log.NullOutput{})))
}

// NewWithLogger builds a Server using the provided logger.
func NewWithLogger(rt *runtime.Runtime, logger log.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		svc:    feedsvc.NewWithLogger(rt, logger),
		logger: logger.With(log.Component("http")),
		ids:    id.NewGenerator(),
	}
	s.srv = &http.Server{Handler: cors(s.requestID(mux))}

	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/records/get", s.handleGet)
	mux.HandleFunc("/v1/records/get-multiple", s.handleGetMultiple)
	mux.HandleFunc("/v1/records/save", s.handleSave)
	mux.HandleFunc("/v1/records/save-batch", s.handleSaveBatch)
	mux.HandleFunc("/v1/records/delete", s.handleDelete)
	mux.HandleFunc("/v1/records/list", s.handleList)
	mux.HandleFunc("/v1/queue/stats", s.handleQueueStats)
	mux.HandleFunc("/v1/queue/dead", s.handleQueueDead)
	return s
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestID tags every request with a sortable id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := s.ids.Next().String()
		w.Header().Set("X-Request-Id", rid)
		s.logger.Debug("request", log.Str("request_id", rid), log.Str("method", r.Method), log.Str("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
