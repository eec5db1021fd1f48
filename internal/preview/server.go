package preview

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/contentforge/internal/buildlog"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/metrics"
)

const (
	// MetricsPath serves Prometheus metrics when a registry is configured.
	MetricsPath = "/metrics"
	// BuildsPath serves recent build history when a history store is configured.
	BuildsPath = "/api/builds"

	defaultBuildsLimit = 20
	maxBuildsLimit     = 200
)

// History lists recent builds.
type History interface {
	Recent(ctx context.Context, n int) ([]buildlog.Record, error)
}

// Server serves the output directory.
type Server struct {
	root     string
	port     int
	host     string
	hub      *Hub
	registry *prom.Registry
	history  History
	logger   *slog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	serveErr chan error
}

// Option configures a Server.
type Option func(*Server)

// WithHub enables the live-reload endpoints and script injection.
func WithHub(h *Hub) Option { return func(s *Server) { s.hub = h } }

// WithMetrics exposes reg at /metrics.
func WithMetrics(reg *prom.Registry) Option { return func(s *Server) { s.registry = reg } }

// WithHistory exposes build history at /api/builds.
func WithHistory(h History) Option { return func(s *Server) { s.history = h } }

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithHost sets the interface to bind. The default binds every interface.
func WithHost(host string) Option { return func(s *Server) { s.host = host } }

// NewServer creates a server for the directory root on port. Port 0 picks a
// free port (see Addr).
func NewServer(root string, port int, opts ...Option) *Server {
	s := &Server{root: root, port: port, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routing handler with middleware applied.
func (s *Server) Handler() http.Handler {
	adapter := errors.NewHTTPErrorAdapter(s.logger)
	mux := http.NewServeMux()

	var static http.Handler = http.HandlerFunc(s.serveStatic)
	if s.hub != nil {
		mux.Handle(ReloadPath, s.hub)
		mux.HandleFunc(ScriptPath, serveClientScript)
		static = injectReloadScript(static)
	}
	if s.registry != nil {
		mux.Handle(MetricsPath, metrics.HTTPHandler(s.registry))
	}
	if s.history != nil {
		mux.HandleFunc(BuildsPath, func(w http.ResponseWriter, r *http.Request) {
			s.serveBuilds(w, r, adapter)
		})
	}
	mux.Handle("/", static)

	return chain(s.logger, adapter)(mux)
}

// Start binds the port and serves in the background. Failure to bind is a
// PortInUseError.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.ServerError("server already started").Build()
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.PortInUseError(s.port).WithCause(err).WithContext("addr", addr).Build()
	}

	s.listener = ln
	s.serveErr = make(chan error, 1)
	// No write timeout: live-reload streams are long-lived.
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func(srv *http.Server, errc chan<- error) {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Preview server stopped", logfields.Error(err))
			errc <- err
		}
		close(errc)
	}(s.srv, s.serveErr)

	s.logger.Info("Preview server listening", logfields.Port(s.Port()), logfields.URL(s.URL()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound port (the configured one before Start).
func (s *Server) Port() int {
	if s.listener != nil {
		if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return tcp.Port
		}
	}
	return s.port
}

// URL returns the local address browsers should open.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d/", s.Port())
}

// Stop closes live-reload streams and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	if s.hub != nil {
		s.hub.Close()
	}
	err := s.srv.Shutdown(ctx)
	s.srv = nil
	if err != nil {
		return errors.WrapError(err, errors.CategoryServer, "preview server shutdown failed").Build()
	}
	return nil
}

// Done is closed when the server stops serving; it carries a serve error, if any.
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// serveStatic serves files from root. A directory serves its index.html and
// an extension-less path falls back to <path>.html.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	for _, candidate := range s.candidates(clean) {
		f, err := os.Open(candidate)
		if err != nil {
			continue
		}
		fi, err := f.Stat()
		if err != nil || fi.IsDir() {
			_ = f.Close()
			continue
		}
		http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
		_ = f.Close()
		return
	}
	http.NotFound(w, r)
}

func (s *Server) candidates(clean string) []string {
	base := filepath.Join(s.root, filepath.FromSlash(clean))
	out := []string{base, filepath.Join(base, "index.html")}
	if path.Ext(clean) == "" && clean != "/" && !strings.HasSuffix(clean, "/") {
		out = append(out, base+".html")
	}
	return out
}

func (s *Server) serveBuilds(w http.ResponseWriter, r *http.Request, adapter *errors.HTTPErrorAdapter) {
	limit := defaultBuildsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			adapter.WriteErrorResponse(w, r, errors.ValidationError("limit must be a positive integer").
				WithContext("limit", v).Build())
			return
		}
		limit = min(n, maxBuildsLimit)
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		adapter.WriteErrorResponse(w, r, err)
		return
	}
	if records == nil {
		records = []buildlog.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"builds": records}); err != nil {
		s.logger.Debug("Failed to encode build history", logfields.Error(err))
	}
}
