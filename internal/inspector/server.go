// Package inspector serves a live view of scenario runs.
//
// The server renders an HTML page listing every frame, streams new frames
// to the page over a websocket and exposes Prometheus metrics. Each server
// start gets a session ID so a page can tell a restarted inspector apart.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/conneroisu/glit/internal/config"
	"github.com/conneroisu/glit/internal/logging"
	"github.com/conneroisu/glit/internal/middleware"
	"github.com/conneroisu/glit/internal/scenario"
)

// Server is the inspector HTTP server.
type Server struct {
	config  config.InspectorConfig
	title   string
	session string
	logger  logging.Logger
	hub     *Hub
	metrics *Metrics

	serverMutex sync.Mutex
	httpServer  *http.Server
}

// New creates an inspector server. A nil logger discards output.
func New(cfg config.InspectorConfig, title string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	session := uuid.NewString()
	metrics := NewMetrics()
	return &Server{
		config:  cfg,
		title:   title,
		session: session,
		logger:  logger.WithComponent("inspector").With("session", session),
		hub:     NewHub(session, logger, metrics),
		metrics: metrics,
	}
}

// Session returns the ID of this server instance.
func (s *Server) Session() string { return s.session }

// Hub returns the frame hub.
func (s *Server) Hub() *Hub { return s.hub }

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics { return s.metrics }

// FrameHandler returns a scenario.FrameHandler that records and publishes
// frames.
func (s *Server) FrameHandler() scenario.FrameHandler {
	return func(f scenario.Frame) {
		s.metrics.Observe(f)
		s.hub.Publish(f)
	}
}

// Handler returns the inspector's routes wrapped in its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/frames", s.handleFrames)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", s.metrics.Handler())

	return middleware.New(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		middleware.SecurityHeaders(pageCSP),
		middleware.CORS(s.config.AllowedOrigins),
	).Apply(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page := Page(PageData{Title: s.title, Session: s.session, Frames: s.hub.History()})
	templ.Handler(page).ServeHTTP(w, r)
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.History()); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write frames")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.config.AllowedOrigins),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade rejected", "origin", r.Header.Get("Origin"))
		return
	}
	s.hub.serve(r.Context(), conn)
}

// originPatterns converts allowed origins to the host patterns the
// websocket library matches Origin headers against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Inspector listening", "address", l.Addr().String())
		errCh <- server.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
