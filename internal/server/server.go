// Package server implements the treebark preview server: a render API, a
// directory of live-reloading template previews, and the websocket hub that
// tells open pages to reload when their template changes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/treebark/internal/config"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/watcher"
	"github.com/conneroisu/treebark/pkg/treebark"
)

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *PreviewServer
}

// PreviewServer serves rendered templates with live reload
type PreviewServer struct {
	config       *config.Config
	root         string
	logger       logging.Logger
	httpServer   *http.Server
	serverMutex  sync.RWMutex
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	hubDone      chan struct{}
	watcher      *watcher.FileWatcher
	startedAt    time.Time
	shutdownOnce sync.Once
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a preview server for the templates under cfg.Server.Root.
func New(cfg *config.Config, logger logging.Logger) (*PreviewServer, error) {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	logger = logger.WithComponent("server")

	root, err := filepath.Abs(cfg.Server.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", cfg.Server.Root, err)
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &PreviewServer{
		config:     cfg,
		root:       root,
		logger:     logger,
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		hubDone:    make(chan struct{}),
		watcher:    fileWatcher,
		startedAt:  time.Now(),
	}, nil
}

// Handler returns the routed handler with security middleware applied.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/render", s.handleRender)
	mux.HandleFunc("POST /api/csp-report", CSPViolationHandler(s.logger))
	mux.HandleFunc("GET /preview/{name...}", s.handlePreview)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return SecurityMiddleware(SecurityConfigFromAppConfig(s.config, s.logger))(s.logRequests(mux))
}

func (s *PreviewServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Start watches the root, runs the websocket hub and serves HTTP until ctx
// is cancelled or the server fails.
func (s *PreviewServer) Start(ctx context.Context) error {
	if err := s.setupFileWatcher(ctx); err != nil {
		return err
	}

	go s.runWebSocketHub(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "preview server listening", "addr", server.Addr, "root", s.root)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (s *PreviewServer) setupFileWatcher(ctx context.Context) error {
	s.watcher.AddFilter(watcher.TemplateFilter)
	s.watcher.AddFilter(watcher.NoHiddenFilter)
	s.watcher.AddFilter(watcher.NoGitFilter)
	s.watcher.AddHandler(s.handleFileChange)

	if err := s.watcher.AddRecursive(s.root); err != nil {
		return fmt.Errorf("watching %s: %w", s.root, err)
	}

	return s.watcher.Start(ctx)
}

// handleFileChange asks pages showing a changed template to reload.
func (s *PreviewServer) handleFileChange(events []watcher.ChangeEvent) error {
	for _, event := range events {
		rel, err := filepath.Rel(s.root, event.Path)
		if err != nil {
			return fmt.Errorf("relating %s to root: %w", event.Path, err)
		}
		target := filepath.ToSlash(rel)
		s.logger.Info(context.Background(), "template changed", "target", target, "type", event.Type.String())
		s.broadcastMessage(UpdateMessage{Type: "reload", Target: target, Timestamp: time.Now()})
	}

	return nil
}

func (s *PreviewServer) broadcastMessage(msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "failed to marshal update message")
		return
	}

	select {
	case s.broadcast <- data:
	default:
		s.logger.Warn(context.Background(), nil, "broadcast queue full, dropping update", "target", msg.Target)
	}
}

// renderOptions builds render options from config. diag receives
// diagnostics for one render.
func (s *PreviewServer) renderOptions(diag treebark.Diagnostics) *treebark.Options {
	return &treebark.Options{
		Indent:   treebark.ParseIndentFlag(s.config.Render.Indent),
		Logger:   diag,
		MaxDepth: s.config.Render.MaxDepth,
		Container: treebark.Container{
			Contain:    s.config.Render.Contain,
			ShadowRoot: s.config.Render.ShadowRoot,
		},
	}
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down preview server")

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn(ctx, err, "failed to stop file watcher")
			}
		}

		s.clientsMutex.Lock()
		for conn, client := range s.clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*Client)
		s.clientsMutex.Unlock()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// ClientCount returns the number of connected live-reload clients.
func (s *PreviewServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	return len(s.clients)
}
