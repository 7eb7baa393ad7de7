// Package server serves the output tree for local development. It maps
// request paths onto files below the output root, refuses paths that escape
// it, and pushes a reload message to connected browsers after every build.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/stitch/internal/build"
	"github.com/conneroisu/stitch/internal/config"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/spf13/afero"
)

// Reserved paths that never map onto the output tree.
const (
	reloadSocketPath = "/__stitch/ws"
	reloadScriptPath = "/__stitch/livereload.js"
	reportPath       = "/__stitch/report"
	healthPath       = "/health"
	metricsPath      = "/metrics"
)

// ReportSource exposes the most recent build report.
type ReportSource interface {
	LastReport() *build.Report
}

// Options configures a DevServer.
type Options struct {
	Root       string
	Host       string
	Port       int
	LiveReload bool
	Open       bool
}

// OptionsFromConfig maps the loaded configuration onto server options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:       cfg.Output.Dir,
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		LiveReload: cfg.Server.LiveReload,
		Open:       cfg.Server.Open,
	}
}

// Addr is host:port.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, fmt.Sprint(o.Port))
}

// Client represents a live reload WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *DevServer
}

// DevServer serves the output tree with live reload capability.
type DevServer struct {
	opts    Options
	fs      afero.Fs
	reports ReportSource
	metrics http.Handler
	logger  logging.Logger

	httpServer  *http.Server
	serverMutex sync.RWMutex

	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	done         chan struct{}

	started      time.Time
	shutdownOnce sync.Once
}

// New creates a DevServer over fsys. reports and metrics may be nil.
func New(opts Options, fsys afero.Fs, reports ReportSource, metrics http.Handler, logger logging.Logger) *DevServer {
	return &DevServer{
		opts:       opts,
		fs:         fsys,
		reports:    reports,
		metrics:    metrics,
		logger:     logger.WithComponent("server"),
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		started:    time.Now(),
	}
}

// Handler returns the complete routing tree wrapped in middleware.
func (s *DevServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(reloadSocketPath, s.handleWebSocket)
	mux.HandleFunc(reloadScriptPath, s.handleReloadScript)
	mux.HandleFunc(reportPath, s.handleReport)
	mux.HandleFunc(healthPath, s.handleHealth)
	if s.metrics != nil {
		mux.Handle(metricsPath, s.metrics)
	}
	mux.Handle("/", s.StaticHandler())

	return Chain(mux, LoggingMiddleware(s.logger), SecurityHeadersMiddleware, NoCacheMiddleware)
}

// Start serves until ctx is cancelled or the listener fails.
func (s *DevServer) Start(ctx context.Context) error {
	go s.runWebSocketHub(ctx)

	addr := s.opts.Addr()
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(context.Background(), err, "Shutdown did not complete cleanly")
		}
	}()

	s.logger.Info(ctx, "Serving", "url", "http://"+addr, "root", s.opts.Root, "live_reload", s.opts.LiveReload)
	if s.opts.Open {
		go s.openBrowser(ctx, "http://"+addr)
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// NotifyReload tells every connected browser to reload. It is registered as
// a build callback and never blocks the caller.
func (s *DevServer) NotifyReload(report *build.Report) {
	if !s.opts.LiveReload {
		return
	}
	msg := []byte(`{"type":"reload"}`)
	select {
	case s.broadcast <- msg:
	default:
		s.logger.Debug(context.Background(), "Reload already queued")
	}
}

// ClientCount is the number of connected live reload clients.
func (s *DevServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// Shutdown gracefully shuts down the server and closes live reload clients.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		close(s.done)

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

func (s *DevServer) openBrowser(ctx context.Context, url string) {
	time.Sleep(100 * time.Millisecond) // Give server time to start

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}
