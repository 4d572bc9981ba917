package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/logging"
	"github.com/muurk/apsta/internal/wifi"
)

// DefaultAddr is the status server listen address.
const DefaultAddr = ":8080"

// Config holds the server configuration
type Config struct {
	Addr string

	// CertPath and KeyPath enable TLS when both are set.
	CertPath string
	KeyPath  string
}

// StatusSource reports the manager state. *wifi.Manager satisfies it.
type StatusSource interface {
	Status() wifi.Status
}

// Server exposes manager status, a live event stream and metrics over HTTP.
type Server struct {
	config    Config
	status    StatusSource
	hub       *Hub
	metrics   http.Handler
	logger    *zap.Logger
	tlsConfig *tls.Config
	upgrader  websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	wg      sync.WaitGroup
	mu      sync.Mutex
	streams map[*websocket.Conn]struct{}
	closing bool
}

// New creates a server. metrics may be nil to leave /metrics unrouted.
func New(config Config, status StatusSource, hub *Hub, metrics http.Handler, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if hub == nil {
		hub = NewHub(DefaultHistory, logger)
	}

	s := &Server{
		config:  config,
		status:  status,
		hub:     hub,
		metrics: metrics,
		logger:  logger.Named("server"),
		streams: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The stream is read-only diagnostics served on the local
			// network; browsers on any origin may watch it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	if config.CertPath != "" || config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
	return s, nil
}

// Hub returns the event hub. Subscribe it to the manager to feed /events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener

	s.logger.Info("Status server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting requests, ends every event stream and waits for
// handlers to return or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down status server...")

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)

	// Streams are hijacked connections; http.Server does not track them.
	s.hub.closeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All streams closed gracefully")
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout, forcing close")
		s.mu.Lock()
		for conn := range s.streams {
			_ = conn.Close()
		}
		s.mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// ActiveStreams returns the number of open event streams
func (s *Server) ActiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// track records an upgraded connection. It refuses once shutdown began.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.streams[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.streams, conn)
	s.mu.Unlock()
	s.wg.Done()
}
