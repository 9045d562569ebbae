// Package callback runs the short-lived local HTTP server that receives the identity
// provider's redirect during a terminal login.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds how long a login waits for the redirect.
const DefaultTimeout = 5 * time.Minute

// Server listens for the redirect on a loopback port and hands its query to the waiting login.
type Server struct {
	port int
	path string

	server     *http.Server
	listener   net.Listener
	resultChan chan url.Values
	errorChan  chan error

	mu      sync.Mutex
	running bool
}

// NewServer creates a callback server for path on port. Port 0 picks a free port.
func NewServer(port int, path string) *Server {
	if strings.TrimSpace(path) == "" {
		path = "/"
	}
	return &Server{
		port:       port,
		path:       path,
		resultChan: make(chan url.Values, 1),
		errorChan:  make(chan error, 1),
	}
}

// Start binds the port and begins serving. A busy port yields ErrPortInUse.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("callback server is already running")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return NewAuthenticationError(ErrPortInUse, err)
		}
		return NewAuthenticationError(ErrServerStartFailed, err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.running = true

	go func() {
		if errServe := s.server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			s.sendError(NewAuthenticationError(ErrServerStartFailed, errServe))
		}
	}()
	log.Debugf("callback server listening on %s%s", listener.Addr(), s.path)
	return nil
}

// Port returns the bound port once started.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// RedirectURL is the URL the identity provider must redirect to.
func (s *Server) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%d%s", s.Port(), s.path)
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}
	log.Debug("Stopping callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil
	return err
}

// Results exposes the channel carrying received redirect queries.
func (s *Server) Results() <-chan url.Values {
	return s.resultChan
}

// Errors exposes the channel carrying server failures.
func (s *Server) Errors() <-chan error {
	return s.errorChan
}

// WaitForCallback blocks until a redirect arrives, the server fails, ctx ends or timeout passes.
func (s *Server) WaitForCallback(ctx context.Context, timeout time.Duration) (url.Values, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case query := <-s.resultChan:
		return query, nil
	case err := <-s.errorChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, NewAuthenticationError(ErrCallbackTimeout, fmt.Errorf("no redirect within %s", timeout))
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != s.path {
		http.NotFound(w, r)
		return
	}
	log.Debug("Received OAuth callback")

	query := r.URL.Query()
	if errCode := strings.TrimSpace(query.Get("error")); errCode != "" {
		log.WithField("provider_error", errCode).Warn("identity provider returned an error")
	}
	s.sendResult(query)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(callbackReceivedHtml)); err != nil {
		log.Errorf("Failed to write callback page: %v", err)
	}
}

func (s *Server) sendResult(query url.Values) {
	select {
	case s.resultChan <- query:
		log.Debug("OAuth callback sent to channel")
	default:
		log.Warn("OAuth callback channel is full, redirect dropped")
	}
}

func (s *Server) sendError(err error) {
	select {
	case s.errorChan <- err:
	default:
	}
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
