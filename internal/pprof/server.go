// Package pprof runs the optional localhost debug server for `togpt serve`.
package pprof

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
)

// Server wraps net/http/pprof plus a JSON dump of engine state.
type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
	state    func() any
	logger   *slog.Logger
}

// NewServer creates a debug server. state, when non-nil, is served as JSON
// at /debug/togpt/state.
func NewServer(state func() any, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{state: state, logger: logger}
}

// Start binds the server to localhost on the given port.
// Use port 0 for a random available port.
// Returns the actual port the server is listening on.
func (s *Server) Start(port int) (int, error) {
	// Bind to localhost only
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("bind to %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	// Dedicated mux so nothing registered on http.DefaultServeMux leaks out.
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/togpt/state", s.handleState)
	s.server = &http.Server{
		Handler: mux,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("debug server stopped", "err", err)
		}
	}()

	return s.port, nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(s.state())
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// PrintUsage prints helpful profiling commands to the given writer.
func PrintUsage(w io.Writer, port int) {
	fmt.Fprintf(w, "\ndebug server: http://127.0.0.1:%d\n\n", port)
	fmt.Fprintf(w, "From another terminal:\n")
	fmt.Fprintf(w, "  go tool pprof http://127.0.0.1:%d/debug/pprof/profile?seconds=30\n", port)
	fmt.Fprintf(w, "  go tool pprof http://127.0.0.1:%d/debug/pprof/heap\n", port)
	fmt.Fprintf(w, "  curl http://127.0.0.1:%d/debug/togpt/state\n\n", port)
}
