// Package server exposes the translator's command protocol over stdio, TCP,
// and WebSocket transports, plus an optional Prometheus metrics endpoint.
//
// Every transport is line-oriented: one command per line, responses written
// back on the same stream. When neither a TCP nor a WebSocket listener is
// configured, commands are read from stdin — the classic single-operator
// mode.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/adaptran/internal/config"
	"github.com/MrWong99/adaptran/internal/health"
)

// Executor runs one protocol line. Implemented by the translator.
type Executor interface {
	Execute(ctx context.Context, line string, in io.Reader, out io.Writer) error
}

// Server serves the command protocol on the configured transports.
type Server struct {
	cfg    config.ServerConfig
	exec   Executor
	health *health.Handler
}

// Option configures a [Server].
type Option func(*Server)

// WithHealth mounts the given health handler's /healthz and /readyz routes
// on the metrics listener.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// New creates a Server around exec.
func New(cfg config.ServerConfig, exec Executor, opts ...Option) *Server {
	s := &Server{cfg: cfg, exec: exec}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves until ctx is cancelled or a listener fails. With neither a TCP
// nor a WebSocket address configured, it serves stdin/stdout instead.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if s.health != nil {
			s.health.Register(mux)
		}
		s.runHTTP(ctx, g, "metrics", s.cfg.MetricsAddr, mux)
	}

	if s.cfg.WSListenAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/translate", s.handleWS)
		s.runHTTP(ctx, g, "websocket", s.cfg.WSListenAddr, mux)
	}

	if s.cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.ListenAddr)
		if err != nil {
			return err
		}
		slog.Info("tcp listener ready", "addr", ln.Addr().String())
		g.Go(func() error {
			<-ctx.Done()
			return ln.Close()
		})
		g.Go(func() error { return s.serveListener(ctx, ln) })
	} else if s.cfg.WSListenAddr == "" {
		g.Go(func() error { return s.serveStdio(ctx) })
	}

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) || errors.Is(err, errStdinClosed) {
		return nil
	}
	return err
}

// errStdinClosed ends the run group when stdin reaches EOF in stdio mode,
// so the auxiliary HTTP listeners shut down too.
var errStdinClosed = errors.New("stdin closed")

// runHTTP starts an HTTP server on the group and shuts it down when ctx is
// cancelled.
func (s *Server) runHTTP(ctx context.Context, g *errgroup.Group, kind, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "kind", kind, "err", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("http listener ready", "kind", kind, "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

// serveStdio reads commands from stdin and writes responses to stdout until
// EOF.
func (s *Server) serveStdio(ctx context.Context) error {
	slog.Info("serving commands on stdin")
	s.serveStream(ctx, struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "stdio")
	return errStdinClosed
}

// serveListener accepts TCP connections until the listener is closed. Each
// connection gets its own goroutine and is force-closed on shutdown.
func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	var conns sync.WaitGroup
	defer conns.Wait() // runs after cancel: connections are closed first
	defer cancel()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			done := make(chan struct{})
			defer close(done)
			go func() {
				select {
				case <-ctx.Done():
					conn.Close()
				case <-done:
				}
			}()
			defer conn.Close()
			s.serveStream(ctx, conn, "tcp:"+conn.RemoteAddr().String())
		}()
	}
}

// handleWS upgrades one WebSocket connection and serves the same line
// protocol over it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	nc := websocket.NetConn(r.Context(), c, websocket.MessageText)
	defer nc.Close()
	s.serveStream(r.Context(), nc, "ws:"+r.RemoteAddr)
}

// serveStream runs the command loop over one bidirectional stream. The
// buffered reader is handed to the executor as the in-band input so that a
// LOAD without a filename can consume the state that follows it on the same
// stream.
func (s *Server) serveStream(ctx context.Context, rw io.ReadWriter, remote string) {
	connID := uuid.NewString()[:8]
	log := slog.With("conn_id", connID, "remote", remote)
	log.Info("client connected")

	br := bufio.NewReader(rw)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			// Errors are client errors by protocol: logged inside the
			// executor, no response written, connection stays up.
			_ = s.exec.Execute(ctx, line, br, rw)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn("client read error", "err", err)
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	log.Info("client disconnected")
}
