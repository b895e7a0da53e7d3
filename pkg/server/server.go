// Package server implements the GSUP/IPA connection listener and the
// per-connection protocol state machine: the accept loop, the nested
// Update Location exchange, and graceful shutdown.
package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/osmocom-go/hlr-gsup/internal/logger"
	"github.com/osmocom-go/hlr-gsup/pkg/audit"
	"github.com/osmocom-go/hlr-gsup/pkg/health"
	"github.com/osmocom-go/hlr-gsup/pkg/metrics"
	"github.com/osmocom-go/hlr-gsup/pkg/routing"
)

// Config configures the listener.
type Config struct {
	Addr                  string
	UpdateLocationTimeout time.Duration
	ShutdownGrace         time.Duration
}

// Server accepts GSUP/IPA connections and runs one state machine per
// connection.
type Server struct {
	cfg     Config
	auth    AuthFetcher
	routing *routing.Store
	metrics *metrics.Metrics
	log     *logger.Logger
	audit   *audit.Writer
	health  *health.Check
	notify  ProcedureNotifier

	mu       sync.Mutex
	conns    map[*Conn]struct{}
	listener net.Listener
	closing  bool

	wg sync.WaitGroup
}

// New builds a Server. It does not start listening; call Serve. health may
// be nil; when set, connection counts, processed-message counts and
// recovered handler panics are reported through it for the admin /healthz
// endpoint. notify may be nil; when set,
// every completed GSUP procedure is broadcast through it (the admin
// server's live "/ws" feed).
func New(cfg Config, auth AuthFetcher, rs *routing.Store, m *metrics.Metrics, log *logger.Logger, aw *audit.Writer, hc *health.Check, notify ProcedureNotifier) *Server {
	return &Server{
		cfg:     cfg,
		auth:    auth,
		routing: rs,
		metrics: m,
		log:     log.WithComponent("server"),
		audit:   aw,
		health:  hc,
		notify:  notify,
		conns:   make(map[*Conn]struct{}),
	}
}

// Serve binds cfg.Addr and runs the accept loop until Shutdown is called
// or a fatal accept error occurs.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("listening", "addr", s.cfg.Addr)

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return nil
			}
			return err
		}
		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ConnectionsOpen.Inc()

		conn := newConn(nc, s.auth, s.routing, s.metrics, s.log, s.audit, s.health, s.notify, s.cfg.UpdateLocationTimeout)

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		count := len(s.conns)
		s.mu.Unlock()
		s.reportConnectionCount(count)

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(c *Conn) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("connection handler panicked, closing connection", nil, "panic", r)
			if s.health != nil {
				s.health.RecordError(fmt.Errorf("connection handler panic: %v", r))
			}
		}
		c.close()
		s.metrics.ConnectionsOpen.Dec()
		s.mu.Lock()
		delete(s.conns, c)
		count := len(s.conns)
		s.mu.Unlock()
		s.reportConnectionCount(count)
	}()

	go c.writeLoop()
	c.readLoop()
}

func (s *Server) reportConnectionCount(count int) {
	if s.health != nil {
		s.health.UpdateConnectionCount(int64(count))
	}
}

// Shutdown stops accepting new connections and waits up to
// cfg.ShutdownGrace for open connections to end on their own (their peer
// closing the socket). Open connections are not signalled to stop after
// their current request; any still open when the grace period ends are
// closed forcibly, whatever they are doing.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		s.mu.Lock()
		for c := range s.conns {
			c.close()
		}
		s.mu.Unlock()
		<-done
	}

	if s.audit != nil {
		s.audit.Close()
	}
}
