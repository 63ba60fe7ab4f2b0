package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/config"
	"github.com/rsoares/xadrez/internal/protocol"
)

// Server listens for client connections on a TCP port and runs a session
// for each. Connections past the configured ceiling are rejected with an
// error message rather than left unaccepted, so a client at capacity gets
// an answer instead of a silent hang.
type Server struct {
	cfg       config.ServerConfig
	logger    *zap.Logger
	registry  *Registry
	router    *Router
	heartbeat *Heartbeat
	games     *GameHandler

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	active   atomic.Int64
	mu       sync.Mutex
	running  bool
}

// NewServer creates a session server with the given collaborators.
//
// Precondition: All arguments must be non-nil and cfg validated.
// Postcondition: Returns a Server ready to be started with ListenAndServe.
func NewServer(cfg config.ServerConfig, registry *Registry, router *Router, heartbeat *Heartbeat, games *GameHandler, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		router:    router,
		heartbeat: heartbeat,
		games:     games,
		quit:      make(chan struct{}),
	}
}

// ListenAndServe starts the TCP listener and accepts connections until
// Stop is called. This method blocks until the server is stopped.
//
// Precondition: The server must not already be running.
// Postcondition: The listener is closed when this method returns.
func (s *Server) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Int("max_connections", s.cfg.MaxConnections),
		zap.Duration("startup", time.Since(start)),
	)

	for {
		raw, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				s.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		if int(s.active.Load()) >= s.cfg.MaxConnections {
			s.rejectAtCapacity(raw)
			continue
		}

		s.active.Add(1)
		s.wg.Add(1)
		go s.handleConn(raw)
	}
}

// rejectAtCapacity answers a connection that arrived past the ceiling
// with an error message and closes it. The listener keeps accepting so
// later connections are judged against the current count, not a stopped
// accept loop.
func (s *Server) rejectAtCapacity(raw net.Conn) {
	s.logger.Warn("rejecting connection at capacity",
		zap.String("remote_addr", raw.RemoteAddr().String()),
		zap.Int("max_connections", s.cfg.MaxConnections),
	)

	conn := NewConn(raw, s.cfg.ReadTimeout, s.cfg.WriteTimeout)
	_ = conn.WriteMessage(protocol.NewError("server is at maximum capacity"))
	_ = conn.Close()
}

// handleConn runs one client session: welcome, heartbeat, read loop,
// teardown.
func (s *Server) handleConn(raw net.Conn) {
	defer s.wg.Done()
	defer s.active.Add(-1)
	start := time.Now()
	addr := raw.RemoteAddr().String()

	conn := NewConn(raw, s.cfg.ReadTimeout, s.cfg.WriteTimeout)
	sess := NewSession(conn)
	defer s.teardown(sess)

	s.logger.Info("client connected",
		zap.String("remote_addr", addr),
		zap.String("client_id", sess.ID),
	)

	if err := sess.Send(protocol.Welcome{
		Type:     protocol.TypeWelcome,
		ClientID: sess.ID,
		Message:  "welcome to the chess server",
	}); err != nil {
		s.logger.Debug("sending welcome", zap.String("client_id", sess.ID), zap.Error(err))
		return
	}

	go s.heartbeat.Run(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.quit:
			sess.Close()
			cancel()
		case <-sess.Done():
			cancel()
		}
	}()

	s.readLoop(ctx, sess)

	s.logger.Info("session ended",
		zap.String("client_id", sess.ID),
		zap.String("username", sess.Username()),
		zap.Duration("duration", time.Since(start)),
	)
}

// readLoop reads and dispatches messages until the connection ends. An
// idle read timeout is not fatal: the client gets a timeout_warning and
// the loop keeps reading. Only the heartbeat monitor decides staleness.
func (s *Server) readLoop(ctx context.Context, sess *Session) {
	for {
		line, err := sess.conn.ReadLine()
		if err != nil {
			if isTimeout(err) {
				select {
				case <-sess.Done():
					return
				default:
				}
				if werr := sess.Send(protocol.TimeoutWarning{Type: protocol.TypeTimeoutWarning}); werr != nil {
					return
				}
				continue
			}
			return
		}

		sess.Touch()

		env, err := protocol.Decode(line)
		if err != nil {
			s.logger.Debug("malformed message",
				zap.String("client_id", sess.ID),
				zap.Error(err),
			)
			if werr := sess.Send(protocol.NewError("malformed message")); werr != nil {
				return
			}
			continue
		}

		s.router.Dispatch(ctx, sess, env)
	}
}

// teardown runs the idempotent cleanup for a finished session: end any
// game in progress, drop the roster binding, and announce the departure.
func (s *Server) teardown(sess *Session) {
	sess.Close()

	username := sess.Username()
	if username == "" {
		return
	}

	s.games.EndForDisconnect(context.Background(), username)
	s.registry.Remove(username, sess)
	s.registry.Broadcast(protocol.UserPresence{
		Type:     protocol.TypeUserOffline,
		Username: username,
	}, username)

	s.logger.Info("user offline", zap.String("username", username))
}

// Stop gracefully stops the server, closing the listener and waiting for
// all active sessions to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()

	s.logger.Info("server stopped")
}

// Addr returns the actual listening address, or empty string if not yet
// listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
