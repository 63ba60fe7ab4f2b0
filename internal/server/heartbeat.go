package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/config"
	"github.com/rsoares/xadrez/internal/protocol"
)

// Heartbeat drives per-session liveness probing. It is the single
// authority on staleness: a session is torn down only when the time
// since its last inbound message exceeds the configured ceiling, never
// because an individual read timed out.
type Heartbeat struct {
	cfg    config.HeartbeatConfig
	logger *zap.Logger
}

// NewHeartbeat creates a heartbeat monitor with the given configuration.
//
// Precondition: cfg must be validated; logger must be non-nil.
func NewHeartbeat(cfg config.HeartbeatConfig, logger *zap.Logger) *Heartbeat {
	return &Heartbeat{cfg: cfg, logger: logger}
}

// Run probes one session until it is torn down. Each tick either closes
// a stale session or sends a ping. Blocks; callers run it in its own
// goroutine alongside the session's read loop.
//
// Postcondition: Returns after the session's Done channel closes. A
// stale session has been closed, which unblocks its read loop.
func (h *Heartbeat) Run(sess *Session) {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.Done():
			return
		case <-ticker.C:
			idle := time.Since(sess.LastActivity())
			if idle > h.cfg.StaleCeiling {
				h.logger.Info("closing stale session",
					zap.String("client_id", sess.ID),
					zap.String("username", sess.Username()),
					zap.Duration("idle", idle),
				)
				sess.Close()
				return
			}

			if err := sess.Send(protocol.Ping{
				Type:      protocol.TypePing,
				Timestamp: time.Now().UTC(),
				ClientID:  sess.ID,
			}); err != nil {
				h.logger.Debug("heartbeat send failed, closing session",
					zap.String("client_id", sess.ID),
					zap.Error(err),
				)
				sess.Close()
				return
			}
		}
	}
}
