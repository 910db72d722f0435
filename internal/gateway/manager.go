package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"starboard-bot/internal/models"
)

// Manager owns the gateway connection lifecycle: connect, read, dispatch,
// and recover. Every dispatch frame is forwarded to the sink in arrival
// order; the sink must not block (the pipeline buffers behind it).
type Manager struct {
	token string
	sink  func(models.RawPacket)
	log   *slog.Logger

	conn *Connection
	stop chan struct{}
}

func NewManager(token string, sink func(models.RawPacket), log *slog.Logger) *Manager {
	return &Manager{
		token: token,
		sink:  sink,
		log:   log,
		stop:  make(chan struct{}),
	}
}

// Start connects and launches the heartbeat and read loops.
func (m *Manager) Start(ctx context.Context) error {
	m.conn = NewConnection(m.token, m.log)
	if err := m.conn.Connect(ctx); err != nil {
		return err
	}

	go m.conn.StartHeartbeat()
	go m.run(ctx)
	return nil
}

func (m *Manager) Close() {
	close(m.stop)
	if m.conn != nil {
		_ = m.conn.Close()
	}
}

func (m *Manager) stopped() bool {
	select {
	case <-m.stop:
		return true
	default:
		return false
	}
}

func (m *Manager) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic_in_gateway_loop", "panic", r)
		}
	}()

	const maxReconnectAttempts = 5
	reconnectAttempts := 0
	baseBackoff := 5 * time.Second

	for {
		if m.stopped() || ctx.Err() != nil {
			return
		}

		if !m.conn.Connected() {
			if reconnectAttempts >= maxReconnectAttempts {
				m.log.Error("max_reconnect_attempts_reached")
				return
			}
			reconnectAttempts++
			if !m.reconnect(ctx, reconnectAttempts) {
				time.Sleep(baseBackoff)
				continue
			}
			reconnectAttempts = 0
		}

		msg, err := m.conn.Read()
		if err != nil {
			if m.stopped() || ctx.Err() != nil {
				return
			}

			m.log.Warn("read_message_failed", "error", err)
			_ = m.conn.Close()

			// 4008 is the gateway's rate-limit close code; cool off before
			// hammering it again.
			if ce, ok := err.(*websocket.CloseError); ok && ce.Code == 4008 {
				m.log.Warn("gateway_rate_limited", "close_text", ce.Text)
				time.Sleep(2 * time.Minute)
				continue
			}

			time.Sleep(baseBackoff)
			continue
		}

		switch msg.Op {
		case opDispatch:
			if msg.T != "" {
				m.sink(models.RawPacket{Type: msg.T, Data: msg.D})
			}

		case opHeartbeat:
			// the gateway may demand an immediate heartbeat
			m.conn.SendHeartbeat()

		case opReconnect:
			m.log.Info("gateway_requested_reconnect")
			_ = m.conn.Close()

		case opInvalidSession:
			m.log.Warn("gateway_invalidated_session")
			_ = m.conn.Close()
			// session is gone; force a fresh identify
			m.conn.mu.Lock()
			m.conn.sessionID = ""
			m.conn.mu.Unlock()

		case opHeartbeatACK:
			// nothing to do
		}
	}
}

// reconnect tries Resume first, then a full Connect. Returns whether the
// connection is live again.
func (m *Manager) reconnect(ctx context.Context, attempt int) bool {
	m.log.Info("attempting_reconnect", "attempt", attempt)

	rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := m.conn.Resume(rctx)
	cancel()
	if err == nil {
		go m.conn.StartHeartbeat()
		return true
	}

	m.log.Warn("resume_failed", "error", err)

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = m.conn.Connect(cctx)
	cancel()
	if err != nil {
		m.log.Warn("reconnect_failed", "error", err)
		return false
	}

	go m.conn.StartHeartbeat()
	return true
}
