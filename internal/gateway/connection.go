// Package gateway maintains the Discord gateway websocket: handshake,
// heartbeat, resume, and a read loop that hands every dispatch to the
// pipeline as a raw packet.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"starboard-bot/internal/logging"
)

const gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opResume         = 6
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// Intents: guilds plus guild message reactions. Reaction packets arrive for
// every visible channel; filtering happens downstream.
const identifyIntents = 1<<0 | 1<<10

type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	T  string          `json:"t,omitempty"`
	S  int64           `json:"s,omitempty"`
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type readyData struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	User             struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

// Connection is one gateway websocket session.
type Connection struct {
	token string

	conn              *websocket.Conn
	sessionID         string
	resumeGatewayURL  string
	lastSequence      int64
	heartbeatInterval time.Duration
	connected         bool
	botUserID         string

	heartbeatTicker *time.Ticker
	stopChan        chan bool
	mu              sync.RWMutex
	log             *slog.Logger
}

func NewConnection(token string, log *slog.Logger) *Connection {
	return &Connection{
		token:    token,
		log:      log,
		stopChan: make(chan bool, 1),
	}
}

// BotUserID returns the bot's own user ID, known after Connect.
func (c *Connection) BotUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUserID
}

func (c *Connection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Connect dials the gateway, performs HELLO → IDENTIFY → READY, and leaves
// the connection ready for reading.
func (c *Connection) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("failed to read HELLO: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected HELLO opcode, got %d", hello.Op)
	}

	var helloD helloData
	if err := json.Unmarshal(hello.D, &helloD); err != nil {
		return fmt.Errorf("failed to parse HELLO data: %w", err)
	}

	c.mu.Lock()
	c.heartbeatInterval = time.Duration(helloD.HeartbeatInterval) * time.Millisecond
	c.mu.Unlock()

	identify := map[string]interface{}{
		"op": opIdentify,
		"d": map[string]interface{}{
			"token":   c.token,
			"intents": identifyIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "starboard-bot",
				"device":  "starboard-bot",
			},
		},
	}
	if err := conn.WriteJSON(identify); err != nil {
		return fmt.Errorf("failed to send IDENTIFY: %w", err)
	}

	// READY is not necessarily the next frame; tolerate heartbeat traffic.
	for i := 0; i < 5; i++ {
		var msg payload
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read READY: %w", err)
		}

		if msg.Op == opInvalidSession {
			return fmt.Errorf("gateway rejected identify (invalid session)")
		}

		if msg.Op == opDispatch && msg.T == "READY" {
			var ready readyData
			if err := json.Unmarshal(msg.D, &ready); err != nil {
				return fmt.Errorf("failed to parse READY data: %w", err)
			}

			c.mu.Lock()
			c.sessionID = ready.SessionID
			c.resumeGatewayURL = ready.ResumeGatewayURL
			c.botUserID = ready.User.ID
			c.connected = true
			c.mu.Unlock()

			c.log.Info("gateway_connected",
				"token", logging.MaskToken(c.token),
				"session_id", ready.SessionID,
				"bot_user_id", ready.User.ID,
			)
			return nil
		}
	}

	return fmt.Errorf("READY not received after multiple messages")
}

// Read returns the next gateway frame, tracking the dispatch sequence.
func (c *Connection) Read() (payload, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return payload{}, fmt.Errorf("not connected")
	}

	var msg payload
	if err := conn.ReadJSON(&msg); err != nil {
		return payload{}, err
	}

	if msg.S > 0 {
		c.mu.Lock()
		c.lastSequence = msg.S
		c.mu.Unlock()
	}
	return msg, nil
}

func (c *Connection) StartHeartbeat() {
	c.mu.RLock()
	interval := c.heartbeatInterval
	c.mu.RUnlock()
	if interval == 0 {
		return
	}

	c.heartbeatTicker = time.NewTicker(interval)
	defer c.heartbeatTicker.Stop()

	for {
		select {
		case <-c.heartbeatTicker.C:
			c.SendHeartbeat()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Connection) SendHeartbeat() {
	c.mu.RLock()
	conn := c.conn
	seq := c.lastSequence
	c.mu.RUnlock()

	if conn == nil {
		return
	}

	var seqValue interface{}
	if seq > 0 {
		seqValue = seq
	}

	if err := conn.WriteJSON(map[string]interface{}{"op": opHeartbeat, "d": seqValue}); err != nil {
		c.log.Debug("heartbeat_send_failed", "error", err)
		return
	}
	c.log.Debug("heartbeat_sent", "seq", seq)
}

// Resume reconnects to the resume URL and replays missed dispatches. Fails
// when the session is no longer resumable; the caller falls back to Connect.
func (c *Connection) Resume(ctx context.Context) error {
	c.mu.RLock()
	sessionID := c.sessionID
	resumeURL := c.resumeGatewayURL
	seq := c.lastSequence
	c.mu.RUnlock()

	if sessionID == "" || resumeURL == "" {
		return fmt.Errorf("cannot resume: missing session_id or resume_gateway_url")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, resumeURL+"?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}

	// Discord sends HELLO first on every new websocket.
	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to read HELLO during resume: %w", err)
	}
	if hello.Op != opHello {
		_ = conn.Close()
		return fmt.Errorf("expected HELLO opcode during resume, got %d", hello.Op)
	}

	var helloD helloData
	if err := json.Unmarshal(hello.D, &helloD); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to parse HELLO data during resume: %w", err)
	}

	c.mu.Lock()
	c.heartbeatInterval = time.Duration(helloD.HeartbeatInterval) * time.Millisecond
	c.conn = conn
	c.mu.Unlock()

	resume := map[string]interface{}{
		"op": opResume,
		"d": map[string]interface{}{
			"token":      c.token,
			"session_id": sessionID,
			"seq":        seq,
		},
	}
	if err := conn.WriteJSON(resume); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to send RESUME: %w", err)
	}

	// Response can be RESUMED, replayed dispatches, or INVALID_SESSION.
	for i := 0; i < 5; i++ {
		var msg payload
		if err := conn.ReadJSON(&msg); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to read RESUME response: %w", err)
		}

		if msg.Op == opInvalidSession {
			_ = conn.Close()
			return fmt.Errorf("invalid session, need full reconnect")
		}

		if msg.Op == opDispatch && msg.T == "RESUMED" {
			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()

			c.log.Info("gateway_resumed", "seq", seq)
			return nil
		}

		if msg.Op == opHello {
			_ = conn.Close()
			return fmt.Errorf("unexpected HELLO after RESUME, need full reconnect")
		}
	}

	_ = conn.Close()
	return fmt.Errorf("resume did not complete after multiple messages")
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.heartbeatTicker != nil {
		c.heartbeatTicker.Stop()
	}

	select {
	case c.stopChan <- true:
	default:
	}

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
