// Package live maintains the persistent WebSocket connection used to learn
// that a reminder's status changed server-side. Its only output is cache
// invalidation; connection failures are handled entirely inside the
// reconnection state machine and never reach the caller.
package live

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dpoeymirou/call-me-reminder/internal/shared/models"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	ReconnectPending
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ReconnectPending:
		return "reconnect-pending"
	}
	return "unknown"
}

// DefaultReconnectDelay is the fixed pause before retrying after an
// abnormal closure. No backoff growth: this is a low-traffic personal
// tool and a flat retry keeps the state machine small.
const DefaultReconnectDelay = 3 * time.Second

// Invalidator is the cache entry point the channel drives. Staleness from
// a push event is indistinguishable from any other invalidation.
type Invalidator interface {
	Invalidate(prefix string)
}

// invalidatePrefix covers every reminder query key.
const invalidatePrefix = "reminders"

type Channel struct {
	url       string
	cache     Invalidator
	dialer    *websocket.Dialer
	delay     time.Duration
	logger    *slog.Logger
	writeWait time.Duration

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	timer   *time.Timer
	closed  bool
	attempt uint64
}

func New(apiBaseURL string, cache Invalidator, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		url:       WebSocketURL(apiBaseURL),
		cache:     cache,
		dialer:    websocket.DefaultDialer,
		delay:     DefaultReconnectDelay,
		logger:    logger,
		writeWait: 5 * time.Second,
		state:     Disconnected,
	}
}

// SetReconnectDelay overrides the fixed reconnect pause. Call before Start.
func (c *Channel) SetReconnectDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.delay = d
	}
}

// WebSocketURL derives the live endpoint from the API origin.
func WebSocketURL(apiBaseURL string) string {
	return strings.Replace(apiBaseURL, "http", "ws", 1) + "/ws"
}

// Start begins connecting. It is a no-op while an attempt is already in
// flight or a connection is open.
func (c *Channel) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = false
	c.connectLocked()
}

// Stop tears the channel down: it cancels any pending reconnect timer and
// closes an open connection with the normal-closure code, which suppresses
// the auto-reconnect an abnormal close would trigger.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = Disconnected
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// connectLocked moves Disconnected/ReconnectPending to Connecting. At most
// one physical attempt is ever active; Connecting and Connected refuse a
// second one.
func (c *Channel) connectLocked() {
	if c.closed || c.state == Connecting || c.state == Connected {
		return
	}
	c.state = Connecting
	c.attempt++
	go c.dial(c.attempt)
}

// dial performs one connection attempt. The attempt stamp decides whether
// the result still matters when the dial settles: a Stop, or a Stop/Start
// restart, issued mid-dial supersedes this attempt and its connection must
// be discarded, or two physical connections would end up open.
func (c *Channel) dial(attempt uint64) {
	conn, _, err := c.dialer.Dial(c.url, nil)

	c.mu.Lock()
	if c.closed || attempt != c.attempt {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("live channel connect failed", "url", c.url, "error", err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}
	c.conn = conn
	c.state = Connected
	c.mu.Unlock()

	c.logger.Info("live channel connected", "url", c.url)
	go c.readLoop(conn)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage processes one inbound frame. Malformed frames are logged
// and dropped; they are never fatal to the connection.
func (c *Channel) handleMessage(data []byte) {
	var msg models.PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("live channel dropped malformed message", "error", err)
		return
	}
	if msg.Type != models.PushTypeReminderUpdate {
		c.logger.Debug("live channel ignored message", "type", msg.Type)
		return
	}
	c.logger.Debug("reminder update received", "id", msg.Data.ID, "status", msg.Data.Status)
	c.cache.Invalidate(invalidatePrefix)
}

// handleClose reacts to the read loop ending. A normal closure is
// terminal until the owner restarts the channel; anything else schedules
// exactly one reconnect attempt.
func (c *Channel) handleClose(conn *websocket.Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		// Stop already detached this connection.
		return
	}
	c.conn = nil
	if c.closed {
		c.state = Disconnected
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.logger.Info("live channel closed normally")
		c.state = Disconnected
		return
	}
	c.logger.Warn("live channel lost connection", "error", err)
	c.scheduleReconnectLocked()
}

func (c *Channel) scheduleReconnectLocked() {
	c.state = ReconnectPending
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.timer = nil
		if c.state == ReconnectPending {
			c.state = Disconnected
			c.connectLocked()
		}
	})
}
