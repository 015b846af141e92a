// Package foanalytics provides the Go client for the FO Analytics realtime
// API: a single persistent websocket connection multiplexing many event
// types to many independent subscribers, with automatic recovery from
// network interruption.
//
// Example:
//
//	client := foanalytics.NewClient("https://app.foanalytics.dev",
//		foanalytics.StaticToken(token))
//	defer client.Close()
//
//	unsub := client.Subscribe(foanalytics.EventDocumentProcessingCompleted,
//		func(msg foanalytics.Message) {
//			fmt.Println("document ready:", msg.Data["document_id"])
//		})
//	defer unsub()
//
//	client.Connect()
//
// Public methods never return errors: failure is communicated through the
// synthetic connection.* events delivered via Subscribe, so consumers need
// only one API surface for server messages and lifecycle changes alike.
package foanalytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

// ============================================================================
// Defaults
// ============================================================================

const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectBaseDelay   = 5 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 10

	defaultWriteTimeout = 10 * time.Second

	realtimePath = "/api/v1/ws"
)

// ============================================================================
// Connection Phase
// ============================================================================

// connPhase is the explicit connection state. Transitions happen only under
// the client mutex; the reconnect timer exists only in phaseReconnectWait
// and the socket only in phaseOpen.
type connPhase int

const (
	phaseIdle connPhase = iota
	phaseConnecting
	phaseOpen
	phaseReconnectWait
	phaseFailed
)

func (p connPhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseConnecting:
		return "connecting"
	case phaseOpen:
		return "open"
	case phaseReconnectWait:
		return "reconnect-wait"
	case phaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ============================================================================
// Client
// ============================================================================

// Client owns exactly one realtime connection at a time. Construct one per
// application with NewClient, share it between subscribers, and tear it
// down with Close at shutdown.
type Client struct {
	baseURL string
	tokens  TokenProvider
	dial    Dialer
	log     logrus.FieldLogger
	reg     *registry
	policy  *reconnectPolicy

	heartbeatInterval time.Duration
	writeTimeout      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// seams for deterministic tests
	afterFunc func(time.Duration, func()) *time.Timer
	now       func() time.Time

	mu              sync.Mutex
	phase           connPhase
	conn            Conn
	gen             uint64
	shouldReconnect bool
	attempts        int
	retryTimer      *time.Timer
	stopHeartbeat   chan struct{}
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the structured logger. Defaults to the logrus standard
// logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithDialer replaces the websocket dialer.
func WithDialer(dial Dialer) Option {
	return func(c *Client) { c.dial = dial }
}

// WithHeartbeatInterval sets the period between keepalive pings.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Client) { c.heartbeatInterval = d }
}

// WithWriteTimeout bounds each outbound write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeTimeout = d }
}

// WithReconnectPolicy overrides the backoff parameters: the first retry
// waits base, each subsequent retry doubles up to maxDelay, and maxAttempts
// consecutive failures end in a terminal connection.failed event.
func WithReconnectPolicy(base, maxDelay time.Duration, maxAttempts int) Option {
	return func(c *Client) { c.policy = newReconnectPolicy(base, maxDelay, maxAttempts) }
}

// NewClient creates a realtime client for the API served at baseURL. The
// websocket scheme mirrors baseURL's scheme (https becomes wss). tokens is
// consulted on every connection attempt.
func NewClient(baseURL string, tokens TokenProvider, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		tokens:            tokens,
		dial:              dialWebsocket,
		log:               logrus.StandardLogger(),
		policy:            newReconnectPolicy(DefaultReconnectBaseDelay, DefaultReconnectMaxDelay, DefaultMaxReconnectAttempts),
		heartbeatInterval: DefaultHeartbeatInterval,
		writeTimeout:      defaultWriteTimeout,
		ctx:               ctx,
		cancel:            cancel,
		afterFunc:         time.AfterFunc,
		now:               time.Now,
		phase:             phaseIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reg = newRegistry(c.log)
	return c
}

// ============================================================================
// Public API
// ============================================================================

// Connect establishes the connection. It is idempotent: a no-op while a
// connection is open or being opened. Without a credential it declines
// silently — call Connect again once authenticated. Connect never blocks on
// the network; failures surface as connection.* events.
func (c *Client) Connect() {
	c.start(true)
}

// Disconnect closes the connection with the normal-closure code and stops
// all reconnection. This is the only path that clears the intent to stay
// connected until Connect is called again.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.shouldReconnect = false
	wasOpen := c.phase == phaseOpen
	conn := c.conn
	c.teardownLocked()
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if wasOpen {
		c.log.Info("realtime: disconnected")
		c.emit(EventConnectionClosed, map[string]any{
			"code":   int(websocket.StatusNormalClosure),
			"reason": "client disconnect",
		})
	}
}

// Close disconnects and releases the client's resources. The client cannot
// be reused afterwards; it exists for application-shutdown teardown.
func (c *Client) Close() {
	c.Disconnect()
	c.cancel()
}

// IsConnected reports whether a socket exists and is fully open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phaseOpen && c.conn != nil
}

// Subscribe registers handler for msgType (or Wildcard for every type) and
// returns the matching unsubscribe function.
func (c *Client) Subscribe(msgType string, handler Handler) func() {
	return c.reg.subscribe(msgType, handler)
}

// Send writes one envelope to the server, best effort: while disconnected
// the message is dropped with a warning, and callers must not assume
// delivery. An empty timestamp is stamped and a nil data object normalized
// before serialization; an unserializable payload is logged and dropped.
func (c *Client) Send(msg Message) {
	c.mu.Lock()
	conn := c.conn
	open := c.phase == phaseOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.log.WithField("type", msg.Type).Warn("realtime: not connected, message dropped")
		return
	}
	if msg.Timestamp == "" {
		msg.Timestamp = c.now().UTC().Format(time.RFC3339)
	}
	if msg.Data == nil {
		msg.Data = map[string]any{}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).WithField("type", msg.Type).Warn("realtime: unserializable message dropped")
		return
	}
	ctx, cancelWrite := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancelWrite()
	if err := conn.Write(ctx, payload); err != nil {
		// the read loop observes the broken connection and recovers
		c.log.WithError(err).WithField("type", msg.Type).Warn("realtime: write failed")
	}
}

// NotifyVisible signals that the application returned to the foreground
// (tab focus, laptop wake). If the client still intends to be connected and
// is not, it reconnects immediately instead of waiting for the next backoff
// tick.
func (c *Client) NotifyVisible() {
	c.mu.Lock()
	resume := c.shouldReconnect && c.phase != phaseOpen && c.phase != phaseConnecting
	c.mu.Unlock()
	if !resume {
		return
	}
	c.log.Debug("realtime: foreground resume, reconnecting now")
	c.start(false)
}

// ============================================================================
// Lifecycle
// ============================================================================

// start begins a connection attempt. Explicit calls (Connect) record the
// intent to stay connected; internal calls (reconnect timer, visibility
// resume) only proceed while that intent holds.
func (c *Client) start(explicit bool) {
	c.mu.Lock()
	if c.phase == phaseOpen || c.phase == phaseConnecting {
		c.mu.Unlock()
		return
	}
	if !explicit && !c.shouldReconnect {
		c.mu.Unlock()
		return
	}
	if explicit {
		c.shouldReconnect = true
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.phase = phaseConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.establish(gen)
}

// establish fetches a credential and dials off the caller's goroutine. gen
// identifies the attempt; if the client moved on meanwhile (Disconnect, a
// competing attempt), the result is discarded.
func (c *Client) establish(gen uint64) {
	token, err := c.fetchToken()
	if err != nil || token == "" {
		if err != nil {
			c.log.WithError(err).Debug("realtime: credential unavailable")
		} else {
			c.log.Debug("realtime: no credential yet, not connecting")
		}
		c.mu.Lock()
		if gen == c.gen && c.phase == phaseConnecting {
			c.phase = phaseIdle
		}
		c.mu.Unlock()
		return
	}

	conn, err := c.dial(c.ctx, c.endpoint(token))
	if err != nil {
		c.log.WithError(err).Warn("realtime: connection attempt failed")
		c.mu.Lock()
		if gen != c.gen || c.phase != phaseConnecting {
			c.mu.Unlock()
			return
		}
		c.phase = phaseIdle
		retry := c.shouldReconnect
		c.mu.Unlock()
		if retry {
			c.scheduleReconnect()
		}
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.phase != phaseConnecting {
		// superseded while the dial was in flight
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		return
	}
	c.conn = conn
	c.phase = phaseOpen
	c.attempts = 0
	c.policy.reset()
	stop := make(chan struct{})
	c.stopHeartbeat = stop
	c.mu.Unlock()

	c.log.Info("realtime: connected")
	c.emit(EventConnectionOpen, map[string]any{})
	go c.readLoop(gen, conn)
	go c.heartbeatLoop(stop)
}

func (c *Client) fetchToken() (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens(c.ctx)
}

// teardownLocked drops the current connection's state: it bumps the
// generation so in-flight goroutines for the old socket become stale, and
// clears both timers. Callers hold c.mu.
func (c *Client) teardownLocked() {
	c.gen++
	c.conn = nil
	c.phase = phaseIdle
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// readLoop is the single consumer for one connection: it reads frames and
// dispatches them inline, so delivery order matches arrival order.
func (c *Client) readLoop(gen uint64, conn Conn) {
	for {
		raw, err := conn.Read(c.ctx)
		if err != nil {
			c.handleReadError(gen, err)
			return
		}
		msg, perr := parseFrame(raw, c.now())
		if perr != nil {
			c.log.WithError(perr).Warn("realtime: dropping malformed frame")
			continue
		}
		if msg.Type == TypePong {
			// liveness signal only, not application data
			c.log.Debug("realtime: heartbeat acknowledged")
			continue
		}
		c.reg.dispatch(msg)
	}
}

// handleReadError classifies a dropped connection and emits the lifecycle
// events. A peer close frame reports its own code and reason; a transport
// error without one surfaces as connection.error followed by an abnormal
// connection.closed, mirroring the onerror-then-onclose sequence.
func (c *Client) handleReadError(gen uint64, err error) {
	code := websocket.CloseStatus(err)
	reason := ""
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		reason = ce.Reason
	}
	transportError := code == -1
	if transportError {
		code = websocket.StatusAbnormalClosure
	}

	c.mu.Lock()
	if gen != c.gen {
		// a newer connection already replaced this one
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	retry := c.shouldReconnect && code != websocket.StatusNormalClosure
	c.mu.Unlock()

	c.log.WithError(err).WithFields(logrus.Fields{
		"code":   int(code),
		"reason": reason,
	}).Warn("realtime: connection lost")

	if transportError {
		c.emit(EventConnectionError, map[string]any{"error": "websocket error"})
	}
	c.emit(EventConnectionClosed, map[string]any{
		"code":   int(code),
		"reason": reason,
	})
	if retry {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms exactly one reconnect timer, or emits the terminal
// connection.failed event once the attempt budget is spent. The client then
// stays put until Connect is called again (or a visibility resume fires).
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if !c.shouldReconnect {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	if c.policy.exhausted(attempt) {
		c.phase = phaseFailed
		c.mu.Unlock()
		c.log.WithField("attempts", attempt-1).Error("realtime: reconnection attempts exhausted")
		c.emit(EventConnectionFailed, map[string]any{
			"reason": "max reconnection attempts reached",
		})
		return
	}
	delay := c.policy.next()
	c.phase = phaseReconnectWait
	c.retryTimer = c.afterFunc(delay, c.reconnectNow)
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"attempt": attempt,
		"delay":   delay,
	}).Info("realtime: reconnect scheduled")
}

func (c *Client) reconnectNow() {
	c.mu.Lock()
	c.retryTimer = nil
	c.mu.Unlock()
	c.start(false)
}

// heartbeatLoop pings on a fixed period while the connection is open, to
// keep idle-timeout-enforcing intermediaries from dropping it. No pong
// deadline is enforced; liveness beyond the transport's own timeout is the
// transport's problem.
func (c *Client) heartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.IsConnected() {
				return
			}
			c.Send(Message{Type: TypePing, Data: map[string]any{}})
		}
	}
}

// emit delivers a synthetic lifecycle event through the same dispatch path
// as server messages.
func (c *Client) emit(typ string, data map[string]any) {
	c.reg.dispatch(newMessage(typ, data, c.now()))
}

// endpoint builds the connection URL, mirroring the base URL's scheme and
// embedding the credential as a query parameter.
func (c *Client) endpoint(token string) string {
	u := strings.Replace(c.baseURL, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + realtimePath + "?token=" + url.QueryEscape(token)
}
