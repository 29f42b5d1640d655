package livechat

import (
	"context"
	"errors"
	"sync"
)

// Client keeps one realtime connection per authenticated user session. It
// reconnects with exponential backoff, replays room joins after every
// reconnect and publishes normalized events through its Dispatcher. It holds
// no message history; subscribers own application state.
type Client struct {
	cfg       Config
	logger    Logger
	transport Transport
	clock     Clock
	metrics   *Metrics
	uploader  Uploader
	events    Dispatcher

	rooms  *RoomSet
	typing *typingTracker

	mu             sync.Mutex
	user           *User
	sock           Socket
	cancelRead     context.CancelFunc
	state          ConnectionState
	attempts       int
	lastErr        error
	reconnectTimer Timer
	reconnectSeq   uint64
	// gen changes on every Initialize and Disconnect; callbacks carrying an
	// older generation are ignored.
	gen uint64
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger overrides the no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTransport replaces the websocket transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithClock replaces the wall clock used for timestamps and timers.
func WithClock(clk Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithMetrics records connection and event metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUploader enables SendFile.
func WithUploader(u Uploader) Option {
	return func(c *Client) { c.uploader = u }
}

// NewClient constructs a client with provided config.
// Use DefaultConfig() as a starting point and modify as needed.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		logger: noopLogger{},
		clock:  realClock{},
		rooms:  NewRoomSet(),
	}
	c.transport = websocketTransport{cfg: &c.cfg}
	for _, opt := range opts {
		opt(c)
	}
	c.typing = newTypingTracker(c.clock, cfg.TypingTimeout, c.publish)
	return c, nil
}

// Subscribe registers fn for every event the client publishes.
func (c *Client) Subscribe(fn func(Event)) (unsubscribe func()) { return c.events.Subscribe(fn) }

// Events exposes the dispatcher for typed subscriptions.
func (c *Client) Events() *Dispatcher { return &c.events }

// OnMessage registers callback for message events.
func (c *Client) OnMessage(fn func(MessageEvent)) func() { return c.events.OnMessage(fn) }

// OnStateChanged registers callback for connection state transitions.
func (c *Client) OnStateChanged(fn func(StateEvent)) func() { return c.events.OnStateChanged(fn) }

// OnError registers callback for errors.
func (c *Client) OnError(fn func(error)) func() { return c.events.OnError(fn) }

// Initialize opens the connection for user. A live connection is torn down
// first. Without one, any pending reconnect is cancelled and the joined rooms
// are kept for replay. Dial failures are not returned; they surface as
// StateError and feed the reconnect loop.
func (c *Client) Initialize(ctx context.Context, user User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if user.Name == "" {
		user.Name = user.ID
	}

	c.mu.Lock()
	live := c.sock != nil
	c.mu.Unlock()
	if live {
		c.Disconnect()
	} else {
		c.cancelReconnect()
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.user = &user
	c.attempts = 0
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info("initializing connection", map[string]any{"user": user.ID, "url": c.cfg.URL})
	c.connect(ctx, gen, 0)
	return nil
}

// Disconnect cancels every pending timer, forgets joined rooms, stops the
// read loop and closes the socket. It is safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.reconnectSeq++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	sock := c.sock
	c.sock = nil
	cancel := c.cancelRead
	c.cancelRead = nil
	c.user = nil
	c.attempts = 0
	c.rooms.Clear()
	var ev *StateEvent
	if c.state != StateDisconnected {
		e := c.setStateLocked(StateDisconnected)
		e.Reason = ReasonClientDisconnect
		ev = &e
	}
	c.mu.Unlock()

	stopped := c.typing.clear()
	if cancel != nil {
		cancel()
	}
	if sock != nil {
		if err := sock.Close(ReasonClientDisconnect); err != nil {
			c.logger.Debug("socket close", map[string]any{"error": err.Error()})
		}
	}
	if ev != nil {
		c.logger.Info("disconnected", map[string]any{"reason": ReasonClientDisconnect, "typing_timers": stopped})
		c.publish(*ev)
	}
}

// cancelReconnect stops a pending reconnect and typing timers without
// touching the room set.
func (c *Client) cancelReconnect() {
	c.mu.Lock()
	c.gen++
	c.reconnectSeq++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()
	c.typing.clear()
}

// Status returns the current connection state.
func (c *Client) Status() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the socket is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected && c.sock != nil
}

// Attempts returns the number of reconnect attempts since the last
// successful connection.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// LastError returns the most recent connection error, if any.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// User returns the session identity.
func (c *Client) User() (User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return User{}, false
	}
	return *c.user, true
}

// Rooms returns the joined rooms in sorted order.
func (c *Client) Rooms() []string { return c.rooms.List() }

// ActiveTypers returns the remote users currently typing in roomID.
func (c *Client) ActiveTypers(roomID string) []string { return c.typing.active(roomID) }

func (c *Client) connect(ctx context.Context, gen uint64, attempt int) {
	c.mu.Lock()
	if gen != c.gen || c.user == nil || c.sock != nil {
		c.mu.Unlock()
		return
	}
	user := *c.user
	ev := c.setStateLocked(StateConnecting)
	ev.Attempt = attempt
	c.mu.Unlock()
	c.publish(ev)

	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	sock, err := c.transport.Dial(dialCtx, Handshake{
		URL:      c.cfg.URL,
		Token:    c.cfg.Token,
		UserID:   user.ID,
		UserName: user.Name,
	})
	if err != nil {
		c.onConnectError(gen, attempt, err)
		return
	}
	c.onConnect(gen, attempt, sock)
}

func (c *Client) onConnect(gen uint64, attempt int, sock Socket) {
	c.mu.Lock()
	if gen != c.gen || c.sock != nil {
		c.mu.Unlock()
		_ = sock.Close(ReasonClientDisconnect)
		return
	}
	c.sock = sock
	c.attempts = 0
	c.lastErr = nil
	readCtx, cancel := context.WithCancel(context.Background())
	c.cancelRead = cancel
	user := *c.user
	ev := c.setStateLocked(StateConnected)
	ev.Attempt = attempt
	c.mu.Unlock()

	c.logger.Info("connected", map[string]any{"user": user.ID, "attempt": attempt})

	// Replay precedes the connected event; its callbacks may join rooms.
	ctx := context.Background()
	c.emitBestEffort(ctx, emitAuthenticate, authenticatePayload{
		UserID:    user.ID,
		UserName:  user.Name,
		UserEmail: user.Email,
		UserRole:  user.Role,
	})
	for _, roomID := range c.rooms.List() {
		c.emitBestEffort(ctx, emitJoinRoom, roomPayload{RoomID: roomID, UserID: user.ID, UserName: user.Name})
	}

	c.publish(ev)
	go c.readLoop(readCtx, gen, sock)
}

func (c *Client) onConnectError(gen uint64, attempt int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.lastErr = err
	ev := c.setStateLocked(StateError)
	ev.Attempt = attempt
	ev.Error = err
	c.mu.Unlock()

	c.logger.Warn("connect error", map[string]any{"error": err.Error(), "attempt": attempt})
	c.publish(ev)
	c.handleReconnect(gen)
}

func (c *Client) onDisconnect(gen uint64, sock Socket, reason string) {
	c.mu.Lock()
	if gen != c.gen || c.sock != sock {
		c.mu.Unlock()
		return
	}
	c.sock = nil
	if c.cancelRead != nil {
		c.cancelRead()
		c.cancelRead = nil
	}
	ev := c.setStateLocked(StateDisconnected)
	ev.Reason = reason
	c.mu.Unlock()

	_ = sock.Close(reason)
	c.logger.Warn("disconnected", map[string]any{"reason": reason})
	c.publish(ev)
	if reason != ReasonClientDisconnect {
		c.handleReconnect(gen)
	}
}

// handleReconnect schedules the next attempt, replacing any pending one, or
// gives up once MaxReconnectAttempts is reached.
func (c *Client) handleReconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		err := WrapError(ErrorReconnectExhausted, "giving up after max reconnect attempts", c.lastErr)
		ev := StateEvent{
			OldState: c.state,
			NewState: c.state,
			Attempt:  c.attempts,
			Error:    err,
			Terminal: true,
		}
		c.mu.Unlock()
		c.logger.Error("reconnect exhausted", map[string]any{"attempts": ev.Attempt})
		c.publish(ev)
		c.publish(ErrorEvent{Err: err})
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := BackoffDelay(c.cfg.ReconnectDelay, c.cfg.MaxReconnectDelay, attempt)
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectSeq++
	seq := c.reconnectSeq
	c.reconnectTimer = c.clock.AfterFunc(delay, func() { c.reconnect(gen, seq, attempt) })
	c.mu.Unlock()

	c.metrics.reconnectScheduled()
	c.logger.Info("reconnect scheduled", map[string]any{"attempt": attempt, "delay": delay.String()})
}

func (c *Client) reconnect(gen, seq uint64, attempt int) {
	c.mu.Lock()
	if gen != c.gen || seq != c.reconnectSeq {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()
	c.connect(context.Background(), gen, attempt)
}

func (c *Client) readLoop(ctx context.Context, gen uint64, sock Socket) {
	for {
		f, err := sock.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if isDecodeError(err) {
				c.publish(ErrorEvent{Err: WrapError(ErrorSerialization, "failed to decode frame", err)})
				continue
			}
			c.onDisconnect(gen, sock, disconnectReason(err))
			return
		}
		c.handleFrame(f)
	}
}

// setStateLocked must be called with c.mu held.
func (c *Client) setStateLocked(s ConnectionState) StateEvent {
	ev := StateEvent{OldState: c.state, NewState: s}
	c.state = s
	c.metrics.setState(s)
	return ev
}

func (c *Client) publish(ev Event) {
	c.events.Dispatch(ev)
}

func (c *Client) identity() User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return User{}
	}
	return *c.user
}

// emit writes one frame. It fails with ErrorNotConnected when there is no
// open socket.
func (c *Client) emit(ctx context.Context, event string, data any) error {
	c.mu.Lock()
	sock := c.sock
	connected := c.state == StateConnected && sock != nil
	c.mu.Unlock()
	if !connected {
		return NewError(ErrorNotConnected, "cannot emit "+event+" while disconnected")
	}
	f, err := NewFrame(event, data)
	if err != nil {
		return err
	}
	if err := sock.WriteFrame(ctx, f); err != nil {
		c.mu.Lock()
		dropped := c.sock != sock
		c.mu.Unlock()
		if dropped {
			return WrapError(ErrorDisconnected, "connection lost while writing "+event, err)
		}
		return WrapError(ErrorConnection, "failed to write "+event, err)
	}
	c.metrics.outbound(event)
	return nil
}

// emitBestEffort writes a frame whose loss is acceptable.
func (c *Client) emitBestEffort(ctx context.Context, event string, data any) {
	err := c.emit(ctx, event, data)
	if err == nil {
		return
	}
	if errors.Is(err, ErrNotConnected) {
		c.metrics.dropped(event)
	}
	c.logger.Debug("best-effort emit dropped", map[string]any{"event": event, "error": err.Error()})
}
