// Package push is the client side of the live-update channel.
//
// Frames are JSON text messages of the form {"event": name, "data": payload}.
// The client emits "join" and "leave" with {"simulation_id": "<id>"}; the
// server emits "update" with {"data": {"seconds": s, "loss": l}} for every
// simulation the client has joined.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/daviddao/simdash/internal/api"
)

const (
	EventJoin   = "join"
	EventLeave  = "leave"
	EventUpdate = "update"
)

// defaultWriteTimeout bounds every write so a stalled server cannot block
// the caller.
const defaultWriteTimeout = 2 * time.Second

// ErrNotConnected is returned by emits while no socket is live.
var ErrNotConnected = errors.New("push channel not connected")

// ErrClosed is returned by emits after Close.
var ErrClosed = errors.New("push channel closed")

// Frame is one message on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomPayload struct {
	SimulationID string `json:"simulation_id"`
}

type updatePayload struct {
	Data *api.Sample `json:"data"`
}

// Option configures a Channel.
type Option func(*Channel)

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) {
		c.dialer = d
	}
}

// WithReconnectDelay sets the pause between redial attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) {
		c.reconnectDelay = d
	}
}

// WithWriteTimeout sets the deadline applied to each outgoing frame.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Channel) {
		c.writeTimeout = d
	}
}

// WithLogger sets the channel logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Channel) {
		c.log = l
	}
}

// Channel is a persistent, auto-reconnecting push subscription.
// Listeners run on the channel's reader goroutine and must not block.
type Channel struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	writeTimeout   time.Duration
	log            zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	onConnect []func()
	onUpdate  []func(api.Sample)
	started   bool
	closed    bool

	writeMu sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// New creates a channel for url. Nothing is dialed until Start.
func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url:            url,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: time.Second,
		writeTimeout:   defaultWriteTimeout,
		log:            zerolog.Nop(),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the connect/read loop. Calls after the first are no-ops.
func (c *Channel) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	go c.loop()
}

// OnConnect adds a listener run after every successful (re)connect.
func (c *Channel) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

// OnUpdate adds a listener run for every well-formed update frame.
func (c *Channel) OnUpdate(fn func(api.Sample)) {
	c.mu.Lock()
	c.onUpdate = append(c.onUpdate, fn)
	c.mu.Unlock()
}

// RemoveAllListeners drops every connect and update listener.
func (c *Channel) RemoveAllListeners() {
	c.mu.Lock()
	c.onConnect = nil
	c.onUpdate = nil
	c.mu.Unlock()
}

// Connected reports whether a socket is currently live.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Join announces interest in a simulation's updates.
func (c *Channel) Join(simulationID int64) error {
	return c.emitRoom(EventJoin, simulationID)
}

// Leave announces that updates for a simulation are no longer wanted.
func (c *Channel) Leave(simulationID int64) error {
	return c.emitRoom(EventLeave, simulationID)
}

// Close stops the loop and closes the socket. It is safe to call more
// than once and before Start.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	conn := c.conn
	close(c.done)
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	if started {
		<-c.stopped
	}
	return err
}

func (c *Channel) emitRoom(event string, simulationID int64) error {
	data, err := json.Marshal(roomPayload{SimulationID: strconv.FormatInt(simulationID, 10)})
	if err != nil {
		return err
	}
	return c.emit(Frame{Event: event, Data: data})
}

func (c *Channel) emit(f Frame) error {
	c.mu.Lock()
	conn, closed := c.conn, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteJSON(f); err != nil {
		return err
	}
	c.log.Debug().Str("event", f.Event).Str("data", string(f.Data)).Msg("push emit")
	return nil
}

func (c *Channel) loop() {
	defer close(c.stopped)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.log.Warn().Err(err).Str("url", c.url).Msg("push dial failed")
			if !c.wait() {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		listeners := append([]func(){}, c.onConnect...)
		c.mu.Unlock()

		c.log.Info().Str("url", c.url).Msg("push connected")
		for _, fn := range listeners {
			fn()
		}

		c.read(conn)

		c.mu.Lock()
		c.conn = nil
		closed := c.closed
		c.mu.Unlock()
		conn.Close()
		if closed {
			return
		}
		c.log.Warn().Msg("push connection lost")
		if !c.wait() {
			return
		}
	}
}

// wait pauses before a redial; false means the channel was closed.
func (c *Channel) wait() bool {
	t := time.NewTimer(c.reconnectDelay)
	defer t.Stop()
	select {
	case <-c.done:
		return false
	case <-t.C:
		return true
	}
}

func (c *Channel) read(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("push read")
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn().Err(err).Msg("push malformed frame")
			continue
		}
		c.dispatch(f)
	}
}

func (c *Channel) dispatch(f Frame) {
	if f.Event != EventUpdate {
		return
	}
	var p updatePayload
	if err := json.Unmarshal(f.Data, &p); err != nil || p.Data == nil {
		c.log.Warn().Str("data", string(f.Data)).Msg("push update without sample")
		return
	}

	c.mu.Lock()
	listeners := append([]func(api.Sample){}, c.onUpdate...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(*p.Data)
	}
}
