package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/model"
)

var (
	// ErrNotConnected is returned when an outbound frame cannot be queued.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrAlreadyRunning is returned by Initialize on a client that was not closed.
	ErrAlreadyRunning = errors.New("client already running")
)

// Client maintains the event stream connection. All callbacks run on a
// single goroutine, so lifecycle transitions and events never overlap.
type Client struct {
	logger *zap.Logger

	firstConnect func()
	onEvent      func(*model.Event)
	missedEvents func()
	reconnect    func()
	onClose      func(failCount int)

	mu           sync.Mutex
	opts         Options
	token        string
	conn         *connection
	connectionID string
	serverSeq    int64
	clientSeq    int64
	failCount    int
	everHello    bool
	stopped      bool
	flush        bool
	cancel       context.CancelFunc
	done         chan struct{}
}

// connection is one dialed socket and its writer.
type connection struct {
	ws      *websocket.Conn
	send    chan []byte
	stop    chan struct{}
	stopped sync.Once
	written chan struct{}
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{logger: logger}
}

func (c *Client) SetFirstConnectCallback(fn func()) { c.firstConnect = fn }
func (c *Client) SetEventCallback(fn func(*model.Event)) { c.onEvent = fn }
func (c *Client) SetMissedEventsCallback(fn func()) { c.missedEvents = fn }
func (c *Client) SetReconnectCallback(fn func()) { c.reconnect = fn }
func (c *Client) SetCloseCallback(fn func(failCount int)) { c.onClose = fn }

// SetReliableWebSockets updates whether dropped connections resume by id.
// It takes effect on the next reconnect.
func (c *Client) SetReliableWebSockets(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.ReliableWebSockets = enabled
}

// Initialize dials the server and keeps the connection alive until Close.
// It returns once the first connection attempt has completed; a failed
// first attempt is returned but reconnection continues in the background.
// A closed client can be initialized again; its next hello is reported as
// a first connect.
func (c *Client) Initialize(ctx context.Context, token string, opts Options) error {
	if opts.ConnectionURL == "" {
		return errors.New("connection url is required")
	}

	c.mu.Lock()
	for c.done != nil && !isClosed(c.done) {
		if !c.stopped {
			c.mu.Unlock()
			return ErrAlreadyRunning
		}
		done := c.done
		c.mu.Unlock()
		<-done
		c.mu.Lock()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.opts = opts.withDefaults()
	c.token = token
	c.stopped = false
	c.flush = false
	c.everHello = false
	c.connectionID = ""
	c.serverSeq = 0
	c.failCount = 0
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	first := make(chan error, 1)
	go c.run(runCtx, first)

	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Redial initializes a closed client again with the token and options of
// the last Initialize.
func (c *Client) Redial(ctx context.Context) error {
	c.mu.Lock()
	token, opts, initialized := c.token, c.opts, c.done != nil
	c.mu.Unlock()

	if !initialized {
		return errors.New("client never initialized")
	}
	return c.Initialize(ctx, token, opts)
}

// Close tears down the connection and stops reconnecting. With
// flushQueues set, frames already queued are written before the close
// frame; otherwise they are dropped.
func (c *Client) Close(flushQueues bool) {
	c.mu.Lock()
	if c.done == nil || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.flush = flushQueues
	conn := c.conn
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if conn != nil {
		conn.close()
	}
	cancel()
	<-done
}

// Connected reports whether a socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// UserTyping sends a typing ping. It is dropped when not connected.
func (c *Client) UserTyping(channelID, parentID string) error {
	return c.sendAction(actionUserTyping, map[string]any{
		"channel_id": channelID,
		"parent_id":  parentID,
	})
}

func (c *Client) sendAction(action string, data map[string]any) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.clientSeq++
	seq := c.clientSeq
	c.mu.Unlock()

	msg, err := buildAction(seq, action, data)
	if err != nil {
		return err
	}

	select {
	case conn.send <- msg:
		return nil
	case <-conn.stop:
		return ErrNotConnected
	default:
		return fmt.Errorf("%s: send buffer full", action)
	}
}

func (c *Client) run(ctx context.Context, first chan<- error) {
	defer close(c.done)

	attempt := 0
	for {
		err := c.connectOnce(ctx, func(err error) {
			if attempt == 0 {
				first <- err
			}
			attempt++
		})

		if c.isStopped() || ctx.Err() != nil {
			c.notifyClose()
			return
		}

		failCount := c.notifyClose()
		delay := c.backoff(failCount)
		c.logger.Info("websocket disconnected, reconnecting",
			zap.Int("failCount", failCount),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connectOnce dials, authenticates and reads until the socket fails.
// dialed is called once with the dial result.
func (c *Client) connectOnce(ctx context.Context, dialed func(error)) error {
	ws, err := c.dial(ctx)
	dialed(err)
	if err != nil {
		return err
	}

	conn := &connection{
		ws:      ws,
		send:    make(chan []byte, sendBufferSize),
		stop:    make(chan struct{}),
		written: make(chan struct{}),
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = ws.Close()
		return nil
	}
	c.conn = conn
	c.clientSeq = 0
	pingInterval := c.opts.PingInterval
	c.mu.Unlock()

	go c.writePump(conn, pingInterval)

	if err := c.sendAction(actionAuthChallenge, map[string]any{"token": c.token}); err != nil {
		c.logger.Warn("failed to queue authentication challenge", zap.Error(err))
	}

	err = c.readPump(conn, pingInterval)

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	conn.close()
	<-conn.written
	return err
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	opts := c.opts
	token := c.token
	connectionID := c.connectionID
	seq := c.serverSeq
	c.mu.Unlock()

	u, err := url.Parse(opts.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection url: %w", err)
	}
	q := u.Query()
	if connectionID != "" && opts.ReliableWebSockets {
		q.Set("connection_id", connectionID)
		q.Set("sequence_number", strconv.FormatInt(seq, 10))
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := opts.Dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u.Host, err)
	}
	return ws, nil
}

// readPump reads frames until the socket fails, invoking callbacks inline.
func (c *Client) readPump(conn *connection, pingInterval time.Duration) error {
	pongWait := 2 * pingInterval
	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return err
		}

		ev, err := parseInbound(message)
		if err != nil {
			c.logger.Debug("failed to parse inbound message", zap.Error(err))
			continue
		}
		if ev == nil {
			continue
		}

		if !c.handleEvent(conn, ev) {
			return errors.New("sequence gap, resuming")
		}
	}
}

// handleEvent runs lifecycle and event callbacks for ev. It returns false
// when the connection must be dropped to resume from the server's queue.
func (c *Client) handleEvent(conn *connection, ev *model.Event) bool {
	if ev.Event == model.EventHello {
		c.handleHello(ev)
		c.dispatch(ev)
		return true
	}

	c.mu.Lock()
	expected := c.serverSeq
	reliable := c.opts.ReliableWebSockets
	gap := ev.Seq != expected
	if !gap || !reliable {
		c.serverSeq = ev.Seq + 1
	}
	c.mu.Unlock()

	if gap {
		c.logger.Info("missed websocket events",
			zap.Int64("expected", expected),
			zap.Int64("received", ev.Seq),
			zap.Bool("reliable", reliable),
		)
		if reliable {
			return false
		}
		if c.reconnect != nil {
			c.reconnect()
		}
	}

	c.dispatch(ev)
	return true
}

func (c *Client) handleHello(ev *model.Event) {
	newID := ev.String("connection_id")

	c.mu.Lock()
	first := !c.everHello
	resumed := c.opts.ReliableWebSockets && c.connectionID != "" && newID == c.connectionID
	c.everHello = true
	c.failCount = 0
	if !resumed {
		c.serverSeq = ev.Seq + 1
	}
	c.connectionID = newID
	c.mu.Unlock()

	switch {
	case first:
		c.logger.Info("websocket connected", zap.String("connectionID", newID))
		if c.firstConnect != nil {
			c.firstConnect()
		}
	case resumed:
		c.logger.Info("websocket resumed", zap.String("connectionID", newID))
		if c.missedEvents != nil {
			c.missedEvents()
		}
	default:
		c.logger.Info("websocket reconnected", zap.String("connectionID", newID))
		if c.reconnect != nil {
			c.reconnect()
		}
	}
}

func (c *Client) dispatch(ev *model.Event) {
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump(conn *connection, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.ws.Close()
		close(conn.written)
	}()

	for {
		select {
		case message := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-conn.stop:
			if c.shouldFlush() {
				c.drain(conn)
			}
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) drain(conn *connection) {
	for {
		select {
		case message := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (conn *connection) close() {
	conn.stopped.Do(func() { close(conn.stop) })
}

func (c *Client) notifyClose() int {
	c.mu.Lock()
	c.failCount++
	failCount := c.failCount
	c.mu.Unlock()

	if c.onClose != nil {
		c.onClose(failCount)
	}
	return failCount
}

func (c *Client) backoff(failCount int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.backoff(failCount)
}

func (c *Client) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Client) shouldFlush() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped && c.flush
}
