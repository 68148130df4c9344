package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConfig configures a Client connection to a live session endpoint.
type ClientConfig struct {
	URL       string
	Token     string
	ServiceID string
	IsLeader  bool

	// OnEvent receives every decoded server event.
	OnEvent func(Envelope)
	// OnConnectionLost fires once after reconnection attempts are
	// exhausted (or the context ends mid-reconnect).
	OnConnectionLost func(err error)

	// MaxReconnects bounds the reconnection attempts per outage. Zero
	// means 5.
	MaxReconnects int
	// ReconnectBase is the first retry delay; it doubles per attempt up
	// to 30s. Zero means one second.
	ReconnectBase time.Duration

	Dialer *websocket.Dialer
}

// Client maintains a WebSocket connection to the live endpoint, transparently
// reconnecting and re-joining the room with the last claimed role so an
// interrupted leader resumes leading.
type Client struct {
	cfg ClientConfig

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool

	done    chan struct{}
	stopped chan struct{}
}

// ErrClientClosed is returned by Send after Close.
var ErrClientClosed = errors.New("live: client closed")

// Dial connects and starts the read/reconnect loop. The context governs the
// initial dial and every reconnection attempt.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	c := &Client{
		cfg:     cfg,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	ws, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.ws = ws
	if err := c.join(); err != nil {
		ws.Close()
		return nil, err
	}
	go c.readLoop(ctx)
	return c, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	ws, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	return ws, nil
}

// join re-announces this client to the room. Called on every (re)connect so
// the server's claim ordering sees the same role as before the outage.
func (c *Client) join() error {
	env, err := NewEnvelope(EventJoinService, JoinPayload{
		ServiceID: c.cfg.ServiceID,
		IsLeader:  c.cfg.IsLeader,
	})
	if err != nil {
		return err
	}
	return c.write(env)
}

// Send transmits an event to the server. Safe for concurrent use.
func (c *Client) Send(env Envelope) error {
	return c.write(env)
}

func (c *Client) write(env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if c.ws == nil {
		return errors.New("live: not connected")
	}
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a leave event on a best-effort basis and tears down the
// connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	close(c.done)
	if ws != nil {
		if env, err := NewEnvelope(EventLeaveService, LeavePayload{ServiceID: c.cfg.ServiceID}); err == nil {
			if data, err := env.Encode(); err == nil {
				ws.SetWriteDeadline(time.Now().Add(time.Second))
				ws.WriteMessage(websocket.TextMessage, data)
			}
		}
		ws.Close()
	}
	<-c.stopped
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.stopped)
	for {
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()

		err := c.consume(ws)
		select {
		case <-c.done:
			return
		default:
		}
		log.Printf("live: connection to %s lost: %v", c.cfg.URL, err)

		ws, rerr := c.reconnect(ctx)
		if rerr != nil {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			if c.cfg.OnConnectionLost != nil {
				c.cfg.OnConnectionLost(rerr)
			}
			return
		}
		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()
		if err := c.join(); err != nil {
			log.Printf("live: re-join after reconnect failed: %v", err)
		}
	}
}

// consume reads frames until the connection errors.
func (c *Client) consume(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var env Envelope
		if err := decodeEnvelope(data, &env); err != nil {
			log.Printf("live: dropping malformed frame: %v", err)
			continue
		}
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(env)
		}
	}
}

// reconnect retries with exponential backoff until it succeeds or the
// attempt budget is spent.
func (c *Client) reconnect(ctx context.Context) (*websocket.Conn, error) {
	delay := c.cfg.ReconnectBase
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxReconnects; attempt++ {
		select {
		case <-c.done:
			return nil, ErrClientClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		ws, err := c.dial(ctx)
		if err == nil {
			log.Printf("live: reconnected to %s (attempt %d)", c.cfg.URL, attempt)
			return ws, nil
		}
		lastErr = err
		log.Printf("live: reconnect attempt %d/%d failed: %v", attempt, c.cfg.MaxReconnects, err)
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
	return nil, fmt.Errorf("reconnect: attempts exhausted: %w", lastErr)
}
