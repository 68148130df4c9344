package live

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shilo-maker/soluflow-sub001/internal/util"
)

const sendBufferSize = 64

// Conn is one participant's server-side connection. The read pump routes
// inbound events into the registry; the write pump drains the buffered send
// channel so a slow reader never blocks room fan-out.
type Conn struct {
	id            string
	participantID string
	displayName   string
	role          string

	ws       *websocket.Conn
	registry *Registry
	send     chan []byte

	writeTimeout time.Duration
	pingPeriod   time.Duration

	mu     sync.Mutex
	closed bool

	// serviceID is the room this connection has joined; touched only by
	// the read pump.
	serviceID string
}

func newConn(ws *websocket.Conn, registry *Registry, participantID, displayName, role string, writeTimeout, pingPeriod time.Duration) *Conn {
	return &Conn{
		id:            util.NewID("conn"),
		participantID: participantID,
		displayName:   displayName,
		role:          role,
		ws:            ws,
		registry:      registry,
		send:          make(chan []byte, sendBufferSize),
		writeTimeout:  writeTimeout,
		pingPeriod:    pingPeriod,
	}
}

// ID is the connection identity rooms track for leadership.
func (c *Conn) ID() string { return c.id }

// trySend queues data without blocking. Returns false once the connection
// is closed or its buffer is full; callers treat that as a dead member.
func (c *Conn) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Conn) run() {
	go c.writePump()
	c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		if c.serviceID != "" {
			c.registry.Leave(c.serviceID, c)
		}
		c.closeSend()
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(16 * 1024)
	readTimeout := c.pingPeriod * 2
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("live: connection %s read error: %v", c.id, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("live: connection %s sent malformed frame: %v", c.id, err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Conn) dispatch(env Envelope) {
	switch env.Type {
	case EventJoinService:
		p, err := decodePayload[JoinPayload](env.Payload)
		if err != nil || p.ServiceID == "" {
			return
		}
		if c.serviceID != "" && c.serviceID != p.ServiceID {
			c.registry.Leave(c.serviceID, c)
		}
		c.serviceID = p.ServiceID
		// Identity comes from the authenticated HTTP layer, never from
		// the payload.
		c.registry.Join(p.ServiceID, c, c.participantID, normalizeRole(p.Role, p.IsLeader), p.IsLeader)

	case EventLeaveService:
		if c.serviceID == "" {
			return
		}
		c.registry.Leave(c.serviceID, c)
		c.serviceID = ""

	case EventLeaderNavigate:
		p, err := decodePayload[NavigatePayload](env.Payload)
		if err != nil || c.serviceID == "" {
			return
		}
		c.registry.Navigate(c.serviceID, c, p)

	case EventLeaderTranspose:
		p, err := decodePayload[TransposePayload](env.Payload)
		if err != nil || c.serviceID == "" {
			return
		}
		c.registry.Transpose(c.serviceID, c, p)

	case EventRequestSync:
		if c.serviceID == "" {
			return
		}
		c.registry.SyncState(c.serviceID, c)

	default:
		log.Printf("live: connection %s sent unknown event %q", c.id, env.Type)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func normalizeRole(role string, isLeader bool) Role {
	if isLeader {
		return RoleLeader
	}
	if Role(role) == RoleLeader {
		return RoleLeader
	}
	return RoleFollower
}
