package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/CK6170/dataplot-go/internal/stream"
	"github.com/CK6170/dataplot-go/models"
	"github.com/CK6170/dataplot-go/plot"
	"github.com/gorilla/websocket"
)

// Event types sent on /ws/plot.
const (
	EventInit  = "init"
	EventDelta = "delta"
	EventReset = "reset"
)

const (
	writeWait = 2 * time.Second
	// sendQueue is how many events a browser may fall behind before it is
	// dropped.
	sendQueue = 256
)

// WSMessage is the envelope of every /ws/plot event. Data is a stream.Init,
// a plot.Delta or a ResetEvent depending on Type.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ResetEvent is the data of a reset message.
type ResetEvent struct {
	Reason string `json:"reason"`
}

// WSClient is one browser. Events are queued on send and written by its own
// goroutine, so a slow browser never holds up the session feeding the hub.
type WSClient struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *WSClient) writeLoop() {
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			// The read loop in handleWSPlot sees the closed conn and removes us.
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// WSHub fans one session's plot events out to browsers. It is a stream.Sink;
// its methods run under the session lock and only enqueue.
type WSHub struct {
	mu      sync.Mutex
	clients map[*WSClient]struct{}
}

var _ stream.Sink = (*WSHub)(nil)

// NewWSHub constructs an empty hub.
func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*WSClient]struct{})}
}

// Add registers a connection. When init is non-nil it is the first event
// the client receives. Call it from Session.View so no delta slips between
// the snapshot in init and the registration.
func (h *WSHub) Add(conn *websocket.Conn, init *stream.Init) *WSClient {
	c := &WSClient{conn: conn, send: make(chan []byte, sendQueue)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if init != nil {
		if b, err := json.Marshal(WSMessage{Type: EventInit, Data: init}); err == nil {
			h.enqueueLocked(c, b)
		}
	}
	go c.writeLoop()
	return c
}

// Remove unregisters a client and closes its connection.
func (h *WSHub) Remove(c *WSClient) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *WSHub) Initialize(i stream.Init) {
	h.broadcast(WSMessage{Type: EventInit, Data: i})
}

func (h *WSHub) ApplyDelta(d plot.Delta) {
	h.broadcast(WSMessage{Type: EventDelta, Data: d})
}

func (h *WSHub) Reset(reason string) {
	h.broadcast(WSMessage{Type: EventReset, Data: ResetEvent{Reason: reason}})
}

// broadcast marshals once and queues the bytes for every client.
func (h *WSHub) broadcast(msg WSMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueueLocked(c, b)
	}
}

// enqueueLocked never blocks. A client whose queue is full has missed an
// event and can no longer follow the model, so it is disconnected; the
// browser reconnects and starts again from an init.
func (h *WSHub) enqueueLocked(c *WSClient, b []byte) {
	select {
	case c.send <- b:
	default:
		h.dropLocked(c)
		_ = c.conn.Close()
	}
}

func (h *WSHub) dropLocked(c *WSClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// initEvent builds the init a joining browser starts from, or nil before
// the first config.
func initEvent(transport string, cfg *models.Config, m plot.Model) *stream.Init {
	if cfg == nil || m == nil {
		return nil
	}
	return &stream.Init{
		Transport:   transport,
		Fingerprint: cfg.Fingerprint(),
		Config:      cfg,
		Model:       m,
	}
}
