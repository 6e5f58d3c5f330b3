// Package hub is the synchronization fabric between the daemon and
// its clients. Every connected client sees the same stream of events;
// command effects come back as broadcasts, never as side-channel
// replies, so all clients converge on the same state.
package hub

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventDelta    EventType = "delta"
	EventChat     EventType = "chat"
	EventStats    EventType = "stats"
	EventError    EventType = "error"
)

// Event is the one message shape flowing hub → client.
type Event struct {
	Type     EventType `json:"type"`
	SystemID string    `json:"system_id,omitempty"`
	Version  int64     `json:"version,omitempty"`
	Snapshot string    `json:"snapshot,omitempty"`
	Delta    string    `json:"delta,omitempty"`
	Persona  string    `json:"persona,omitempty"`
	Text     string    `json:"text,omitempty"`
	Stats    any       `json:"stats,omitempty"`
}

type CommandType string

const (
	CommandChat  CommandType = "chat"
	CommandView  CommandType = "view"
	CommandSave  CommandType = "save"
	CommandStats CommandType = "stats"
	CommandReset CommandType = "reset"
)

// Command flows client → hub and is relayed to the processor.
type Command struct {
	Type CommandType `json:"type"`
	Text string      `json:"text,omitempty"`
	View string      `json:"view,omitempty"`
}

// sendQueueSize bounds each client's outbound queue. A client that
// falls this far behind is disconnected rather than stalling the
// broadcaster.
const sendQueueSize = 32

type Client struct {
	ID   string
	conn *websocket.Conn
	Send chan Event

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		conn: conn,
		Send: make(chan Event, sendQueueSize),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.Send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks the connected clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	handler    func(clientID string, cmd Command)
	snapshotFn func() Event
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// SetCommandHandler wires inbound commands to the processor. Must be
// called before serving connections.
func (h *Hub) SetCommandHandler(fn func(clientID string, cmd Command)) {
	h.handler = fn
}

// SetSnapshotFunc provides the full-snapshot event sent to every
// client on connect, so a client never observes a gap.
func (h *Hub) SetSnapshotFunc(fn func() Event) {
	h.snapshotFn = fn
}

// Register adds a client and hands it the current snapshot.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	ArchgraphClientsConnected.Set(float64(len(h.clients)))
	h.mu.Unlock()

	if h.snapshotFn != nil {
		c.Send <- h.snapshotFn()
	}
	fmt.Printf(`{"level":"info","msg":"client connected","client_id":"%s","clients":%d}`+"\n", c.ID, h.ClientCount())
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	ArchgraphClientsConnected.Set(float64(len(h.clients)))
	h.mu.Unlock()
	if ok {
		c.close()
		fmt.Printf(`{"level":"info","msg":"client disconnected","client_id":"%s"}`+"\n", c.ID)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast fans an event out without ever blocking on a client: a
// client whose queue is full is dropped.
func (h *Hub) Broadcast(e Event) {
	h.mu.RLock()
	var stalled []*Client
	for _, c := range h.clients {
		select {
		case c.Send <- e:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		fmt.Printf(`{"level":"warn","msg":"dropping slow client","client_id":"%s"}`+"\n", c.ID)
		h.unregister(c)
	}
}

// ServeWS upgrades an HTTP request and runs the client's pumps until
// it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"websocket upgrade failed","error":"%v"}`+"\n", err)
		return
	}

	c := NewClient(conn)
	h.Register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *Client) {
	for e := range c.Send {
		if err := c.conn.WriteJSON(e); err != nil {
			h.unregister(c)
			return
		}
	}
}

func (h *Hub) readPump(c *Client) {
	defer h.unregister(c)
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			return
		}
		if h.handler != nil {
			h.handler(c.ID, cmd)
		}
	}
}
