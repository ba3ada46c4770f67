package inspector

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/glit/internal/logging"
	"github.com/conneroisu/glit/internal/scenario"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Frames replayed to a client when it connects.
	historySize = 256

	sendBuffer = 256
)

// Message is what the inspector sends over the websocket.
type Message struct {
	Type      string          `json:"type"`
	Session   string          `json:"session"`
	Frame     *scenario.Frame `json:"frame,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Message types.
const (
	MessageFrame = "frame"
	MessageHello = "hello"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	// seen is the sequence of the last frame replayed to the client.
	seen uint64
}

type outbound struct {
	seq uint64
	msg []byte
}

// Hub fans frames out to connected websocket clients and keeps a bounded
// history for clients that connect later.
type Hub struct {
	session string
	logger  logging.Logger
	metrics *Metrics

	register   chan *client
	unregister chan *client
	broadcast  chan outbound
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]bool
	history []scenario.Frame
	seq     uint64
}

// NewHub creates a hub. metrics may be nil.
func NewHub(session string, logger logging.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		session:    session,
		logger:     logger.WithComponent("hub"),
		metrics:    metrics,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outbound, sendBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
	}
}

// Publish records f and sends it to every client. Clients that registered
// after f was recorded already got it with their backlog and are skipped.
func (h *Hub) Publish(f scenario.Frame) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.history = append(h.history, f)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}
	h.mu.Unlock()

	msg, err := h.encode(MessageFrame, &f)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to encode frame", "frame", f.ID)
		return
	}
	select {
	case h.broadcast <- outbound{seq: seq, msg: msg}:
	default:
		h.logger.Warn(context.Background(), nil, "Broadcast queue full, dropping frame", "frame", f.ID)
	}
}

// History returns the retained frames, oldest first.
func (h *Hub) History() []scenario.Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]scenario.Frame, len(h.history))
	copy(out, h.history)
	return out
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) encode(typ string, f *scenario.Frame) ([]byte, error) {
	return json.Marshal(Message{
		Type:      typ,
		Session:   h.session,
		Frame:     f,
		Timestamp: time.Now(),
	})
}

// Run processes registrations and broadcasts until ctx is done, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			c.seen = h.seq
			backlog := make([]scenario.Frame, len(h.history))
			copy(backlog, h.history)
			count := len(h.clients)
			h.mu.Unlock()
			h.setClientGauge(count)
			h.logger.Info(ctx, "Client connected", "clients", count)

			h.greet(c, backlog)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.setClientGauge(count)
			h.logger.Info(ctx, "Client disconnected", "clients", count)

		case out := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if c.seen >= out.seq {
					continue
				}
				select {
				case c.send <- out.msg:
				default:
					// Client's send channel is full
					delete(h.clients, c)
					close(c.send)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.setClientGauge(count)
		}
	}
}

func (h *Hub) greet(c *client, backlog []scenario.Frame) {
	hello, err := h.encode(MessageHello, nil)
	if err != nil {
		return
	}
	msgs := [][]byte{hello}
	for i := range backlog {
		if msg, err := h.encode(MessageFrame, &backlog[i]); err == nil {
			msgs = append(msgs, msg)
		}
	}
	for _, msg := range msgs {
		select {
		case c.send <- msg:
		default:
			return
		}
	}
}

func (h *Hub) setClientGauge(n int) {
	if h.metrics != nil {
		h.metrics.clients.Set(float64(n))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close(websocket.StatusGoingAway, "inspector shutting down")
	}
	h.clients = make(map[*client]bool)
	h.setClientGauge(0)
}

// serve runs the pumps of one connection and blocks until it ends.
func (h *Hub) serve(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-ctx.Done():
		conn.Close(websocket.StatusGoingAway, "")
		return
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "inspector shutting down")
		return
	}

	// The inspector ignores client messages; CloseRead handles control
	// frames and cancels readCtx when the peer goes away.
	readCtx := conn.CloseRead(ctx)
	h.writePump(readCtx, c)

	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				if websocket.CloseStatus(err) == -1 {
					h.logger.Warn(ctx, err, "WebSocket write error")
				}
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
