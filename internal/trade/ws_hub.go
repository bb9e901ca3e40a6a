// Package trade — WebSocket hub for live market snapshots and feed events.
package trade

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opinex/market-engine/internal/instrument"
	"github.com/opinex/market-engine/internal/metrics"
	"github.com/opinex/market-engine/internal/model"
)

// WSMessage is a JSON message sent to WebSocket clients. Snapshot
// messages go to clients subscribed to the instrument; feed messages go
// to everyone.
type WSMessage struct {
	Type       string              `json:"type"` // "snapshot" or "feed"
	Instrument string              `json:"instrument,omitempty"`
	Record     *model.MarketRecord `json:"record,omitempty"`
	Feed       *model.FeedItem     `json:"feed,omitempty"`
}

// wsCommand is what clients send: subscribe/unsubscribe to an instrument.
type wsCommand struct {
	Subscribe   string `json:"subscribe,omitempty"`
	Unsubscribe string `json:"unsubscribe,omitempty"`
}

// wsEvent is a queued broadcast. A non-empty instrument restricts
// delivery to that instrument's subscribers.
type wsEvent struct {
	instrument string
	payload    []byte
}

// broadcastBuffer bounds the delivery queue. Events beyond it are dropped
// rather than allowed to stall the caller.
const broadcastBuffer = 256

// WSHub manages WebSocket connections and their instrument subscriptions.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]map[string]bool // conn → subscribed instruments
	queue   chan wsEvent
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]map[string]bool),
		queue:   make(chan wsEvent, broadcastBuffer),
	}
}

// Run delivers queued broadcasts to clients. Start it once from main.
// Connection writes (and their 2s deadlines) happen here, never on the
// trade path.
func (h *WSHub) Run() {
	for ev := range h.queue {
		h.deliver(ev)
	}
}

// BroadcastSnapshot queues a market record snapshot for every client
// subscribed to the record's instrument. Never blocks: trades are
// executed under per-instrument locks, so delivery stays asynchronous.
func (h *WSHub) BroadcastSnapshot(rec *model.MarketRecord) {
	data, err := json.Marshal(WSMessage{
		Type:       "snapshot",
		Instrument: rec.Instrument,
		Record:     rec,
	})
	if err != nil {
		return
	}
	h.enqueue(wsEvent{instrument: rec.Instrument, payload: data})
}

// BroadcastFeed queues a feed event for all connected clients.
func (h *WSHub) BroadcastFeed(item model.FeedItem) {
	data, err := json.Marshal(WSMessage{Type: "feed", Feed: &item})
	if err != nil {
		return
	}
	h.enqueue(wsEvent{payload: data})
}

func (h *WSHub) enqueue(ev wsEvent) {
	select {
	case h.queue <- ev:
	default:
		// The stream is lossy under backpressure; clients resync from
		// the REST snapshot and feed endpoints.
	}
}

func (h *WSHub) deliver(ev wsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, subs := range h.clients {
		if ev.instrument != "" && !subs[ev.instrument] {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, ev.payload); err != nil {
			h.drop(conn)
		}
	}
}

// drop removes and closes a connection. Caller holds h.mu.
func (h *WSHub) drop(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		metrics.WebSocketClients.Dec()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
// Clients manage subscriptions by sending {"subscribe": "<text>"} and
// {"unsubscribe": "<text>"} messages.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = make(map[string]bool)
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()
	slog.Info("ws client connected", "total", total)

	// Read pump: handle subscription commands and detect disconnects.
	go func() {
		defer func() {
			h.mu.Lock()
			h.drop(conn)
			h.mu.Unlock()
		}()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd wsCommand
			if json.Unmarshal(data, &cmd) != nil {
				continue
			}
			h.applyCommand(conn, cmd)
		}
	}()

	// Ping ticker to keep the connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}

func (h *WSHub) applyCommand(conn *websocket.Conn, cmd wsCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.clients[conn]
	if !ok {
		return
	}
	if cmd.Subscribe != "" {
		if text, err := instrument.Normalize(cmd.Subscribe); err == nil {
			subs[text] = true
		}
	}
	if cmd.Unsubscribe != "" {
		if text, err := instrument.Normalize(cmd.Unsubscribe); err == nil {
			delete(subs, text)
		}
	}
}
