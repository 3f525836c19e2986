package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/fsm"
)

// eventMessage is the wire shape of one notification pushed over
// /pipeline/events.
type eventMessage struct {
	Type string `json:"type"` // "info" or "error"
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

type eventsClient struct {
	hub  *EventsHub
	conn *websocket.Conn
	send chan []byte
}

// EventsHub fans FSM notifications out to every connected
// /pipeline/events websocket client. It implements fsm.Observer, so a
// Player or Recorder can be constructed with it directly.
type EventsHub struct {
	clients    map[*eventsClient]bool
	broadcast  chan []byte
	register   chan *eventsClient
	unregister chan *eventsClient
	done       chan struct{}
	logger     *slog.Logger
}

// NewEventsHub creates a hub. Call Run in its own goroutine before
// wiring it to a Player/Recorder as an fsm.Observer.
func NewEventsHub(logger *slog.Logger) *EventsHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHub{
		clients:    make(map[*eventsClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *eventsClient),
		unregister: make(chan *eventsClient),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "httpapi.events")),
	}
}

// Run drains the hub's channels until Close is called.
func (h *EventsHub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				_ = client.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(2*time.Second))
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("events client connected", slog.Int("total", len(h.clients)))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("events client disconnected", slog.Int("total", len(h.clients)))
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Close stops Run and disconnects every client.
func (h *EventsHub) Close() { close(h.done) }

func (h *EventsHub) publish(msg eventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("events marshal failed", slog.Any("err", err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("events broadcast channel full, dropping message")
	}
}

// OnInfo implements fsm.Observer.
func (h *EventsHub) OnInfo(kind fsm.InfoKind, extra any) {
	h.publish(eventMessage{Type: "info", Kind: kind.String(), Data: extra})
}

// OnError implements fsm.Observer.
func (h *EventsHub) OnError(code errors.Code) {
	h.publish(eventMessage{Type: "error", Kind: code.String()})
}

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (c *eventsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *eventsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *EventsHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("events upgrade failed", slog.Any("err", err))
		return
	}
	client := &eventsClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client
	go client.writePump()
	go client.readPump()
}

// RegisterRoutes mounts GET /pipeline/events onto router.
func (h *EventsHub) RegisterRoutes(router chi.Router) {
	router.Get("/pipeline/events", h.serveWS)
}
