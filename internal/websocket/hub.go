package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	gwebsocket "github.com/gorilla/websocket"

	"github.com/prite36/smart-irrigation/internal/models"
)

const (
	broadcastBuffer = 64
	sendBuffer      = 256

	TypeSensorUpdate     = "sensor_update"
	TypeIrrigationAction = "irrigation_action"
)

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes sensor updates and irrigation actions to dashboard clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[INFO] WebSocket client registered: %s", client.conn.RemoteAddr())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[INFO] WebSocket client unregistered: %s", client.conn.RemoteAddr())
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.Printf("[WARN] WebSocket client %s send buffer full, removing", client.conn.RemoteAddr())
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Record implements irrigationlog.Sink.
func (h *Hub) Record(entry models.LogEntry) {
	h.publish(TypeIrrigationAction, entry)
}

// SensorUpdated implements irrigation.SensorObserver.
func (h *Hub) SensorUpdated(s models.SensorSnapshot) {
	h.publish(TypeSensorUpdate, s)
}

// publish never blocks; messages are dropped when the hub is saturated.
func (h *Hub) publish(kind string, payload interface{}) {
	message, err := json.Marshal(map[string]interface{}{"type": kind, "payload": payload})
	if err != nil {
		log.Printf("[ERROR] Error marshalling %s for broadcast: %v", kind, err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		log.Printf("[WARN] WebSocket broadcast queue full, dropping %s", kind)
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
