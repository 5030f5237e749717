package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/dex-momentum-core/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for local dashboard
	},
}

// Hub maintains the set of active websocket clients and fans out every
// EntrySignal/ExitSignal broadcast to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Set write deadline to prevent blocked clients from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := client.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				log.Printf("Websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe handles incoming websocket connections onto the signal stream.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	log.Printf("New signal-stream client connected. Total clients: %d", len(h.clients))

	// Keep alive loop (we only care about pushing down, but we must read to handle disconnects)
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("Signal-stream client disconnected. Total clients: %d", len(h.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast sends JSON data to all connected clients.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// signalEnvelope wraps an EntrySignal or ExitSignal with a type tag so
// subscribers can dispatch on a single stream without a second connection.
type signalEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// PumpSignals drains entries/exits and broadcasts each as a typed JSON
// envelope until done is closed. Grounded in the teacher's
// BroadcastCoinJoinAlert callback shape, generalized to a standing pump
// loop since this engine emits a continuous stream rather than one-off
// alerts from a scan job.
func (h *Hub) PumpSignals(entries <-chan models.EntrySignal, exits <-chan models.ExitSignal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			h.broadcastEnvelope("entry", e)
		case x, ok := <-exits:
			if !ok {
				return
			}
			h.broadcastEnvelope("exit", x)
		}
	}
}

func (h *Hub) broadcastEnvelope(kind string, data interface{}) {
	payload, err := json.Marshal(signalEnvelope{Type: kind, Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s signal: %v", kind, err)
		return
	}
	h.Broadcast(payload)
}
