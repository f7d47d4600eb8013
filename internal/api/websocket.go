package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub maintains the set of subscribed RPC clients and broadcasts
// sync-progress events: a new sync head, a newly graded winner set.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	log       *logrus.Entry
}

// NewHub constructs an empty Hub. log may be nil.
func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		log:       log,
	}
}

// Run drains the broadcast channel and fans each message out to every
// connected client. Blocks; callers run it in its own goroutine.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.WithError(err).Warn("websocket write failed, dropping client")
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades the request to a websocket connection and registers
// it to receive broadcasts.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mutex.Unlock()
	h.log.WithField("clients", count).Info("websocket client connected")

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			remaining := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			h.log.WithField("clients", remaining).Info("websocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// syncHeadEvent is broadcast every time the driver advances sync_head.
type syncHeadEvent struct {
	Type   string `json:"type"`
	Height uint32 `json:"height"`
}

// winnersEvent is broadcast every time a block grades successfully.
type winnersEvent struct {
	Type    string   `json:"type"`
	Height  uint32   `json:"height"`
	Winners []string `json:"winners"`
}

// BroadcastSyncHead notifies subscribers that the driver committed height h.
func (h *Hub) BroadcastSyncHead(height uint32) {
	h.broadcastJSON(syncHeadEvent{Type: "sync_head", Height: height})
}

// BroadcastWinners notifies subscribers of a newly graded winner set.
func (h *Hub) BroadcastWinners(height uint32, winnerHashesHex []string) {
	h.broadcastJSON(winnersEvent{Type: "winners", Height: height, Winners: winnerHashesHex})
}

func (h *Hub) broadcastJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Warn("failed to encode broadcast event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, dropping event")
	}
}
