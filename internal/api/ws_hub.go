package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"nidar/preorder/internal/services"
)

const wsWriteWait = 10 * time.Second

// ArrivalMessage is pushed to order pages so the arrival field's minimum stays current.
type ArrivalMessage struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Display string `json:"display"`
}

func newArrivalMessage(minArrival string) ArrivalMessage {
	return ArrivalMessage{
		Type:    "min_arrival",
		Value:   minArrival,
		Display: services.FormatTimeForDisplay(minArrival),
	}
}

// ArrivalHub manages the websocket connections of open order pages, keyed by session id.
type ArrivalHub struct {
	clients  map[*websocket.Conn]string
	mutex    sync.RWMutex
	flow     *services.OrderFlow
	interval time.Duration
}

func NewArrivalHub(flow *services.OrderFlow, interval time.Duration) *ArrivalHub {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ArrivalHub{
		clients:  make(map[*websocket.Conn]string),
		flow:     flow,
		interval: interval,
	}
}

// Run pushes the current minimum arrival to every client each interval until ctx is done.
func (h *ArrivalHub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.broadcast(newArrivalMessage(h.flow.MinArrival()))
		}
	}
}

func (h *ArrivalHub) broadcast(msg ArrivalMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ WS: failed to encode arrival message")
		return
	}

	var failed []*websocket.Conn
	h.mutex.RLock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			failed = append(failed, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range failed {
		h.RemoveClient(client)
	}
}

func (h *ArrivalHub) AddClient(conn *websocket.Conn, sessionID string) {
	h.mutex.Lock()
	h.clients[conn] = sessionID
	h.mutex.Unlock()
}

func (h *ArrivalHub) RemoveClient(conn *websocket.Conn) {
	h.mutex.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mutex.Unlock()
}

// DropSession disconnects every page of a session that left the order view.
func (h *ArrivalHub) DropSession(sessionID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	dropped := 0
	for conn, id := range h.clients {
		if id == sessionID {
			delete(h.clients, conn)
			conn.Close()
			dropped++
		}
	}
	return dropped
}

func (h *ArrivalHub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *ArrivalHub) GetClientsCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
