package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"nidar/preorder/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeArrivalWS streams the minimum arrival time to an open order page.
// Only sessions on the order view may subscribe.
func (pc *PageController) ServeArrivalWS(c *gin.Context) {
	id := pc.sessionID(c)
	if id == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	s, err := pc.sessions.Store().Get(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if s.View != models.ViewOrder {
		c.AbortWithStatus(http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ WS: upgrade failed")
		return
	}

	payload, _ := json.Marshal(newArrivalMessage(pc.flow.MinArrival()))
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return
	}

	pc.hub.AddClient(conn, id)
	log.Debug().Str("session_id", id).Int("clients", pc.hub.GetClientsCount()).Msg("📱 WS: order page connected")

	defer func() {
		pc.hub.RemoveClient(conn)
		log.Debug().Str("session_id", id).Int("clients", pc.hub.GetClientsCount()).Msg("📱 WS: order page disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("⚠️ WS: read error")
			}
			return
		}
	}
}
