package ws

import (
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"studybuddy/backend/internal/config"
	"studybuddy/backend/internal/hub"
	"studybuddy/backend/internal/presence"
)

// Serve returns the gin handler that upgrades lobby WebSocket
// connections and starts their pumps.
func Serve(h *hub.Hub, coordinator *presence.Coordinator) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("ws: upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, h, coordinator)
		h.Register(client.ConnID(), client.SendChan())

		go client.WritePump()
		go client.ReadPump()
	}
}

// checkOrigin accepts requests with no Origin header, same-host
// origins, and any origin listed in ALLOWED_ORIGINS.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range config.AppConfig.Origins() {
		if origin == allowed {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
