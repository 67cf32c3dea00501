package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"event-rewards-service/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type    string             `json:"type"`
	Payload domain.AuditRecord `json:"payload"`
}

// serveWS streams committed ledger mutations to the client as they
// happen, so a points page can update without polling. Identity comes
// from the same header as the REST API.
func (h *Handler) serveWS(c *gin.Context) {
	pid := c.GetHeader(participantHeader)
	if pid == "" {
		pid = c.Query("participantId")
	}
	if pid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing participant identity"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe(pid)
	defer cancel()

	done := make(chan struct{})

	// Reader exists only to detect the peer closing.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wsMessage{Type: "ledger", Payload: rec}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
