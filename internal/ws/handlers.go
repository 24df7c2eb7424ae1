package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; rely on the attempt token.
		return true
	},
}

// AttachFunc resolves an attempt to its live session runtime. Injected by
// the routes layer so this package stays free of database wiring.
type AttachFunc func(attempt models.Attempt) (*session.Guard, error)

// SessionHandler upgrades the exam client connection. Raw platform signals
// flow in; session snapshots and the terminal redirect flow out.
func SessionHandler(hubs *Hubs, attach AttachFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hubs == nil || hubs.Session == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "realtime not available"})
			return
		}
		aVal, ok := c.Get("attempt")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		attempt := aVal.(models.Attempt)

		guard, err := attach(attempt)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newSessionClient(hubs.Session, conn, attempt.ID, guard)
		hubs.Session.register <- client

		go client.writePump()

		// Initial snapshot so the client renders before the first tick.
		snap := guard.Snapshot()
		hubs.Session.Notify(attempt.ID, SessionMessage{Type: "session_state", Snapshot: &snap})

		client.readPump()
	}
}

// ProctorHandler upgrades a monitoring dashboard connection. Access control
// happens in the proctor middleware before this runs.
func ProctorHandler(hubs *Hubs) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hubs == nil || hubs.Proctor == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "realtime not available"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newProctorClient(hubs.Proctor, conn)
		hubs.Proctor.register <- client

		go client.writePump()
		client.readPump()
	}
}
