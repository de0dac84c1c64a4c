package audittail

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/unionsquare/unionsquare/internal/ids"
	"github.com/unionsquare/unionsquare/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operators reach this endpoint from an internal dashboard, not a
	// browser page served cross-origin from untrusted content.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeStream upgrades GET /admin/audit/stream to a websocket and registers
// the connection with hub, so it receives every subsequently broadcast
// audit record.
func ServeStream(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WebSocket().Error().Err(err).Msg("audit-tail websocket upgrade failed")
			return
		}
		hub.ServeClient(conn, ids.NewRequestId().String())
	}
}
