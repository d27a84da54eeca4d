package internal

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pickup-games/internal/notify"
)

// GET /api/notifications?limit=N&before=<id>
func ListNotifications(inbox *notify.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := inbox.List(c.Request.Context(), actor(c).UserID, queryInt(c.Query("limit"), 0), c.Query("before"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func UnreadCount(inbox *notify.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := inbox.UnreadCount(c.Request.Context(), actor(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

func MarkNotificationRead(inbox *notify.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := inbox.MarkRead(c.Request.Context(), actor(c).UserID, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, n)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GET /api/ws/notifications pushes new notifications to the caller while the
// socket stays open. Client frames are read and discarded.
func NotificationSocket(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := actor(c).UserID
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		hub.Add(userID, conn)
		defer hub.Remove(userID, conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
