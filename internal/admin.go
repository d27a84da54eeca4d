package internal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup-games/internal/storage"
	"pickup-games/internal/storage/sqlstore"
)

func AdminUsers(db *sqlstore.Store, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := db.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]UserResponse, 0, len(users))
		for _, u := range users {
			out = append(out, UserResponse{User: u, IsAdmin: cfg.isAdmin(u.Email), Badge: reliabilityBadge(u.GamesPlayed)})
		}
		c.JSON(http.StatusOK, out)
	}
}

// DELETE /api/admin/users/:id removes the account with its games and spots.
// Freed spots in other organisers' games are not back-filled from reserves.
func AdminDeleteUser(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor(c)
		id := c.Param("id")
		if id == a.UserID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete yourself"})
			return
		}
		err := db.DeleteUser(c.Request.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		logAction(db, a.UserID, "admin_delete_user", "user_id="+id)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func AdminLogs(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := db.ListLogs(c.Request.Context(), queryInt(c.Query("limit"), 200))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}
