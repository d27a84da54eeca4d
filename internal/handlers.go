package internal

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pickup-games/internal/participation"
	"pickup-games/internal/storage"
	"pickup-games/internal/storage/sqlstore"
)

func Me(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor(c)
		u, err := db.GetUser(c.Request.Context(), a.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, UserResponse{User: u, IsAdmin: a.Admin, Badge: reliabilityBadge(u.GamesPlayed)})
	}
}

// ------------------- Games -------------------

// GET /api/games?upcoming=true&limit=N
func ListGames(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := sqlstore.SessionFilter{Limit: queryInt(c.Query("limit"), 0)}
		if c.Query("upcoming") == "true" {
			filter.From = time.Now()
		}
		views, err := db.ListSessions(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gamesFromViews(views))
	}
}

func CreateGame(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor(c)
		var req createGameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
			return
		}
		venue := strings.TrimSpace(req.Venue)
		if venue == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "venue is required"})
			return
		}
		now := time.Now().UTC()
		if !req.DateTime.After(now) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date_time must be in the future"})
			return
		}

		id, err := uuid.NewV7()
		if err != nil {
			respondError(c, err)
			return
		}
		session := participation.Session{
			ID:            id.String(),
			OrganiserID:   a.UserID,
			OrganiserName: a.Name,
			Venue:         venue,
			StartsAt:      req.DateTime.UTC(),
			SlotsRequired: req.PlayersNeeded,
			Format:        strings.ToLower(req.Format),
			Price:         req.Subs,
			Notes:         strings.TrimSpace(req.Notes),
			CreatedAt:     now,
		}
		if err := db.CreateSession(c.Request.Context(), session); err != nil {
			respondError(c, err)
			return
		}
		view, err := db.GetSession(c.Request.Context(), session.ID)
		if err != nil {
			respondError(c, err)
			return
		}

		logAction(db, a.UserID, "create_game", "game_id="+session.ID)
		c.JSON(http.StatusCreated, gameFromView(view))
	}
}

func GetGame(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := db.GetSession(c.Request.Context(), c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gameFromView(view))
	}
}

// DELETE /api/games/:id (organiser or admin)
func DeleteGame(db *sqlstore.Store, engine *participation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor(c)
		id := c.Param("id")
		if err := engine.DeleteSession(c.Request.Context(), a, id); err != nil {
			respondError(c, err)
			return
		}
		logAction(db, a.UserID, "delete_game", "game_id="+id)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ------------------- My -------------------

// GET /api/my/games => games organised or joined
func MyGames(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := db.ListUserSessions(c.Request.Context(), actor(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gamesFromViews(views))
	}
}

// GET /api/my/participations => joined games with the caller's status
func MyParticipations(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := actor(c).UserID

		statuses, err := db.ParticipationStatuses(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		views, err := db.ListUserSessions(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}

		out := []MyParticipation{}
		for _, v := range views {
			status, ok := statuses[v.ID]
			if !ok {
				continue
			}
			out = append(out, MyParticipation{Game: gameFromView(v), Status: status})
		}
		c.JSON(http.StatusOK, out)
	}
}
