package internal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup-games/internal/participation"
	"pickup-games/internal/storage"
	"pickup-games/internal/storage/sqlstore"
)

// GET /api/games/:id/participants
func ListParticipants(db *sqlstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")
		if _, err := db.GetSession(ctx, id); errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		} else if err != nil {
			respondError(c, err)
			return
		}

		parts, err := db.ListParticipants(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]Participant, 0, len(parts))
		for _, p := range parts {
			out = append(out, Participant{Participant: p, Badge: reliabilityBadge(p.GamesPlayed)})
		}
		c.JSON(http.StatusOK, out)
	}
}

// POST /api/games/:id/participants {mode: REQUESTED|RESERVE}
func JoinGame(engine *participation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
			return
		}
		p, snap, err := engine.RequestOrReserve(c.Request.Context(), actor(c), c.Param("id"), req.Mode)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"participant": participationResponse(p), "capacity": snap})
	}
}

// POST /api/games/:id/withdraw
func Withdraw(engine *participation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := engine.Withdraw(c.Request.Context(), actor(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"capacity": snap})
	}
}

// POST /api/games/:id/participants/remove {participant_ids: [...]}
func RemoveParticipants(engine *participation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req removeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
			return
		}
		snap, err := engine.RemoveMany(c.Request.Context(), actor(c), c.Param("id"), req.ParticipantIDs)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"capacity": snap})
	}
}

func ApproveParticipant(engine *participation.Engine) gin.HandlerFunc {
	return decide(engine, participation.DecisionApprove)
}

func DeclineParticipant(engine *participation.Engine) gin.HandlerFunc {
	return decide(engine, participation.DecisionDecline)
}

func decide(engine *participation.Engine, decision participation.Decision) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := engine.Decide(c.Request.Context(), actor(c), c.Param("id"), decision)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"capacity": snap})
	}
}

// DELETE /api/participants/:id
func RemoveParticipant(engine *participation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := engine.Remove(c.Request.Context(), actor(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"capacity": snap})
	}
}

// POST /api/participants/:id/attendance {attended: bool}
func RecordAttendance(engine *participation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req attendanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
			return
		}
		p, err := engine.RecordAttendance(c.Request.Context(), actor(c), c.Param("id"), *req.Attended)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, participationResponse(p))
	}
}
