package internal

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup-games/internal/notify"
	"pickup-games/internal/participation"
	"pickup-games/internal/storage"
)

// respondError writes the JSON error body for err. Domain failures keep their
// message and kind; anything else is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	var perr *participation.Error
	if errors.As(err, &perr) {
		c.JSON(statusForKind(perr.Kind), gin.H{"error": perr.Error(), "code": string(perr.Kind)})
		return
	}
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, notify.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": string(participation.KindNotFound)})
	case errors.Is(err, storage.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists", "code": string(participation.KindInvalidState)})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
	}
}

func statusForKind(kind participation.Kind) int {
	switch kind {
	case participation.KindNotAuthorized:
		return http.StatusForbidden
	case participation.KindInvalidState:
		return http.StatusConflict
	case participation.KindNotFound:
		return http.StatusNotFound
	case participation.KindSessionClosed:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}
