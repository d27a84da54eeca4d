package internal

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"pickup-games/internal/storage/sqlstore"
)

// logAction records an audit row. Failures are logged and otherwise ignored.
func logAction(db *sqlstore.Store, actorID, action, details string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.LogAction(ctx, actorID, action, details); err != nil {
		slog.Warn("audit log write failed", "action", action, "error", err)
	}
}

func reliabilityBadge(gamesPlayed int) string {
	switch {
	case gamesPlayed >= 10:
		return "RELIABLE"
	case gamesPlayed >= 1:
		return "REGULAR"
	}
	return "NEW"
}

func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
