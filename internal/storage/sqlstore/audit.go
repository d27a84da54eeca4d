package sqlstore

import (
	"context"
	"time"

	"pickup-games/internal/storage"
)

// LogEntry is one audit row with the actor's current name.
type LogEntry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// LogAction appends an audit row. An empty actorID is stored as NULL.
func (s *Store) LogAction(ctx context.Context, actorID, action, details string) error {
	_, err := qExec(ctx, s.db, s.sb.Insert("logs").
		Columns("actor_id", "action", "details", "created_at").
		Values(nullString(actorID), action, details, storage.ToMillis(time.Now())))
	return err
}

// ListLogs returns the newest audit rows first.
func (s *Store) ListLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	rows, err := qQuery(ctx, s.db, s.sb.Select(
		"l.id", "l.created_at", "COALESCE(u.name, '(deleted)')", "l.action", "l.details").
		From("logs l").
		LeftJoin("users u ON u.id = l.actor_id").
		OrderBy("l.id DESC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LogEntry{}
	for rows.Next() {
		var (
			e         LogEntry
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Actor, &e.Action, &e.Details); err != nil {
			return nil, err
		}
		e.CreatedAt = storage.FromMillis(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
