package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"pickup-games/internal/notify"
	"pickup-games/internal/storage"
)

var notificationColumns = []string{"id", "recipient_id", "kind", "message", "session_id", "created_at", "read_at"}

func scanNotification(row scanner) (notify.Notification, error) {
	var (
		n         notify.Notification
		sessionID sql.NullString
		createdAt int64
		readAt    sql.NullInt64
	)
	if err := row.Scan(&n.ID, &n.RecipientUserID, &n.Kind, &n.Message, &sessionID, &createdAt, &readAt); err != nil {
		return notify.Notification{}, err
	}
	n.SessionID = sessionID.String
	n.CreatedAt = storage.FromMillis(createdAt)
	if readAt.Valid {
		t := storage.FromMillis(readAt.Int64)
		n.ReadAt = &t
		n.Read = true
	}
	return n, nil
}

// PutNotification persists one inbox row.
func (s *Store) PutNotification(ctx context.Context, n notify.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var readAt any
	if n.ReadAt != nil {
		readAt = storage.ToMillis(*n.ReadAt)
	}
	_, err := qExec(ctx, s.db, s.sb.Insert("notifications").
		Columns(notificationColumns...).
		Values(n.ID, n.RecipientUserID, string(n.Kind), n.Message, nullString(n.SessionID), storage.ToMillis(n.CreatedAt), readAt))
	return s.conflictOr("insert notification", err)
}

// ListNotifications pages a recipient's inbox newest first, ordered by
// (created_at, id) descending. beforeID must belong to the recipient.
func (s *Store) ListNotifications(ctx context.Context, recipientUserID string, limit int, beforeID string) ([]notify.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.sb.Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"recipient_id": recipientUserID})
	if beforeID != "" {
		var cursorAt int64
		err := qRow(ctx, s.db, s.sb.Select("created_at").From("notifications").
			Where(sq.Eq{"id": beforeID, "recipient_id": recipientUserID}), &cursorAt)
		if err != nil {
			return nil, err
		}
		q = q.Where(sq.Or{
			sq.Lt{"created_at": cursorAt},
			sq.And{sq.Eq{"created_at": cursorAt}, sq.Lt{"id": beforeID}},
		})
	}
	rows, err := qQuery(ctx, s.db, q.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountUnread(ctx context.Context, recipientUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := qRow(ctx, s.db, s.sb.Select("COUNT(*)").From("notifications").
		Where(sq.Eq{"recipient_id": recipientUserID, "read_at": nil}), &n)
	return n, err
}

// MarkNotificationRead sets read_at once; later calls keep the first time.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientUserID, notificationID string, readAt time.Time) (notify.Notification, error) {
	if err := ctx.Err(); err != nil {
		return notify.Notification{}, err
	}
	where := sq.Eq{"id": notificationID, "recipient_id": recipientUserID}
	_, err := qExec(ctx, s.db, s.sb.Update("notifications").
		Set("read_at", storage.ToMillis(readAt)).
		Where(where).
		Where(sq.Eq{"read_at": nil}))
	if err != nil {
		return notify.Notification{}, fmt.Errorf("mark notification read: %w", err)
	}
	query, args, err := s.sb.Select(notificationColumns...).From("notifications").Where(where).ToSql()
	if err != nil {
		return notify.Notification{}, err
	}
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Notification{}, storage.ErrNotFound
	}
	return n, err
}

var (
	_ notify.Sink       = (*Store)(nil)
	_ notify.InboxStore = (*Store)(nil)
)
