package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"pickup-games/internal/participation"
	"pickup-games/internal/storage"
)

// SessionView is a session together with its derived capacity.
type SessionView struct {
	participation.Session
	Capacity participation.Snapshot
}

// SessionFilter narrows ListSessions. A zero From lists every session.
type SessionFilter struct {
	From  time.Time
	Limit int
}

var sessionColumns = []string{
	"s.id", "s.organiser_id", "u.name", "s.venue", "s.starts_at",
	"s.slots_required", "s.format", "s.price", "s.notes", "s.created_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner, extra ...any) (participation.Session, error) {
	var (
		out       participation.Session
		startsAt  int64
		createdAt int64
		price     sql.NullFloat64
	)
	dest := append([]any{
		&out.ID, &out.OrganiserID, &out.OrganiserName, &out.Venue, &startsAt,
		&out.SlotsRequired, &out.Format, &price, &out.Notes, &createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return participation.Session{}, err
	}
	out.StartsAt = storage.FromMillis(startsAt)
	out.CreatedAt = storage.FromMillis(createdAt)
	if price.Valid {
		v := price.Float64
		out.Price = &v
	}
	return out, nil
}

func (s *Store) sessionSelect() sq.SelectBuilder {
	return s.sb.Select(sessionColumns...).
		From("sessions s").
		Join("users u ON u.id = s.organiser_id")
}

func (s *Store) sessionViewSelect() sq.SelectBuilder {
	cols := append(append([]string{}, sessionColumns...),
		"COALESCE(SUM(CASE WHEN p.status = 'CONFIRMED' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN p.status = 'RESERVE' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN p.status = 'REQUESTED' THEN 1 ELSE 0 END), 0)",
	)
	return s.sb.Select(cols...).
		From("sessions s").
		Join("users u ON u.id = s.organiser_id").
		LeftJoin("participations p ON p.session_id = s.id").
		GroupBy("s.id", "u.name")
}

func scanSessionView(row scanner) (SessionView, error) {
	var confirmed, reserve, requested int
	session, err := scanSession(row, &confirmed, &reserve, &requested)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{
		Session:  session,
		Capacity: participation.FromCounts(session, confirmed, reserve, requested),
	}, nil
}

func (s *Store) CreateSession(ctx context.Context, session participation.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var price any
	if session.Price != nil {
		price = *session.Price
	}
	_, err := qExec(ctx, s.db, s.sb.Insert("sessions").
		Columns("id", "organiser_id", "venue", "starts_at", "slots_required", "format", "price", "notes", "created_at").
		Values(session.ID, session.OrganiserID, session.Venue, storage.ToMillis(session.StartsAt),
			session.SlotsRequired, session.Format, price, session.Notes, storage.ToMillis(session.CreatedAt)))
	return s.conflictOr("insert session", err)
}

func (s *Store) GetSession(ctx context.Context, id string) (SessionView, error) {
	if err := ctx.Err(); err != nil {
		return SessionView{}, err
	}
	query, args, err := s.sessionViewSelect().Where(sq.Eq{"s.id": id}).ToSql()
	if err != nil {
		return SessionView{}, err
	}
	view, err := scanSessionView(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return SessionView{}, storage.ErrNotFound
	}
	return view, err
}

// ListSessions returns sessions ordered by kick-off time.
func (s *Store) ListSessions(ctx context.Context, filter SessionFilter) ([]SessionView, error) {
	q := s.sessionViewSelect()
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"s.starts_at": storage.ToMillis(filter.From)})
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.listSessionViews(ctx, q.OrderBy("s.starts_at ASC", "s.id ASC").Limit(uint64(limit)))
}

// ListUserSessions returns the sessions a user organises or participates in.
func (s *Store) ListUserSessions(ctx context.Context, userID string) ([]SessionView, error) {
	q := s.sessionViewSelect().
		Where(sq.Or{
			sq.Eq{"s.organiser_id": userID},
			sq.Expr("s.id IN (SELECT session_id FROM participations WHERE user_id = ?)", userID),
		}).
		OrderBy("s.starts_at ASC", "s.id ASC")
	return s.listSessionViews(ctx, q)
}

func (s *Store) listSessionViews(ctx context.Context, q sq.SelectBuilder) ([]SessionView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := qQuery(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SessionView{}
	for rows.Next() {
		view, err := scanSessionView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, rows.Err()
}
