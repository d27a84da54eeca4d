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

// Participant is a participation joined with the player's public profile.
type Participant struct {
	ID          string                   `json:"id"`
	SessionID   string                   `json:"game_id"`
	UserID      string                   `json:"user_id"`
	UserName    string                   `json:"user_name"`
	UserArea    string                   `json:"user_area,omitempty"`
	UserPhone   string                   `json:"user_phone,omitempty"`
	GamesPlayed int                      `json:"user_games_played"`
	Status      participation.Status     `json:"status"`
	Attendance  participation.Attendance `json:"attendance"`
	CreatedAt   time.Time                `json:"created_at"`
}

var participationColumns = []string{
	"p.id", "p.session_id", "p.user_id", "u.name", "p.status", "p.attendance", "p.created_at",
}

func scanParticipation(row scanner) (participation.Participation, error) {
	var (
		p         participation.Participation
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.UserName, &p.Status, &p.Attendance, &createdAt); err != nil {
		return participation.Participation{}, err
	}
	p.CreatedAt = storage.FromMillis(createdAt)
	return p, nil
}

func (s *Store) participationsOf(ctx context.Context, r runner, sessionID string) ([]participation.Participation, error) {
	rows, err := qQuery(ctx, r, s.sb.Select(participationColumns...).
		From("participations p").
		Join("users u ON u.id = p.user_id").
		Where(sq.Eq{"p.session_id": sessionID}).
		OrderBy("p.created_at ASC", "p.id ASC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []participation.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InSession opens a transaction, locks the session row and hands fn a
// SessionTx bound to it. fn's error rolls everything back.
func (s *Store) InSession(ctx context.Context, sessionID string, fn func(participation.SessionTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		q := s.sessionSelect().Where(sq.Eq{"s.id": sessionID})
		if s.d.lockSuffix != "" {
			q = q.Suffix(s.d.lockSuffix)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return err
		}
		session, err := scanSession(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fn(&sessionTx{s: s, tx: tx, session: session})
	})
}

func (s *Store) SessionIDForParticipation(ctx context.Context, participationID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sessionID string
	err := qRow(ctx, s.db, s.sb.Select("session_id").From("participations").Where(sq.Eq{"id": participationID}), &sessionID)
	return sessionID, err
}

// LoadSession reads a session and its participations without locking.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (participation.Session, []participation.Participation, error) {
	if err := ctx.Err(); err != nil {
		return participation.Session{}, nil, err
	}
	query, args, err := s.sessionSelect().Where(sq.Eq{"s.id": sessionID}).ToSql()
	if err != nil {
		return participation.Session{}, nil, err
	}
	session, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return participation.Session{}, nil, storage.ErrNotFound
	}
	if err != nil {
		return participation.Session{}, nil, err
	}
	parts, err := s.participationsOf(ctx, s.db, sessionID)
	if err != nil {
		return participation.Session{}, nil, err
	}
	return session, parts, nil
}

// ListParticipants returns a session's participants with their profile and
// games played, in join order.
func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := qQuery(ctx, s.db, s.sb.Select(
		"p.id", "p.session_id", "p.user_id", "u.name", "u.area", "u.phone", "u.games_played",
		"p.status", "p.attendance", "p.created_at").
		From("participations p").
		Join("users u ON u.id = p.user_id").
		Where(sq.Eq{"p.session_id": sessionID}).
		OrderBy("p.created_at ASC", "p.id ASC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Participant{}
	for rows.Next() {
		var (
			p         Participant
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.UserName, &p.UserArea, &p.UserPhone,
			&p.GamesPlayed, &p.Status, &p.Attendance, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = storage.FromMillis(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ParticipationStatuses maps session id to the user's status in it.
func (s *Store) ParticipationStatuses(ctx context.Context, userID string) (map[string]participation.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := qQuery(ctx, s.db, s.sb.Select("session_id", "status").
		From("participations").
		Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]participation.Status{}
	for rows.Next() {
		var (
			sessionID string
			status    participation.Status
		)
		if err := rows.Scan(&sessionID, &status); err != nil {
			return nil, err
		}
		out[sessionID] = status
	}
	return out, rows.Err()
}

type sessionTx struct {
	s       *Store
	tx      *sql.Tx
	session participation.Session
}

func (t *sessionTx) Session(context.Context) (participation.Session, error) {
	return t.session, nil
}

func (t *sessionTx) Participations(ctx context.Context) ([]participation.Participation, error) {
	return t.s.participationsOf(ctx, t.tx, t.session.ID)
}

func (t *sessionTx) InsertParticipation(ctx context.Context, p participation.Participation) error {
	_, err := qExec(ctx, t.tx, t.s.sb.Insert("participations").
		Columns("id", "session_id", "user_id", "status", "attendance", "created_at").
		Values(p.ID, t.session.ID, p.UserID, string(p.Status), string(p.Attendance), storage.ToMillis(p.CreatedAt)))
	return t.s.conflictOr("insert participation", err)
}

func (t *sessionTx) SetStatus(ctx context.Context, participationID string, status participation.Status) error {
	return qExecOne(ctx, t.tx, t.s.sb.Update("participations").
		Set("status", string(status)).
		Where(sq.Eq{"id": participationID, "session_id": t.session.ID}))
}

func (t *sessionTx) SetAttendance(ctx context.Context, participationID string, attendance participation.Attendance) error {
	return qExecOne(ctx, t.tx, t.s.sb.Update("participations").
		Set("attendance", string(attendance)).
		Where(sq.Eq{"id": participationID, "session_id": t.session.ID}))
}

func (t *sessionTx) DeleteParticipation(ctx context.Context, participationID string) error {
	return qExecOne(ctx, t.tx, t.s.sb.Delete("participations").
		Where(sq.Eq{"id": participationID, "session_id": t.session.ID}))
}

func (t *sessionTx) DeleteSession(ctx context.Context) error {
	if _, err := qExec(ctx, t.tx, t.s.sb.Delete("participations").Where(sq.Eq{"session_id": t.session.ID})); err != nil {
		return err
	}
	return qExecOne(ctx, t.tx, t.s.sb.Delete("sessions").Where(sq.Eq{"id": t.session.ID}))
}

var _ participation.Store = (*Store)(nil)
