package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"pickup-games/internal/participation"
	"pickup-games/internal/storage"
)

// User is an account with its participation counters.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Area           string    `json:"area,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	GamesPlayed    int       `json:"games_played"`
	GamesConfirmed int       `json:"games_confirmed"`
	NoShows        int       `json:"no_shows"`
	CreatedAt      time.Time `json:"created_at"`
}

var userColumns = []string{
	"id", "name", "email", "area", "bio", "phone",
	"games_played", "games_confirmed", "no_shows", "created_at",
}

func scanUser(row scanner, extra ...any) (User, error) {
	var (
		u         User
		createdAt int64
	)
	dest := append([]any{
		&u.ID, &u.Name, &u.Email, &u.Area, &u.Bio, &u.Phone,
		&u.GamesPlayed, &u.GamesConfirmed, &u.NoShows, &createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return User{}, err
	}
	u.CreatedAt = storage.FromMillis(createdAt)
	return u, nil
}

// CreateUser inserts a new account. A taken email is storage.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u User, passHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := qExec(ctx, s.db, s.sb.Insert("users").
		Columns("id", "name", "email", "pass_hash", "area", "bio", "phone", "created_at").
		Values(u.ID, u.Name, strings.ToLower(u.Email), passHash, u.Area, u.Bio, u.Phone, storage.ToMillis(u.CreatedAt)))
	return s.conflictOr("insert user", err)
}

// UserByEmail returns the account and its password hash.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, string, error) {
	if err := ctx.Err(); err != nil {
		return User{}, "", err
	}
	query, args, err := s.sb.Select(userColumns...).Column("pass_hash").
		From("users").
		Where(sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))}).
		ToSql()
	if err != nil {
		return User{}, "", err
	}
	var passHash string
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...), &passHash)
	if err != nil {
		return User{}, "", notFoundOr("get user by email", err)
	}
	return u, passHash, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	query, args, err := s.sb.Select(userColumns...).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return User{}, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return User{}, notFoundOr("get user", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := qQuery(ctx, s.db, s.sb.Select(userColumns...).From("users").OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser removes an account together with its sessions, participations
// and notifications.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return qExecOne(ctx, s.db, s.sb.Delete("users").Where(sq.Eq{"id": id}))
}

var counterColumns = map[participation.EventKind]string{
	participation.EventConfirmed: "games_confirmed",
	participation.EventAttended:  "games_played",
	participation.EventNoShow:    "no_shows",
}

// Record projects a participation lifecycle event onto the user counters.
func (s *Store) Record(ctx context.Context, event participation.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	column, ok := counterColumns[event.Kind]
	if !ok {
		return fmt.Errorf("unknown participation event %q", event.Kind)
	}
	return qExecOne(ctx, s.db, s.sb.Update("users").
		Set(column, sq.Expr(column+" + 1")).
		Where(sq.Eq{"id": event.UserID}))
}

var _ participation.EventSink = (*Store)(nil)
