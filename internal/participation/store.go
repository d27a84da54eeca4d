package participation

import (
	"context"
	"time"

	"pickup-games/internal/notify"
)

// Store is the session store boundary the engine depends on.
type Store interface {
	// InSession runs fn inside one transaction holding an exclusive lock on
	// the session row. fn's error rolls the transaction back. A missing session
	// returns storage.ErrNotFound.
	InSession(ctx context.Context, sessionID string, fn func(SessionTx) error) error
	SessionIDForParticipation(ctx context.Context, participationID string) (string, error)
	LoadSession(ctx context.Context, sessionID string) (Session, []Participation, error)
}

// SessionTx is the read-modify-write view of one locked session.
type SessionTx interface {
	Session(ctx context.Context) (Session, error)
	Participations(ctx context.Context) ([]Participation, error)
	InsertParticipation(ctx context.Context, p Participation) error
	SetStatus(ctx context.Context, participationID string, status Status) error
	SetAttendance(ctx context.Context, participationID string, attendance Attendance) error
	DeleteParticipation(ctx context.Context, participationID string) error
	DeleteSession(ctx context.Context) error
}

// Locker provides mutual exclusion keyed by an arbitrary string.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier accepts notification intents without blocking the caller.
type Notifier interface {
	Enqueue(intent notify.Intent)
}

// EventKind names a participation lifecycle event.
type EventKind string

const (
	EventConfirmed EventKind = "participant.confirmed"
	EventAttended  EventKind = "participant.attended"
	EventNoShow    EventKind = "participant.no_show"
)

// Event is a lifecycle signal for read models such as user counters.
type Event struct {
	Kind            EventKind
	SessionID       string
	UserID          string
	ParticipationID string
	At              time.Time
}

// EventSink consumes lifecycle events after the producing transition committed.
type EventSink interface {
	Record(ctx context.Context, event Event) error
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type noopNotifier struct{}

func (noopNotifier) Enqueue(notify.Intent) {}

type noopEvents struct{}

func (noopEvents) Record(context.Context, Event) error { return nil }
