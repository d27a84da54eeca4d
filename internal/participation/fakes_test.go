package participation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"pickup-games/internal/notify"
	"pickup-games/internal/storage"
)

var baseTime = time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)

// fakeStore commits a unit's changes only when fn succeeds. Its mutex plays
// the role of the session row lock.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	parts    map[string]Participation
}

func newFakeStore(sessions ...Session) *fakeStore {
	s := &fakeStore{sessions: map[string]Session{}, parts: map[string]Participation{}}
	for _, session := range sessions {
		s.sessions[session.ID] = session
	}
	return s
}

func (s *fakeStore) InSession(ctx context.Context, sessionID string, fn func(SessionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	tx := &fakeTx{session: session, parts: map[string]Participation{}}
	for id, p := range s.parts {
		if p.SessionID == sessionID {
			tx.parts[id] = p
		}
	}
	if err := fn(tx); err != nil {
		return err
	}
	for id, p := range s.parts {
		if p.SessionID == sessionID {
			delete(s.parts, id)
		}
	}
	if tx.deleted {
		delete(s.sessions, sessionID)
		return nil
	}
	for id, p := range tx.parts {
		s.parts[id] = p
	}
	return nil
}

func (s *fakeStore) SessionIDForParticipation(_ context.Context, participationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[participationID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return p.SessionID, nil
}

func (s *fakeStore) LoadSession(_ context.Context, sessionID string) (Session, []Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, nil, storage.ErrNotFound
	}
	var parts []Participation
	for _, p := range s.parts {
		if p.SessionID == sessionID {
			parts = append(parts, p)
		}
	}
	sortParts(parts)
	return session, parts, nil
}

func (s *fakeStore) participation(t *testing.T, id string) (Participation, bool) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[id]
	return p, ok
}

type fakeTx struct {
	session Session
	parts   map[string]Participation
	deleted bool
}

func (tx *fakeTx) Session(context.Context) (Session, error) { return tx.session, nil }

func (tx *fakeTx) Participations(context.Context) ([]Participation, error) {
	parts := make([]Participation, 0, len(tx.parts))
	for _, p := range tx.parts {
		parts = append(parts, p)
	}
	sortParts(parts)
	return parts, nil
}

func (tx *fakeTx) InsertParticipation(_ context.Context, p Participation) error {
	for _, existing := range tx.parts {
		if existing.UserID == p.UserID {
			return storage.ErrConflict
		}
	}
	tx.parts[p.ID] = p
	return nil
}

func (tx *fakeTx) SetStatus(_ context.Context, id string, status Status) error {
	p, ok := tx.parts[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = status
	tx.parts[id] = p
	return nil
}

func (tx *fakeTx) SetAttendance(_ context.Context, id string, attendance Attendance) error {
	p, ok := tx.parts[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Attendance = attendance
	tx.parts[id] = p
	return nil
}

func (tx *fakeTx) DeleteParticipation(_ context.Context, id string) error {
	if _, ok := tx.parts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(tx.parts, id)
	return nil
}

func (tx *fakeTx) DeleteSession(context.Context) error {
	tx.deleted = true
	tx.parts = map[string]Participation{}
	return nil
}

func sortParts(parts []Participation) {
	sort.Slice(parts, func(i, j int) bool { return before(parts[i], parts[j]) })
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []notify.Intent
	onSend  func(notify.Intent)
}

func (n *recordingNotifier) Enqueue(intent notify.Intent) {
	if n.onSend != nil {
		n.onSend(intent)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
}

func (n *recordingNotifier) sent() []notify.Intent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Intent(nil), n.intents...)
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []Event
	err    error
	// hang makes Record wait for its context to end.
	hang bool
}

func (r *recordingEvents) Record(ctx context.Context, ev Event) error {
	r.mu.Lock()
	hang := r.hang
	r.events = append(r.events, ev)
	err := r.err
	r.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (r *recordingEvents) recorded() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// steppingClock advances one second on every read so creation order is
// observable without relying on id ordering.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *steppingClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequentialIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("p-%03d", g.next), nil
}

type fixture struct {
	engine    *Engine
	store     *fakeStore
	notifier  *recordingNotifier
	events    *recordingEvents
	clock     *steppingClock
	session   Session
	organiser Actor
}

func newFixture(t *testing.T, slots int, policy ReservePolicy) *fixture {
	t.Helper()
	session := Session{
		ID:            "s-1",
		OrganiserID:   "org",
		OrganiserName: "Olu",
		Venue:         "Hackney Marshes",
		StartsAt:      baseTime.Add(48 * time.Hour),
		SlotsRequired: slots,
		Format:        "5s",
		CreatedAt:     baseTime,
	}
	f := &fixture{
		store:     newFakeStore(session),
		notifier:  &recordingNotifier{},
		events:    &recordingEvents{},
		clock:     &steppingClock{now: baseTime},
		session:   session,
		organiser: Actor{UserID: "org", Name: "Olu"},
	}
	ids := &sequentialIDs{}
	f.engine = NewEngine(f.store, Options{
		Notifier:      f.notifier,
		Events:        f.events,
		Clock:         f.clock.Now,
		NewID:         ids.NewID,
		ReservePolicy: policy,
		Logger:        discardLogger(),
	})
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chanLocker is a single-slot lock shared by every key.
type chanLocker struct {
	slot chan struct{}
}

func newChanLocker() *chanLocker {
	return &chanLocker{slot: make(chan struct{}, 1)}
}

func (l *chanLocker) Lock(ctx context.Context, _ string) (func(), error) {
	select {
	case l.slot <- struct{}{}:
		return func() { <-l.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func player(id string) Actor {
	return Actor{UserID: id, Name: "Player " + id}
}

func (f *fixture) request(t *testing.T, actor Actor, mode Mode) Participation {
	t.Helper()
	p, _, err := f.engine.RequestOrReserve(context.Background(), actor, f.session.ID, mode)
	if err != nil {
		t.Fatalf("RequestOrReserve(%s, %s): %v", actor.UserID, mode, err)
	}
	return p
}

func (f *fixture) approve(t *testing.T, p Participation) Snapshot {
	t.Helper()
	snap, err := f.engine.Decide(context.Background(), f.organiser, p.ID, DecisionApprove)
	if err != nil {
		t.Fatalf("approve %s: %v", p.ID, err)
	}
	return snap
}

func (f *fixture) confirmed(t *testing.T, actor Actor) Participation {
	t.Helper()
	p := f.request(t, actor, ModeRequest)
	f.approve(t, p)
	p.Status = StatusConfirmed
	return p
}

func assertKind(t *testing.T, err error, want *Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want kind %s", err, want.Kind)
	}
}

func kinds(intents []notify.Intent) []notify.Kind {
	out := make([]notify.Kind, 0, len(intents))
	for _, intent := range intents {
		out = append(out, intent.Kind)
	}
	return out
}
