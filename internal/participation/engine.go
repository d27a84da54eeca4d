package participation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pickup-games/internal/notify"
	"pickup-games/internal/storage"
)

// Options wires the engine's collaborators. Nil fields fall back to no-op or
// process-local defaults.
type Options struct {
	Locker        Locker
	Notifier      Notifier
	Events        EventSink
	Clock         func() time.Time
	NewID         func() (string, error)
	ReservePolicy ReservePolicy
	Logger        *slog.Logger
	Tracer        trace.Tracer
	// EventTimeout bounds recording the lifecycle events of one action.
	EventTimeout time.Duration
}

const defaultEventTimeout = 5 * time.Second

// Engine applies participation transitions one session at a time.
type Engine struct {
	store    Store
	locker   Locker
	notifier Notifier
	events   EventSink
	clock    func() time.Time
	newID    func() (string, error)
	policy   ReservePolicy
	logger   *slog.Logger
	tracer   trace.Tracer
	eventTTL time.Duration
}

func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{
		store:    store,
		locker:   opts.Locker,
		notifier: opts.Notifier,
		events:   opts.Events,
		clock:    opts.Clock,
		newID:    opts.NewID,
		policy:   opts.ReservePolicy,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
		eventTTL: opts.EventTimeout,
	}
	if e.locker == nil {
		e.locker = noopLocker{}
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.events == nil {
		e.events = noopEvents{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.newID == nil {
		e.newID = newUUID
	}
	if e.policy == "" {
		e.policy = ReserveWhenFull
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.eventTTL <= 0 {
		e.eventTTL = defaultEventTimeout
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("pickup-games/participation")
	}
	return e
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// RequestOrReserve creates the actor's participation in a session, either as
// a pending request or on the reserve list. A player whose request is still
// pending may move to the reserve list.
func (e *Engine) RequestOrReserve(ctx context.Context, actor Actor, sessionID string, mode Mode) (p Participation, snap Snapshot, err error) {
	ctx, span := e.start(ctx, "RequestOrReserve", actor, sessionID)
	defer func() { finish(span, err) }()

	if !mode.Valid() {
		return Participation{}, Snapshot{}, invalidState(fmt.Sprintf("unknown participation mode %q", mode))
	}
	u, err := e.inSession(ctx, sessionID, func(ctx context.Context, u *unit) error {
		if err := u.requireOpen(); err != nil {
			return err
		}
		if actor.UserID == u.session.OrganiserID {
			return notAuthorized("organisers cannot join their own session")
		}
		// A pending request may be traded for a reserve place; the reserve
		// entry is created fresh so its queue position starts now.
		if i, ok := findByUser(u.parts, actor.UserID); ok {
			if mode != ModeReserve || u.parts[i].Status != StatusRequested {
				return invalidState("already has a participation in this session")
			}
			if err := u.remove(ctx, i); err != nil {
				return err
			}
		}
		current := u.snapshot()
		status := StatusRequested
		kind := notify.KindNewRequest
		switch mode {
		case ModeRequest:
			if current.Status != SessionOpen {
				return invalidState("session is full, join the reserve list instead")
			}
		case ModeReserve:
			if e.policy == ReserveWhenFull && current.Status == SessionOpen {
				return invalidState("session still has open slots, request a spot instead")
			}
			status = StatusReserve
			kind = notify.KindNewReserve
		}

		id, err := e.newID()
		if err != nil {
			return fmt.Errorf("generate participation id: %w", err)
		}
		p = Participation{
			ID:         id,
			SessionID:  u.session.ID,
			UserID:     actor.UserID,
			UserName:   actor.Name,
			Status:     status,
			Attendance: AttendanceUnrecorded,
			CreatedAt:  u.now,
		}
		if err := u.tx.InsertParticipation(ctx, p); err != nil {
			return err
		}
		u.parts = append(u.parts, p)
		u.notify(u.session.OrganiserID, kind, playerName(p))
		return nil
	})
	if err != nil {
		return Participation{}, Snapshot{}, err
	}
	return p, u.snapshot(), nil
}

// Decide approves or declines a pending or reserve participation.
func (e *Engine) Decide(ctx context.Context, actor Actor, participationID string, decision Decision) (snap Snapshot, err error) {
	ctx, span := e.start(ctx, "Decide", actor, "")
	defer func() { finish(span, err) }()

	if !decision.Valid() {
		return Snapshot{}, invalidState(fmt.Sprintf("unknown decision %q", decision))
	}
	sessionID, err := e.sessionOf(ctx, participationID)
	if err != nil {
		return Snapshot{}, err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	u, err := e.inSession(ctx, sessionID, func(ctx context.Context, u *unit) error {
		if err := u.requireOpen(); err != nil {
			return err
		}
		i, ok := findByID(u.parts, participationID)
		if !ok {
			return notFound("participation not found")
		}
		if !CanManage(actor, u.session) {
			return notAuthorized("only the organiser can decide on participants")
		}
		p := u.parts[i]
		if decision == DecisionDecline {
			if p.Status != StatusRequested {
				return invalidState("only pending requests can be declined")
			}
			return u.remove(ctx, i)
		}

		if p.Status == StatusConfirmed {
			return invalidState("participant is already confirmed")
		}
		if u.snapshot().OpenSlots <= 0 {
			return invalidState("session is full")
		}
		if err := u.confirm(ctx, i); err != nil {
			return err
		}
		if p.Status == StatusReserve {
			u.notify(p.UserID, notify.KindPromoted, playerName(p))
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return u.snapshot(), nil
}

// Withdraw deletes the actor's own confirmed or reserve participation and
// promotes a reserve into the freed slot.
func (e *Engine) Withdraw(ctx context.Context, actor Actor, sessionID string) (snap Snapshot, err error) {
	ctx, span := e.start(ctx, "Withdraw", actor, sessionID)
	defer func() { finish(span, err) }()

	u, err := e.inSession(ctx, sessionID, func(ctx context.Context, u *unit) error {
		if err := u.requireOpen(); err != nil {
			return err
		}
		i, ok := findByUser(u.parts, actor.UserID)
		if !ok {
			return notFound("no participation in this session")
		}
		p := u.parts[i]
		if p.Status == StatusRequested {
			return invalidState("pending requests cannot be withdrawn")
		}
		if err := u.remove(ctx, i); err != nil {
			return err
		}
		u.notify(u.session.OrganiserID, notify.KindPlayerWithdrew, playerName(p))
		if p.Status == StatusConfirmed {
			return u.promote(ctx, 1)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return u.snapshot(), nil
}

// Remove deletes a confirmed or reserve participant on the organiser's behalf.
func (e *Engine) Remove(ctx context.Context, actor Actor, participationID string) (snap Snapshot, err error) {
	ctx, span := e.start(ctx, "Remove", actor, "")
	defer func() { finish(span, err) }()

	sessionID, err := e.sessionOf(ctx, participationID)
	if err != nil {
		return Snapshot{}, err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))
	return e.removeMany(ctx, actor, sessionID, []string{participationID})
}

// RemoveMany deletes several participants of one session at once. Either all
// of them are removed or none are; each freed confirmed slot gets its own
// promotion attempt.
func (e *Engine) RemoveMany(ctx context.Context, actor Actor, sessionID string, participationIDs []string) (snap Snapshot, err error) {
	ctx, span := e.start(ctx, "RemoveMany", actor, sessionID)
	defer func() { finish(span, err) }()
	span.SetAttributes(attribute.Int("participants.count", len(participationIDs)))
	return e.removeMany(ctx, actor, sessionID, participationIDs)
}

func (e *Engine) removeMany(ctx context.Context, actor Actor, sessionID string, participationIDs []string) (Snapshot, error) {
	ids := dedupe(participationIDs)
	if len(ids) == 0 {
		return Snapshot{}, invalidState("no participants selected")
	}
	u, err := e.inSession(ctx, sessionID, func(ctx context.Context, u *unit) error {
		if err := u.requireOpen(); err != nil {
			return err
		}
		if !CanManage(actor, u.session) {
			return notAuthorized("only the organiser can remove participants")
		}
		for _, id := range ids {
			i, ok := findByID(u.parts, id)
			if !ok {
				return notFound(fmt.Sprintf("participation %s not found in this session", id))
			}
			if u.parts[i].Status == StatusRequested {
				return invalidState("pending requests must be declined, not removed")
			}
		}
		freed := 0
		for _, id := range ids {
			i, _ := findByID(u.parts, id)
			if u.parts[i].Status == StatusConfirmed {
				freed++
			}
			if err := u.remove(ctx, i); err != nil {
				return err
			}
		}
		return u.promote(ctx, freed)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return u.snapshot(), nil
}

// RecordAttendance marks a confirmed participant as attended or no-show once
// the session has kicked off. Attendance can be recorded once.
func (e *Engine) RecordAttendance(ctx context.Context, actor Actor, participationID string, attended bool) (p Participation, err error) {
	ctx, span := e.start(ctx, "RecordAttendance", actor, "")
	defer func() { finish(span, err) }()

	sessionID, err := e.sessionOf(ctx, participationID)
	if err != nil {
		return Participation{}, err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	_, err = e.inSession(ctx, sessionID, func(ctx context.Context, u *unit) error {
		i, ok := findByID(u.parts, participationID)
		if !ok {
			return notFound("participation not found")
		}
		if !CanManage(actor, u.session) {
			return notAuthorized("only the organiser can record attendance")
		}
		if !u.session.Started(u.now) {
			return invalidState("attendance can only be recorded after kick-off")
		}
		p = u.parts[i]
		if p.Status != StatusConfirmed {
			return invalidState("only confirmed participants have attendance")
		}
		if p.Attendance != AttendanceUnrecorded {
			return invalidState("attendance already recorded")
		}
		attendance, kind := AttendanceNoShow, EventNoShow
		if attended {
			attendance, kind = AttendanceAttended, EventAttended
		}
		if err := u.tx.SetAttendance(ctx, p.ID, attendance); err != nil {
			return err
		}
		p.Attendance = attendance
		u.parts[i] = p
		u.event(kind, p)
		return nil
	})
	if err != nil {
		return Participation{}, err
	}
	return p, nil
}

// DeleteSession removes a session and every participation in it.
func (e *Engine) DeleteSession(ctx context.Context, actor Actor, sessionID string) (err error) {
	ctx, span := e.start(ctx, "DeleteSession", actor, sessionID)
	defer func() { finish(span, err) }()

	_, err = e.inSession(ctx, sessionID, func(ctx context.Context, u *unit) error {
		if !CanManage(actor, u.session) {
			return notAuthorized("only the organiser can delete this session")
		}
		return u.tx.DeleteSession(ctx)
	})
	return err
}

// Snapshot returns the current capacity of a session without locking it.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	session, parts, err := e.store.LoadSession(ctx, sessionID)
	if err != nil {
		return Snapshot{}, translate(err)
	}
	return Compute(session, parts), nil
}

// inSession runs fn as one atomic unit on the session: the session lock is
// held from before the read until the unit's notifications and events are
// handed off.
func (e *Engine) inSession(ctx context.Context, sessionID string, fn func(context.Context, *unit) error) (*unit, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, notFound("session not found")
	}
	unlock, err := e.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	defer unlock()

	var u *unit
	err = e.store.InSession(ctx, sessionID, func(tx SessionTx) error {
		session, err := tx.Session(ctx)
		if err != nil {
			return err
		}
		parts, err := tx.Participations(ctx)
		if err != nil {
			return err
		}
		u = &unit{tx: tx, session: session, parts: parts, now: e.clock()}
		return fn(ctx, u)
	})
	if err != nil {
		return nil, translate(err)
	}
	e.dispatch(ctx, u)
	return u, nil
}

func (e *Engine) dispatch(ctx context.Context, u *unit) {
	for _, intent := range u.intents {
		intent.Venue = u.session.Venue
		intent.StartsAt = u.session.StartsAt
		e.notifier.Enqueue(intent)
	}
	if len(u.events) == 0 {
		return
	}
	// The session lock is still held here, so the writes get their own
	// deadline independent of the caller's cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.eventTTL)
	defer cancel()
	for _, ev := range u.events {
		if err := e.events.Record(ctx, ev); err != nil {
			e.logger.Warn("record participation event",
				"kind", ev.Kind, "session_id", ev.SessionID, "user_id", ev.UserID, "err", err)
		}
	}
}

func (e *Engine) sessionOf(ctx context.Context, participationID string) (string, error) {
	if strings.TrimSpace(participationID) == "" {
		return "", notFound("participation not found")
	}
	sessionID, err := e.store.SessionIDForParticipation(ctx, participationID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", notFound("participation not found")
	}
	if err != nil {
		return "", fmt.Errorf("resolve participation %s: %w", participationID, err)
	}
	return sessionID, nil
}

func (e *Engine) start(ctx context.Context, op string, actor Actor, sessionID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("actor.id", actor.UserID)}
	if sessionID != "" {
		attrs = append(attrs, attribute.String("session.id", sessionID))
	}
	return e.tracer.Start(ctx, "participation."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func translate(err error) error {
	var domainErr *Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return notFound("session not found")
	case errors.Is(err, storage.ErrConflict):
		return invalidState("already has a participation in this session")
	}
	return fmt.Errorf("participation store: %w", err)
}

func playerName(p Participation) string {
	if name := strings.TrimSpace(p.UserName); name != "" {
		return name
	}
	return "A player"
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
