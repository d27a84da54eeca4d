package participation

import (
	"context"
	"time"

	"pickup-games/internal/notify"
)

// unit is the working state of one locked session transaction. Every store
// mutation is mirrored on parts so capacity can be recomputed without a
// second read.
type unit struct {
	tx      SessionTx
	session Session
	parts   []Participation
	now     time.Time
	intents []notify.Intent
	events  []Event
}

func (u *unit) snapshot() Snapshot {
	return Compute(u.session, u.parts)
}

func (u *unit) requireOpen() error {
	if u.session.Started(u.now) {
		return sessionClosed()
	}
	return nil
}

func (u *unit) notify(recipient string, kind notify.Kind, playerName string) {
	u.intents = append(u.intents, notify.Intent{
		RecipientUserID: recipient,
		Kind:            kind,
		SessionID:       u.session.ID,
		PlayerName:      playerName,
	})
}

func (u *unit) event(kind EventKind, p Participation) {
	u.events = append(u.events, Event{
		Kind:            kind,
		SessionID:       p.SessionID,
		UserID:          p.UserID,
		ParticipationID: p.ID,
		At:              u.now,
	})
}

func (u *unit) confirm(ctx context.Context, i int) error {
	p := u.parts[i]
	if err := u.tx.SetStatus(ctx, p.ID, StatusConfirmed); err != nil {
		return err
	}
	p.Status = StatusConfirmed
	u.parts[i] = p
	u.event(EventConfirmed, p)
	return nil
}

func (u *unit) remove(ctx context.Context, i int) error {
	if err := u.tx.DeleteParticipation(ctx, u.parts[i].ID); err != nil {
		return err
	}
	u.parts = without(u.parts, i)
	return nil
}

// promote fills up to freed slots from the reserve list, one candidate per
// slot, stopping early when the session is full or the reserve is empty.
func (u *unit) promote(ctx context.Context, freed int) error {
	for n := 0; n < freed; n++ {
		if u.snapshot().OpenSlots < 1 {
			return nil
		}
		i, ok := nextReserve(u.parts)
		if !ok {
			return nil
		}
		if err := u.confirm(ctx, i); err != nil {
			return err
		}
		u.notify(u.parts[i].UserID, notify.KindPromoted, playerName(u.parts[i]))
	}
	return nil
}

// nextReserve returns the index of the earliest-created reserve, ties broken
// by the lowest id.
func nextReserve(parts []Participation) (int, bool) {
	best := -1
	for i, p := range parts {
		if p.Status != StatusReserve {
			continue
		}
		if best < 0 || before(p, parts[best]) {
			best = i
		}
	}
	return best, best >= 0
}

func before(a, b Participation) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
