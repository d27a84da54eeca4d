// Package participation implements the session participation state machine:
// capacity derivation, transition rules, reserve promotion and the
// notifications and lifecycle events each transition emits.
package participation

import "time"

// Session is a scheduled group activity with a fixed slot count.
type Session struct {
	ID            string
	OrganiserID   string
	OrganiserName string
	Venue         string
	StartsAt      time.Time
	SlotsRequired int
	Format        string
	Price         *float64
	Notes         string
	CreatedAt     time.Time
}

// Started reports whether the session's scheduled start is at or before now.
func (s Session) Started(now time.Time) bool {
	return !now.Before(s.StartsAt)
}

// Participation is a user's active relationship to a session.
type Participation struct {
	ID         string
	SessionID  string
	UserID     string
	UserName   string
	Status     Status
	Attendance Attendance
	CreatedAt  time.Time
}

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	UserID string
	Name   string
	Admin  bool
}

// CanManage reports whether actor may manage the session's participants.
func CanManage(actor Actor, session Session) bool {
	return actor.Admin || (actor.UserID != "" && actor.UserID == session.OrganiserID)
}

func findByID(parts []Participation, id string) (int, bool) {
	for i, p := range parts {
		if p.ID == id {
			return i, true
		}
	}
	return -1, false
}

func findByUser(parts []Participation, userID string) (int, bool) {
	for i, p := range parts {
		if p.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

func without(parts []Participation, i int) []Participation {
	out := make([]Participation, 0, len(parts)-1)
	out = append(out, parts[:i]...)
	return append(out, parts[i+1:]...)
}
