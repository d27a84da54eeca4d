// Package notify renders, stores and pushes inbox notifications produced by
// participation transitions.
package notify

import "time"

// Kind enumerates the notification types a participation transition may emit.
type Kind string

const (
	// KindNewRequest tells the organiser a player asked for a slot.
	KindNewRequest Kind = "NEW_REQUEST"
	// KindNewReserve tells the organiser a player joined the reserve list.
	KindNewReserve Kind = "NEW_RESERVE"
	// KindPlayerWithdrew tells the organiser a confirmed or reserve player left.
	KindPlayerWithdrew Kind = "PLAYER_WITHDREW"
	// KindPromoted tells a player they now hold a confirmed slot.
	KindPromoted Kind = "PROMOTED"
)

func (k Kind) Valid() bool {
	switch k {
	case KindNewRequest, KindNewReserve, KindPlayerWithdrew, KindPromoted:
		return true
	}
	return false
}

// Intent is a notification that has been decided but not yet rendered or stored.
type Intent struct {
	RecipientUserID string
	Kind            Kind
	SessionID       string
	PlayerName      string
	Venue           string
	StartsAt        time.Time
}

// Notification is one persisted inbox entry.
type Notification struct {
	ID              string     `json:"id"`
	RecipientUserID string     `json:"recipient_user_id"`
	Kind            Kind       `json:"type"`
	Message         string     `json:"message"`
	SessionID       string     `json:"session_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	Read            bool       `json:"read"`
}
