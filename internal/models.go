package internal

import (
	"time"

	"pickup-games/internal/participation"
	"pickup-games/internal/storage/sqlstore"
)

type UserResponse struct {
	sqlstore.User
	IsAdmin bool   `json:"is_admin"`
	Badge   string `json:"badge"`
}

type Game struct {
	ID             string                      `json:"id"`
	OrganiserID    string                      `json:"organiser_id"`
	OrganiserName  string                      `json:"organiser_name"`
	Venue          string                      `json:"venue"`
	DateTime       time.Time                   `json:"date_time"`
	PlayersNeeded  int                         `json:"players_needed"`
	Format         string                      `json:"format"`
	Subs           *float64                    `json:"subs,omitempty"`
	Notes          string                      `json:"notes,omitempty"`
	Status         participation.SessionStatus `json:"status"`
	ConfirmedCount int                         `json:"confirmed_count"`
	ReserveCount   int                         `json:"reserve_count"`
	RequestedCount int                         `json:"requested_count"`
	OpenSlots      int                         `json:"open_slots"`
	CreatedAt      time.Time                   `json:"created_at"`
}

type Participant struct {
	sqlstore.Participant
	Badge string `json:"badge"`
}

type MyParticipation struct {
	Game   Game                 `json:"game"`
	Status participation.Status `json:"status"`
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Area     string `json:"area" binding:"max=80"`
	Bio      string `json:"bio" binding:"max=120"`
	Phone    string `json:"phone" binding:"max=32"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createGameRequest struct {
	Venue         string    `json:"venue" binding:"required,max=200"`
	DateTime      time.Time `json:"date_time" binding:"required"`
	PlayersNeeded int       `json:"players_needed" binding:"required,gt=0,lte=50"`
	Format        string    `json:"format" binding:"required,gameformat"`
	Subs          *float64  `json:"subs" binding:"omitempty,gte=0"`
	Notes         string    `json:"notes" binding:"max=1000"`
}

type joinRequest struct {
	Mode participation.Mode `json:"mode" binding:"required,oneof=REQUESTED RESERVE"`
}

type removeRequest struct {
	ParticipantIDs []string `json:"participant_ids" binding:"required,min=1,dive,required"`
}

type attendanceRequest struct {
	Attended *bool `json:"attended" binding:"required"`
}

func gameFromView(v sqlstore.SessionView) Game {
	return Game{
		ID:             v.ID,
		OrganiserID:    v.OrganiserID,
		OrganiserName:  v.OrganiserName,
		Venue:          v.Venue,
		DateTime:       v.StartsAt,
		PlayersNeeded:  v.SlotsRequired,
		Format:         v.Format,
		Subs:           v.Price,
		Notes:          v.Notes,
		Status:         v.Capacity.Status,
		ConfirmedCount: v.Capacity.ConfirmedCount,
		ReserveCount:   v.Capacity.ReserveCount,
		RequestedCount: v.Capacity.RequestedCount,
		OpenSlots:      v.Capacity.OpenSlots,
		CreatedAt:      v.CreatedAt,
	}
}

func gamesFromViews(views []sqlstore.SessionView) []Game {
	out := make([]Game, 0, len(views))
	for _, v := range views {
		out = append(out, gameFromView(v))
	}
	return out
}

type ParticipationResponse struct {
	ID         string                   `json:"id"`
	GameID     string                   `json:"game_id"`
	UserID     string                   `json:"user_id"`
	UserName   string                   `json:"user_name"`
	Status     participation.Status     `json:"status"`
	Attendance participation.Attendance `json:"attendance"`
	CreatedAt  time.Time                `json:"created_at"`
}

func participationResponse(p participation.Participation) ParticipationResponse {
	return ParticipationResponse{
		ID:         p.ID,
		GameID:     p.SessionID,
		UserID:     p.UserID,
		UserName:   p.UserName,
		Status:     p.Status,
		Attendance: p.Attendance,
		CreatedAt:  p.CreatedAt,
	}
}
