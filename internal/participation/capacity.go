package participation

// Snapshot is the derived capacity view of one session.
type Snapshot struct {
	SessionID      string        `json:"session_id"`
	SlotsRequired  int           `json:"slots_required"`
	ConfirmedCount int           `json:"confirmed_count"`
	ReserveCount   int           `json:"reserve_count"`
	RequestedCount int           `json:"requested_count"`
	OpenSlots      int           `json:"open_slots"`
	Status         SessionStatus `json:"status"`
}

// Compute derives the capacity snapshot of session from its participations.
// Participations belonging to other sessions are ignored.
func Compute(session Session, parts []Participation) Snapshot {
	var confirmed, reserve, requested int
	for _, p := range parts {
		if p.SessionID != session.ID {
			continue
		}
		switch p.Status {
		case StatusConfirmed:
			confirmed++
		case StatusReserve:
			reserve++
		case StatusRequested:
			requested++
		}
	}
	return FromCounts(session, confirmed, reserve, requested)
}

// FromCounts derives the snapshot from pre-aggregated status counts.
func FromCounts(session Session, confirmed, reserve, requested int) Snapshot {
	open := session.SlotsRequired - confirmed
	if open < 0 {
		open = 0
	}
	status := SessionOpen
	if open == 0 {
		status = SessionFull
	}
	return Snapshot{
		SessionID:      session.ID,
		SlotsRequired:  session.SlotsRequired,
		ConfirmedCount: confirmed,
		ReserveCount:   reserve,
		RequestedCount: requested,
		OpenSlots:      open,
		Status:         status,
	}
}
