package participation

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an active participation.
// Declined and withdrawn participations are deleted rather than kept as a status.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusReserve   Status = "RESERVE"
)

// Valid reports whether s is one of the known participation statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusReserve:
		return true
	}
	return false
}

// SessionStatus is the derived availability of a session.
type SessionStatus string

const (
	SessionOpen SessionStatus = "OPEN"
	SessionFull SessionStatus = "FULL"
)

// Mode selects how a participant joins a session.
type Mode string

const (
	ModeRequest Mode = "REQUESTED"
	ModeReserve Mode = "RESERVE"
)

func (m Mode) Valid() bool {
	return m == ModeRequest || m == ModeReserve
}

// Decision is the organiser's answer to a pending participation.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionDecline Decision = "DECLINE"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionDecline
}

// Attendance records whether a confirmed participant turned up.
type Attendance string

const (
	AttendanceUnrecorded Attendance = "UNRECORDED"
	AttendanceAttended   Attendance = "ATTENDED"
	AttendanceNoShow     Attendance = "NO_SHOW"
)

func (a Attendance) Valid() bool {
	switch a {
	case AttendanceUnrecorded, AttendanceAttended, AttendanceNoShow:
		return true
	}
	return false
}

// ReservePolicy decides whether the reserve list accepts players while slots remain open.
type ReservePolicy string

const (
	// ReserveWhenFull only accepts reserves once the session is FULL.
	ReserveWhenFull ReservePolicy = "full_only"
	// ReserveAlways lets players join the reserve list at any time.
	ReserveAlways ReservePolicy = "always"
)

// ParseReservePolicy parses a configured policy name; empty selects ReserveWhenFull.
func ParseReservePolicy(raw string) (ReservePolicy, error) {
	switch ReservePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ReserveWhenFull:
		return ReserveWhenFull, nil
	case ReserveAlways:
		return ReserveAlways, nil
	}
	return "", fmt.Errorf("unknown reserve policy %q", raw)
}
