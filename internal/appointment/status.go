package appointment

import (
	"errors"
	"strings"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusNoShow     Status = "no_show"
	StatusCanceled   Status = "canceled"
)

var ErrInvalidStatus = errors.New("unrecognized appointment status")

// ParseStatus normalizes untrusted input into the closed status set. Case
// and separator variation is tolerated ("CheckedIn", "checked-in" and
// "checked_in" all parse); anything else is rejected.
func ParseStatus(s string) (Status, error) {
	key := strings.ToLower(s)
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)

	switch key {
	case "scheduled":
		return StatusScheduled, nil
	case "checkedin":
		return StatusCheckedIn, nil
	case "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "noshow":
		return StatusNoShow, nil
	case "canceled", "cancelled":
		return StatusCanceled, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusInProgress, StatusCompleted, StatusNoShow, StatusCanceled:
		return true
	}
	return false
}

// Blocking reports whether an appointment in this status occupies capacity
// in its hour bucket. Completed, no-show and canceled appointments have
// vacated their slot.
func (s Status) Blocking() bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusInProgress:
		return true
	}
	return false
}

var forwardTransitions = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusCheckedIn:  true,
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusCanceled:   true,
		StatusNoShow:     true,
	},
	StatusCheckedIn: {
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusCanceled:   true,
		StatusNoShow:     true,
	},
	StatusInProgress: {
		StatusCompleted: true,
		StatusCanceled:  true,
	},
	StatusCompleted: {},
	StatusNoShow:    {},
	StatusCanceled:  {},
}

// reversions maps each status to the single state it may be rolled back to.
var reversions = map[Status]Status{
	StatusCheckedIn:  StatusScheduled,
	StatusInProgress: StatusCheckedIn,
	StatusCompleted:  StatusInProgress,
}

// CanTransition reports whether a forward transition from -> to is legal.
// A self-transition is always a legal no-op.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return forwardTransitions[from][to]
}

// CanRevert reports whether an explicit rollback from -> to is legal.
func CanRevert(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return reversions[from] == to
}

// ProgressPercent is a display-only projection of how far through its
// lifecycle an appointment is.
func ProgressPercent(s Status) int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusCheckedIn:
		return 33
	case StatusInProgress:
		return 66
	case StatusCompleted, StatusNoShow, StatusCanceled:
		return 100
	default:
		return 0
	}
}
