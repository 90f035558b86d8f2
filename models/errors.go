package models

import (
	"errors"
	"fmt"
)

// Ошибки доменной логики матчей и сетки.
var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidParticipant     = errors.New("participant does not belong to match")
	ErrMissingArgument        = errors.New("required argument is missing")
	ErrInvalidSchedule        = errors.New("scheduled time must be in the future")
)

// TransitionError is returned when a match method is called in a state that
// does not permit it.
type TransitionError struct {
	MatchID string
	Event   MatchEvent
	Current MatchStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s match %s in status %s", ErrInvalidStateTransition, e.Event, e.MatchID, e.Current)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
