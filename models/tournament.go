package models

import (
	"fmt"
	"strings"
	"time"
)

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	TournamentStatusDraft            TournamentStatus = "DRAFT"
	TournamentStatusRegistrationOpen TournamentStatus = "REGISTRATION_OPEN"
	TournamentStatusAwaitingDecision TournamentStatus = "AWAITING_DECISION"
	TournamentStatusOngoing          TournamentStatus = "ONGOING"
	TournamentStatusCompleted        TournamentStatus = "COMPLETED"
	TournamentStatusCanceled         TournamentStatus = "CANCELED"
)

var tournamentTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentStatusDraft:            {TournamentStatusRegistrationOpen, TournamentStatusCanceled},
	TournamentStatusRegistrationOpen: {TournamentStatusAwaitingDecision, TournamentStatusCanceled},
	TournamentStatusAwaitingDecision: {TournamentStatusOngoing, TournamentStatusCanceled},
	TournamentStatusOngoing:          {TournamentStatusCompleted, TournamentStatusCanceled},
	TournamentStatusCompleted:        {},
	TournamentStatusCanceled:         {},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	for _, allowed := range tournamentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type BracketType string

const (
	BracketSingleElimination BracketType = "single_elimination"
	BracketDoubleElimination BracketType = "double_elimination"
	BracketRoundRobin        BracketType = "round_robin"
)

// Tournament представляет турнир.
type Tournament struct {
	ID            string           `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	OrganizerID   string           `json:"organizer_id" db:"organizer_id"`
	Status        TournamentStatus `json:"status" db:"status"`
	IsSingleMatch bool             `json:"is_single_match" db:"is_single_match"`
	BracketType   BracketType      `json:"bracket_type" db:"bracket_type"`
	StartDate     time.Time        `json:"start_date" db:"start_date"`
	EntryFee      int64            `json:"entry_fee" db:"entry_fee"`
	CancelReason  *string          `json:"cancel_reason,omitempty" db:"cancel_reason"`
	WinnerID      *string          `json:"winner_id,omitempty" db:"winner_id"`
	WinnerType    *ParticipantType `json:"winner_type,omitempty" db:"winner_type"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Matches []*Match `json:"matches,omitempty" db:"-"`
}

func (t *Tournament) transition(next TournamentStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: tournament %s cannot move from %s to %s", ErrInvalidStateTransition, t.ID, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Start flips an awaiting tournament to ONGOING.
func (t *Tournament) Start(now time.Time) error {
	return t.transition(TournamentStatusOngoing, now)
}

func (t *Tournament) CancelTournament(reason string, now time.Time) error {
	if err := t.transition(TournamentStatusCanceled, now); err != nil {
		return err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		t.CancelReason = &reason
	}
	return nil
}

// Complete records the overall winner taken from the final match.
func (t *Tournament) Complete(winnerID *string, winnerType *ParticipantType, now time.Time) error {
	if err := t.transition(TournamentStatusCompleted, now); err != nil {
		return err
	}
	t.WinnerID = copyString(winnerID)
	t.WinnerType = copyType(winnerType)
	return nil
}
