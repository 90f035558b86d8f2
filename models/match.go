package models

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// MatchStatus представляет статусы матча, соответствующие ENUM в БД.
type MatchStatus string

const (
	MatchStatusPending              MatchStatus = "PENDING"
	MatchStatusScheduled            MatchStatus = "SCHEDULED"
	MatchStatusInProgress           MatchStatus = "IN_PROGRESS"
	MatchStatusAwaitingScores       MatchStatus = "AWAITING_SCORES"
	MatchStatusAwaitingConfirmation MatchStatus = "AWAITING_CONFIRMATION"
	MatchStatusDisputed             MatchStatus = "DISPUTED"
	MatchStatusCompleted            MatchStatus = "COMPLETED"
	MatchStatusCanceled             MatchStatus = "CANCELED"
	MatchStatusBye                  MatchStatus = "BYE"
)

var allMatchStatuses = []MatchStatus{
	MatchStatusPending,
	MatchStatusScheduled,
	MatchStatusInProgress,
	MatchStatusAwaitingScores,
	MatchStatusAwaitingConfirmation,
	MatchStatusDisputed,
	MatchStatusCompleted,
	MatchStatusCanceled,
	MatchStatusBye,
}

// MatchStatuses returns every status in declaration order.
func MatchStatuses() []MatchStatus {
	out := make([]MatchStatus, len(allMatchStatuses))
	copy(out, allMatchStatuses)
	return out
}

func (s MatchStatus) Valid() bool {
	for _, st := range allMatchStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Resolved reports whether the match has produced its final outcome for
// progression purposes.
func (s MatchStatus) Resolved() bool {
	return s == MatchStatusCompleted || s == MatchStatusBye || s == MatchStatusCanceled
}

type ParticipantType string

const (
	ParticipantUser ParticipantType = "user"
	ParticipantTeam ParticipantType = "team"
)

// Match is a single bracket match. Fields are exported for persistence and
// JSON; state changes go through the methods in match_state.go.
type Match struct {
	ID                 string           `json:"id" db:"id"`
	TournamentID       string           `json:"tournament_id" db:"tournament_id"`
	RoundNumber        int              `json:"round_number" db:"round_number"`
	MatchNumberInRound int              `json:"match_number_in_round" db:"match_number_in_round"`
	Participant1ID     *string          `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant1Type   *ParticipantType `json:"participant1_type,omitempty" db:"participant1_type"`
	Participant2ID     *string          `json:"participant2_id,omitempty" db:"participant2_id"`
	Participant2Type   *ParticipantType `json:"participant2_type,omitempty" db:"participant2_type"`
	Status             MatchStatus      `json:"status" db:"status"`
	ScheduledTime      *time.Time       `json:"scheduled_time,omitempty" db:"scheduled_time"`
	ActualStartTime    *time.Time       `json:"actual_start_time,omitempty" db:"actual_start_time"`
	ActualEndTime      *time.Time       `json:"actual_end_time,omitempty" db:"actual_end_time"`
	WinnerID           *string          `json:"winner_id,omitempty" db:"winner_id"`
	WinnerType         *ParticipantType `json:"winner_type,omitempty" db:"winner_type"`
	Participant1Score  *int             `json:"participant1_score,omitempty" db:"participant1_score"`
	Participant2Score  *int             `json:"participant2_score,omitempty" db:"participant2_score"`
	ResultProofURLP1   *string          `json:"result_proof_url_p1,omitempty" db:"result_proof_url_p1"`
	ResultProofURLP2   *string          `json:"result_proof_url_p2,omitempty" db:"result_proof_url_p2"`
	IsConfirmed        bool             `json:"is_confirmed" db:"is_confirmed"`
	NextMatchID        *string          `json:"next_match_id,omitempty" db:"next_match_id"`
	NextMatchSlot      *int             `json:"next_match_slot,omitempty" db:"next_match_slot"`
	NextMatchLoserID   *string          `json:"next_match_loser_id,omitempty" db:"next_match_loser_id"`
	ModeratorNotes     string           `json:"moderator_notes,omitempty" db:"moderator_notes"`
	Metadata           map[string]any   `json:"metadata,omitempty" db:"metadata"`
	Version            int64            `json:"version" db:"version"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`

	clock clockwork.Clock
}

// WithClock sets the clock used to stamp times on this match.
func (m *Match) WithClock(c clockwork.Clock) *Match {
	m.clock = c
	return m
}

func (m *Match) now() time.Time {
	if m.clock == nil {
		return time.Now().UTC()
	}
	return m.clock.Now().UTC()
}

// HasParticipant reports whether id occupies one of the two slots.
func (m *Match) HasParticipant(id string) bool {
	return (m.Participant1ID != nil && *m.Participant1ID == id) ||
		(m.Participant2ID != nil && *m.Participant2ID == id)
}

// ReportedBy returns who submitted the current result, if recorded.
func (m *Match) ReportedBy() string {
	s, _ := m.Metadata["reported_by"].(string)
	return s
}

// ParticipantCount returns the number of occupied slots.
func (m *Match) ParticipantCount() int {
	n := 0
	if m.Participant1ID != nil {
		n++
	}
	if m.Participant2ID != nil {
		n++
	}
	return n
}

func (m *Match) IsFinal() bool {
	return m.NextMatchID == nil
}
