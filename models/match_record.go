package models

import "time"

// MatchRecord is the persisted shape of a match. Older rows may lack
// is_confirmed and carry the round in a legacy "round" column.
type MatchRecord struct {
	ID                 string           `json:"id"`
	TournamentID       string           `json:"tournament_id"`
	RoundNumber        *int             `json:"round_number"`
	Round              *int             `json:"round"`
	MatchNumberInRound int              `json:"match_number_in_round"`
	Participant1ID     *string          `json:"participant1_id"`
	Participant1Type   *ParticipantType `json:"participant1_type"`
	Participant2ID     *string          `json:"participant2_id"`
	Participant2Type   *ParticipantType `json:"participant2_type"`
	Status             MatchStatus      `json:"status"`
	ScheduledTime      *time.Time       `json:"scheduled_time"`
	ActualStartTime    *time.Time       `json:"actual_start_time"`
	ActualEndTime      *time.Time       `json:"actual_end_time"`
	WinnerID           *string          `json:"winner_id"`
	WinnerType         *ParticipantType `json:"winner_type"`
	Participant1Score  *int             `json:"participant1_score"`
	Participant2Score  *int             `json:"participant2_score"`
	ResultProofURLP1   *string          `json:"result_proof_url_p1"`
	ResultProofURLP2   *string          `json:"result_proof_url_p2"`
	IsConfirmed        *bool            `json:"is_confirmed"`
	NextMatchID        *string          `json:"next_match_id"`
	NextMatchSlot      *int             `json:"next_match_slot"`
	NextMatchLoserID   *string          `json:"next_match_loser_id"`
	ModeratorNotes     *string          `json:"moderator_notes"`
	Metadata           map[string]any   `json:"metadata"`
	Version            int64            `json:"version"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// MatchFromRecord rebuilds a Match from storage.
func MatchFromRecord(r MatchRecord) *Match {
	m := &Match{
		ID:                 r.ID,
		TournamentID:       r.TournamentID,
		MatchNumberInRound: r.MatchNumberInRound,
		Participant1ID:     r.Participant1ID,
		Participant1Type:   r.Participant1Type,
		Participant2ID:     r.Participant2ID,
		Participant2Type:   r.Participant2Type,
		Status:             r.Status,
		ScheduledTime:      r.ScheduledTime,
		ActualStartTime:    r.ActualStartTime,
		ActualEndTime:      r.ActualEndTime,
		WinnerID:           r.WinnerID,
		WinnerType:         r.WinnerType,
		Participant1Score:  r.Participant1Score,
		Participant2Score:  r.Participant2Score,
		ResultProofURLP1:   r.ResultProofURLP1,
		ResultProofURLP2:   r.ResultProofURLP2,
		NextMatchID:        r.NextMatchID,
		NextMatchSlot:      r.NextMatchSlot,
		NextMatchLoserID:   r.NextMatchLoserID,
		Metadata:           r.Metadata,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	switch {
	case r.RoundNumber != nil:
		m.RoundNumber = *r.RoundNumber
	case r.Round != nil:
		m.RoundNumber = *r.Round
	}
	if r.IsConfirmed != nil {
		m.IsConfirmed = *r.IsConfirmed
	}
	if r.ModeratorNotes != nil {
		m.ModeratorNotes = *r.ModeratorNotes
	}
	return m
}
