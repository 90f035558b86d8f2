package models

import "time"

type ParticipantStatus string

const (
	ParticipantStatusRegistered ParticipantStatus = "registered"
	ParticipantStatusConfirmed  ParticipantStatus = "confirmed"
	ParticipantStatusWithdrawn  ParticipantStatus = "withdrawn"
)

// Participant is a user or team registered for a tournament.
type Participant struct {
	ID            string            `json:"id" db:"id"`
	TournamentID  string            `json:"tournament_id" db:"tournament_id"`
	ParticipantID string            `json:"participant_id" db:"participant_id"`
	Type          ParticipantType   `json:"type" db:"type"`
	Seed          *int              `json:"seed,omitempty" db:"seed"`
	Status        ParticipantStatus `json:"status" db:"status"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

// EntryFeeStatus tracks a wallet hold placed at registration.
type EntryFeeStatus string

const (
	EntryFeeHeld     EntryFeeStatus = "held"
	EntryFeeRefunded EntryFeeStatus = "refunded"
	EntryFeeCaptured EntryFeeStatus = "captured"
)

type EntryFeeHold struct {
	ID           string         `json:"id" db:"id"`
	TournamentID string         `json:"tournament_id" db:"tournament_id"`
	UserID       string         `json:"user_id" db:"user_id"`
	Amount       int64          `json:"amount" db:"amount"`
	Status       EntryFeeStatus `json:"status" db:"status"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}
