package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchVersionConflict   = errors.New("match was modified concurrently")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchNextInvalid       = errors.New("match next match reference invalid")
)

type MatchFilter struct {
	Round  *int
	Status *models.MatchStatus
}

type MatchRepository interface {
	BulkCreate(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, filter MatchFilter) ([]*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, round_number, match_number_in_round,
	participant1_id, participant1_type, participant2_id, participant2_type,
	status, scheduled_time, actual_start_time, actual_end_time,
	winner_id, winner_type, participant1_score, participant2_score,
	result_proof_url_p1, result_proof_url_p2, is_confirmed,
	next_match_id, next_match_slot, next_match_loser_id,
	moderator_notes, metadata, version, created_at, updated_at`

// BulkCreate inserts matches from the last round down so next_match_id
// references already exist when a row is written.
func (r *postgresMatchRepository) BulkCreate(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	executor := pickExecutor(r.db, exec)

	ordered := make([]*models.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RoundNumber > ordered[j].RoundNumber
	})

	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`

	for _, m := range ordered {
		metadata, err := marshalMetadata(m.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for match %s: %w", m.ID, err)
		}
		_, err = executor.ExecContext(ctx, query,
			m.ID, m.TournamentID, m.RoundNumber, m.MatchNumberInRound,
			m.Participant1ID, m.Participant1Type, m.Participant2ID, m.Participant2Type,
			m.Status, m.ScheduledTime, m.ActualStartTime, m.ActualEndTime,
			m.WinnerID, m.WinnerType, m.Participant1Score, m.Participant2Score,
			m.ResultProofURLP1, m.ResultProofURLP2, m.IsConfirmed,
			m.NextMatchID, m.NextMatchSlot, m.NextMatchLoserID,
			m.ModeratorNotes, metadata, m.Version, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return r.handleMatchError(err)
		}
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(pickExecutor(r.db, exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %s: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, filter MatchFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if filter.Round != nil {
		args = append(args, *filter.Round)
		queryBuilder.WriteString(" AND round_number = $" + strconv.Itoa(len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(len(args)))
	}
	queryBuilder.WriteString(" ORDER BY round_number ASC, match_number_in_round ASC")

	rows, err := pickExecutor(r.db, exec).QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

// Update writes the match if nobody else has written it since it was loaded.
// On success match.Version is advanced.
func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := pickExecutor(r.db, exec)
	metadata, err := marshalMetadata(m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for match %s: %w", m.ID, err)
	}

	query := `
		UPDATE matches SET
			participant1_id = $3, participant1_type = $4, participant2_id = $5, participant2_type = $6,
			status = $7, scheduled_time = $8, actual_start_time = $9, actual_end_time = $10,
			winner_id = $11, winner_type = $12, participant1_score = $13, participant2_score = $14,
			result_proof_url_p1 = $15, result_proof_url_p2 = $16, is_confirmed = $17,
			next_match_id = $18, next_match_slot = $19, moderator_notes = $20, metadata = $21,
			updated_at = $22, version = version + 1
		WHERE id = $1 AND version = $2`

	result, err := executor.ExecContext(ctx, query,
		m.ID, m.Version,
		m.Participant1ID, m.Participant1Type, m.Participant2ID, m.Participant2Type,
		m.Status, m.ScheduledTime, m.ActualStartTime, m.ActualEndTime,
		m.WinnerID, m.WinnerType, m.Participant1Score, m.Participant2Score,
		m.ResultProofURLP1, m.ResultProofURLP2, m.IsConfirmed,
		m.NextMatchID, m.NextMatchSlot, m.ModeratorNotes, metadata,
		m.UpdatedAt,
	)
	if err != nil {
		return r.handleMatchError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		var exists int
		err := executor.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE id = $1`, m.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check match %s existence: %w", m.ID, err)
		}
		return fmt.Errorf("%w: match %s at version %d", ErrMatchVersionConflict, m.ID, m.Version)
	}
	m.Version++
	return nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		rec      models.MatchRecord
		notes    sql.NullString
		metadata []byte
	)
	err := row.Scan(
		&rec.ID, &rec.TournamentID, &rec.RoundNumber, &rec.MatchNumberInRound,
		&rec.Participant1ID, &rec.Participant1Type, &rec.Participant2ID, &rec.Participant2Type,
		&rec.Status, &rec.ScheduledTime, &rec.ActualStartTime, &rec.ActualEndTime,
		&rec.WinnerID, &rec.WinnerType, &rec.Participant1Score, &rec.Participant2Score,
		&rec.ResultProofURLP1, &rec.ResultProofURLP2, &rec.IsConfirmed,
		&rec.NextMatchID, &rec.NextMatchSlot, &rec.NextMatchLoserID,
		&notes, &metadata, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		rec.ModeratorNotes = &notes.String
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for match %s: %w", rec.ID, err)
		}
	}
	return models.MatchFromRecord(rec), nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// "23503": foreign_key_violation
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_next_match_id_fkey":
			return ErrMatchNextInvalid
		}
	}
	return err
}
