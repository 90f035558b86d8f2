package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

type ParticipantRepository interface {
	// ListByTournament returns participants ordered by seed (unseeded last),
	// then registration time. A nil status returns every participant.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error)
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error) {
	query := `
		SELECT id, tournament_id, participant_id, type, seed, status, created_at
		FROM tournament_participants
		WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY seed ASC NULLS LAST, created_at ASC, id ASC`

	rows, err := pickExecutor(r.db, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p := &models.Participant{}
		if scanErr := rows.Scan(&p.ID, &p.TournamentID, &p.ParticipantID, &p.Type, &p.Seed, &p.Status, &p.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}
