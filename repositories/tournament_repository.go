package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this organizer")
	ErrTournamentInvalidOrg   = errors.New("invalid organizer reference")
)

type TournamentRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error)
	// GetForUpdate locks the tournament row for the rest of the transaction.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error)
	ListByStatus(ctx context.Context, exec SQLExecutor, status models.TournamentStatus) ([]*models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `id, name, organizer_id, status, is_single_match, bracket_type,
	start_date, entry_fee, cancel_reason, winner_id, winner_type, created_at, updated_at`

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.OrganizerID, &t.Status, &t.IsSingleMatch, &t.BracketType,
		&t.StartDate, &t.EntryFee, &t.CancelReason, &t.WinnerID, &t.WinnerType, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error) {
	return r.get(ctx, exec, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error) {
	return r.get(ctx, exec, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresTournamentRepository) get(ctx context.Context, exec SQLExecutor, query, id string) (*models.Tournament, error) {
	t, err := scanTournament(pickExecutor(r.db, exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %s: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) ListByStatus(ctx context.Context, exec SQLExecutor, status models.TournamentStatus) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE status = $1 ORDER BY start_date ASC, created_at ASC`

	rows, err := pickExecutor(r.db, exec).QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments with status %s: %w", status, err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

// Update persists the mutable lifecycle fields: status, cancel reason and winner.
func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			status = $1,
			cancel_reason = $2,
			winner_id = $3,
			winner_type = $4,
			updated_at = $5
		WHERE id = $6`

	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query,
		t.Status, t.CancelReason, t.WinnerID, t.WinnerType, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_organizer_id_name_key" {
				return ErrTournamentNameConflict
			}
		case "23503":
			if pqErr.Constraint == "tournaments_organizer_id_fkey" {
				return ErrTournamentInvalidOrg
			}
		}
	}
	return err
}
