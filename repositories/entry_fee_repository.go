package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

var (
	ErrEntryFeeHoldNotFound = errors.New("entry fee hold not found or already settled")
	ErrWalletNotFound       = errors.New("wallet not found")
)

type EntryFeeRepository interface {
	ListHeldByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) ([]*models.EntryFeeHold, error)
	// MarkRefunded moves a held entry to refunded. Settled entries are not touched.
	MarkRefunded(ctx context.Context, exec SQLExecutor, holdID string, at time.Time) error
	CreditWallet(ctx context.Context, exec SQLExecutor, userID string, amount int64) error
}

type postgresEntryFeeRepository struct {
	db *sql.DB
}

func NewPostgresEntryFeeRepository(db *sql.DB) EntryFeeRepository {
	return &postgresEntryFeeRepository{db: db}
}

func (r *postgresEntryFeeRepository) ListHeldByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) ([]*models.EntryFeeHold, error) {
	query := `
		SELECT id, tournament_id, user_id, amount, status, updated_at
		FROM entry_fee_holds
		WHERE tournament_id = $1 AND status = $2
		ORDER BY id`

	rows, err := pickExecutor(r.db, exec).QueryContext(ctx, query, tournamentID, models.EntryFeeHeld)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry fee holds for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	var holds []*models.EntryFeeHold
	for rows.Next() {
		h := &models.EntryFeeHold{}
		if scanErr := rows.Scan(&h.ID, &h.TournamentID, &h.UserID, &h.Amount, &h.Status, &h.UpdatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan entry fee hold: %w", scanErr)
		}
		holds = append(holds, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during entry fee rows iteration: %w", err)
	}
	return holds, nil
}

func (r *postgresEntryFeeRepository) MarkRefunded(ctx context.Context, exec SQLExecutor, holdID string, at time.Time) error {
	query := `UPDATE entry_fee_holds SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query, models.EntryFeeRefunded, at, holdID, models.EntryFeeHeld)
	if err != nil {
		return fmt.Errorf("failed to mark entry fee hold %s refunded: %w", holdID, err)
	}
	return checkAffectedRows(result, ErrEntryFeeHoldNotFound)
}

func (r *postgresEntryFeeRepository) CreditWallet(ctx context.Context, exec SQLExecutor, userID string, amount int64) error {
	query := `UPDATE wallets SET balance = balance + $1 WHERE user_id = $2`
	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit wallet of user %s: %w", userID, err)
	}
	return checkAffectedRows(result, ErrWalletNotFound)
}
