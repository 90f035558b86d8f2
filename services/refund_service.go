package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/jonboulle/clockwork"
)

// RefundCollaborator reverses the entry-fee holds of a tournament. It runs in
// the caller's transaction and errors propagate unchanged.
type RefundCollaborator interface {
	Refund(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error
}

type entryFeeRefunder struct {
	feeRepo repositories.EntryFeeRepository
	clock   clockwork.Clock
	logger  *slog.Logger
}

func NewEntryFeeRefunder(feeRepo repositories.EntryFeeRepository, clock clockwork.Clock, logger *slog.Logger) RefundCollaborator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &entryFeeRefunder{feeRepo: feeRepo, clock: clock, logger: loggerOrDefault(logger)}
}

func (r *entryFeeRefunder) Refund(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	holds, err := r.feeRepo.ListHeldByTournament(ctx, exec, t.ID)
	if err != nil {
		return err
	}
	now := r.clock.Now().UTC()
	var total int64
	for _, h := range holds {
		if err := r.feeRepo.CreditWallet(ctx, exec, h.UserID, h.Amount); err != nil {
			return fmt.Errorf("refund of hold %s: %w", h.ID, err)
		}
		if err := r.feeRepo.MarkRefunded(ctx, exec, h.ID, now); err != nil {
			return fmt.Errorf("refund of hold %s: %w", h.ID, err)
		}
		total += h.Amount
	}
	r.logger.Info("entry fees refunded",
		slog.String("tournament_id", t.ID),
		slog.Int("holds", len(holds)),
		slog.Int64("amount", total))
	return nil
}
