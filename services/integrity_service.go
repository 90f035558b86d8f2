package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/go-co-op/gocron/v2"
)

type SweepReport struct {
	Checked   int
	Corrupted []string
	Failed    []string
}

// IntegrityChecker re-validates the bracket of every ongoing tournament.
type IntegrityChecker struct {
	tournamentRepo repositories.TournamentRepository
	bracketService BracketService
	logger         *slog.Logger
}

func NewIntegrityChecker(tournamentRepo repositories.TournamentRepository, bracketService BracketService, logger *slog.Logger) *IntegrityChecker {
	return &IntegrityChecker{
		tournamentRepo: tournamentRepo,
		bracketService: bracketService,
		logger:         loggerOrDefault(logger),
	}
}

func (c *IntegrityChecker) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	ongoing, err := c.tournamentRepo.ListByStatus(ctx, nil, models.TournamentStatusOngoing)
	if err != nil {
		return report, err
	}
	for _, t := range ongoing {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		view, err := c.bracketService.GetBracket(ctx, t.ID)
		if err != nil {
			c.logger.Error("integrity sweep: failed to load bracket", slog.String("tournament_id", t.ID), slog.Any("error", err))
			report.Failed = append(report.Failed, t.ID)
			continue
		}
		report.Checked++
		if !view.Valid {
			c.logger.Error("integrity sweep: corrupt bracket", slog.String("tournament_id", t.ID), slog.String("problem", view.Problem))
			report.Corrupted = append(report.Corrupted, t.ID)
		}
	}
	c.logger.Info("integrity sweep finished",
		slog.Int("checked", report.Checked),
		slog.Int("corrupted", len(report.Corrupted)),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

// ScheduleIntegritySweep registers the sweep as a recurring job. Runs never
// overlap; a run still in progress postpones the next one.
func ScheduleIntegritySweep(s gocron.Scheduler, checker *IntegrityChecker, interval time.Duration) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := checker.Sweep(ctx); err != nil {
				checker.logger.Error("integrity sweep failed", slog.Any("error", err))
			}
		}),
		gocron.WithName("bracket-integrity-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
