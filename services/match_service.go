package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/jonboulle/clockwork"
)

type ResolveDisputeInput struct {
	WinnerID *string            `json:"winner_id"`
	Notes    string             `json:"admin_notes"`
	Target   models.MatchStatus `json:"target_status"`
}

type MatchService interface {
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	StartMatch(ctx context.Context, matchID, actorID string) (*models.Match, error)
	AwaitScores(ctx context.Context, matchID, actorID string) (*models.Match, error)
	SubmitResult(ctx context.Context, matchID, actorID string, in models.ResultInput) (*models.Match, error)
	ConfirmResult(ctx context.Context, matchID, actorID string) (*models.Match, error)
	DisputeResult(ctx context.Context, matchID, actorID, reason string) (*models.Match, error)
	ResolveDispute(ctx context.Context, matchID, actorID string, in ResolveDisputeInput) (*models.Match, error)
	CancelMatch(ctx context.Context, matchID, actorID, reason string) (*models.Match, error)
	Reschedule(ctx context.Context, matchID, actorID string, at time.Time) (*models.Match, error)
}

type accessLevel int

const (
	accessManager accessLevel = iota
	// accessParticipant also admits the players of the match itself.
	accessParticipant
	// accessOpponent admits the players except the one who reported the result.
	accessOpponent
)

type matchService struct {
	tx             Transactor
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	authorizer     ManagerAuthorizer
	progression    *Progression
	publisher      EventPublisher
	clock          clockwork.Clock
	logger         *slog.Logger
}

func NewMatchService(
	tx Transactor,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	authorizer ManagerAuthorizer,
	progression *Progression,
	publisher EventPublisher,
	clock clockwork.Clock,
	logger *slog.Logger,
) MatchService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger = loggerOrDefault(logger)
	if progression == nil {
		progression = NewProgression(logger)
	}
	return &matchService{
		tx:             tx,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		authorizer:     authorizer,
		progression:    progression,
		publisher:      publisherOrNoop(publisher),
		clock:          clock,
		logger:         logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err, "match", matchID)
	}
	return m, nil
}

func (s *matchService) StartMatch(ctx context.Context, matchID, actorID string) (*models.Match, error) {
	return s.mutate(ctx, matchID, actorID, accessParticipant, func(m *models.Match) error {
		if models.CanFire(models.EventStart, m.Status) && m.ParticipantCount() != 2 {
			return fmt.Errorf("%w: match %s has %d of 2 participants", ErrInvalidState, m.ID, m.ParticipantCount())
		}
		return m.Start()
	})
}

func (s *matchService) AwaitScores(ctx context.Context, matchID, actorID string) (*models.Match, error) {
	return s.mutate(ctx, matchID, actorID, accessParticipant, func(m *models.Match) error {
		return m.AwaitScores()
	})
}

func (s *matchService) SubmitResult(ctx context.Context, matchID, actorID string, in models.ResultInput) (*models.Match, error) {
	return s.mutate(ctx, matchID, actorID, accessParticipant, func(m *models.Match) error {
		in.ReportedBy = actorID
		return m.RecordResult(in)
	})
}

func (s *matchService) ConfirmResult(ctx context.Context, matchID, actorID string) (*models.Match, error) {
	return s.mutate(ctx, matchID, actorID, accessOpponent, func(m *models.Match) error {
		return m.ConfirmResult(actorID)
	})
}

func (s *matchService) DisputeResult(ctx context.Context, matchID, actorID, reason string) (*models.Match, error) {
	return s.mutate(ctx, matchID, actorID, accessParticipant, func(m *models.Match) error {
		return m.DisputeResult(actorID, reason)
	})
}

func (s *matchService) ResolveDispute(ctx context.Context, matchID, actorID string, in ResolveDisputeInput) (*models.Match, error) {
	return s.mutate(ctx, matchID, actorID, accessManager, func(m *models.Match) error {
		return m.ResolveDispute(in.WinnerID, in.Notes, in.Target)
	})
}

func (s *matchService) CancelMatch(ctx context.Context, matchID, actorID, reason string) (*models.Match, error) {
	return s.mutate(ctx, matchID, actorID, accessManager, func(m *models.Match) error {
		return m.CancelMatch(reason)
	})
}

func (s *matchService) Reschedule(ctx context.Context, matchID, actorID string, at time.Time) (*models.Match, error) {
	return s.mutate(ctx, matchID, actorID, accessManager, func(m *models.Match) error {
		return m.UpdateScheduledTime(at)
	})
}

// mutate loads the match, applies fn and stores the result with progression
// side effects in one transaction. Events are published after commit.
func (s *matchService) mutate(ctx context.Context, matchID, actorID string, access accessLevel, fn func(m *models.Match) error) (*models.Match, error) {
	if strings.TrimSpace(matchID) == "" {
		return nil, fmt.Errorf("%w: match id", models.ErrMissingArgument)
	}

	var (
		result    *models.Match
		changed   []*models.Match
		completed *models.Tournament
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		changed, completed = nil, nil

		m, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			return handleRepositoryError(err, "match", matchID)
		}
		m.WithClock(s.clock)

		t, err := s.tournamentRepo.GetByID(ctx, exec, m.TournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament", m.TournamentID)
		}
		if t.Status != models.TournamentStatusOngoing {
			return fmt.Errorf("%w: tournament %s is %s", ErrInvalidState, t.ID, t.Status)
		}
		if err := s.authorize(ctx, exec, actorID, t, m, access); err != nil {
			return err
		}

		before := m.Status
		if err := fn(m); err != nil {
			return err
		}
		if err := s.matchRepo.Update(ctx, exec, m); err != nil {
			return handleRepositoryError(err, "match", m.ID)
		}
		changed = append(changed, m)

		store := newRepoStore(s.matchRepo, exec, s.clock, m)
		if before.Resolved() && before != m.Status {
			next, err := s.progression.retract(ctx, store, m)
			if err != nil {
				return err
			}
			if next != nil {
				changed = append(changed, next)
			}
		}
		if m.Status.Resolved() && before != m.Status {
			out, err := s.progression.advance(ctx, store, m)
			if err != nil {
				return err
			}
			changed = append(changed, out.changed...)
			if out.final != nil {
				done, err := s.completeTournament(ctx, exec, t, out.final)
				if err != nil {
					return err
				}
				completed = done
			}
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range changed {
		s.publisher.Publish(c.TournamentID, brackets.EventMatchUpdated, c)
	}
	if completed != nil {
		s.publisher.Publish(completed.ID, brackets.EventTournamentStatus, map[string]interface{}{
			"tournament_id": completed.ID,
			"status":        completed.Status,
			"winner_id":     completed.WinnerID,
		})
	}
	s.logger.Info("match updated",
		slog.String("match_id", result.ID),
		slog.String("status", string(result.Status)),
		slog.Int("propagated", len(changed)-1))
	return result, nil
}

func (s *matchService) authorize(ctx context.Context, exec repositories.SQLExecutor, actorID string, t *models.Tournament, m *models.Match, access accessLevel) error {
	if actorID != "" && m.HasParticipant(actorID) {
		switch access {
		case accessParticipant:
			return nil
		case accessOpponent:
			if m.ReportedBy() != actorID {
				return nil
			}
		}
	}
	return requireManager(ctx, s.authorizer, exec, actorID, t)
}

// completeTournament closes the tournament once its final has a result.
func (s *matchService) completeTournament(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, final *models.Match) (*models.Tournament, error) {
	if final.Status == models.MatchStatusCanceled {
		s.logger.Warn("final match canceled, tournament left ongoing",
			slog.String("tournament_id", t.ID),
			slog.String("match_id", final.ID))
		return nil, nil
	}
	if err := t.Complete(final.WinnerID, final.WinnerType, s.clock.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.tournamentRepo.Update(ctx, exec, t); err != nil {
		return nil, handleRepositoryError(err, "tournament", t.ID)
	}
	s.logger.Info("tournament completed",
		slog.String("tournament_id", t.ID),
		slog.String("winner_id", derefString(t.WinnerID)))
	return t, nil
}
