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

type Decision string

const (
	DecisionStart  Decision = "start"
	DecisionCancel Decision = "cancel"
)

type DecisionInput struct {
	TournamentID string
	ManagerID    string
	Decision     Decision
	Reason       string
}

type DecisionResult struct {
	Tournament *models.Tournament `json:"tournament"`
	Matches    []*models.Match    `json:"matches,omitempty"`
}

// DecisionConfig tunes bracket generation for multi-match tournaments.
type DecisionConfig struct {
	Shuffle      bool
	TimePerRound time.Duration
	// MinLeadTime is how far ahead the first match is scheduled when the
	// tournament start date has already passed.
	MinLeadTime time.Duration
	Rand        brackets.RandSource
}

// DecisionService applies a manager's start or cancel decision to a tournament
// that is awaiting one.
type DecisionService interface {
	Execute(ctx context.Context, in DecisionInput) (*DecisionResult, error)
}

type decisionService struct {
	tx              Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	authorizer      ManagerAuthorizer
	refunder        RefundCollaborator
	generator       brackets.BracketGenerator
	progression     *Progression
	publisher       EventPublisher
	clock           clockwork.Clock
	cfg             DecisionConfig
	logger          *slog.Logger
}

func NewDecisionService(
	tx Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	authorizer ManagerAuthorizer,
	refunder RefundCollaborator,
	generator brackets.BracketGenerator,
	progression *Progression,
	publisher EventPublisher,
	clock clockwork.Clock,
	cfg DecisionConfig,
	logger *slog.Logger,
) DecisionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger = loggerOrDefault(logger)
	if progression == nil {
		progression = NewProgression(logger)
	}
	return &decisionService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		authorizer:      authorizer,
		refunder:        refunder,
		generator:       generator,
		progression:     progression,
		publisher:       publisherOrNoop(publisher),
		clock:           clock,
		cfg:             cfg,
		logger:          logger,
	}
}

func (s *decisionService) Execute(ctx context.Context, in DecisionInput) (*DecisionResult, error) {
	if strings.TrimSpace(in.TournamentID) == "" {
		return nil, fmt.Errorf("%w: tournament id", models.ErrMissingArgument)
	}

	result := &DecisionResult{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetForUpdate(ctx, exec, in.TournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament", in.TournamentID)
		}
		if err := requireManager(ctx, s.authorizer, exec, in.ManagerID, t); err != nil {
			return err
		}
		if t.Status != models.TournamentStatusAwaitingDecision {
			return fmt.Errorf("%w: tournament %s is %s, expected %s", ErrInvalidState, t.ID, t.Status, models.TournamentStatusAwaitingDecision)
		}

		switch in.Decision {
		case DecisionStart:
			matches, err := s.start(ctx, exec, t)
			if err != nil {
				return err
			}
			result.Matches = matches
		case DecisionCancel:
			if err := s.cancel(ctx, exec, t, in.Reason); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown decision %q", models.ErrInvalidArgument, in.Decision)
		}
		result.Tournament = t
		return nil
	})
	if err != nil {
		s.logger.Warn("tournament decision failed",
			slog.String("tournament_id", in.TournamentID),
			slog.String("decision", string(in.Decision)),
			slog.Any("error", err))
		return nil, err
	}

	t := result.Tournament
	if len(result.Matches) > 0 {
		s.publisher.Publish(t.ID, brackets.EventBracketGenerated, result.Matches)
	}
	s.publisher.Publish(t.ID, brackets.EventTournamentStatus, map[string]interface{}{
		"tournament_id": t.ID,
		"status":        t.Status,
	})
	s.logger.Info("tournament decision applied",
		slog.String("tournament_id", t.ID),
		slog.String("decision", string(in.Decision)),
		slog.String("status", string(t.Status)),
		slog.Int("matches", len(result.Matches)))
	return result, nil
}

func (s *decisionService) start(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) ([]*models.Match, error) {
	now := s.clock.Now().UTC()
	opts := brackets.Options{
		Shuffle:          s.cfg.Shuffle,
		DefaultMatchTime: s.firstMatchTime(t, now),
		TimePerRound:     s.cfg.TimePerRound,
		Rand:             s.cfg.Rand,
		Clock:            s.clock,
	}
	switch {
	case t.IsSingleMatch:
		opts.Shuffle = false
		opts.TimePerRound = 0
	case t.BracketType == models.BracketSingleElimination:
	default:
		return nil, fmt.Errorf("%w: %s bracket for tournament %s", ErrNotImplemented, t.BracketType, t.ID)
	}

	confirmed := models.ParticipantStatusConfirmed
	list, err := s.participantRepo.ListByTournament(ctx, exec, t.ID, &confirmed)
	if err != nil {
		return nil, err
	}
	entrants := toBracketParticipants(list)
	switch {
	case t.IsSingleMatch && len(entrants) != 2:
		return nil, fmt.Errorf("%w: %w: single match needs exactly 2, got %d", ErrInvalidState, ErrNotEnoughPlayers, len(entrants))
	case len(entrants) < 2:
		return nil, fmt.Errorf("%w: %w: need at least 2, got %d", ErrInvalidState, ErrNotEnoughPlayers, len(entrants))
	}

	matches, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		TournamentID: t.ID,
		Participants: entrants,
		Options:      opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate bracket for tournament %s: %w", t.ID, err)
	}
	for _, m := range matches {
		m.WithClock(s.clock)
	}
	if err := brackets.Validate(matches, len(entrants)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptBracket, err)
	}
	if err := s.progression.AdvanceByes(ctx, matches); err != nil {
		return nil, fmt.Errorf("failed to advance byes for tournament %s: %w", t.ID, err)
	}
	if err := s.matchRepo.BulkCreate(ctx, exec, matches); err != nil {
		return nil, fmt.Errorf("failed to store bracket for tournament %s: %w", t.ID, err)
	}

	if err := t.Start(now); err != nil {
		return nil, err
	}
	if err := s.tournamentRepo.Update(ctx, exec, t); err != nil {
		return nil, handleRepositoryError(err, "tournament", t.ID)
	}
	return matches, nil
}

func (s *decisionService) cancel(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, reason string) error {
	if err := s.refunder.Refund(ctx, exec, t); err != nil {
		return fmt.Errorf("failed to refund entry fees for tournament %s: %w", t.ID, err)
	}
	if err := t.CancelTournament(reason, s.clock.Now().UTC()); err != nil {
		return err
	}
	if err := s.tournamentRepo.Update(ctx, exec, t); err != nil {
		return handleRepositoryError(err, "tournament", t.ID)
	}
	return nil
}

func (s *decisionService) firstMatchTime(t *models.Tournament, now time.Time) time.Time {
	if t.StartDate.IsZero() || now.After(t.StartDate) {
		return now.Add(s.cfg.MinLeadTime)
	}
	return t.StartDate.UTC()
}
