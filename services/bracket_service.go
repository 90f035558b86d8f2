package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"golang.org/x/sync/errgroup"
)

type RoundView struct {
	RoundNumber int             `json:"round_number"`
	Matches     []*models.Match `json:"matches"`
}

type BracketView struct {
	Tournament       *models.Tournament `json:"tournament"`
	ParticipantCount int                `json:"participant_count"`
	Rounds           []RoundView        `json:"rounds"`
	Valid            bool               `json:"valid"`
	Problem          string             `json:"problem,omitempty"`
}

type BracketService interface {
	GetBracket(ctx context.Context, tournamentID string) (*BracketView, error)
}

type bracketService struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	logger          *slog.Logger
}

func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		logger:          loggerOrDefault(logger),
	}
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID string) (*BracketView, error) {
	var (
		tournament   *models.Tournament
		participants []*models.Participant
		matches      []*models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Турнир
	g.Go(func() error {
		t, err := s.tournamentRepo.GetByID(gCtx, nil, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament", tournamentID)
		}
		tournament = t
		return nil
	})

	// 2. Подтвержденные участники
	g.Go(func() error {
		confirmed := models.ParticipantStatusConfirmed
		list, err := s.participantRepo.ListByTournament(gCtx, nil, tournamentID, &confirmed)
		if err != nil {
			return fmt.Errorf("failed to load participants of tournament %s: %w", tournamentID, err)
		}
		participants = list
		return nil
	})

	// 3. Матчи
	g.Go(func() error {
		list, err := s.matchRepo.ListByTournament(gCtx, nil, tournamentID, repositories.MatchFilter{})
		if err != nil {
			return fmt.Errorf("failed to load matches of tournament %s: %w", tournamentID, err)
		}
		matches = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &BracketView{
		Tournament:       tournament,
		ParticipantCount: len(participants),
		Rounds:           groupByRound(matches),
	}
	switch {
	case len(matches) == 0:
		view.Problem = "bracket has not been generated"
	default:
		// Entrants withdrawn after the start still hold their round-1 slots.
		if err := brackets.Validate(matches, brackets.EntrantCount(matches)); err != nil {
			view.Problem = err.Error()
		} else {
			view.Valid = true
		}
	}
	return view, nil
}

// groupByRound expects matches ordered by round, then by number in round.
func groupByRound(matches []*models.Match) []RoundView {
	rounds := make([]RoundView, 0)
	for _, m := range matches {
		if n := len(rounds); n == 0 || rounds[n-1].RoundNumber != m.RoundNumber {
			rounds = append(rounds, RoundView{RoundNumber: m.RoundNumber})
		}
		last := &rounds[len(rounds)-1]
		last.Matches = append(last.Matches, m)
	}
	return rounds
}
