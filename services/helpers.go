package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

// Transactor runs fn in one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, exec repositories.SQLExecutor) error) error
}

// EventPublisher pushes realtime events to tournament subscribers.
type EventPublisher interface {
	Publish(tournamentID, eventType string, payload interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, interface{}) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handleRepositoryError переводит ошибки репозиториев в ошибки сервисного слоя.
func handleRepositoryError(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMatchNotFound):
		return fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return fmt.Errorf("%w: %s", ErrTournamentNotFound, id)
	case errors.Is(err, repositories.ErrUserNotFound):
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	case errors.Is(err, repositories.ErrMatchVersionConflict):
		return fmt.Errorf("%w: %s %s: %w", ErrConcurrentUpdate, entity, id, err)
	default:
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toBracketParticipants(list []*models.Participant) []brackets.Participant {
	out := make([]brackets.Participant, 0, len(list))
	for _, p := range list {
		if p == nil {
			continue
		}
		out = append(out, brackets.Participant{ID: p.ParticipantID, Type: p.Type, Seed: p.Seed})
	}
	return out
}
