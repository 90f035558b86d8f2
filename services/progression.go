package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/jonboulle/clockwork"
)

// matchStore is the view of a bracket the progression works against: either
// an in-memory slice before the bracket is stored, or the repository inside a
// transaction.
type matchStore interface {
	get(ctx context.Context, id string) (*models.Match, error)
	feeders(ctx context.Context, next *models.Match) ([]*models.Match, error)
	save(ctx context.Context, m *models.Match) error
}

type memoryStore struct {
	all  []*models.Match
	byID map[string]*models.Match
}

func newMemoryStore(matches []*models.Match) *memoryStore {
	byID := make(map[string]*models.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}
	return &memoryStore{all: matches, byID: byID}
}

func (s *memoryStore) get(_ context.Context, id string) (*models.Match, error) {
	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	return m, nil
}

func (s *memoryStore) feeders(_ context.Context, next *models.Match) ([]*models.Match, error) {
	var out []*models.Match
	for _, m := range s.all {
		if m.NextMatchID != nil && *m.NextMatchID == next.ID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) save(context.Context, *models.Match) error { return nil }

// repoStore caches every match it loads so a match touched twice in one
// transaction is the same value with the latest version.
type repoStore struct {
	repo  repositories.MatchRepository
	exec  repositories.SQLExecutor
	clock clockwork.Clock
	cache map[string]*models.Match
}

func newRepoStore(repo repositories.MatchRepository, exec repositories.SQLExecutor, clock clockwork.Clock, loaded ...*models.Match) *repoStore {
	s := &repoStore{repo: repo, exec: exec, clock: clock, cache: make(map[string]*models.Match)}
	for _, m := range loaded {
		s.cache[m.ID] = m
	}
	return s
}

func (s *repoStore) get(ctx context.Context, id string) (*models.Match, error) {
	if m, ok := s.cache[id]; ok {
		return m, nil
	}
	m, err := s.repo.GetByID(ctx, s.exec, id)
	if err != nil {
		return nil, handleRepositoryError(err, "match", id)
	}
	m.WithClock(s.clock)
	s.cache[id] = m
	return m, nil
}

func (s *repoStore) feeders(ctx context.Context, next *models.Match) ([]*models.Match, error) {
	round := next.RoundNumber - 1
	list, err := s.repo.ListByTournament(ctx, s.exec, next.TournamentID, repositories.MatchFilter{Round: &round})
	if err != nil {
		return nil, fmt.Errorf("failed to load feeders of match %s: %w", next.ID, err)
	}
	var out []*models.Match
	for _, m := range list {
		if m.NextMatchID == nil || *m.NextMatchID != next.ID {
			continue
		}
		if cached, ok := s.cache[m.ID]; ok {
			m = cached
		} else {
			m.WithClock(s.clock)
			s.cache[m.ID] = m
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *repoStore) save(ctx context.Context, m *models.Match) error {
	if err := s.repo.Update(ctx, s.exec, m); err != nil {
		return handleRepositoryError(err, "match", m.ID)
	}
	return nil
}

// Progression moves results along nextMatchId links.
type Progression struct {
	logger *slog.Logger
}

func NewProgression(logger *slog.Logger) *Progression {
	return &Progression{logger: loggerOrDefault(logger)}
}

type progressOutcome struct {
	changed []*models.Match
	// final is set when the match without a successor reached a resolved status.
	final *models.Match
}

// feedSlot returns the slot of the next match that m feeds. Rows written
// without next_match_slot fall back to the pairing order.
func feedSlot(m *models.Match) int {
	if m.NextMatchSlot != nil {
		return *m.NextMatchSlot
	}
	return (m.MatchNumberInRound-1)%2 + 1
}

// advancingEntrant is who leaves m for the next round. A canceled match sends
// nobody.
func advancingEntrant(m *models.Match) (*string, *models.ParticipantType) {
	if m.Status == models.MatchStatusCanceled {
		return nil, nil
	}
	return m.WinnerID, m.WinnerType
}

func slotHolds(m *models.Match, slot int, id *string) bool {
	current := m.Participant1ID
	if slot == 2 {
		current = m.Participant2ID
	}
	if current == nil || id == nil {
		return current == nil && id == nil
	}
	return *current == *id
}

func (p *Progression) advance(ctx context.Context, store matchStore, m *models.Match) (progressOutcome, error) {
	var out progressOutcome
	for current := m; current != nil && current.Status.Resolved(); {
		if current.NextMatchID == nil {
			out.final = current
			return out, nil
		}
		next, err := store.get(ctx, *current.NextMatchID)
		if err != nil {
			return out, err
		}

		slot := feedSlot(current)
		id, typ := advancingEntrant(current)
		if !models.CanFire(models.EventPlace, next.Status) {
			if slotHolds(next, slot, id) {
				return out, nil
			}
			return out, fmt.Errorf("%w: next match %s is %s, result of %s cannot change",
				ErrInvalidState, next.ID, next.Status, current.ID)
		}
		if err := next.PlaceParticipant(slot, id, typ); err != nil {
			return out, fmt.Errorf("failed to place winner of %s into %s: %w", current.ID, next.ID, err)
		}

		feeders, err := store.feeders(ctx, next)
		if err != nil {
			return out, err
		}
		if allResolved(feeders) {
			if err := p.derive(next, feeders); err != nil {
				return out, err
			}
		}
		if err := store.save(ctx, next); err != nil {
			return out, err
		}
		out.changed = append(out.changed, next)
		current = next
	}
	return out, nil
}

// derive sets the next match's participants once every feeder has finished.
func (p *Progression) derive(next *models.Match, feeders []*models.Match) error {
	var p1, p2 *string
	var t1, t2 *models.ParticipantType
	for _, f := range feeders {
		id, typ := advancingEntrant(f)
		if feedSlot(f) == 1 {
			p1, t1 = id, typ
		} else {
			p2, t2 = id, typ
		}
	}
	if p1 == nil && p2 == nil {
		if err := next.CancelMatch("no participant advanced"); err != nil {
			return fmt.Errorf("failed to void match %s: %w", next.ID, err)
		}
		return nil
	}
	if err := next.SetParticipants(p1, t1, p2, t2); err != nil {
		return fmt.Errorf("failed to set participants of match %s: %w", next.ID, err)
	}
	p.logger.Debug("match participants derived",
		slog.String("match_id", next.ID),
		slog.String("status", string(next.Status)))
	return nil
}

// retract clears the slot m filled in its next match after m's result was
// reopened. It returns the touched match, if any.
func (p *Progression) retract(ctx context.Context, store matchStore, m *models.Match) (*models.Match, error) {
	if m.NextMatchID == nil {
		return nil, nil
	}
	next, err := store.get(ctx, *m.NextMatchID)
	if err != nil {
		return nil, err
	}
	slot := feedSlot(m)
	if slotHolds(next, slot, nil) {
		return nil, nil
	}
	if !models.CanFire(models.EventPlace, next.Status) {
		return nil, fmt.Errorf("%w: next match %s is %s, result of %s cannot be reopened",
			ErrInvalidState, next.ID, next.Status, m.ID)
	}
	if err := next.PlaceParticipant(slot, nil, nil); err != nil {
		return nil, err
	}
	if err := store.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// AdvanceByes pushes generator byes forward before the bracket is stored.
func (p *Progression) AdvanceByes(ctx context.Context, matches []*models.Match) error {
	store := newMemoryStore(matches)
	for _, m := range matches {
		if m.RoundNumber != 1 || !m.Status.Resolved() {
			continue
		}
		if _, err := p.advance(ctx, store, m); err != nil {
			return err
		}
	}
	return nil
}

func allResolved(matches []*models.Match) bool {
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if !m.Status.Resolved() {
			return false
		}
	}
	return true
}
