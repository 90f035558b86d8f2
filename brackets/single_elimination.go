package brackets

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

var ErrInvalidBracket = errors.New("bracket structure is invalid")

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Generate(params.TournamentID, params.Participants, params.Options)
}

// RoundsFor returns ceil(log2(n)) for n >= 2.
func RoundsFor(n int) int {
	if n < 2 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// arena holds the bracket nodes indexed by (round, slot); rounds[0] is round 1.
type arena struct {
	tournamentID string
	now          time.Time
	opts         Options
	rounds       [][]*models.Match
}

func (a *arena) node(round, slot int) *models.Match {
	m := &models.Match{
		ID:                 uuid.NewString(),
		TournamentID:       a.tournamentID,
		RoundNumber:        round,
		MatchNumberInRound: slot + 1,
		Status:             models.MatchStatusScheduled,
		CreatedAt:          a.now,
		UpdatedAt:          a.now,
	}
	if !a.opts.DefaultMatchTime.IsZero() {
		t := a.opts.DefaultMatchTime.Add(time.Duration(round-1) * a.opts.TimePerRound).UTC()
		m.ScheduledTime = &t
	}
	for len(a.rounds) < round {
		a.rounds = append(a.rounds, nil)
	}
	a.rounds[round-1] = append(a.rounds[round-1], m)
	return m
}

// link points every match at its parent in the next round. Pair (2k, 2k+1)
// of round r feeds slot k of round r+1.
func (a *arena) link() {
	for r := 0; r+1 < len(a.rounds); r++ {
		parents := a.rounds[r+1]
		for j, m := range a.rounds[r] {
			parentID := parents[j/2].ID
			slot := j%2 + 1
			m.NextMatchID = &parentID
			m.NextMatchSlot = &slot
		}
	}
}

func (a *arena) flatten() []*models.Match {
	var out []*models.Match
	for _, round := range a.rounds {
		out = append(out, round...)
	}
	return out
}

// Generate builds a single-elimination bracket. No persistence happens here.
func Generate(tournamentID string, participants []Participant, opts Options) ([]*models.Match, error) {
	n := len(participants)
	if n < 2 {
		return nil, fmt.Errorf("%w: single elimination needs at least 2 participants, got %d", models.ErrInvalidArgument, n)
	}
	for i, p := range participants {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: participant at position %d has an empty id", models.ErrInvalidArgument, i)
		}
	}

	seeded := seedOrder(participants, opts)
	numRounds := RoundsFor(n)
	fullSize := 1 << numRounds
	byes := fullSize - n

	a := &arena{tournamentID: tournamentID, now: opts.clock().Now().UTC(), opts: opts}

	for i := 0; i < byes; i++ {
		m := a.node(1, i)
		p := seeded[i]
		id, typ := p.ID, participantType(p)
		start := a.now
		end := a.now
		m.Participant1ID, m.Participant1Type = &id, &typ
		winner, winnerType := id, typ
		m.WinnerID, m.WinnerType = &winner, &winnerType
		m.Status = models.MatchStatusCompleted
		m.ActualStartTime, m.ActualEndTime = &start, &end
		m.IsConfirmed = true
	}

	remaining := seeded[byes:]
	for i := 0; i < len(remaining)/2; i++ {
		m := a.node(1, byes+i)
		hi, lo := remaining[i], remaining[len(remaining)-1-i]
		id1, t1 := hi.ID, participantType(hi)
		id2, t2 := lo.ID, participantType(lo)
		m.Participant1ID, m.Participant1Type = &id1, &t1
		m.Participant2ID, m.Participant2Type = &id2, &t2
	}

	for round := 2; len(a.rounds[round-2]) > 1; round++ {
		count := (len(a.rounds[round-2]) + 1) / 2
		for slot := 0; slot < count; slot++ {
			a.node(round, slot)
		}
	}
	a.link()

	return a.flatten(), nil
}

func participantType(p Participant) models.ParticipantType {
	if p.Type == "" {
		return models.ParticipantUser
	}
	return p.Type
}

// seedOrder returns entrants strongest first: by seed when every entrant has
// one, shuffled when requested, input order otherwise.
func seedOrder(participants []Participant, opts Options) []Participant {
	ordered := make([]Participant, len(participants))
	copy(ordered, participants)

	allSeeded := true
	for _, p := range ordered {
		if p.Seed == nil {
			allSeeded = false
			break
		}
	}

	switch {
	case allSeeded:
		sort.SliceStable(ordered, func(i, j int) bool {
			return *ordered[i].Seed < *ordered[j].Seed
		})
	case opts.Shuffle:
		rnd := opts.rand()
		for i := len(ordered) - 1; i > 0; i-- {
			j := rnd.IntN(i + 1)
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	return ordered
}

// EntrantCount returns the number of distinct entrants placed in round 1,
// which is the n the bracket was generated for.
func EntrantCount(matches []*models.Match) int {
	seen := make(map[string]struct{})
	for _, m := range matches {
		if m == nil || m.RoundNumber != 1 {
			continue
		}
		for _, id := range []*string{m.Participant1ID, m.Participant2ID} {
			if id != nil {
				seen[*id] = struct{}{}
			}
		}
	}
	return len(seen)
}

// Validate checks the bracket shape for n entrants: fullSize-1 matches, one
// final in the last round, and every other match feeding a match exactly one
// round ahead which has exactly two feeders.
func Validate(matches []*models.Match, n int) error {
	if n < 2 {
		return fmt.Errorf("%w: bracket needs at least 2 participants, got %d", models.ErrInvalidArgument, n)
	}
	numRounds := RoundsFor(n)
	expected := (1 << numRounds) - 1
	if len(matches) != expected {
		return fmt.Errorf("%w: %d matches for %d participants, expected %d", ErrInvalidBracket, len(matches), n, expected)
	}

	byID := make(map[string]*models.Match, len(matches))
	for _, m := range matches {
		if m == nil {
			return fmt.Errorf("%w: nil match", ErrInvalidBracket)
		}
		if _, dup := byID[m.ID]; dup {
			return fmt.Errorf("%w: duplicate match id %s", ErrInvalidBracket, m.ID)
		}
		byID[m.ID] = m
	}

	var finals []*models.Match
	feeders := make(map[string]int, len(matches))
	for _, m := range matches {
		if m.NextMatchID == nil {
			finals = append(finals, m)
			continue
		}
		next, ok := byID[*m.NextMatchID]
		if !ok {
			return fmt.Errorf("%w: match %s points at unknown match %s", ErrInvalidBracket, m.ID, *m.NextMatchID)
		}
		if next.RoundNumber != m.RoundNumber+1 {
			return fmt.Errorf("%w: match %s in round %d points at match %s in round %d",
				ErrInvalidBracket, m.ID, m.RoundNumber, next.ID, next.RoundNumber)
		}
		feeders[next.ID]++
	}

	if len(finals) != 1 {
		return fmt.Errorf("%w: found %d matches without a next match, expected 1", ErrInvalidBracket, len(finals))
	}
	if finals[0].RoundNumber != numRounds {
		return fmt.Errorf("%w: final %s is in round %d, expected %d", ErrInvalidBracket, finals[0].ID, finals[0].RoundNumber, numRounds)
	}

	for _, m := range matches {
		if m.RoundNumber > 1 && feeders[m.ID] != 2 {
			return fmt.Errorf("%w: match %s in round %d has %d feeders, expected 2", ErrInvalidBracket, m.ID, m.RoundNumber, feeders[m.ID])
		}
	}
	return nil
}
