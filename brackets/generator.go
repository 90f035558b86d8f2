package brackets

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/jonboulle/clockwork"
)

// Participant is one bracket entrant. Seed 1 is the strongest.
type Participant struct {
	ID   string
	Type models.ParticipantType
	Seed *int
}

// BareParticipants wraps plain ids with the seed unset.
func BareParticipants(ids ...string) []Participant {
	out := make([]Participant, len(ids))
	for i, id := range ids {
		out[i] = Participant{ID: id, Type: models.ParticipantUser}
	}
	return out
}

// RandSource is the randomness used for shuffling. *rand.Rand satisfies it.
type RandSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type Options struct {
	Shuffle          bool
	DefaultMatchTime time.Time
	TimePerRound     time.Duration
	Rand             RandSource
	Clock            clockwork.Clock
}

func DefaultOptions() Options {
	return Options{Shuffle: true}
}

func (o Options) rand() RandSource {
	if o.Rand == nil {
		return globalRand{}
	}
	return o.Rand
}

func (o Options) clock() clockwork.Clock {
	if o.Clock == nil {
		return clockwork.NewRealClock()
	}
	return o.Clock
}

type GenerateBracketParams struct {
	TournamentID string
	Participants []Participant
	Options      Options
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.Match, error)

	GetName() string
}
