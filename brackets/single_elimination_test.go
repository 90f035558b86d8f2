package brackets

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededParticipants(n int) []Participant {
	out := make([]Participant, n)
	for i := range out {
		seed := i + 1
		out[i] = Participant{ID: fmt.Sprintf("seed%d", seed), Type: models.ParticipantUser, Seed: &seed}
	}
	return out
}

func byRound(matches []*models.Match) map[int][]*models.Match {
	out := make(map[int][]*models.Match)
	for _, m := range matches {
		out[m.RoundNumber] = append(out[m.RoundNumber], m)
	}
	return out
}

func fixedOptions() Options {
	return Options{
		Shuffle:          false,
		DefaultMatchTime: time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC),
		Clock:            clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)),
	}
}

func TestGenerateShapeForAllSizes(t *testing.T) {
	for n := 2; n <= 40; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			matches, err := Generate("t1", seededParticipants(n), fixedOptions())
			require.NoError(t, err)

			rounds := RoundsFor(n)
			assert.Len(t, matches, (1<<rounds)-1)
			require.NoError(t, Validate(matches, n))

			byID := make(map[string]*models.Match, len(matches))
			for _, m := range matches {
				byID[m.ID] = m
			}
			finals := 0
			feeders := make(map[string]int)
			for _, m := range matches {
				if m.NextMatchID == nil {
					finals++
					assert.Equal(t, rounds, m.RoundNumber)
					continue
				}
				next := byID[*m.NextMatchID]
				require.NotNil(t, next)
				assert.Equal(t, m.RoundNumber+1, next.RoundNumber)
				feeders[next.ID]++
			}
			assert.Equal(t, 1, finals)
			for _, m := range matches {
				if m.RoundNumber > 1 {
					assert.Equal(t, 2, feeders[m.ID], "match %s round %d", m.ID, m.RoundNumber)
				}
			}
		})
	}
}

func TestGenerateFiveSeededEntrants(t *testing.T) {
	opts := fixedOptions()
	matches, err := Generate("t1", seededParticipants(5), opts)
	require.NoError(t, err)
	require.Len(t, matches, 7)

	rounds := byRound(matches)
	require.Len(t, rounds[1], 4)
	assert.Len(t, rounds[2], 2)
	assert.Len(t, rounds[3], 1)

	now := opts.Clock.Now().UTC()
	for i, m := range rounds[1][:3] {
		assert.Equal(t, models.MatchStatusCompleted, m.Status)
		assert.Equal(t, i+1, m.MatchNumberInRound)
		require.NotNil(t, m.Participant1ID)
		assert.Nil(t, m.Participant2ID)
		assert.Equal(t, fmt.Sprintf("seed%d", i+1), *m.Participant1ID)
		require.NotNil(t, m.WinnerID)
		assert.Equal(t, *m.Participant1ID, *m.WinnerID)
		assert.True(t, m.IsConfirmed)
		assert.Equal(t, now, *m.ActualStartTime)
		assert.Equal(t, now, *m.ActualEndTime)
	}

	playable := rounds[1][3]
	assert.Equal(t, models.MatchStatusScheduled, playable.Status)
	assert.Equal(t, 4, playable.MatchNumberInRound)
	assert.Equal(t, "seed4", *playable.Participant1ID)
	assert.Equal(t, "seed5", *playable.Participant2ID)
	assert.Equal(t, opts.DefaultMatchTime, *playable.ScheduledTime)

	for _, m := range append(rounds[2], rounds[3]...) {
		assert.Equal(t, models.MatchStatusScheduled, m.Status)
		assert.Nil(t, m.Participant1ID)
		assert.Nil(t, m.Participant2ID)
	}
	assert.Nil(t, rounds[3][0].NextMatchID)
}

func TestGenerateFourSeededEntrants(t *testing.T) {
	matches, err := Generate("t1", seededParticipants(4), fixedOptions())
	require.NoError(t, err)
	require.Len(t, matches, 3)

	rounds := byRound(matches)
	require.Len(t, rounds[1], 2)
	require.Len(t, rounds[2], 1)
	final := rounds[2][0]

	assert.Equal(t, "seed1", *rounds[1][0].Participant1ID)
	assert.Equal(t, "seed4", *rounds[1][0].Participant2ID)
	assert.Equal(t, "seed2", *rounds[1][1].Participant1ID)
	assert.Equal(t, "seed3", *rounds[1][1].Participant2ID)

	for i, m := range rounds[1] {
		require.NotNil(t, m.NextMatchID)
		assert.Equal(t, final.ID, *m.NextMatchID)
		assert.Equal(t, i+1, *m.NextMatchSlot)
	}
	assert.Nil(t, final.NextMatchID)
}

func TestGenerateRequiresTwoParticipants(t *testing.T) {
	_, err := Generate("t1", nil, fixedOptions())
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = Generate("t1", BareParticipants("only"), fixedOptions())
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestGenerateSeedsSortedRegardlessOfInputOrder(t *testing.T) {
	in := seededParticipants(4)
	in[0], in[3] = in[3], in[0]
	in[1], in[2] = in[2], in[1]

	matches, err := Generate("t1", in, fixedOptions())
	require.NoError(t, err)
	assert.Equal(t, "seed1", *matches[0].Participant1ID)
	assert.Equal(t, "seed4", *matches[0].Participant2ID)
}

func TestGenerateIsDeterministicForSeededInput(t *testing.T) {
	topology := func(matches []*models.Match) []string {
		index := make(map[string]int, len(matches))
		for i, m := range matches {
			index[m.ID] = i
		}
		var out []string
		for _, m := range matches {
			p1, p2, next := "-", "-", -1
			if m.Participant1ID != nil {
				p1 = *m.Participant1ID
			}
			if m.Participant2ID != nil {
				p2 = *m.Participant2ID
			}
			if m.NextMatchID != nil {
				next = index[*m.NextMatchID]
			}
			out = append(out, fmt.Sprintf("r%d#%d %s/%s ->%d %s", m.RoundNumber, m.MatchNumberInRound, p1, p2, next, m.Status))
		}
		return out
	}

	first, err := Generate("t1", seededParticipants(11), fixedOptions())
	require.NoError(t, err)
	second, err := Generate("t1", seededParticipants(11), fixedOptions())
	require.NoError(t, err)

	assert.Equal(t, topology(first), topology(second))
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestGenerateShuffleUsesInjectedSource(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	run := func() []string {
		opts := fixedOptions()
		opts.Shuffle = true
		opts.Rand = rand.New(rand.NewPCG(42, 7))
		matches, err := Generate("t1", BareParticipants(ids...), opts)
		require.NoError(t, err)
		var order []string
		for _, m := range matches[:4] {
			order = append(order, *m.Participant1ID, *m.Participant2ID)
		}
		return order
	}

	first, second := run(), run()
	assert.Equal(t, first, second)
	assert.ElementsMatch(t, ids, first)
}

func TestGenerateWithoutShuffleKeepsInputOrder(t *testing.T) {
	seed := 1
	in := BareParticipants("a", "b", "c", "d")
	in[0].Seed = &seed

	matches, err := Generate("t1", in, fixedOptions())
	require.NoError(t, err)
	assert.Equal(t, "a", *matches[0].Participant1ID)
	assert.Equal(t, "d", *matches[0].Participant2ID)
	assert.Equal(t, "b", *matches[1].Participant1ID)
	assert.Equal(t, "c", *matches[1].Participant2ID)
}

func TestGenerateSchedulesLaterRounds(t *testing.T) {
	opts := fixedOptions()
	opts.TimePerRound = 2 * time.Hour

	matches, err := Generate("t1", seededParticipants(8), opts)
	require.NoError(t, err)
	for _, m := range matches {
		want := opts.DefaultMatchTime.Add(time.Duration(m.RoundNumber-1) * opts.TimePerRound)
		require.NotNil(t, m.ScheduledTime)
		assert.Equal(t, want, *m.ScheduledTime, "round %d", m.RoundNumber)
	}
}

func TestGeneratorInterface(t *testing.T) {
	g := NewSingleEliminationGenerator()
	assert.Equal(t, "SingleElimination", g.GetName())

	matches, err := g.GenerateBracket(context.Background(), GenerateBracketParams{
		TournamentID: "t9",
		Participants: seededParticipants(2),
		Options:      fixedOptions(),
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "t9", matches[0].TournamentID)
	assert.Nil(t, matches[0].NextMatchID)
}

func TestValidateDetectsCorruption(t *testing.T) {
	fresh := func() []*models.Match {
		matches, err := Generate("t1", seededParticipants(6), fixedOptions())
		require.NoError(t, err)
		return matches
	}

	t.Run("wrong count", func(t *testing.T) {
		matches := fresh()
		assert.ErrorIs(t, Validate(matches[1:], 6), ErrInvalidBracket)
	})

	t.Run("second final", func(t *testing.T) {
		matches := fresh()
		matches[0].NextMatchID = nil
		assert.ErrorIs(t, Validate(matches, 6), ErrInvalidBracket)
	})

	t.Run("skips a round", func(t *testing.T) {
		matches := fresh()
		final := matches[len(matches)-1]
		matches[0].NextMatchID = &final.ID
		assert.ErrorIs(t, Validate(matches, 6), ErrInvalidBracket)
	})

	t.Run("dangling reference", func(t *testing.T) {
		matches := fresh()
		missing := "missing"
		matches[0].NextMatchID = &missing
		assert.ErrorIs(t, Validate(matches, 6), ErrInvalidBracket)
	})

	t.Run("round one drives the size", func(t *testing.T) {
		matches := fresh()
		assert.Equal(t, 6, EntrantCount(matches))
		assert.NoError(t, Validate(matches, EntrantCount(matches)))
	})

	t.Run("too few participants", func(t *testing.T) {
		assert.ErrorIs(t, Validate(nil, 1), models.ErrInvalidArgument)
	})
}
