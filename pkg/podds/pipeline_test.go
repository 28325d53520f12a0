package podds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu        sync.Mutex
	rated     map[string]int
	bets      map[string]int
	bankrolls map[string]float64
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{rated: map[string]int{}, bets: map[string]int{}, bankrolls: map[string]float64{}}
}

func (r *countingRecorder) MatchRated(league string, uncertain bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rated[league]++
}

func (r *countingRecorder) BetSettled(league string, side Side, won bool, stake float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bets[league]++
}

func (r *countingRecorder) BankrollUpdated(league string, bankroll float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bankrolls[league] = bankroll
}

func jobFor(league string, matches []*Match) LeagueJob {
	return LeagueJob{League: league, Matches: matches, Transitions: BuildTransitionTable(matches)}
}

// relabel copies matches into another league.
func relabel(league string, matches []*Match) []*Match {
	out := make([]*Match, len(matches))
	for i, m := range matches {
		out[i] = NewMatch(league, m.Season, m.Date, m.HomeTeam, m.AwayTeam, m.HomeGoals, m.AwayGoals, m.Odds())
	}
	return out
}

func TestRunLeagueProducesOneRowPerMatch(t *testing.T) {
	rec := newCountingRecorder()
	p, err := NewPipeline(testConfig(), rec)
	require.NoError(t, err)

	matches := twoSeasons()
	res, err := p.RunLeague(context.Background(), "run-1", jobFor("E0", matches))
	require.NoError(t, err)
	require.Len(t, res.Rows, len(matches))

	bankroll := decimal.NewFromInt(100)
	bets := 0
	for i, row := range res.Rows {
		assert.Equal(t, i, row.Seq)
		assert.Equal(t, "run-1", row.RunID)
		assert.Equal(t, matches[i].ID, row.MatchID)
		assert.InDelta(t, 1.0, row.HomeWinProbability+row.DrawProbability+row.AwayWinProbability, 1e-3)

		if row.BetSide == string(SideNone) {
			assert.True(t, row.Stake.IsZero())
			assert.True(t, row.Bankroll.Equal(bankroll), "row %d bankroll moved without a bet", i)
		} else {
			bets++
			assert.Greater(t, row.Kelly, 0.0)
			if row.BetSide == row.Result {
				assert.True(t, row.Profit.IsPositive())
			} else {
				assert.True(t, row.Profit.Equal(row.Stake.Neg()))
			}
		}
		bankroll = row.Bankroll
	}

	assert.Equal(t, bets, res.Summary.Bets)
	assert.True(t, res.Summary.Final.Equal(bankroll))
	assert.Equal(t, len(matches), rec.rated["E0"])
	assert.Equal(t, bets, rec.bets["E0"])
	assert.InDelta(t, bankroll.InexactFloat64(), rec.bankrolls["E0"], 1e-9)
}

func TestRunLeagueRowsAreCausal(t *testing.T) {
	p, err := NewPipeline(testConfig(), nil)
	require.NoError(t, err)
	matches := twoSeasons()

	full, err := p.RunLeague(context.Background(), "r", jobFor("E0", matches))
	require.NoError(t, err)

	cut := 40
	prefix, err := p.RunLeague(context.Background(), "r", jobFor("E0", matches[:cut]))
	require.NoError(t, err)

	for i := range prefix.Rows {
		a, b := full.Rows[i], prefix.Rows[i]
		assert.Equal(t, a.HomeExpected, b.HomeExpected)
		assert.Equal(t, a.BetSide, b.BetSide)
		assert.True(t, a.Bankroll.Equal(b.Bankroll))
	}
}

func TestRunLeaguesMatchesSequentialRuns(t *testing.T) {
	p, err := NewPipeline(testConfig(), newCountingRecorder())
	require.NoError(t, err)

	e0 := twoSeasons()
	e1 := relabel("E1", twoSeasons()[:20])
	jobs := []LeagueJob{jobFor("E0", e0), jobFor("E1", e1)}

	results, err := p.RunLeagues(context.Background(), "r", jobs)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "E0", results[0].League)
	assert.Equal(t, "E1", results[1].League)

	for i, job := range jobs {
		single, err := p.RunLeague(context.Background(), "r", job)
		require.NoError(t, err)
		require.Len(t, results[i].Rows, len(single.Rows))
		assert.True(t, results[i].Summary.Final.Equal(single.Summary.Final))
		for j := range single.Rows {
			assert.Equal(t, single.Rows[j].AwayExpected, results[i].Rows[j].AwayExpected)
		}
	}
}

func TestRunLeaguesReturnsFirstFailure(t *testing.T) {
	p, err := NewPipeline(testConfig(), nil)
	require.NoError(t, err)

	bad := relabel("E1", twoSeasons()[:10])
	bad[6].Date = bad[2].Date.Add(-time.Hour)

	_, err = p.RunLeagues(context.Background(), "r", []LeagueJob{jobFor("E0", twoSeasons()), jobFor("E1", bad)})
	var de *DataIntegrityError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "E1", de.League)
	assert.Equal(t, 6, de.Index)
	assert.Equal(t, "date", de.Field)
}

func TestRunLeagueRejectsBadOdds(t *testing.T) {
	p, err := NewPipeline(testConfig(), nil)
	require.NoError(t, err)

	matches := twoSeasons()[:5]
	matches[3] = NewMatch("E0", "2223", matches[3].Date, matches[3].HomeTeam, matches[3].AwayTeam, 1, 1, Odds{Home: 1.0, Draw: 3, Away: 4})

	_, err = p.RunLeague(context.Background(), "r", jobFor("E0", matches))
	var de *DataIntegrityError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "odds", de.Field)
	assert.Equal(t, 3, de.Index)
	assert.Equal(t, "2223", de.Season)
}

func TestSkipUncertainBets(t *testing.T) {
	c := testConfig()
	c.SkipUncertainBets = true
	c.MarginThreshold = 0
	p, err := NewPipeline(c, nil)
	require.NoError(t, err)

	res, err := p.RunLeague(context.Background(), "r", jobFor("E0", twoSeasons()))
	require.NoError(t, err)
	for _, row := range res.Rows {
		if row.Uncertain {
			assert.Equal(t, string(SideNone), row.BetSide)
		} else {
			// with no margin some side always clears the threshold
			assert.NotEqual(t, string(SideNone), row.BetSide)
		}
	}
}

func TestRunLeagueHonoursCancellation(t *testing.T) {
	p, err := NewPipeline(testConfig(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.RunLeague(ctx, "r", jobFor("E0", twoSeasons()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPipelineValidatesConfig(t *testing.T) {
	c := testConfig()
	c.KellyDivisor = 0
	_, err := NewPipeline(c, nil)
	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))
}
