package podds

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.MigrateAll(context.Background()))
	return store
}

func TestGenerateCreateTableSQL(t *testing.T) {
	q := generateCreateTableSQL(&PredictionRecord{}, "predictions")
	assert.True(t, strings.HasPrefix(q, "CREATE TABLE IF NOT EXISTS predictions ("))
	assert.Contains(t, q, "run_id TEXT, match_id TEXT")
	assert.Contains(t, q, "stake TEXT")
	assert.Contains(t, q, "PRIMARY KEY (run_id, match_id)")

	idx := generateIndexSQL(&Match{}, "matches")
	assert.Equal(t, []string{
		"CREATE INDEX IF NOT EXISTS idx_matches_league ON matches(league)",
		"CREATE INDEX IF NOT EXISTS idx_matches_season ON matches(season)",
		"CREATE INDEX IF NOT EXISTS idx_matches_match_date ON matches(match_date)",
	}, idx)
}

func TestRebind(t *testing.T) {
	q := "SELECT id FROM runs WHERE id = ? AND leagues = ?"
	assert.Equal(t, q, (&Store{driver: "sqlite"}).rebind(q))
	assert.Equal(t, "SELECT id FROM runs WHERE id = $1 AND leagues = $2", (&Store{driver: "postgres"}).rebind(q))
}

func TestBuildWhereClauseIsSorted(t *testing.T) {
	where, args := buildWhereClause(map[string]any{"run_id": "r", "match_id": "m"})
	assert.Equal(t, "match_id = ? AND run_id = ?", where)
	assert.Equal(t, []any{"m", "r"}, args)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), "oracle", "x")
	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestSaveMatchesAndFind(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	matches := twoSeasons()

	require.NoError(t, store.SaveMatches(ctx, matches))
	// saving again updates in place
	require.NoError(t, store.SaveMatches(ctx, matches))

	found, err := store.FindMatches(ctx, "E0")
	require.NoError(t, err)
	require.Len(t, found, len(matches))
	for i, m := range found {
		assert.Equal(t, matches[i].ID, m.ID)
		assert.True(t, matches[i].Date.Equal(m.Date), "%s != %s", matches[i].Date, m.Date)
		assert.Equal(t, matches[i].HomeGoals, m.HomeGoals)
		assert.Equal(t, matches[i].Odds(), m.Odds())
	}

	none, err := store.FindMatches(ctx, "SC0")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindByPrimaryKey(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	m := twoSeasons()[3]
	require.NoError(t, store.Save(ctx, m))

	got := &Match{ID: m.ID}
	require.NoError(t, store.FindByPrimaryKey(ctx, got))
	assert.Equal(t, m.HomeTeam, got.HomeTeam)
	assert.Equal(t, m.AwayOdds, got.AwayOdds)

	err := store.FindByPrimaryKey(ctx, &Match{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, m)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, store.Delete(ctx, m))
	ok, err = store.Exists(ctx, m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	p, err := NewPipeline(testConfig(), nil)
	require.NoError(t, err)
	run := NewRunRecord(testConfig())
	matches := twoSeasons()
	res, err := p.RunLeague(ctx, run.ID, LeagueJob{League: "E0", Matches: matches, Transitions: BuildTransitionTable(matches)})
	require.NoError(t, err)
	run.Leagues, run.Matches = "E0", len(res.Rows)

	require.NoError(t, store.SaveRun(ctx, run, res.Rows))

	got := &RunRecord{ID: run.ID}
	require.NoError(t, store.FindByPrimaryKey(ctx, got))
	assert.Equal(t, len(matches), got.Matches)
	assert.Equal(t, 5, got.WindowSize)

	rows, err := store.FindPredictions(ctx, run.ID, "E0")
	require.NoError(t, err)
	require.Len(t, rows, len(res.Rows))
	for i, r := range rows {
		want := res.Rows[i]
		assert.Equal(t, want.Seq, r.Seq)
		assert.Equal(t, want.MatchID, r.MatchID)
		assert.Equal(t, want.BetSide, r.BetSide)
		assert.InDelta(t, want.HomeWinProbability, r.HomeWinProbability, 1e-12)
		assert.True(t, want.Bankroll.Equal(r.Bankroll), "%s != %s", want.Bankroll, r.Bankroll)
		assert.True(t, want.Stake.Equal(r.Stake))
	}

	other, err := store.FindPredictions(ctx, "another-run", "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestWritePredictionsCSV(t *testing.T) {
	row := &PredictionRecord{
		Seq: 7, League: "E0", Season: "2324", Date: time.Date(2023, 8, 12, 14, 0, 0, 0, time.UTC),
		HomeTeam: "Arsenal", AwayTeam: "Nott'm Forest", HomeGoals: 2, AwayGoals: 1, Result: "H",
		BetSide: "H", NetOdds: 0.25, Kelly: 0.1,
		Stake: decimal.RequireFromString("2.5"), Profit: decimal.RequireFromString("0.625"),
		Bankroll: decimal.RequireFromString("100.625"),
	}
	var buf bytes.Buffer
	require.NoError(t, WritePredictionsCSV(&buf, []*PredictionRecord{row}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, predictionCSVHeader, records[0])
	rec := records[1]
	assert.Equal(t, "7", rec[0])
	assert.Equal(t, "2023-08-12", rec[3])
	assert.Equal(t, "Nott'm Forest", rec[5])
	assert.Equal(t, "2.50", rec[len(rec)-3])
	assert.Equal(t, "100.63", rec[len(rec)-1])
}
