package podds

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/richard-senior/podds/internal/logger"
	"github.com/shopspring/decimal"
)

// Compile-time checks to ensure records implement Persistable interface
var _ Persistable = (*PredictionRecord)(nil)
var _ Persistable = (*RunRecord)(nil)

// PredictionRecord is the output row for one match: the pre-match ratings, the model's
// view of the match, the bet taken and the bankroll after settlement.
type PredictionRecord struct {
	RunID   string `json:"runId" column:"run_id" dbtype:"TEXT" primary:"true" index:"true"`
	MatchID string `json:"matchId" column:"match_id" dbtype:"TEXT" primary:"true"`
	Seq     int    `json:"seq" column:"seq" dbtype:"INTEGER NOT NULL"`

	League    string    `json:"league" column:"league" dbtype:"TEXT NOT NULL" index:"true"`
	Season    string    `json:"season" column:"season" dbtype:"TEXT NOT NULL"`
	Date      time.Time `json:"date" column:"match_date" dbtype:"TIMESTAMP"`
	HomeTeam  string    `json:"homeTeam" column:"home_team" dbtype:"TEXT NOT NULL"`
	AwayTeam  string    `json:"awayTeam" column:"away_team" dbtype:"TEXT NOT NULL"`
	HomeGoals int       `json:"homeGoals" column:"home_goals" dbtype:"INTEGER"`
	AwayGoals int       `json:"awayGoals" column:"away_goals" dbtype:"INTEGER"`
	Result    string    `json:"result" column:"result" dbtype:"TEXT"`

	// Pre-match snapshot
	LeagueHomeAverage float64 `json:"leagueHomeAverage" column:"league_home_avg" dbtype:"DOUBLE PRECISION"`
	LeagueAwayAverage float64 `json:"leagueAwayAverage" column:"league_away_avg" dbtype:"DOUBLE PRECISION"`
	HomeOffensive     float64 `json:"homeOffensive" column:"home_off" dbtype:"DOUBLE PRECISION"`
	HomeDefensive     float64 `json:"homeDefensive" column:"home_def" dbtype:"DOUBLE PRECISION"`
	AwayOffensive     float64 `json:"awayOffensive" column:"away_off" dbtype:"DOUBLE PRECISION"`
	AwayDefensive     float64 `json:"awayDefensive" column:"away_def" dbtype:"DOUBLE PRECISION"`
	Uncertain         bool    `json:"uncertain" column:"uncertain" dbtype:"BOOLEAN"`

	// Model
	HomeExpected        float64 `json:"homeExpected" column:"home_xg" dbtype:"DOUBLE PRECISION"`
	AwayExpected        float64 `json:"awayExpected" column:"away_xg" dbtype:"DOUBLE PRECISION"`
	HomeWinProbability  float64 `json:"homeWinProbability" column:"p_home" dbtype:"DOUBLE PRECISION"`
	DrawProbability     float64 `json:"drawProbability" column:"p_draw" dbtype:"DOUBLE PRECISION"`
	AwayWinProbability  float64 `json:"awayWinProbability" column:"p_away" dbtype:"DOUBLE PRECISION"`
	MostLikelyHomeGoals int     `json:"mostLikelyHomeGoals" column:"ml_home_goals" dbtype:"INTEGER"`
	MostLikelyAwayGoals int     `json:"mostLikelyAwayGoals" column:"ml_away_goals" dbtype:"INTEGER"`
	Over2p5Goals        float64 `json:"over2p5Goals" column:"p_over_2_5" dbtype:"DOUBLE PRECISION"`

	// Market and stake
	HomeOdds float64         `json:"homeOdds" column:"home_odds" dbtype:"DOUBLE PRECISION"`
	DrawOdds float64         `json:"drawOdds" column:"draw_odds" dbtype:"DOUBLE PRECISION"`
	AwayOdds float64         `json:"awayOdds" column:"away_odds" dbtype:"DOUBLE PRECISION"`
	BetSide  string          `json:"betSide" column:"bet_side" dbtype:"TEXT"`
	NetOdds  float64         `json:"netOdds" column:"net_odds" dbtype:"DOUBLE PRECISION"`
	Kelly    float64         `json:"kelly" column:"kelly" dbtype:"DOUBLE PRECISION"`
	Stake    decimal.Decimal `json:"stake" column:"stake" dbtype:"TEXT"`
	Profit   decimal.Decimal `json:"profit" column:"profit" dbtype:"TEXT"`
	Bankroll decimal.Decimal `json:"bankroll" column:"bankroll" dbtype:"TEXT"`
}

// newPredictionRecord fills the snapshot, model and decision parts of a row.
// The bankroll fields are filled in by the pipeline once the wager is settled.
func newPredictionRecord(runID string, s *Snapshot, homeXG, awayXG float64, o Outcome, d BetDecision) *PredictionRecord {
	m := s.Match
	return &PredictionRecord{
		RunID:     runID,
		MatchID:   m.ID,
		Seq:       s.Index,
		League:    m.League,
		Season:    m.Season,
		Date:      m.Date,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		HomeGoals: m.HomeGoals,
		AwayGoals: m.AwayGoals,
		Result:    string(m.Result()),

		LeagueHomeAverage: s.LeagueHomeAverage,
		LeagueAwayAverage: s.LeagueAwayAverage,
		HomeOffensive:     s.HomeOffensive,
		HomeDefensive:     s.HomeDefensive,
		AwayOffensive:     s.AwayOffensive,
		AwayDefensive:     s.AwayDefensive,
		Uncertain:         s.Uncertain,

		HomeExpected:        homeXG,
		AwayExpected:        awayXG,
		HomeWinProbability:  o.HomeWin,
		DrawProbability:     o.Draw,
		AwayWinProbability:  o.AwayWin,
		MostLikelyHomeGoals: o.MostLikelyHomeGoals,
		MostLikelyAwayGoals: o.MostLikelyAwayGoals,
		Over2p5Goals:        o.OverGoals(2.5),

		HomeOdds: m.HomeOdds,
		DrawOdds: m.DrawOdds,
		AwayOdds: m.AwayOdds,
		BetSide:  string(d.Side),
		NetOdds:  d.NetOdds,
		Kelly:    d.Kelly,
	}
}

func (p *PredictionRecord) GetTableName() string {
	return "predictions"
}

func (p *PredictionRecord) GetPrimaryKey() map[string]any {
	return map[string]any{"run_id": p.RunID, "match_id": p.MatchID}
}

func (p *PredictionRecord) SetPrimaryKey(pk map[string]any) error {
	runID, ok1 := pk["run_id"].(string)
	matchID, ok2 := pk["match_id"].(string)
	if !ok1 || !ok2 {
		return fmt.Errorf("primary key needs string 'run_id' and 'match_id'")
	}
	p.RunID, p.MatchID = runID, matchID
	return nil
}

func (p *PredictionRecord) BeforeSave() error {
	if p.RunID == "" || p.MatchID == "" {
		return fmt.Errorf("prediction is missing its run or match id")
	}
	return nil
}

func (p *PredictionRecord) AfterSave() error    { return nil }
func (p *PredictionRecord) BeforeDelete() error { return nil }
func (p *PredictionRecord) AfterDelete() error  { return nil }

// RunRecord describes one invocation of the pipeline.
type RunRecord struct {
	ID              string    `json:"id" column:"id" dbtype:"TEXT" primary:"true"`
	CreatedAt       time.Time `json:"createdAt" column:"created_at" dbtype:"TIMESTAMP"`
	Leagues         string    `json:"leagues" column:"leagues" dbtype:"TEXT"`
	Matches         int       `json:"matches" column:"matches" dbtype:"INTEGER"`
	WindowSize      int       `json:"windowSize" column:"window_size" dbtype:"INTEGER"`
	MarginThreshold float64   `json:"marginThreshold" column:"margin_threshold" dbtype:"DOUBLE PRECISION"`
	KellyDivisor    float64   `json:"kellyDivisor" column:"kelly_divisor" dbtype:"DOUBLE PRECISION"`
	StartBankroll   float64   `json:"startBankroll" column:"start_bankroll" dbtype:"DOUBLE PRECISION"`
}

// NewRunRecord starts a run record with a fresh ID.
func NewRunRecord(config *PoddsConfig) *RunRecord {
	return &RunRecord{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		WindowSize:      config.WindowSize,
		MarginThreshold: config.MarginThreshold,
		KellyDivisor:    config.KellyDivisor,
		StartBankroll:   config.StartBankroll,
	}
}

func (r *RunRecord) GetTableName() string {
	return "runs"
}

func (r *RunRecord) GetPrimaryKey() map[string]any {
	return map[string]any{"id": r.ID}
}

func (r *RunRecord) SetPrimaryKey(pk map[string]any) error {
	id, ok := pk["id"].(string)
	if !ok {
		return fmt.Errorf("primary key 'id' must be a string")
	}
	r.ID = id
	return nil
}

func (r *RunRecord) BeforeSave() error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (r *RunRecord) AfterSave() error    { return nil }
func (r *RunRecord) BeforeDelete() error { return nil }
func (r *RunRecord) AfterDelete() error  { return nil }

/////////////////////////////////////////////////////////////////////////
////// Collection Operations
/////////////////////////////////////////////////////////////////////////

// MigrateAll creates every table the pipeline writes to.
func (s *Store) MigrateAll(ctx context.Context) error {
	return s.Migrate(ctx, &Match{}, &RunRecord{}, &PredictionRecord{})
}

// SaveMatches saves matches using BulkSave
func (s *Store) SaveMatches(ctx context.Context, matches []*Match) error {
	objs := make([]Persistable, len(matches))
	for i, m := range matches {
		objs[i] = m
	}
	if err := s.BulkSave(ctx, objs); err != nil {
		return fmt.Errorf("failed to bulk save matches: %w", err)
	}
	logger.Info("Bulk saved matches", len(matches))
	return nil
}

// SaveRun writes the run record and all of its prediction rows in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *RunRecord, rows []*PredictionRecord) error {
	objs := make([]Persistable, 0, len(rows)+1)
	objs = append(objs, run)
	for _, r := range rows {
		objs = append(objs, r)
	}
	if err := s.BulkSave(ctx, objs); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	logger.Info("Saved run", run.ID, len(rows))
	return nil
}

// FindPredictions returns a run's rows for one league, or every league if league is empty,
// in the order they were produced.
func (s *Store) FindPredictions(ctx context.Context, runID, league string) ([]*PredictionRecord, error) {
	where, args := "run_id = ?", []any{runID}
	if league != "" {
		where += " AND league = ?"
		args = append(args, league)
	}
	results, err := s.FindWhere(ctx, &PredictionRecord{}, where+" ORDER BY league, seq", args...)
	if err != nil {
		return nil, err
	}
	rows := make([]*PredictionRecord, len(results))
	for i, r := range results {
		rows[i] = r.(*PredictionRecord)
	}
	return rows, nil
}

// FindMatches returns the stored matches of a league in play order.
func (s *Store) FindMatches(ctx context.Context, league string) ([]*Match, error) {
	results, err := s.FindWhere(ctx, &Match{}, "league = ?", league)
	if err != nil {
		return nil, err
	}
	matches := make([]*Match, len(results))
	for i, r := range results {
		matches[i] = r.(*Match)
	}
	SortMatches(matches)
	return matches, nil
}

var predictionCSVHeader = []string{
	"seq", "league", "season", "date", "home_team", "away_team", "home_goals", "away_goals", "result",
	"league_home_avg", "league_away_avg", "home_off", "home_def", "away_off", "away_def", "uncertain",
	"home_xg", "away_xg", "p_home", "p_draw", "p_away",
	"home_odds", "draw_odds", "away_odds", "bet", "b", "kelly", "stake", "profit", "bankroll",
}

// WritePredictionsCSV writes rows with a header line.
func WritePredictionsCSV(w io.Writer, rows []*PredictionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionCSVHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.Seq), r.League, r.Season, r.Date.Format(time.DateOnly), r.HomeTeam, r.AwayTeam,
			strconv.Itoa(r.HomeGoals), strconv.Itoa(r.AwayGoals), r.Result,
			f(r.LeagueHomeAverage), f(r.LeagueAwayAverage), f(r.HomeOffensive), f(r.HomeDefensive),
			f(r.AwayOffensive), f(r.AwayDefensive), strconv.FormatBool(r.Uncertain),
			f(r.HomeExpected), f(r.AwayExpected), f(r.HomeWinProbability), f(r.DrawProbability), f(r.AwayWinProbability),
			f(r.HomeOdds), f(r.DrawOdds), f(r.AwayOdds), r.BetSide, f(r.NetOdds), f(r.Kelly),
			r.Stake.StringFixed(2), r.Profit.StringFixed(2), r.Bankroll.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
