package podds

import (
	"context"
	"errors"

	"github.com/richard-senior/podds/internal/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Recorder receives per-match events from the pipeline. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	MatchRated(league string, uncertain bool)
	BetSettled(league string, side Side, won bool, stake float64)
	BankrollUpdated(league string, bankroll float64)
}

type nopRecorder struct{}

func (nopRecorder) MatchRated(string, bool)                {}
func (nopRecorder) BetSettled(string, Side, bool, float64) {}
func (nopRecorder) BankrollUpdated(string, float64)        {}

// LeagueJob is the input for one league: its matches in play order and the
// transitions between its seasons.
type LeagueJob struct {
	League      string
	Matches     []*Match
	Transitions SeasonTransitionTable
}

// LeagueResult is the output of one league run.
type LeagueResult struct {
	League  string
	Rows    []*PredictionRecord
	Summary Summary
}

// Pipeline composes the rating engine, outcome model, staking policy and bankroll
// simulator into prediction rows.
type Pipeline struct {
	config   *PoddsConfig
	recorder Recorder
}

// NewPipeline validates config. A nil recorder discards events.
func NewPipeline(config *PoddsConfig, recorder Recorder) (*Pipeline, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Pipeline{config: config, recorder: recorder}, nil
}

// RunLeague processes one league strictly in order. Each call owns its own rating
// store and bankroll, so separate calls never share state.
func (p *Pipeline) RunLeague(ctx context.Context, runID string, job LeagueJob) (*LeagueResult, error) {
	cfg := p.config
	engine := NewRatingEngine(job.League, cfg, job.Transitions)
	model := OutcomeModel{MaxGoals: cfg.MaxGoals}
	start := decimal.NewFromFloat(cfg.StartBankroll)
	sim, err := NewBankrollSimulator(cfg.KellyDivisor, cfg.FloorAtZero, start)
	if err != nil {
		return nil, err
	}

	rows := make([]*PredictionRecord, 0, len(job.Matches))
	steps := make([]BankrollStep, 0, len(job.Matches))
	for _, m := range job.Matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s, err := engine.Step(m)
		if err != nil {
			return nil, err
		}
		homeXG, awayXG := s.ExpectedGoals()
		outcome, err := model.Probabilities(homeXG, awayXG)
		if err != nil {
			return nil, locateError(err, job.League, m.Season, s.Index)
		}
		decision, err := Decide(outcome, m.Odds(), cfg.MarginThreshold)
		if err != nil {
			return nil, locateError(err, job.League, m.Season, s.Index)
		}
		if cfg.SkipUncertainBets && s.Uncertain {
			decision = NoBet
		}

		step := sim.Apply(Wager{Side: decision.Side, Result: m.Result(), Kelly: decision.Kelly, NetOdds: decision.NetOdds})
		steps = append(steps, step)

		row := newPredictionRecord(runID, s, homeXG, awayXG, outcome, decision)
		row.Stake, row.Profit, row.Bankroll = step.Stake, step.Profit, step.Bankroll
		rows = append(rows, row)

		p.recorder.MatchRated(job.League, s.Uncertain)
		if step.Placed {
			p.recorder.BetSettled(job.League, decision.Side, step.Won, step.Stake.InexactFloat64())
			logger.Debug("Bet", m, string(decision.Side), decision.Kelly, step.Profit)
		}
	}

	summary := Summarize(start, steps)
	p.recorder.BankrollUpdated(job.League, summary.Final.InexactFloat64())
	logger.Info("League complete", job.League, "matches:", len(rows), "bets:", summary.Bets, "bankroll:", summary.Final.StringFixed(2))
	return &LeagueResult{League: job.League, Rows: rows, Summary: summary}, nil
}

// RunLeagues runs each job on its own goroutine. Results are returned in job order.
// The first failure cancels the remaining leagues and is returned.
func (p *Pipeline) RunLeagues(ctx context.Context, runID string, jobs []LeagueJob) ([]*LeagueResult, error) {
	results := make([]*LeagueResult, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := p.RunLeague(ctx, runID, job)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func locateError(err error, league, season string, idx int) error {
	var de *DataIntegrityError
	if errors.As(err, &de) {
		de.League, de.Season, de.Index = league, season, idx
	}
	return err
}
