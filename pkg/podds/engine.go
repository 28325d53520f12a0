package podds

import (
	"time"

	"github.com/richard-senior/podds/internal/logger"
)

// Snapshot is the state of the ratings immediately before a match was played.
// Nothing in a snapshot depends on the match it describes or on any later match.
type Snapshot struct {
	Index int
	Match *Match

	LeagueHomeAverage float64
	LeagueAwayAverage float64
	HomeOffensive     float64
	HomeDefensive     float64
	AwayOffensive     float64
	AwayDefensive     float64

	// Uncertain is set while either team has fewer than a full window of its own results.
	Uncertain bool
}

// ExpectedGoals returns the Poisson means for the match:
// home = league home average * home offensive * away defensive, and symmetrically for away.
func (s *Snapshot) ExpectedGoals() (home, away float64) {
	home = s.LeagueHomeAverage * s.HomeOffensive * s.AwayDefensive
	away = s.LeagueAwayAverage * s.AwayOffensive * s.HomeDefensive
	return home, away
}

// RatingEngine folds an ordered match sequence into a RatingStore one match at a time.
type RatingEngine struct {
	league      string
	store       *RatingStore
	transitions SeasonTransitionTable

	season   string
	left     map[string]bool // seasons already finished
	lastDate time.Time
	index    int
}

// NewRatingEngine returns an engine for one league with a fresh store.
func NewRatingEngine(league string, config *PoddsConfig, transitions SeasonTransitionTable) *RatingEngine {
	return &RatingEngine{
		league:      league,
		store:       NewRatingStore(config),
		transitions: transitions,
		left:        make(map[string]bool),
	}
}

func (e *RatingEngine) Store() *RatingStore {
	return e.store
}

// Rate runs every match through Step and returns the snapshots in input order.
func (e *RatingEngine) Rate(matches []*Match) ([]*Snapshot, error) {
	snapshots := make([]*Snapshot, 0, len(matches))
	for _, m := range matches {
		s, err := e.Step(m)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

// Step rates a single match: it handles a season change, snapshots the pre-match
// ratings, then folds the match's performance multipliers into the store.
func (e *RatingEngine) Step(m *Match) (*Snapshot, error) {
	idx := e.index
	if err := e.checkOrder(m); err != nil {
		return nil, e.locate(err, m, idx)
	}
	if m.HomeGoals < 0 || m.AwayGoals < 0 {
		return nil, e.locate(dataError("goals", "negative goal count %d-%d", m.HomeGoals, m.AwayGoals), m, idx)
	}
	if NormalizeTeamName(m.HomeTeam) == NormalizeTeamName(m.AwayTeam) {
		return nil, e.locate(dataError("teams", "%s cannot play itself", m.HomeTeam), m, idx)
	}

	if e.season != "" && m.Season != e.season {
		entry, ok := e.transitions[e.season]
		if !ok {
			return nil, e.locate(dataError("transitions", "no transition entry for season %s", e.season), m, idx)
		}
		if err := Transition(e.store, entry); err != nil {
			return nil, e.locate(err, m, idx)
		}
		logger.Info("Season transition", e.league, e.season, "->", m.Season, "promoted:", len(entry.Promoted), "relegated:", len(entry.Relegated))
		e.left[e.season] = true
	}
	e.season = m.Season

	home := e.store.Team(m.HomeTeam)
	away := e.store.Team(m.AwayTeam)
	league := e.store.League()

	s := &Snapshot{
		Index:             idx,
		Match:             m,
		LeagueHomeAverage: league.HomeAverage(),
		LeagueAwayAverage: league.AwayAverage(),
		HomeOffensive:     home.OffensiveRating(),
		HomeDefensive:     home.DefensiveRating(),
		AwayOffensive:     away.OffensiveRating(),
		AwayDefensive:     away.DefensiveRating(),
		Uncertain:         home.SampleCount < e.store.WindowSize() || away.SampleCount < e.store.WindowSize(),
	}

	homeOff, err := multiplier("home_offensive", m.HomeGoals, s.LeagueHomeAverage, s.AwayDefensive)
	if err != nil {
		return nil, e.locate(err, m, idx)
	}
	homeDef, err := multiplier("home_defensive", m.AwayGoals, s.LeagueAwayAverage, s.AwayOffensive)
	if err != nil {
		return nil, e.locate(err, m, idx)
	}
	awayOff, err := multiplier("away_offensive", m.AwayGoals, s.LeagueAwayAverage, s.HomeDefensive)
	if err != nil {
		return nil, e.locate(err, m, idx)
	}
	awayDef, err := multiplier("away_defensive", m.HomeGoals, s.LeagueHomeAverage, s.HomeOffensive)
	if err != nil {
		return nil, e.locate(err, m, idx)
	}

	e.store.RecordTeam(m.HomeTeam, homeOff, homeDef)
	e.store.RecordTeam(m.AwayTeam, awayOff, awayDef)
	e.store.RecordLeague(m.HomeGoals, m.AwayGoals)

	logger.Debug("Rated", m, homeOff, homeDef, awayOff, awayDef)

	e.lastDate = m.Date
	e.index++
	return s, nil
}

// multiplier is goals / (average * rating), the ratio of what happened to what the
// league average and the opponent's rating predicted.
func multiplier(field string, goals int, average, rating float64) (float64, error) {
	denominator := average * rating
	if denominator <= 0 {
		return 0, dataError(field, "non-positive denominator %g (average %g, rating %g)", denominator, average, rating)
	}
	return float64(goals) / denominator, nil
}

func (e *RatingEngine) checkOrder(m *Match) error {
	if e.left[m.Season] {
		return dataError("season", "season %s reappears after it was left", m.Season)
	}
	if m.Date.IsZero() {
		return dataError("date", "missing match date")
	}
	if !e.lastDate.IsZero() && m.Date.Before(e.lastDate) {
		return dataError("date", "match dated %s follows a match dated %s", m.Date.Format(time.DateOnly), e.lastDate.Format(time.DateOnly))
	}
	return nil
}

// locate adds the run context to a DataIntegrityError.
func (e *RatingEngine) locate(err error, m *Match, idx int) error {
	return locateError(err, e.league, m.Season, idx)
}
