package podds

import (
	"fmt"
	"strings"
	"time"
)

// Compile-time check to ensure Match implements Persistable interface
var _ Persistable = (*Match)(nil)

// Match is one completed fixture with closing odds.
// Matches are immutable once ingested.
type Match struct {
	// Primary key
	ID string `json:"id" column:"id" dbtype:"TEXT" primary:"true"`

	League string    `json:"league" column:"league" dbtype:"TEXT NOT NULL" index:"true"`
	Season string    `json:"season" column:"season" dbtype:"TEXT NOT NULL" index:"true"`
	Date   time.Time `json:"date" column:"match_date" dbtype:"TIMESTAMP" index:"true"`

	HomeTeam  string `json:"homeTeam" column:"home_team" dbtype:"TEXT NOT NULL"`
	AwayTeam  string `json:"awayTeam" column:"away_team" dbtype:"TEXT NOT NULL"`
	HomeGoals int    `json:"homeGoals" column:"home_goals" dbtype:"INTEGER NOT NULL"`
	AwayGoals int    `json:"awayGoals" column:"away_goals" dbtype:"INTEGER NOT NULL"`

	// Decimal odds from the configured bookmaker
	HomeOdds float64 `json:"homeOdds" column:"home_odds" dbtype:"DOUBLE PRECISION"`
	DrawOdds float64 `json:"drawOdds" column:"draw_odds" dbtype:"DOUBLE PRECISION"`
	AwayOdds float64 `json:"awayOdds" column:"away_odds" dbtype:"DOUBLE PRECISION"`
}

// NewMatch builds a match and derives its ID.
func NewMatch(league, season string, date time.Time, home, away string, homeGoals, awayGoals int, odds Odds) *Match {
	m := &Match{
		League:    league,
		Season:    season,
		Date:      date,
		HomeTeam:  home,
		AwayTeam:  away,
		HomeGoals: homeGoals,
		AwayGoals: awayGoals,
		HomeOdds:  odds.Home,
		DrawOdds:  odds.Draw,
		AwayOdds:  odds.Away,
	}
	m.ID = MatchID(league, season, date, home, away)
	return m
}

// MatchID is the stable key of a fixture: league, season, kick-off date and the two teams.
func MatchID(league, season string, date time.Time, home, away string) string {
	slug := func(s string) string {
		return strings.ReplaceAll(NormalizeTeamName(s), " ", "-")
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s", league, season, date.UTC().Format("20060102"), slug(home), slug(away))
}

// Result is the full time result: H, D or A.
func (m *Match) Result() Side {
	switch {
	case m.HomeGoals > m.AwayGoals:
		return SideHome
	case m.HomeGoals < m.AwayGoals:
		return SideAway
	default:
		return SideDraw
	}
}

// Odds returns the match's decimal odds.
func (m *Match) Odds() Odds {
	return Odds{Home: m.HomeOdds, Draw: m.DrawOdds, Away: m.AwayOdds}
}

func (m *Match) String() string {
	return fmt.Sprintf("%s %s %s %d-%d %s", m.Season, m.Date.Format("2006-01-02"), m.HomeTeam, m.HomeGoals, m.AwayGoals, m.AwayTeam)
}

/////////////////////////////////////////////////////////////////////////
////// Persistable Interface Implementation
/////////////////////////////////////////////////////////////////////////

func (m *Match) GetTableName() string {
	return "matches"
}

func (m *Match) GetPrimaryKey() map[string]any {
	return map[string]any{"id": m.ID}
}

func (m *Match) SetPrimaryKey(pk map[string]any) error {
	if id, ok := pk["id"]; ok {
		if idStr, ok := id.(string); ok {
			m.ID = idStr
			return nil
		}
		return fmt.Errorf("primary key 'id' must be a string")
	}
	return fmt.Errorf("primary key 'id' not found")
}

// BeforeSave fills the ID when a match was built by hand.
func (m *Match) BeforeSave() error {
	if m.ID == "" {
		m.ID = MatchID(m.League, m.Season, m.Date, m.HomeTeam, m.AwayTeam)
	}
	return nil
}

func (m *Match) AfterSave() error    { return nil }
func (m *Match) BeforeDelete() error { return nil }
func (m *Match) AfterDelete() error  { return nil }
