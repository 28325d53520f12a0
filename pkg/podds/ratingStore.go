package podds

import "sort"

// TeamRatingWindow holds the most recent performance multipliers for one team.
// A multiplier of 1.0 means the team performed exactly as the league average and
// its opponent's ratings predicted.
type TeamRatingWindow struct {
	Name        string
	Offensive   *Window
	Defensive   *Window
	SampleCount int // matches folded in since creation or the last promotion reset
}

// OffensiveRating is the mean of the offensive window.
func (t *TeamRatingWindow) OffensiveRating() float64 {
	return t.Offensive.Mean()
}

// DefensiveRating is the mean of the defensive window.
func (t *TeamRatingWindow) DefensiveRating() float64 {
	return t.Defensive.Mean()
}

// LeagueAverageWindow holds the most recent home and away goal counts for a league.
type LeagueAverageWindow struct {
	HomeGoals *Window
	AwayGoals *Window
}

func (l *LeagueAverageWindow) HomeAverage() float64 {
	return l.HomeGoals.Mean()
}

func (l *LeagueAverageWindow) AwayAverage() float64 {
	return l.AwayGoals.Mean()
}

// RatingStore owns every rating window for a single league run.
// It is not safe for concurrent use; each league run builds its own.
type RatingStore struct {
	windowSize int
	seedRating float64
	teams      map[string]*TeamRatingWindow
	league     *LeagueAverageWindow
}

// NewRatingStore returns an empty store seeded from config.
func NewRatingStore(config *PoddsConfig) *RatingStore {
	return &RatingStore{
		windowSize: config.WindowSize,
		seedRating: config.SeedRating,
		teams:      make(map[string]*TeamRatingWindow),
		league: &LeagueAverageWindow{
			HomeGoals: NewWindow(config.LeagueWindowSize(), config.SeedHomeGoals),
			AwayGoals: NewWindow(config.LeagueWindowSize(), config.SeedAwayGoals),
		},
	}
}

// Team returns the window for name, creating it at the seed rating on first sight.
func (s *RatingStore) Team(name string) *TeamRatingWindow {
	key := NormalizeTeamName(name)
	t, ok := s.teams[key]
	if !ok {
		t = &TeamRatingWindow{
			Name:      name,
			Offensive: NewWindow(s.windowSize, s.seedRating),
			Defensive: NewWindow(s.windowSize, s.seedRating),
		}
		s.teams[key] = t
	}
	return t
}

// Lookup returns the window for name without creating one.
func (s *RatingStore) Lookup(name string) (*TeamRatingWindow, bool) {
	t, ok := s.teams[NormalizeTeamName(name)]
	return t, ok
}

// Teams returns the names of all teams seen so far, sorted.
func (s *RatingStore) Teams() []string {
	names := make([]string, 0, len(s.teams))
	for _, t := range s.teams {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

func (s *RatingStore) League() *LeagueAverageWindow {
	return s.league
}

func (s *RatingStore) WindowSize() int {
	return s.windowSize
}

// RecordTeam folds one match's multipliers into the team's windows.
func (s *RatingStore) RecordTeam(name string, offensive, defensive float64) {
	t := s.Team(name)
	t.Offensive.Push(offensive)
	t.Defensive.Push(defensive)
	t.SampleCount++
}

// RecordLeague folds one match's goal counts into the league windows.
func (s *RatingStore) RecordLeague(homeGoals, awayGoals int) {
	s.league.HomeGoals.Push(float64(homeGoals))
	s.league.AwayGoals.Push(float64(awayGoals))
}

// Reseed overwrites both of the team's windows and resets its sample count.
func (s *RatingStore) Reseed(name string, offensive, defensive float64) {
	t := s.Team(name)
	t.Offensive.Fill(offensive)
	t.Defensive.Fill(defensive)
	t.SampleCount = 0
}

// Certain reports whether the team has a full window of its own matches.
func (s *RatingStore) Certain(name string) bool {
	t, ok := s.Lookup(name)
	return ok && t.SampleCount >= s.windowSize
}
