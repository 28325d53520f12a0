package podds

import (
	"time"
)

// roundRobin builds a double round robin for teams, one match per day from start,
// with deterministic scores and odds.
func roundRobin(league, season string, teams []string, start time.Time) []*Match {
	var matches []*Match
	day := 0
	for i, home := range teams {
		for j, away := range teams {
			if i == j {
				continue
			}
			hg := (i*3 + j + len(season)) % 4
			ag := (i + 2*j) % 3
			odds := Odds{Home: 2.1 + float64(j)*0.1, Draw: 3.4, Away: 3.0 + float64(i)*0.15}
			matches = append(matches, NewMatch(league, season, start.AddDate(0, 0, day), home, away, hg, ag, odds))
			day++
		}
	}
	return matches
}

// twoSeasons has E and F relegated after 2223 and G and H promoted for 2324.
func twoSeasons() []*Match {
	first := roundRobin("E0", "2223", []string{"A", "B", "C", "D", "E", "F"}, time.Date(2022, 8, 6, 14, 0, 0, 0, time.UTC))
	second := roundRobin("E0", "2324", []string{"A", "B", "C", "D", "G", "H"}, time.Date(2023, 8, 12, 14, 0, 0, 0, time.UTC))
	return append(first, second...)
}

func testConfig() *PoddsConfig {
	c := DefaultPoddsConfig()
	c.WindowSize = 5
	c.LeagueWindowFactor = 10
	return c
}
