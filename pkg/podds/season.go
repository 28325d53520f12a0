package podds

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/richard-senior/podds/internal/logger"
)

// ParseSeason normalizes a season to the four digit football-data token, so
// "2023/2024", "2023-2024", "2023/24" and "2324" all become "2324".
func ParseSeason(season string) (string, error) {
	ss := strings.TrimSpace(season)
	if ss == "" {
		return "", fmt.Errorf("must pass a season")
	}
	var first, second string
	switch {
	case len(ss) == 4 && isDigits(ss):
		first, second = ss[:2], ss[2:]
	case len(ss) == 9 && (ss[4] == '/' || ss[4] == '-') && isDigits(ss[:4]) && isDigits(ss[5:]):
		first, second = ss[2:4], ss[7:]
	case len(ss) == 7 && (ss[4] == '/' || ss[4] == '-') && isDigits(ss[:4]) && isDigits(ss[5:]):
		first, second = ss[2:4], ss[5:]
	default:
		return "", fmt.Errorf("invalid season format: %s", ss)
	}
	a, _ := strconv.Atoi(first)
	b, _ := strconv.Atoi(second)
	if (a+1)%100 != b {
		return "", fmt.Errorf("invalid season %s: years are not consecutive", ss)
	}
	return first + second, nil
}

// SeasonLongForm turns a token such as "9900" into "1999/2000".
func SeasonLongForm(token string) (string, error) {
	t, err := ParseSeason(token)
	if err != nil {
		return "", err
	}
	y := SeasonStartYear(t)
	return fmt.Sprintf("%d/%d", y, y+1), nil
}

// SeasonStartYear returns the calendar year a season token starts in.
// Two digit years from 90 onwards are read as 19xx, matching football-data's archive.
func SeasonStartYear(token string) int {
	if len(token) < 2 {
		return 0
	}
	y, err := strconv.Atoi(token[:2])
	if err != nil {
		return 0
	}
	if y >= 90 {
		return 1900 + y
	}
	return 2000 + y
}

// IsSameSeason returns true if both parameters name the same season in any accepted format.
func IsSameSeason(s1, s2 string) (bool, error) {
	a, err := ParseSeason(s1)
	if err != nil {
		return false, err
	}
	b, err := ParseSeason(s2)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// SeasonTransition lists the teams that left and joined a league at the end of a season.
type SeasonTransition struct {
	Relegated []string `json:"relegated" yaml:"relegated"`
	Promoted  []string `json:"promoted" yaml:"promoted"`
}

// SeasonTransitionTable maps the season being left to its transition.
type SeasonTransitionTable map[string]SeasonTransition

// Transition reseeds every promoted team with the mean ratings of the relegated teams
// and resets their sample counts. Relegated teams the store has never rated count at
// the seed rating.
func Transition(store *RatingStore, entry SeasonTransition) error {
	if len(entry.Relegated) == 0 {
		return dataError("relegated", "season transition has no relegated teams")
	}

	offSum, defSum := 0.0, 0.0
	for _, name := range entry.Relegated {
		if t, ok := store.Lookup(name); ok {
			offSum += t.OffensiveRating()
			defSum += t.DefensiveRating()
		} else {
			offSum += store.seedRating
			defSum += store.seedRating
		}
	}
	n := float64(len(entry.Relegated))
	offensive, defensive := offSum/n, defSum/n

	for _, name := range entry.Promoted {
		store.Reseed(name, offensive, defensive)
	}
	logger.Debug("Promoted teams reseeded", len(entry.Promoted), offensive, defensive)
	return nil
}

// BuildTransitionTable derives the transition table from the rosters of consecutive
// seasons in matches: a team present in one season and absent from the next was
// relegated, a team absent from one season and present in the next was promoted.
// The final season has no entry.
func BuildTransitionTable(matches []*Match) SeasonTransitionTable {
	bySeason := make(map[string][]*Match)
	for _, m := range matches {
		bySeason[m.Season] = append(bySeason[m.Season], m)
	}
	seasons := make([]string, 0, len(bySeason))
	for s := range bySeason {
		seasons = append(seasons, s)
	}
	SortSeasons(seasons)

	table := make(SeasonTransitionTable)
	for i := 0; i+1 < len(seasons); i++ {
		current := TeamsFromMatches(bySeason[seasons[i]])
		next := TeamsFromMatches(bySeason[seasons[i+1]])
		table[seasons[i]] = SeasonTransition{
			Relegated: teamDifference(current, next),
			Promoted:  teamDifference(next, current),
		}
	}
	return table
}

// SortSeasons orders season tokens chronologically.
func SortSeasons(seasons []string) {
	sort.SliceStable(seasons, func(i, j int) bool {
		return SeasonStartYear(seasons[i]) < SeasonStartYear(seasons[j])
	})
}

// teamDifference returns the names in a whose normalized key is not in b.
func teamDifference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, name := range b {
		in[NormalizeTeamName(name)] = true
	}
	var out []string
	for _, name := range a {
		if !in[NormalizeTeamName(name)] {
			out = append(out, name)
		}
	}
	return out
}
