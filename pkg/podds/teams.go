package podds

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTeamName maps a team name to the key used by the rating store and the
// transition tables, so "Málaga " and "malaga" share one rating history.
func NormalizeTeamName(name string) string {
	name = strings.ToLower(name)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, name); err == nil {
		name = out
	}

	return strings.Join(strings.Fields(name), " ")
}

// TeamsFromMatches returns the distinct home team names in matches, sorted.
// Every team plays at home during a season so home teams are the full roster.
func TeamsFromMatches(matches []*Match) []string {
	seen := make(map[string]bool)
	var teams []string
	for _, m := range matches {
		key := NormalizeTeamName(m.HomeTeam)
		if seen[key] {
			continue
		}
		seen[key] = true
		teams = append(teams, m.HomeTeam)
	}
	sort.Strings(teams)
	return teams
}
