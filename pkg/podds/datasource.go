package podds

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Europe/London on hosts without a zoneinfo database

	"github.com/richard-senior/podds/internal/logger"
)

// CSVReader parses the results files published by football-data.co.uk.
type CSVReader struct {
	// Bookmaker is the odds column prefix tried first, e.g. "WH" for WHH/WHD/WHA.
	Bookmaker string
	// Fallbacks are prefixes tried in order when the bookmaker has no price for a match.
	Fallbacks []string
}

// NewCSVReader returns a reader using the configured bookmaker columns.
func NewCSVReader(config *PoddsConfig) *CSVReader {
	return &CSVReader{Bookmaker: config.Bookmaker, Fallbacks: config.OddsFallbacks}
}

// Parse reads every row of a football-data CSV as a Match, in file order. Rows without
// a final score or usable odds are skipped with a warning. When league is empty the
// row's Div column is used.
func (r *CSVReader) Parse(in io.Reader, league, season string) ([]*Match, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return []*Match{}, nil
	}

	headers := records[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff") // Remove BOM
	}

	var matches []*Match
	for i, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for j, value := range record {
			if j < len(headers) {
				row[headers[j]] = strings.TrimSpace(value)
			}
		}

		// Trailing blank lines are common in these files
		if row["HomeTeam"] == "" && row["AwayTeam"] == "" {
			continue
		}

		match, err := r.ParseRow(row, league, season)
		if err != nil {
			logger.Warn("Skipping row", i+2, err)
			continue
		}
		matches = append(matches, match)
	}
	logger.Debug("Parsed football-data CSV", league, season, len(matches))
	return matches, nil
}

// ParseRow converts one CSV row, keyed by header, into a Match.
func (r *CSVReader) ParseRow(row map[string]string, league, season string) (*Match, error) {
	home := strings.TrimSpace(row["HomeTeam"])
	away := strings.TrimSpace(row["AwayTeam"])
	if home == "" || away == "" {
		return nil, fmt.Errorf("missing team names")
	}
	if league == "" {
		league = row["Div"]
	}

	date, err := parseFootballDataDateTime(row)
	if err != nil {
		return nil, err
	}

	homeGoals, err := strconv.Atoi(row["FTHG"])
	if err != nil {
		return nil, fmt.Errorf("%s v %s: no full time home goals", home, away)
	}
	awayGoals, err := strconv.Atoi(row["FTAG"])
	if err != nil {
		return nil, fmt.Errorf("%s v %s: no full time away goals", home, away)
	}

	odds, ok := r.oddsFromRow(row)
	if !ok {
		return nil, fmt.Errorf("%s v %s: no odds for %s or fallbacks", home, away, r.Bookmaker)
	}

	return NewMatch(league, season, date, home, away, homeGoals, awayGoals, odds), nil
}

// oddsFromRow returns the first complete set of odds above 1.0 among the bookmaker
// prefix and its fallbacks.
func (r *CSVReader) oddsFromRow(row map[string]string) (Odds, bool) {
	prefixes := append([]string{r.Bookmaker}, r.Fallbacks...)
	for _, prefix := range prefixes {
		if prefix == "" || fieldIsBlank(prefix+"H", row) {
			continue
		}
		h, errH := strconv.ParseFloat(row[prefix+"H"], 64)
		d, errD := strconv.ParseFloat(row[prefix+"D"], 64)
		a, errA := strconv.ParseFloat(row[prefix+"A"], 64)
		if errH != nil || errD != nil || errA != nil {
			continue
		}
		if h > 1 && d > 1 && a > 1 {
			return Odds{Home: h, Draw: d, Away: a}, true
		}
	}
	return Odds{}, false
}

// fieldIsBlank checks if a field in the row is blank/empty/missing
func fieldIsBlank(field string, row map[string]string) bool {
	value, exists := row[field]
	return !exists || valueIsBlank(value)
}

// valueIsBlank treats empty strings and the -1 sentinel as missing
func valueIsBlank(value string) bool {
	if value == "" {
		return true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == -1.0 {
		return true
	}
	return false
}

var errNoDate = errors.New("no Date field found")

var london = func() *time.Location {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// parseFootballDataDateTime combines the Date and optional Time columns, read as UK
// local time, and returns the kick-off in UTC. Missing times default to 15:00.
func parseFootballDataDateTime(row map[string]string) (time.Time, error) {
	dateStr := strings.TrimSpace(row["Date"])
	if dateStr == "" {
		return time.Time{}, errNoDate
	}
	timeStr := strings.TrimSpace(row["Time"])
	if timeStr == "" {
		timeStr = "15:00"
	}
	dtStr := dateStr + " " + timeStr

	var parseErr error
	for _, format := range []string{"02/01/2006 15:04", "02/01/06 15:04"} {
		t, err := time.ParseInLocation(format, dtStr, london)
		if err == nil {
			return t.UTC(), nil
		}
		parseErr = err
	}
	return time.Time{}, fmt.Errorf("could not parse date from %s: %w", dtStr, parseErr)
}

// SortMatches orders matches by season then kick-off. The sort is stable so
// fixtures sharing a kick-off keep their file order.
func SortMatches(matches []*Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		si, sj := SeasonStartYear(matches[i].Season), SeasonStartYear(matches[j].Season)
		if si != sj {
			return si < sj
		}
		return matches[i].Date.Before(matches[j].Date)
	})
}
