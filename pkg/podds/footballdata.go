package podds

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/pkg/transport"
)

// Getter fetches a URL. *transport.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

var _ Getter = (*transport.Client)(nil)

// FootballData downloads and parses results files from football-data.co.uk.
type FootballData struct {
	client   Getter
	baseURL  string
	cacheDir string
	reader   *CSVReader
}

// NewFootballData returns a fetcher. When client is nil a rate limited transport
// client is built from config.
func NewFootballData(config *PoddsConfig, client Getter) *FootballData {
	if client == nil {
		client = transport.NewClient(transport.WithRateLimit(config.RequestsPerSecond, 1))
	}
	return &FootballData{
		client:   client,
		baseURL:  strings.TrimRight(config.FootballDataURL, "/"),
		cacheDir: config.CachePath,
		reader:   NewCSVReader(config),
	}
}

// CSVURL is the location of one league season, e.g. .../mmz4281/2324/E0.csv.
func (f *FootballData) CSVURL(league, season string) string {
	return fmt.Sprintf("%s/mmz4281/%s/%s.csv", f.baseURL, season, league)
}

// Fetch returns the raw CSV for a league season, from the cache directory when present.
func (f *FootballData) Fetch(ctx context.Context, league, season string) ([]byte, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}

	var cacheFile string
	if f.cacheDir != "" {
		cacheFile = filepath.Join(f.cacheDir, fmt.Sprintf("%s-%s.csv", league, season))
		if data, err := os.ReadFile(cacheFile); err == nil {
			logger.Debug("Returning data from cached file for", league, season)
			return data, nil
		}
	}

	url := f.CSVURL(league, season)
	logger.Info("Fetching historical data from football-data.co.uk for", league, season)
	data, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", league, season, err)
	}

	if cacheFile != "" {
		if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
			logger.Warn("Failed to create cache directory", f.cacheDir, err)
		} else if err := os.WriteFile(cacheFile, data, 0o644); err != nil {
			logger.Warn("Failed to write cache file", cacheFile, err)
		}
	}
	return data, nil
}

// FetchMatches downloads and parses every season for league and returns the matches
// in play order.
func (f *FootballData) FetchMatches(ctx context.Context, league string, seasons []string) ([]*Match, error) {
	var all []*Match
	for _, season := range seasons {
		data, err := f.Fetch(ctx, league, season)
		if err != nil {
			return nil, err
		}
		matches, err := f.reader.Parse(bytes.NewReader(data), league, season)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", league, season, err)
		}
		all = append(all, matches...)
	}
	SortMatches(all)
	return all, nil
}

var seasonLinkPattern = regexp.MustCompile(`mmz4281/(\d{4})/([A-Za-z0-9]+)\.csv$`)

// DiscoverSeasons reads a football-data country page such as englandm.php and returns
// the season tokens that have a CSV for league, oldest first.
func (f *FootballData) DiscoverSeasons(ctx context.Context, page, league string) ([]string, error) {
	if !strings.HasPrefix(page, "http") {
		page = f.baseURL + "/" + strings.TrimLeft(page, "/")
	}
	html, err := f.client.Get(ctx, page)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", page, err)
	}

	seen := make(map[string]bool)
	var seasons []string
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := seasonLinkPattern.FindStringSubmatch(href)
		if m == nil || m[2] != league || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		seasons = append(seasons, m[1])
	})
	SortSeasons(seasons)
	return seasons, nil
}
