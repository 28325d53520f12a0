package podds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PoddsConfig contains all configurable parameters that influence ratings, staking and the
// surrounding plumbing. This centralizes all magic numbers and constants for easy adjustment
type PoddsConfig struct {
	// === RATING WINDOWS ===
	WindowSize         int     `yaml:"window_size"`          // Matches held per team window (default: 19)
	LeagueWindowFactor int     `yaml:"league_window_factor"` // League window is WindowSize times this (default: 10)
	SeedRating         float64 `yaml:"seed_rating"`          // Initial offensive and defensive multiplier (default: 1.0)
	SeedHomeGoals      float64 `yaml:"seed_home_goals"`      // Initial league home goals per game (default: 1.7)
	SeedAwayGoals      float64 `yaml:"seed_away_goals"`      // Initial league away goals per game (default: 1.2)

	// === OUTCOME MODEL ===
	MaxGoals int `yaml:"max_goals"` // Scoreline grid covers 0..MaxGoals per side (default: 10)

	// === STAKING ===
	MarginThreshold   float64 `yaml:"margin_threshold"`    // Minimum p*odds before a bet is considered (default: 1.0)
	KellyDivisor      float64 `yaml:"kelly_divisor"`       // Fractional Kelly divisor (default: 4)
	StartBankroll     float64 `yaml:"start_bankroll"`      // Bankroll before the first match (default: 100)
	SkipUncertainBets bool    `yaml:"skip_uncertain_bets"` // Never bet while either team has a short history
	FloorAtZero       bool    `yaml:"floor_at_zero"`       // Stop staking once the bankroll is exhausted

	// === DATA SOURCE ===
	Bookmaker         string   `yaml:"bookmaker"`           // Odds column prefix in football-data CSVs (default: WH)
	OddsFallbacks     []string `yaml:"odds_fallbacks"`      // Prefixes tried when the bookmaker has no price, empty drops such matches
	Leagues           []string `yaml:"leagues"`             // football-data division codes, e.g. E0
	Seasons           []string `yaml:"seasons"`             // Seasons to fetch, any format ParseSeason accepts
	FootballDataURL   string   `yaml:"football_data_url"`   // Base URL of football-data.co.uk
	CachePath         string   `yaml:"cache_path"`          // Directory for downloaded CSVs, empty disables caching
	RequestsPerSecond float64  `yaml:"requests_per_second"` // Outbound HTTP rate limit

	// === PERSISTENCE ===
	DBDriver string `yaml:"db_driver"` // sqlite or postgres
	DBDSN    string `yaml:"db_dsn"`    // file path for sqlite, connection string for postgres

	// === TELEMETRY ===
	LogLevel        string `yaml:"log_level"`
	LogOutput       string `yaml:"log_output"` // console, file or both
	LogFile         string `yaml:"log_file"`
	MetricsTextfile string `yaml:"metrics_textfile"` // Prometheus textfile written after a run
}

// DefaultPoddsConfig returns the default configuration with all standard values
func DefaultPoddsConfig() *PoddsConfig {
	return &PoddsConfig{
		WindowSize:         19,
		LeagueWindowFactor: 10,
		SeedRating:         1.0,
		SeedHomeGoals:      1.7,
		SeedAwayGoals:      1.2,

		MaxGoals: 10,

		MarginThreshold: 1.0,
		KellyDivisor:    4,
		StartBankroll:   100,

		Bookmaker:         "WH",
		OddsFallbacks:     []string{"Avg", "B365"},
		Leagues:           []string{"E0"},
		Seasons:           []string{"2021/2022", "2022/2023", "2023/2024", "2024/2025"},
		FootballDataURL:   "https://www.football-data.co.uk",
		RequestsPerSecond: 1,

		DBDriver: "sqlite",
		DBDSN:    "podds.db",

		LogLevel:  "info",
		LogOutput: "console",
	}
}

// LeagueWindowSize is the capacity of the league goal average windows.
func (c *PoddsConfig) LeagueWindowSize() int {
	return c.WindowSize * c.LeagueWindowFactor
}

// ValidateConfig checks that all configuration values are within reasonable ranges
func ValidateConfig(config *PoddsConfig) error {
	if config == nil {
		return configError("config", "nil configuration")
	}
	if config.WindowSize < 1 {
		return configError("window_size", "must be at least 1, got %d", config.WindowSize)
	}
	if config.LeagueWindowFactor < 1 {
		return configError("league_window_factor", "must be at least 1, got %d", config.LeagueWindowFactor)
	}
	if config.SeedRating <= 0 {
		return configError("seed_rating", "must be positive, got %g", config.SeedRating)
	}
	if config.SeedHomeGoals <= 0 || config.SeedAwayGoals <= 0 {
		return configError("seed_goals", "league seeds must be positive, got %g/%g", config.SeedHomeGoals, config.SeedAwayGoals)
	}
	if config.MaxGoals < 1 {
		return configError("max_goals", "must be at least 1, got %d", config.MaxGoals)
	}
	if config.MarginThreshold < 0 {
		return configError("margin_threshold", "must not be negative, got %g", config.MarginThreshold)
	}
	if config.KellyDivisor <= 0 {
		return configError("kelly_divisor", "must be positive, got %g", config.KellyDivisor)
	}
	if config.StartBankroll <= 0 {
		return configError("start_bankroll", "must be positive, got %g", config.StartBankroll)
	}
	if config.RequestsPerSecond <= 0 {
		return configError("requests_per_second", "must be positive, got %g", config.RequestsPerSecond)
	}
	switch config.DBDriver {
	case "sqlite", "postgres":
	default:
		return configError("db_driver", "unsupported driver %q", config.DBDriver)
	}
	switch config.LogOutput {
	case "console", "file", "both":
	default:
		return configError("log_output", "must be console, file or both, got %q", config.LogOutput)
	}
	return nil
}

// LoadConfig builds a configuration from the defaults, then the YAML file at path (if
// path is not empty), then PODDS_* environment variables. A .env file in the working
// directory is loaded first when present.
func LoadConfig(path string) (*PoddsConfig, error) {
	config := DefaultPoddsConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *PoddsConfig) error {
	var err error
	if c.WindowSize, err = envInt("PODDS_WINDOW_SIZE", c.WindowSize); err != nil {
		return err
	}
	if c.MaxGoals, err = envInt("PODDS_MAX_GOALS", c.MaxGoals); err != nil {
		return err
	}
	if c.MarginThreshold, err = envFloat("PODDS_MARGIN_THRESHOLD", c.MarginThreshold); err != nil {
		return err
	}
	if c.KellyDivisor, err = envFloat("PODDS_KELLY_DIVISOR", c.KellyDivisor); err != nil {
		return err
	}
	if c.StartBankroll, err = envFloat("PODDS_START_BANKROLL", c.StartBankroll); err != nil {
		return err
	}
	if c.RequestsPerSecond, err = envFloat("PODDS_REQUESTS_PER_SECOND", c.RequestsPerSecond); err != nil {
		return err
	}
	if c.SkipUncertainBets, err = envBool("PODDS_SKIP_UNCERTAIN_BETS", c.SkipUncertainBets); err != nil {
		return err
	}
	if c.FloorAtZero, err = envBool("PODDS_FLOOR_AT_ZERO", c.FloorAtZero); err != nil {
		return err
	}
	c.Bookmaker = envStr("PODDS_BOOKMAKER", c.Bookmaker)
	c.Leagues = envList("PODDS_LEAGUES", c.Leagues)
	c.Seasons = envList("PODDS_SEASONS", c.Seasons)
	c.FootballDataURL = envStr("PODDS_FOOTBALL_DATA_URL", c.FootballDataURL)
	c.CachePath = envStr("PODDS_CACHE_PATH", c.CachePath)
	c.DBDriver = envStr("PODDS_DB_DRIVER", c.DBDriver)
	c.DBDSN = envStr("PODDS_DB_DSN", c.DBDSN)
	c.LogLevel = envStr("PODDS_LOG_LEVEL", c.LogLevel)
	c.LogOutput = envStr("PODDS_LOG_OUTPUT", c.LogOutput)
	c.LogFile = envStr("PODDS_LOG_FILE", c.LogFile)
	c.MetricsTextfile = envStr("PODDS_METRICS_TEXTFILE", c.MetricsTextfile)
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, configError(key, "not an integer: %q", v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, configError(key, "not a number: %q", v)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, configError(key, "not a boolean: %q", v)
	}
	return b, nil
}
