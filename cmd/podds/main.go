// podds rates football teams from historical results, prices matches with a Poisson
// model and replays fractional Kelly staking against bookmaker odds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/internal/metrics"
	"github.com/richard-senior/podds/pkg/podds"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: podds <command> [flags]

commands:
  run       rate leagues, simulate staking and store the predictions
  seasons   list the seasons football-data.co.uk publishes for a league

Run "podds <command> -h" for the flags of a command.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, os.Args[2:])
	case "seasons":
		err = seasonsCommand(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		var ce *podds.ConfigurationError
		var de *podds.DataIntegrityError
		switch {
		case errors.As(err, &ce):
			logger.Fatal("Configuration error:", err)
		case errors.As(err, &de):
			logger.Fatal("Data integrity error:", err)
		default:
			logger.Fatal("Run failed:", err)
		}
	}
}

func runCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	leagues := fs.String("league", "", "Comma separated football-data division codes, overrides config")
	seasons := fs.String("seasons", "", "Comma separated seasons, overrides config")
	csvFiles := fs.String("csv", "", "Comma separated season=path CSV files to use instead of downloading (single league)")
	cacheDir := fs.String("cache", "", "Directory for downloaded CSVs, overrides config")
	outCSV := fs.String("out", "", "Write prediction rows to this CSV file")
	noDB := fs.Bool("no-db", false, "Do not write to the database")
	logLevel := fs.String("log-level", "", "debug, info, warn or error, overrides config")
	fs.Parse(args)

	config, err := podds.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *leagues != "" {
		config.Leagues = splitList(*leagues)
	}
	if *seasons != "" {
		config.Seasons = splitList(*seasons)
	}
	if *cacheDir != "" {
		config.CachePath = *cacheDir
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	if err := configureLogging(config); err != nil {
		return err
	}

	jobs, err := loadJobs(ctx, config, *csvFiles)
	if err != nil {
		return err
	}

	rm := metrics.NewRunMetrics()
	pipeline, err := podds.NewPipeline(config, rm)
	if err != nil {
		return err
	}
	run := podds.NewRunRecord(config)
	run.Leagues = strings.Join(config.Leagues, ",")

	results, err := pipeline.RunLeagues(ctx, run.ID, jobs)
	if err != nil {
		return err
	}

	var rows []*podds.PredictionRecord
	for _, res := range results {
		rows = append(rows, res.Rows...)
	}
	run.Matches = len(rows)

	if !*noDB {
		store, err := podds.OpenStore(ctx, config.DBDriver, config.DBDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.MigrateAll(ctx); err != nil {
			return err
		}
		for _, job := range jobs {
			if err := store.SaveMatches(ctx, job.Matches); err != nil {
				return err
			}
		}
		if err := store.SaveRun(ctx, run, rows); err != nil {
			return err
		}
	}

	if *outCSV != "" {
		f, err := os.Create(*outCSV)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", *outCSV, err)
		}
		defer f.Close()
		if err := podds.WritePredictionsCSV(f, rows); err != nil {
			return fmt.Errorf("failed to write %s: %w", *outCSV, err)
		}
	}

	if config.MetricsTextfile != "" {
		if err := rm.WriteTextfile(config.MetricsTextfile); err != nil {
			logger.Warn("Failed to write metrics textfile", err)
		}
	}

	printSummary(run, results)
	return nil
}

// loadJobs builds one job per league, either from local CSV files or by downloading
// the configured seasons.
func loadJobs(ctx context.Context, config *podds.PoddsConfig, csvFiles string) ([]podds.LeagueJob, error) {
	if csvFiles != "" {
		if len(config.Leagues) != 1 {
			return nil, fmt.Errorf("-csv needs exactly one league, got %d", len(config.Leagues))
		}
		matches, err := readLocalCSVs(config, config.Leagues[0], splitList(csvFiles))
		if err != nil {
			return nil, err
		}
		return []podds.LeagueJob{newJob(config.Leagues[0], matches)}, nil
	}

	fd := podds.NewFootballData(config, nil)
	jobs := make([]podds.LeagueJob, 0, len(config.Leagues))
	for _, league := range config.Leagues {
		matches, err := fd.FetchMatches(ctx, league, config.Seasons)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, newJob(league, matches))
	}
	return jobs, nil
}

func readLocalCSVs(config *podds.PoddsConfig, league string, specs []string) ([]*podds.Match, error) {
	reader := podds.NewCSVReader(config)
	var all []*podds.Match
	for _, spec := range specs {
		season, path, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("csv argument %q is not season=path", spec)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		matches, err := reader.Parse(f, league, season)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, matches...)
	}
	podds.SortMatches(all)
	return all, nil
}

func newJob(league string, matches []*podds.Match) podds.LeagueJob {
	return podds.LeagueJob{
		League:      league,
		Matches:     matches,
		Transitions: podds.BuildTransitionTable(matches),
	}
}

func seasonsCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seasons", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	league := fs.String("league", "E0", "football-data division code")
	page := fs.String("page", "englandm.php", "football-data country page listing the division's files")
	fs.Parse(args)

	config, err := podds.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := configureLogging(config); err != nil {
		return err
	}

	seasons, err := podds.NewFootballData(config, nil).DiscoverSeasons(ctx, *page, *league)
	if err != nil {
		return err
	}
	for _, s := range seasons {
		long, _ := podds.SeasonLongForm(s)
		fmt.Printf("%s\t%s\n", s, long)
	}
	return nil
}

func configureLogging(config *podds.PoddsConfig) error {
	level, err := logger.ParseLevel(config.LogLevel)
	if err != nil {
		return &podds.ConfigurationError{Field: "log_level", Reason: err.Error()}
	}
	logger.SetLevel(level)

	kind := map[string]rune{"console": 'c', "file": 'f', "both": 'b'}[config.LogOutput]
	if kind != 'c' {
		logger.SetShowDateTime(true)
	}
	return logger.SetLogOutput(kind, config.LogFile)
}

func printSummary(run *podds.RunRecord, results []*podds.LeagueResult) {
	fmt.Printf("run %s: %s matches\n", run.ID, humanize.Comma(int64(run.Matches)))
	for _, res := range results {
		s := res.Summary
		fmt.Printf("  %-4s matches %-6s bets %-5s won %-5s lost %-5s turnover %-10s bankroll %s -> %s (peak %s, max drawdown %s%%)\n",
			res.League,
			humanize.Comma(int64(len(res.Rows))),
			humanize.Comma(int64(s.Bets)),
			humanize.Comma(int64(s.Won)),
			humanize.Comma(int64(s.Lost)),
			humanize.CommafWithDigits(s.Turnover.InexactFloat64(), 2),
			humanize.CommafWithDigits(s.Start.InexactFloat64(), 2),
			humanize.CommafWithDigits(s.Final.InexactFloat64(), 2),
			humanize.CommafWithDigits(s.Peak.InexactFloat64(), 2),
			humanize.FtoaWithDigits(s.MaxDrawdown.InexactFloat64()*100, 1),
		)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
