package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elonfeng/tennisradar/internal/config"
	"github.com/elonfeng/tennisradar/internal/scheduler"
	"github.com/elonfeng/tennisradar/internal/store"
	"github.com/elonfeng/tennisradar/pkg/alert"
	"github.com/elonfeng/tennisradar/pkg/engine"
	"github.com/elonfeng/tennisradar/pkg/server"
	"github.com/elonfeng/tennisradar/pkg/source"
	"github.com/elonfeng/tennisradar/pkg/tennis"
)

var stdout io.Writer = os.Stdout

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

// setup loads config and builds the logger every command needs.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func buildClient(cfg *config.Config, logger *zap.Logger) *source.Client {
	return source.NewClient(source.Options{
		BaseURL:    cfg.Sportradar.BaseURL,
		APIKey:     cfg.Sportradar.APIKey,
		FixtureDir: cfg.Sportradar.FixtureDir,
		Timeout:    cfg.Sportradar.ParseTimeout(),
		MaxRetries: uint64(cfg.Sportradar.MaxRetries),
	}, logger.Named("sportradar"))
}

func buildSources(cfg *config.Config, logger *zap.Logger, only []string) ([]source.Source, error) {
	all := source.All(buildClient(cfg, logger))
	if len(only) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool)
	for _, s := range only {
		wanted[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var sources []source.Source
	for _, s := range all {
		if wanted[s.Name()] {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no matching sources for: %s", strings.Join(only, ", "))
	}
	return sources, nil
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func buildCollector(cfg *config.Config, db store.Store, sources []source.Source, logger *zap.Logger) *scheduler.Collector {
	return scheduler.NewCollector(sources, db, buildAlertManager(cfg), scheduler.CollectorOptions{
		RequestDelay: cfg.Sportradar.ParseRequestDelay(),
		DataDir:      cfg.DataDir,
		MinMovement:  cfg.Alerts.MinMovement,
	}, logger.Named("collector"))
}

// tableLoader reads the tables from --csv when given, otherwise from the
// latest stored run, falling back to the configured CSV directory before
// the first collection.
func tableLoader(cfg *config.Config, db store.Store) server.Loader {
	return func(ctx context.Context) (*tennis.Tables, error) {
		if csvDir != "" {
			return tennis.ReadDir(csvDir)
		}
		if db != nil {
			run, err := db.LatestRun(ctx)
			if err == nil {
				return db.LoadTables(ctx, run.ID)
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
		}
		return tennis.ReadDir(cfg.DataDir)
	}
}

// withView loads the tables and builds the view for read-only commands.
func withView(ctx context.Context, fn func(cfg *config.Config, db store.Store, t *tennis.Tables, view []engine.Row) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var db store.Store
	if csvDir == "" {
		sqlite, err := store.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer sqlite.Close()
		db = sqlite
	}

	t, err := tableLoader(cfg, db)(ctx)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}
	view, err := engine.BuildView(t)
	if err != nil {
		return err
	}
	if len(view) == 0 {
		fmt.Fprintln(os.Stderr, "no rankings loaded (try collecting data first: tennisradar collect)")
	}
	return fn(cfg, db, t, view)
}

func runCollect(ctx context.Context, only []string, noStore bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	sources, err := buildSources(cfg, logger, only)
	if err != nil {
		return err
	}

	var db store.Store
	if !noStore {
		sqlite, err := store.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer sqlite.Close()
		db = sqlite
	}

	res, err := buildCollector(cfg, db, sources, logger).Collect(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, name := range tennis.TableNames() {
		if res.Tables.Present(name) {
			fmt.Fprintf(w, "%s\t%d\n", name, res.Counts[name])
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if res.Run != nil {
		fmt.Fprintf(stdout, "\nrun %s, %d notable movers\n", res.Run.ID, len(res.Movers))
	}
	if res.Partial != "" {
		fmt.Fprintf(os.Stderr, "some sources failed: %s\n", res.Partial)
	}
	return nil
}

func runExport(ctx context.Context, runID, out string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if runID == "" {
		run, err := db.LatestRun(ctx)
		if err != nil {
			return err
		}
		runID = run.ID
	}
	t, err := db.LoadTables(ctx, runID)
	if err != nil {
		return err
	}
	if out == "" {
		out = cfg.DataDir
	}
	if err := t.WriteDir(out); err != nil {
		return err
	}
	logger.Info("exported", zap.String("run_id", runID), zap.String("dir", out))
	fmt.Fprintf(stdout, "exported run %s to %s\n", runID, out)
	return nil
}

func runLeaderboard(ctx context.Context, ff filterFlags, limit int, by string, jsonOutput bool) error {
	return withView(ctx, func(cfg *config.Config, _ store.Store, _ *tennis.Tables, view []engine.Row) error {
		f, err := ff.build(cfg.Dashboard)
		if err != nil {
			return err
		}
		rows, err := engine.ApplyFilters(view, f)
		if err != nil {
			return err
		}
		if limit <= 0 {
			limit = cfg.Dashboard.LeaderboardSize
		}
		switch by {
		case "points":
			rows = engine.TopByPoints(rows, limit)
		case "rank":
			rows = engine.TopByRank(rows, limit)
		default:
			return &engine.InvalidFilterError{Param: "by", Value: by}
		}

		if jsonOutput {
			return writeJSON(rows)
		}
		return writeRows(rows)
	})
}

func runCountries(ctx context.Context, ff filterFlags, jsonOutput bool) error {
	return withView(ctx, func(cfg *config.Config, _ store.Store, _ *tennis.Tables, view []engine.Row) error {
		f, err := ff.build(cfg.Dashboard)
		if err != nil {
			return err
		}
		rows, err := engine.ApplyFilters(view, f)
		if err != nil {
			return err
		}
		summaries := engine.CountrySummaries(rows)

		if jsonOutput {
			return writeJSON(summaries)
		}
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COUNTRY\tCOMPETITORS\tAVG POINTS")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d\t%.1f\n", s.Country, s.Competitors, s.AvgPoints)
		}
		return w.Flush()
	})
}

type searchOpts struct {
	name, country    string
	minRank, maxRank int
	minPoints        float64
}

func runSearch(ctx context.Context, opts searchOpts, jsonOutput bool) error {
	return withView(ctx, func(_ *config.Config, _ store.Store, _ *tennis.Tables, view []engine.Row) error {
		rows := engine.Search(view, engine.SearchParams{
			Name:      opts.name,
			Country:   opts.country,
			MinRank:   opts.minRank,
			MaxRank:   opts.maxRank,
			MinPoints: opts.minPoints,
		})
		if jsonOutput {
			return writeJSON(rows)
		}
		return writeRows(rows)
	})
}

func runPlayer(ctx context.Context, name string, jsonOutput bool) error {
	return withView(ctx, func(_ *config.Config, db store.Store, _ *tennis.Tables, view []engine.Row) error {
		rows := engine.PlayerDetails(view, name)
		if len(rows) == 0 {
			return fmt.Errorf("competitor %q not found", name)
		}

		var history []store.RankingPoint
		if db != nil {
			var err error
			history, err = db.RankingHistory(ctx, rows[0].CompetitorID, 20)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			return writeJSON(map[string]any{"rankings": rows, "history": history})
		}
		if err := writeRows(rows); err != nil {
			return err
		}
		if len(history) == 0 {
			return nil
		}
		fmt.Fprintln(stdout)
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COLLECTED\tRANK\tMOVE\tPOINTS")
		for _, h := range history {
			fmt.Fprintf(w, "%s\t%d\t%+d\t%.0f\n", h.CollectedAt.Format("2006-01-02 15:04"), h.Rank, h.Movement, h.Points)
		}
		return w.Flush()
	})
}

func runAnalyze(ctx context.Context, limit int, jsonOutput bool) error {
	return withView(ctx, func(_ *config.Config, _ store.Store, t *tennis.Tables, _ []engine.Row) error {
		corr := engine.PointsParticipationCorrelation(t.Rankings)
		quart := engine.PointsQuartiles(t.Rankings)
		work := engine.Workload(t.Rankings, limit)

		if jsonOutput {
			return writeJSON(map[string]any{"correlation": corr, "quartiles": quart, "workload": work})
		}

		if corr.Computable {
			fmt.Fprintf(stdout, "points vs competitions played: r = %.3f (n = %d)\n", corr.Coefficient, corr.N)
		} else {
			fmt.Fprintf(stdout, "points vs competitions played: not computable (n = %d)\n", corr.N)
		}
		fmt.Fprintf(stdout, "top quartile (>= %.0f pts): %d rankings, avg %.1f\n", quart.Q75, quart.TopCount, quart.TopAvgPoints)
		fmt.Fprintf(stdout, "bottom quartile (<= %.0f pts): %d rankings, avg %.1f\n\n", quart.Q25, quart.LowCount, quart.LowAvgPoints)

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COMPETITOR\tCOMPETITIONS\tTOTAL POINTS\tAVG POINTS")
		for _, c := range work {
			fmt.Fprintf(w, "%s\t%d\t%.0f\t%.1f\n", c.CompetitorID, c.TotalCompetitions, c.TotalPoints, c.AvgPoints)
		}
		return w.Flush()
	})
}

func runServe(ctx context.Context, port int) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	srv, err := buildServer(ctx, cfg, db, nil, port, logger)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func runDaemon(ctx context.Context, port int) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sources, err := buildSources(cfg, logger, nil)
	if err != nil {
		return err
	}
	collector := buildCollector(cfg, db, sources, logger)

	srv, err := buildServer(ctx, cfg, db, collector, port, logger)
	if err != nil {
		return err
	}

	// Start scheduler in background; serve each new collection.
	sched := scheduler.New(collector, cfg.Schedule.ParseCollectInterval(), logger)
	sched.OnCollect(func(res *scheduler.Result) { srv.SetTables(res.Tables) })
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	return srv.ListenAndServe(ctx)
}

func buildServer(ctx context.Context, cfg *config.Config, db store.Store, collector server.Collector, port int, logger *zap.Logger) (*server.Server, error) {
	if port == 0 {
		port = cfg.Server.Port
	}
	defaults, err := filterFlags{}.build(cfg.Dashboard)
	if err != nil {
		return nil, fmt.Errorf("dashboard defaults: %w", err)
	}

	srv := server.New(db, collector, tableLoader(cfg, db), server.Options{
		Port:            port,
		Mode:            cfg.Server.Mode,
		Defaults:        defaults,
		LeaderboardSize: cfg.Dashboard.LeaderboardSize,
	}, logger)
	if err := srv.Reload(ctx); err != nil {
		logger.Warn("initial load failed, serving empty tables", zap.Error(err))
	}
	return srv, nil
}

// filterFlags binds the dashboard filters to a command.
type filterFlags struct {
	tier          string
	movement      string
	categories    []string
	noCategories  bool
	allCategories bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tier, "tier", "", "performance tier: all, elite, strong, rising")
	cmd.Flags().StringVar(&f.movement, "movement", "", "ranking movement: all, improving, declining, stable")
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "only rows in these categories (repeatable)")
	cmd.Flags().BoolVar(&f.noCategories, "no-categories", false, "select no category (empty result)")
	cmd.Flags().BoolVar(&f.allCategories, "all-categories", false, "ignore the configured default categories")
}

// build resolves the flags over the configured defaults.
func (f filterFlags) build(d config.DashboardConfig) (engine.Filter, error) {
	tierValue, movementValue := d.Tier, d.Movement
	if f.tier != "" {
		tierValue = f.tier
	}
	if f.movement != "" {
		movementValue = f.movement
	}

	tier, err := engine.ParseTier(tierValue)
	if err != nil {
		return engine.Filter{}, err
	}
	movement, err := engine.ParseMovement(movementValue)
	if err != nil {
		return engine.Filter{}, err
	}

	cats := engine.AnyCategory()
	switch {
	case f.noCategories:
		cats = engine.OnlyCategories()
	case len(f.categories) > 0:
		cats = engine.OnlyCategories(f.categories...)
	case f.allCategories:
	case d.Categories != nil:
		cats = engine.OnlyCategories(d.Categories...)
	}

	return engine.Filter{Tier: tier, Categories: cats, Movement: movement}, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRows(rows []engine.Row) error {
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "no matching rankings")
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tMOVE\tPOINTS\tPLAYED\tNAME\tCOUNTRY\tCATEGORY")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%+d\t%.0f\t%d\t%s\t%s\t%s\n",
			r.Rank, r.Movement, r.Points, r.CompetitionsPlayed,
			cell(r.Name), cell(r.Country), cell(r.CategoryName))
	}
	return w.Flush()
}

func cell(s *string) string {
	if s == nil || tennis.IsNull(*s) {
		return "-"
	}
	return *s
}
