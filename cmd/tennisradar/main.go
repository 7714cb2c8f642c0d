package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	csvDir  string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tennisradar",
		Short:         "Collect tennis rankings and explore them as leaderboards and summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&csvDir, "csv", "", "read tables from this CSV directory instead of the store")

	root.AddCommand(collectCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(leaderboardCmd())
	root.AddCommand(countriesCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(playerCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func collectCmd() *cobra.Command {
	var (
		sources []string
		noStore bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch competitions, complexes and doubles rankings, then store and export them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), sources, noStore)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to collect (competitions,complexes,doubles_rankings)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "only export CSV files, do not write a snapshot")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		runID string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored snapshot as one CSV file per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), runID, out)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run ID to export (default: latest)")
	cmd.Flags().StringVar(&out, "out", "", "output directory (default: data_dir from config)")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	var (
		ff         filterFlags
		limit      int
		by         string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the filtered leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd.Context(), ff, limit, by, jsonOutput)
		},
	}

	ff.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "rows to show (default: leaderboard_size from config)")
	cmd.Flags().StringVar(&by, "by", "points", "order by points or rank")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func countriesCmd() *cobra.Command {
	var (
		ff         filterFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "countries",
		Short: "Show competitors and average points per country",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCountries(cmd.Context(), ff, jsonOutput)
		},
	}

	ff.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		name, country    string
		minRank, maxRank int
		minPoints        float64
		jsonOutput       bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search competitors by name, country, rank range and points",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), searchOpts{
				name: name, country: country,
				minRank: minRank, maxRank: maxRank, minPoints: minPoints,
			}, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "competitor name")
	cmd.Flags().StringVar(&country, "country", "", "competitor country")
	cmd.Flags().IntVar(&minRank, "min-rank", 1, "best rank to include")
	cmd.Flags().IntVar(&maxRank, "max-rank", 100, "worst rank to include")
	cmd.Flags().Float64Var(&minPoints, "min-points", 0, "minimum points")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func playerCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "player <name>",
		Short: "Show a competitor's rankings and ranking history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlayer(cmd.Context(), args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Correlate points with participation and compare quartiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "competitors in the workload table")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
