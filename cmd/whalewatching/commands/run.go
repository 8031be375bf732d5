package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cosmonauts/whalewatching/pkg/boost"
	"github.com/cosmonauts/whalewatching/pkg/config"
	"github.com/cosmonauts/whalewatching/pkg/console"
	"github.com/cosmonauts/whalewatching/pkg/holders"
	"github.com/cosmonauts/whalewatching/pkg/raffle"
	"github.com/cosmonauts/whalewatching/pkg/sink"
)

type runFlags struct {
	out      string
	format   string
	postgres string
	table    string
	top      int
	parallel bool
	envelope bool
}

func newRunCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the raffle leaderboard and write it out",
		Example: `  # defaults: five Stargaze collections, whalewatching.json
  whalewatching run

  # CSV plus a copy in Postgres
  whalewatching run --format csv --out leaderboard.csv \
    --postgres "postgres://raffle@localhost/raffle?sslmode=disable"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			log, err := g.logger()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runLeaderboard(cmd, cfg, f.envelope, log)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.out, "out", getEnv("WHALEWATCHING_OUT", ""), "Output file (overrides output.path)")
	fl.StringVar(&f.format, "format", getEnv("WHALEWATCHING_FORMAT", ""), "Output format: json or csv (overrides output.format)")
	fl.StringVar(&f.postgres, "postgres", getEnv("WHALEWATCHING_POSTGRES_DSN", ""), "Also append rows to Postgres at this DSN")
	fl.StringVar(&f.table, "table", getEnv("WHALEWATCHING_POSTGRES_TABLE", ""), "Postgres table (overrides output.postgres_table)")
	fl.IntVar(&f.top, "top", envInt("WHALEWATCHING_TOP", -1), "Rows to print to the console, 0 for all (overrides output.top)")
	fl.BoolVar(&f.parallel, "parallel", false, "Resolve all collections concurrently")
	fl.BoolVar(&f.envelope, "envelope", false, "Write the full report instead of bare rows (json only)")
	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if f.out != "" {
		cfg.Output.Path = f.out
	}
	if f.format != "" {
		cfg.Output.Format = f.format
	}
	if f.postgres != "" {
		cfg.Output.PostgresDSN = f.postgres
	}
	if f.table != "" {
		cfg.Output.PostgresTable = f.table
	}
	if f.top >= 0 {
		cfg.Output.Top = f.top
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Resolve.ParallelCollections = f.parallel
	}
	return cfg.Validate()
}

func runLeaderboard(cmd *cobra.Command, cfg *config.Config, envelope bool, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, lim := newClient(cfg, log)
	if lim != nil {
		defer lim.Close()
	}
	resolver := holders.NewResolver(client, holders.Options{
		Concurrency:   cfg.Resolve.Concurrency,
		AddressPrefix: cfg.AddressPrefix,
	}, log.Named("holders"))

	out := console.New(cmd.OutOrStdout())
	comp := raffle.NewComputer(client, resolver, boost.NewEngine(cfg.Boost), cfg.Collections, raffle.Options{
		Parallel: cfg.Resolve.ParallelCollections,
		Progress: out,
	}, log.Named("raffle"))

	rep, err := comp.Compute(ctx)
	if err != nil {
		return fmt.Errorf("compute leaderboard: %w", err)
	}

	var sinks sink.Multi
	switch cfg.Output.Format {
	case "csv":
		sinks = append(sinks, sink.CSVSink{Path: cfg.Output.Path})
	default:
		sinks = append(sinks, sink.JSONSink{Path: cfg.Output.Path, Envelope: envelope})
	}
	if cfg.Output.PostgresDSN != "" {
		sinks = append(sinks, sink.PostgresSink{DSN: cfg.Output.PostgresDSN, Table: cfg.Output.PostgresTable})
	}
	if err := sinks.Write(ctx, rep); err != nil {
		return err
	}
	log.Info("leaderboard written",
		zap.String("path", cfg.Output.Path),
		zap.String("format", cfg.Output.Format),
		zap.Bool("postgres", cfg.Output.PostgresDSN != ""),
		zap.Int64("height", rep.Height),
		zap.String("etag", rep.ETag),
	)

	out.Leaderboard(rep, cfg.Output.Top)
	return nil
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}
