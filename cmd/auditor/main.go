package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/auditor/store/pgxstore"
	"github.com/screwyprof/ballotaudit/cmd/auditor/config"
	"github.com/screwyprof/ballotaudit/migrator"
	"github.com/screwyprof/ballotaudit/pkg/clock"
	"github.com/screwyprof/ballotaudit/pkg/ethrpc"
	"github.com/screwyprof/ballotaudit/pkg/logger"
	"github.com/screwyprof/ballotaudit/pkg/pgxdb"
)

// These values are overridden at build time using -ldflags
var (
	version = "dev"
	date    = "unknown"
)

func main() {
	// Load configuration
	cfg := config.New()

	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(cfg, func(c *cli.Context, f runFlags) error {
		return runAudit(c.Context, cfg, f, os.Stdout)
	})
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(cfg config.Config, action func(*cli.Context, runFlags) error) *cli.App {
	return &cli.App{
		Name:      "ballotaudit",
		Usage:     "Report how often each POA validator voted on governance ballots",
		ArgsUsage: "[URL]",
		Version:   version + " (" + date + ")",
		Flags:     appFlags,
		Action: func(c *cli.Context) error {
			f, err := readFlags(c, cfg)
			if err != nil {
				return cli.Exit(err, 2)
			}
			return action(c, f)
		},
	}
}

func runAudit(ctx context.Context, cfg config.Config, f runFlags, stdout io.Writer) error {
	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
		Verbose:          f.Verbose,
	})
	slog.SetDefault(log)

	registry, err := auditor.LoadRegistryFile(f.Contracts)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load contract addresses",
			slog.String("file", f.Contracts),
			slog.Any("error", err),
		)
		return cli.Exit("", 1)
	}

	// HTTP client & node client
	httpClient := &http.Client{Timeout: cfg.HttpClientTimeout}
	node, err := ethrpc.Dial(ctx, f.URL, httpClient)
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to node", slog.Any("error", err))
		return cli.Exit("", 1)
	}
	defer node.Close()

	// Create auditor service
	clk := clock.SystemClock{}
	service := auditor.NewService(node, registry, f.serviceOptions(cfg, clk.Now())...)

	log.InfoContext(ctx, "Starting ballot audit",
		slog.String("url", f.URL),
		slog.Int("contracts", registry.Len()),
		slog.Duration("period", f.Period),
		slog.Uint64("minBlock", f.MinBlock),
	)
	events, done := service.Start(ctx)

	// Subscribe to events for logging
	var out outcome
	subCloser := setupEventLogging(ctx, events, log, &out)
	<-done
	subCloser()

	if out.err != nil {
		return cli.Exit("", 1)
	}

	if err := out.report.Render(stdout, auditor.RenderOptions{
		Color:             !f.NoColor,
		IncludeUnresolved: f.All,
	}); err != nil {
		return cli.Exit(fmt.Sprintf("writing report: %v", err), 1)
	}

	if cfg.DatabaseURL == "" {
		return nil
	}
	if err := archiveReport(ctx, cfg, out.report, clk, log); err != nil {
		log.ErrorContext(ctx, "Failed to archive report", slog.Any("error", err))
		return cli.Exit("", 1)
	}
	return nil
}

// archiveReport stores the report in the configured database, migrating it first.
func archiveReport(ctx context.Context, cfg config.Config, report *auditor.Report, clk auditor.Clock, log *slog.Logger) error {
	// Database connection
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	// Initialize store
	store, storeCloser := pgxstore.New(db)
	defer storeCloser()

	// Apply migrations
	applied, err := migrator.ApplyMigrations(db, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	log.DebugContext(ctx, "Database migrations applied", slog.Int("applied", applied))

	runID, err := store.SaveReport(ctx, report, clk.Now())
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "Report archived",
		slog.Int64("runID", runID),
		slog.Int("lines", len(report.Lines)),
	)
	return nil
}
