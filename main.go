package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"did_alerts/internal/app"
	"did_alerts/internal/cli"
	"did_alerts/internal/config"

	"github.com/rs/zerolog/log"
)

type options struct {
	configPath string
	auto       bool
	day        int
	refresh    bool
	interval   time.Duration
}

func (o options) interactive() bool {
	return !o.auto && o.day == 0 && o.interval == 0
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML or JSON config file")
	flag.BoolVar(&opts.auto, "auto", false, "run the report without the interactive menu")
	flag.IntVar(&opts.day, "day", 0, "day of month to report on (default today, implies -auto)")
	flag.BoolVar(&opts.refresh, "refresh", false, "ignore the cache and fetch every sheet")
	flag.DurationVar(&opts.interval, "interval", 0, "repeat the automatic run at this interval")
	flag.Parse()

	closeLog := app.SetupEnvironment()
	log.Debug().Msg("Starting application")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts, os.Stdin, os.Stdout)
	stop()

	if err != nil {
		logFailure(err)
		closeLog()
		os.Exit(1)
	}
	closeLog()
}

// run owns the runner, so the cache is closed and metrics are logged on
// every return path.
func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	runner, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close cache")
		}
	}()
	defer runner.LogMetrics()

	if opts.interactive() {
		if err := cli.REPL(ctx, runner, in, out); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	if err := runOnce(ctx, runner, opts.day, opts.refresh, out); err != nil {
		return err
	}
	if opts.interval <= 0 {
		return nil
	}

	log.Info().Dur("interval", opts.interval).Msg("Running again on interval")
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil
		case <-ticker.C:
			// later runs reuse the cache unless it has gone stale
			if err := runOnce(ctx, runner, opts.day, false, out); err != nil {
				return err
			}
		}
	}
}

func runOnce(ctx context.Context, runner *app.Runner, day int, refresh bool, out io.Writer) error {
	if day == 0 {
		day = runner.Now().Day()
	}
	result, err := runner.Run(ctx, day, refresh)
	if err != nil {
		return err
	}
	fmt.Fprint(out, result.Rendered)
	fmt.Fprint(out, result.Load.Summary())
	if result.Export.Dir != "" {
		fmt.Fprintf(out, "Exported %d files to %s\n", len(result.Export.Files), result.Export.Dir)
	}
	return nil
}

// logFailure reports why the process is exiting. Connection failures carry
// a hint for the operator.
func logFailure(err error) {
	var connErr *app.ConnectionError
	if errors.As(err, &connErr) {
		log.Error().Err(connErr.Err).Str("hint", connErr.Hint).Msg("Cannot reach the spreadsheet")
		return
	}
	log.Error().Err(err).Msg("Run failed")
}
