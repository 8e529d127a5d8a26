// Command keepalive pings the configured endpoints once so they do not go
// idle, appends the outcome to the run log and prunes old log entries.
//
// By default it runs once and exits, for use from cron or a CI schedule.
// With --serve and/or --schedule it stays up, exposing a status API and
// triggering runs itself.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/keepalive/internal/config"
	"github.com/hamed0406/keepalive/internal/httpapi"
	apimw "github.com/hamed0406/keepalive/internal/httpapi/middleware"
	"github.com/hamed0406/keepalive/internal/logging"
	"github.com/hamed0406/keepalive/internal/metrics"
	"github.com/hamed0406/keepalive/internal/notify"
	"github.com/hamed0406/keepalive/internal/probe"
	"github.com/hamed0406/keepalive/internal/repo/memory"
	"github.com/hamed0406/keepalive/internal/runlog"
	"github.com/hamed0406/keepalive/internal/scheduler"
)

var version = "dev"

const usage = `Usage: %s [options]

Ping the configured endpoints once, log the outcome and prune old log entries.

Options:
`

type Command struct {
	OutStream io.Writer
	ErrStream io.Writer

	ConfigPath  string
	Serve       bool
	Schedule    string
	NoDelay     bool
	ShowVersion bool
	ShowHelp    bool
}

func (cmd *Command) ParseArgs(args []string) (exitCode int) {
	flags := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	flags.SetOutput(cmd.ErrStream)
	flags.Usage = func() {
		fmt.Fprintf(cmd.ErrStream, usage, args[0])
		flags.PrintDefaults()
	}

	flags.StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to config file (yaml, json or toml)")
	flags.BoolVarP(&cmd.Serve, "serve", "s", false, "Keep running and serve the status API")
	flags.StringVar(&cmd.Schedule, "schedule", "", `Run on a schedule instead of once, e.g. "30m" or "*/30 * * * *"`)
	flags.BoolVar(&cmd.NoDelay, "no-delay", false, "Skip the random delay before each probe")
	flags.BoolVarP(&cmd.ShowVersion, "version", "v", false, "Show version")
	flags.BoolVarP(&cmd.ShowHelp, "help", "h", false, "Show help message")

	if err := flags.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			cmd.ShowHelp = true
			return 0
		}
		fmt.Fprintf(cmd.ErrStream, "\nPlease see `%s -h` for more information.\n", args[0])
		return 2
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(cmd.ErrStream, "unexpected arguments: %v\n", flags.Args())
		return 2
	}
	if cmd.ShowHelp {
		flags.Usage()
		return 0
	}
	if cmd.Schedule != "" {
		if _, err := scheduler.ParseSchedule(cmd.Schedule); err != nil {
			fmt.Fprintln(cmd.ErrStream, "invalid argument:", err)
			return 2
		}
	}
	return 0
}

// Run executes the command. Target failures never change the exit code; only
// configuration or startup problems do.
func (cmd *Command) Run(ctx context.Context) int {
	if cmd.ShowVersion {
		fmt.Fprintf(cmd.OutStream, "keepalive %s\n", version)
		return 0
	}
	if cmd.ShowHelp {
		return 0
	}

	cfg, err := config.Load(cmd.ConfigPath)
	if err != nil {
		fmt.Fprintln(cmd.ErrStream, err)
		return 1
	}
	if cmd.NoDelay {
		cfg.DelayMin, cfg.DelayMax = 0, 0
	}
	if cmd.Schedule != "" {
		cfg.Schedule = cmd.Schedule
	}

	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		fmt.Fprintln(cmd.ErrStream, "logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sinks, err := buildNotifier(cfg)
	if err != nil {
		logger.Warn("notifier_setup_failed", zap.Error(err))
	}
	var notifier notify.Notifier
	if sinks.Len() > 0 {
		notifier = sinks
	}

	chk := probe.NewHTTPChecker(cfg.Mode, cfg.APIBase, cfg.Timeout)
	chk.UserAgent = cfg.UserAgent

	store := memory.New()
	runLog := runlog.New(cfg.LogFile, cmd.OutStream, nil, logger)
	runner := scheduler.New(scheduler.Options{
		Checker:  chk,
		Log:      runLog,
		Alerter:  scheduler.NewAlerter(notifier, logger, m),
		Store:    store,
		Metrics:  m,
		Logger:   logger,
		DelayMin: cfg.DelayMin,
		DelayMax: cfg.DelayMax,
	})

	logger.Info("keepalive_start",
		zap.String("version", version),
		zap.String("mode", string(cfg.Mode)),
		zap.Int("targets", len(cfg.Targets)),
		zap.Int("sinks", sinks.Len()),
		zap.Bool("serve", cmd.Serve),
		zap.String("schedule", cfg.Schedule),
	)

	if !cmd.Serve && cfg.Schedule == "" {
		runner.Run(ctx, cfg.Targets, cfg.Retention())
		return 0
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Schedule != "" {
		sched, err := scheduler.ParseSchedule(cfg.Schedule)
		if err != nil {
			fmt.Fprintln(cmd.ErrStream, err)
			return 1
		}
		g.Go(func() error {
			return scheduler.RunScheduled(gctx, sched, logger, func(ctx context.Context) {
				if _, ok := runner.RunIfIdle(ctx, cfg.Targets, cfg.Retention()); !ok {
					logger.Info("scheduled_run_skipped", zap.String("reason", "run in progress"))
				}
			})
		})
	}

	if cmd.Serve {
		api := httpapi.NewServer(logger, cfg.Targets, cfg.Retention(), store, runLog, runner)
		api.Gatherer = reg
		api.BaseCtx = gctx
		keys := apimw.Keys{Public: cfg.HTTP.PublicKeys, Admin: cfg.HTTP.AdminKeys}
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.Router(keys, cfg.HTTP.AllowedOrigins, cfg.HTTP.PublicRPM, cfg.HTTP.PublicBurst, cfg.HTTP.AdminRPM, cfg.HTTP.AdminBurst),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("api_listen", zap.String("addr", cfg.HTTP.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	runner.Wait()
	if err != nil {
		logger.Error("keepalive_stopped", zap.Error(err))
		fmt.Fprintln(cmd.ErrStream, err)
		return 1
	}
	logger.Info("keepalive_stopped")
	return 0
}

// buildNotifier collects the configured sinks. A sink that fails to set up is
// left out; the others still work.
func buildNotifier(cfg config.Config) (notify.Multi, error) {
	var sinks notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		sinks = append(sinks, s)
	}
	s, err := notify.NewSNS(cfg.SNS)
	if s != nil {
		sinks = append(sinks, s)
	}
	return sinks, err
}

func main() {
	cmd := &Command{OutStream: os.Stdout, ErrStream: os.Stderr}
	if code := cmd.ParseArgs(os.Args); code != 0 {
		os.Exit(code)
	}
	os.Exit(cmd.Run(context.Background()))
}
