package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"smart-parking/internal/audit"
	"smart-parking/internal/client"
	"smart-parking/internal/config"
	"smart-parking/internal/logging"
	"smart-parking/internal/parking"
	"smart-parking/internal/scheduler"
	"smart-parking/internal/server"
	"smart-parking/internal/shell"
)

var (
	mode    = flag.String("mode", "server", "Mode to run: server, cli, or both")
	port    = flag.String("port", "", "Port for HTTP server (overrides APP_PORT)")
	envFile = flag.String("env", "", "Path to an env file (defaults to .env when present)")
	remote  = flag.String("remote", "", "Base URL of a running server; cli mode drives it instead of a local ledger")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "smart-parking: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	switch *mode {
	case "server", "cli", "both":
	default:
		return fmt.Errorf("invalid mode %q: must be server, cli, or both", *mode)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *port != "" {
		cfg.Port = *port
	}

	logging.Init(logging.Options{
		Service:     cfg.OTelService,
		Environment: cfg.Environment,
		Development: cfg.IsDevelopment(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := parking.NewTelemetryProvider(ctx, cfg.OTelService, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer shutdownTelemetry(telemetry)

	if *mode == "cli" && *remote != "" {
		logging.Logger().Info().Str("remote", *remote).Msg("starting shell against remote server")
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		runShell(ctx, cancel, client.New(*remote), telemetry)
		<-ctx.Done()
		return nil
	}

	sink, closeSinks := openAuditSinks(ctx, cfg)
	defer closeSinks()

	ledger, err := parking.NewLedger(cfg.Capacity, parking.WithAuditSink(sink))
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	instrumented, err := parking.NewInstrumentedLedger(ledger, telemetry)
	if err != nil {
		return fmt.Errorf("instrument ledger: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if *mode != "cli" {
		srv := server.NewServer(server.Options{
			Port:        cfg.Port,
			ServiceName: cfg.OTelService,
			Ledger:      instrumented,
			Telemetry:   telemetry,
		})
		logging.Logger().Info().
			Str("url", srv.GetAddress()).
			Int("capacity", cfg.Capacity).
			Msg("dashboard available")

		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})

		sched := scheduler.New(cfg.ReportCron, ledger, sink)
		if err := sched.Start(); err != nil {
			logging.Logger().Error().Err(err).Msg("occupancy summaries disabled")
		} else {
			defer sched.Stop()
		}
	}

	if *mode != "server" {
		runShell(gctx, cancel, shell.NewLocalBackend(instrumented), telemetry)
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	logging.Logger().Info().Msg("shutting down")
	return err
}

// runShell reads commands from stdin in the background and cancels the run
// when input ends. A blocked read never holds up shutdown.
func runShell(ctx context.Context, cancel context.CancelFunc, backend shell.Backend, telemetry *parking.TelemetryProvider) {
	sh := shell.NewShell(backend, os.Stdin, os.Stdout, telemetry.Tracer())
	go func() {
		defer cancel()
		if err := sh.Run(ctx); err != nil {
			logging.Logger().Error().Err(err).Msg("shell stopped")
		}
	}()
}

// openAuditSinks opens every configured sink. A sink that cannot be opened
// is logged and skipped.
func openAuditSinks(ctx context.Context, cfg *config.Config) (audit.Sink, func()) {
	var sinks []audit.Sink
	var closers []func()

	if cfg.AuditLogPath != "" {
		fileSink, err := audit.OpenFile(cfg.AuditLogPath)
		if err != nil {
			logging.Logger().Error().Err(err).Msg("file audit log disabled")
		} else {
			sinks = append(sinks, fileSink)
			closers = append(closers, func() {
				if err := fileSink.Close(); err != nil {
					logging.Logger().Error().Err(err).Msg("failed to close audit log")
				}
			})
		}
	}

	if cfg.AuditMongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongoSink, err := audit.NewMongoSink(connectCtx, cfg.AuditMongo.URI, cfg.AuditMongo.DBName)
		cancel()
		if err != nil {
			logging.Logger().Error().Err(err).Msg("mongodb audit sink disabled")
		} else {
			sinks = append(sinks, mongoSink)
			closers = append(closers, func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := mongoSink.Close(closeCtx); err != nil {
					logging.Logger().Error().Err(err).Msg("failed to disconnect mongodb")
				}
			})
		}
	}

	return audit.Multi(sinks...), func() {
		for _, closeSink := range closers {
			closeSink()
		}
	}
}

func shutdownTelemetry(telemetry *parking.TelemetryProvider) {
	logging.Logger().Info().Msg("shutting down telemetry")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := telemetry.Shutdown(ctx); err != nil {
		logging.Logger().Error().Err(err).Msg("error shutting down telemetry")
	}
}
