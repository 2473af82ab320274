// Command server serves plate recognition over HTTP.
//
// gorgonia.org/tensor depends on go4.org/unsafe/assume-no-moving-gc, which
// panics at init on Go releases newer than it knows. If the binary stops
// there, set ASSUME_NO_MOVING_GC_UNSAFE_RISK_IT_WITH to the toolchain
// release, e.g. go1.24.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/config"
	"github.com/nvr-ai/go-alpr/logger"
	"github.com/nvr-ai/go-alpr/models"
	"github.com/nvr-ai/go-alpr/profiler"
	"github.com/nvr-ai/go-alpr/server"
)

const (
	// shutdownTimeout bounds the wait for in-flight requests.
	shutdownTimeout = 10 * time.Second
	// reportInterval is how often the profiler logs its statistics.
	reportInterval = time.Minute
)

func main() {
	var (
		configPath string
		address    string
		noReport   bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&address, "address", "", "Listen address, overrides the configuration")
	flag.BoolVar(&noReport, "no-report", false, "Disable the periodic profiler report")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if address != "" {
		cfg.Server.Address = address
	}

	log, err := logger.New(cfg.Logger, os.Stderr)
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prof := profiler.New(profiler.DefaultMaxSamples)
	svc, err := models.NewService(ctx, cfg, prof, log)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer svc.Close()

	srv, err := server.New(cfg.Server, svc,
		server.WithLogger(log),
		server.WithProfiler(prof),
	)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if !noReport {
		go prof.Run(ctx, reportInterval, log)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("failed to shut down")
		}
	}

	prof.Report(log)
}
