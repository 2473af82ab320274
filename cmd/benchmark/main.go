// Command benchmark measures plate recognition against a CCPD split, or
// summarizes the results file of an earlier run.
//
// gorgonia.org/tensor depends on go4.org/unsafe/assume-no-moving-gc, which
// panics at init on Go releases newer than it knows. If the binary stops
// there, set ASSUME_NO_MOVING_GC_UNSAFE_RISK_IT_WITH to the toolchain
// release, e.g. go1.24.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/benchmark"
	"github.com/nvr-ai/go-alpr/ccpd"
	"github.com/nvr-ai/go-alpr/config"
	"github.com/nvr-ai/go-alpr/logger"
	"github.com/nvr-ai/go-alpr/models"
)

func main() {
	var (
		configPath string
		analyze    string
		root       string
		split      string
		samples    int
		seed       int64
		output     string
		database   string
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&analyze, "analyze", "", "Summarize an existing results CSV instead of running")
	flag.StringVar(&root, "dataset", "", "CCPD dataset root, overrides the configuration")
	flag.StringVar(&split, "split", "", "Split file, overrides the configuration")
	flag.IntVar(&samples, "samples", -1, "Number of images to sample, 0 for the whole split")
	flag.Int64Var(&seed, "seed", 0, "Sampling seed, overrides the configuration when non-zero")
	flag.StringVar(&output, "output", "", "Results CSV, overrides the configuration")
	flag.StringVar(&database, "db", "", "SQLite database to record the run in")
	flag.Parse()

	if analyze != "" {
		results, err := benchmark.LoadCSV(analyze)
		if err != nil {
			logrus.Fatalf("Failed to load results: %v", err)
		}
		printSummary(benchmark.Analyze(results))
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	bc := cfg.Benchmark
	if root != "" {
		bc.DatasetRoot = root
	}
	if split != "" {
		bc.Split = split
	}
	if samples >= 0 {
		bc.Samples = samples
	}
	if seed != 0 {
		bc.Seed = seed
	}
	if output != "" {
		bc.Output = output
	}
	if database != "" {
		bc.Database = database
	}

	log, err := logger.New(cfg.Logger, os.Stderr)
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}
	ccpd.SetLogger(log)

	splitPath := bc.Split
	if !filepath.IsAbs(splitPath) {
		splitPath = filepath.Join(bc.DatasetRoot, splitPath)
	}
	paths, err := ccpd.ReadSplit(splitPath)
	if err != nil {
		log.Fatalf("Failed to read split: %v", err)
	}
	files := ccpd.Sample(paths, bc.Samples, bc.Seed)
	log.WithFields(logrus.Fields{
		"split":   splitPath,
		"total":   len(paths),
		"sampled": len(files),
		"seed":    bc.Seed,
	}).Info("dataset loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := models.NewService(ctx, cfg, nil, log)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer svc.Close()

	suite, err := benchmark.NewSuite(benchmark.NewSuiteArgs{
		Pipeline:    svc,
		Decode:      cfg.Decode,
		DatasetRoot: bc.DatasetRoot,
		Logger:      log,
	})
	if err != nil {
		log.Fatalf("Failed to create benchmark suite: %v", err)
	}

	report, runErr := suite.Run(ctx, files)
	if runErr != nil {
		log.WithError(runErr).Warn("saving partial results")
	}

	if err := benchmark.SaveCSV(bc.Output, report.Samples); err != nil {
		log.Fatalf("Failed to save results: %v", err)
	}
	reportPath := strings.TrimSuffix(bc.Output, filepath.Ext(bc.Output)) + ".json"
	if err := benchmark.SaveReport(reportPath, report); err != nil {
		log.Fatalf("Failed to save report: %v", err)
	}
	log.WithFields(logrus.Fields{"csv": bc.Output, "report": reportPath}).Info("results saved")

	if bc.Database != "" {
		// The run is recorded even when interrupted; ctx may already be done.
		store, err := benchmark.OpenStore(context.Background(), bc.Database, log)
		if err != nil {
			log.Fatalf("Failed to open run store: %v", err)
		}
		defer store.Close()
		if err := store.SaveReport(context.Background(), report); err != nil {
			log.Fatalf("Failed to record run: %v", err)
		}
	}

	printSummary(report.Summary)
}

func printSummary(s benchmark.Summary) {
	fmt.Printf("Samples: %d (errors: %d, skipped: %d)\n", s.Samples, s.Errors, s.Skipped)
	fmt.Printf("Mean prediction time: %.2f ms\n", s.MeanPredictionTimeMS)
	fmt.Printf("Accuracy: %.2f%%\n", s.Accuracy*100)
	fmt.Printf("Mean Levenshtein ratio: %.2f%%\n", s.MeanLevenshteinRatio*100)
	fmt.Printf("Mean IoU: %.3f\n", s.MeanIoU)
}
