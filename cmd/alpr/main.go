// Command alpr reads the license plates of an image or a directory of images.
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

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/config"
	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/images/annotate"
	"github.com/nvr-ai/go-alpr/logger"
	"github.com/nvr-ai/go-alpr/models"
	"github.com/nvr-ai/go-alpr/models/postprocess"
	"github.com/nvr-ai/go-alpr/util"
)

// DefaultRedactRadius is the blur radius used for redacted plates.
const DefaultRedactRadius = 12

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// output is one line of -json output.
type output struct {
	Path   string        `json:"path"`
	Plates []string      `json:"plates"`
	Boxes  []images.Rect `json:"boxes"`
}

func main() {
	var (
		configPath  string
		mode        string
		threshold   float64
		tolerance   float64
		annotateDir string
		redactDir   string
		radius      int
		asJSON      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&mode, "mode", "", "Decode mode, best or top")
	flag.Float64Var(&threshold, "threshold", -1, "Confidence threshold, overrides the configuration")
	flag.Float64Var(&tolerance, "tolerance", -1, "Overlap tolerance, overrides the configuration")
	flag.StringVar(&annotateDir, "annotate", "", "Directory to write annotated images to")
	flag.StringVar(&redactDir, "redact", "", "Directory to write images with blurred plates to")
	flag.IntVar(&radius, "radius", DefaultRedactRadius, "Blur radius used by -redact")
	flag.BoolVar(&asJSON, "json", false, "Print one JSON object per image")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <image or directory>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if mode != "" {
		cfg.Decode.Mode = postprocess.Mode(mode)
	}
	if threshold >= 0 {
		cfg.Decode.ConfidenceThreshold = threshold
	}
	if tolerance >= 0 {
		cfg.Decode.OverlapTolerance = tolerance
	}
	if err := config.NewValidator().Struct(cfg.Decode); err != nil {
		logrus.Fatalf("Invalid decode settings: %v", err)
	}

	log, err := logger.New(cfg.Logger, os.Stderr)
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}

	paths, err := util.ImagePaths(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to list images: %v", err)
	}
	for _, dir := range []string{annotateDir, redactDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := models.NewService(ctx, cfg, nil, log)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer svc.Close()

	failed := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		out, err := process(ctx, svc, cfg.Decode, path, annotateDir, redactDir, radius)
		if err != nil {
			failed++
			log.WithError(err).WithField("file", path).Error("failed to process image")
			continue
		}
		if asJSON {
			line, err := json.Marshal(out)
			if err != nil {
				log.WithError(err).Error("failed to encode result")
				continue
			}
			fmt.Println(string(line))
			continue
		}
		fmt.Printf("%s: %s\n", path, strings.Join(out.Plates, ", "))
	}

	if failed > 0 {
		log.WithField("failed", failed).Warn("some images could not be processed")
		svc.Close()
		os.Exit(1)
	}
}

func process(
	ctx context.Context,
	svc *models.Service,
	cfg postprocess.Config,
	path, annotateDir, redactDir string,
	radius int,
) (*output, error) {
	file, err := util.LoadImageFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := images.Decode(file.Data)
	if err != nil {
		return nil, err
	}
	res, err := svc.Run(ctx, img, cfg)
	if err != nil {
		return nil, err
	}

	out := &output{Path: path, Plates: res.Texts(), Boxes: res.Boxes()}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if annotateDir != "" {
		labels := make([]annotate.Label, len(res.Plates))
		for i, p := range res.Plates {
			labels[i] = annotate.Label{Box: p.Box, Text: p.Text}
		}
		if err := annotate.WriteFile(filepath.Join(annotateDir, name+".jpg"), img, labels); err != nil {
			return nil, err
		}
	}

	if redactDir != "" {
		data, err := images.EncodePNG(images.Redact(img, res.Boxes(), radius))
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(redactDir, name+".png"), data, 0o644); err != nil {
			return nil, errors.Wrap(err, "failed to write redacted image")
		}
	}

	return out, nil
}
