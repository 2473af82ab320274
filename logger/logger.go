// Package logger builds the logrus logger shared by the binaries.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// requestIDKey is the private context key type for request ids.
type requestIDKey struct{}

// RequestIDKey is used with context.WithValue to tag a request.
var RequestIDKey = requestIDKey{}

// Fields is an alias so callers do not import logrus for structured fields.
type Fields = logrus.Fields

// Options configures the logger.
type Options struct {
	// Level is a logrus level name such as "debug" or "info".
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	// File enables rotated file output next to stderr when set.
	File string `json:"file" yaml:"file"`
	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	// MaxBackups is the number of rotated files kept.
	MaxBackups int `json:"max_backups" yaml:"max_backups" validate:"gte=0"`
	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
	// NoColors disables ANSI colors, e.g. when stderr is not a terminal.
	NoColors bool `json:"no_colors" yaml:"no_colors"`
	// ReportCaller adds the calling file and function to every entry.
	ReportCaller bool `json:"report_caller" yaml:"report_caller"`
}

// DefaultOptions logs at info level to stderr only.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}

// New creates a logger from opts.
//
// Arguments:
//   - opts: The logger options.
//   - stderr: Console sink; os.Stderr when nil.
//
// Returns:
//   - *logrus.Logger: The configured logger.
//   - error: An error if the level name is not recognized.
func New(opts Options, stderr io.Writer) (*logrus.Logger, error) {
	if stderr == nil {
		stderr = os.Stderr
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		level = parsed
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})

	writers := []io.Writer{stderr}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    opts.MaxSizeMB,
			MaxAge:     opts.MaxAgeDays,
			MaxBackups: opts.MaxBackups,
		})
	}
	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(opts.ReportCaller)

	return l, nil
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// WithRequestID returns an entry tagged with the request id stored in ctx,
// or "unknown" when there is none.
func WithRequestID(ctx context.Context, l logrus.FieldLogger) *logrus.Entry {
	requestID := "unknown"
	if ctx != nil {
		if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
			requestID = id
		}
	}
	return l.WithField("request_id", requestID)
}
