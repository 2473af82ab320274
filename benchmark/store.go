package benchmark

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	// SQLite driver for the run store.
	_ "github.com/mattn/go-sqlite3"
)

// Run is the stored summary of one benchmark run.
type Run struct {
	ID                   string    `db:"id" json:"id"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	Mode                 string    `db:"mode" json:"mode"`
	ConfidenceThreshold  float64   `db:"confidence_threshold" json:"confidence_threshold"`
	OverlapTolerance     float64   `db:"overlap_tolerance" json:"overlap_tolerance"`
	Samples              int       `db:"samples" json:"samples"`
	Errors               int       `db:"errors" json:"errors"`
	Skipped              int       `db:"skipped" json:"skipped"`
	Accuracy             float64   `db:"accuracy" json:"accuracy"`
	MeanLevenshteinRatio float64   `db:"mean_levenshtein_ratio" json:"mean_levenshtein_ratio"`
	MeanPredictionTimeMS float64   `db:"mean_prediction_time_ms" json:"mean_prediction_time_ms"`
	MeanIoU              float64   `db:"mean_iou" json:"mean_iou"`
	TotalDurationMS      float64   `db:"total_duration_ms" json:"total_duration_ms"`
}

type sampleRow struct {
	RunID    string `db:"run_id"`
	Position int    `db:"position"`
	Sample
}

// Store keeps benchmark runs in SQLite so runs can be compared over time.
type Store struct {
	db  *sqlx.DB
	log logrus.FieldLogger
}

// OpenStore opens or creates the database at path and its tables.
//
// Arguments:
//   - ctx: Bounds the connection and migration.
//   - path: The SQLite file, or ":memory:".
//   - log: The logger for store errors.
//
// Returns:
//   - *Store: The store; close it with Close.
//   - error: An error if the database cannot be opened or migrated.
func OpenStore(ctx context.Context, path string, log logrus.FieldLogger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, querySchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, log: log.WithField("store", path)}, nil
}

// SaveReport stores the run summary and its samples in one transaction.
func (s *Store) SaveReport(ctx context.Context, r *Report) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	run := Run{
		ID:                   r.RunID,
		CreatedAt:            r.Timestamp.UTC(),
		Mode:                 string(r.Decode.Mode),
		ConfidenceThreshold:  r.Decode.ConfidenceThreshold,
		OverlapTolerance:     r.Decode.OverlapTolerance,
		Samples:              r.Summary.Samples,
		Errors:               r.Summary.Errors,
		Skipped:              r.Summary.Skipped,
		Accuracy:             r.Summary.Accuracy,
		MeanLevenshteinRatio: r.Summary.MeanLevenshteinRatio,
		MeanPredictionTimeMS: r.Summary.MeanPredictionTimeMS,
		MeanIoU:              r.Summary.MeanIoU,
		TotalDurationMS:      float64(r.Performance.TotalDuration) / float64(time.Millisecond),
	}
	if _, err := tx.NamedExecContext(ctx, queryCreateRun, run); err != nil {
		s.log.WithError(err).WithField("run_id", r.RunID).Error("failed to insert run")
		return errors.Wrap(err, "failed to insert run")
	}

	for i, sample := range r.Samples {
		row := sampleRow{RunID: r.RunID, Position: i, Sample: sample}
		if _, err := tx.NamedExecContext(ctx, queryCreateSample, row); err != nil {
			s.log.WithError(err).WithField("run_id", r.RunID).Error("failed to insert sample")
			return errors.Wrapf(err, "failed to insert sample %s", sample.Filename)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit run")
}

// Runs lists the stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, queryGetRuns); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// Samples returns the samples of one run in their original order.
func (s *Store) Samples(ctx context.Context, runID string) ([]Sample, error) {
	samples := []Sample{}
	if err := s.db.SelectContext(ctx, &samples, s.db.Rebind(queryGetSamplesByRun), runID); err != nil {
		return nil, errors.Wrapf(err, "failed to list samples of run %s", runID)
	}
	return samples, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
