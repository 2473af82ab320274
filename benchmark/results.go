package benchmark

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CSV columns, in order. The first four are required when reading.
const (
	ColumnFilename         = "filename"
	ColumnPlate            = "plate"
	ColumnPredictedPlate   = "predicted_plate"
	ColumnPredictionTimeMS = "prediction_time_ms"
	ColumnIoU              = "iou"
	ColumnError            = "error"
)

var csvHeader = []string{
	ColumnFilename, ColumnPlate, ColumnPredictedPlate, ColumnPredictionTimeMS, ColumnIoU, ColumnError,
}

// WriteCSV writes one row per sample, with a header.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}
	for _, s := range samples {
		row := []string{
			s.Filename,
			s.Plate,
			s.PredictedPlate,
			strconv.FormatFloat(s.PredictionTimeMS, 'f', -1, 64),
			strconv.FormatFloat(s.IoU, 'f', -1, 64),
			s.Error,
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "failed to write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush csv")
}

// ReadCSV reads samples written by WriteCSV. Columns are matched by header
// name; iou and error are optional.
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv header")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, required := range csvHeader[:4] {
		if _, ok := index[required]; !ok {
			return nil, errors.Errorf("csv is missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	number := func(row []string, name string, line int) (float64, error) {
		raw := field(row, name)
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "line %d: invalid %s", line, name)
		}
		return v, nil
	}

	var samples []Sample
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		s := Sample{
			Filename:       field(row, ColumnFilename),
			Plate:          field(row, ColumnPlate),
			PredictedPlate: field(row, ColumnPredictedPlate),
			Error:          field(row, ColumnError),
		}
		if s.PredictionTimeMS, err = number(row, ColumnPredictionTimeMS, line); err != nil {
			return nil, err
		}
		if s.IoU, err = number(row, ColumnIoU, line); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// SaveCSV writes the samples to path, creating its directory.
func SaveCSV(path string, samples []Sample) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteCSV(w, samples)
	})
}

// LoadCSV reads samples from path.
func LoadCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// SaveReport writes the full report as indented JSON.
func SaveReport(path string, r *Report) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(r), "failed to encode report")
	})
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return &r, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}
