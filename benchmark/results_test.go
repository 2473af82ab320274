package benchmark

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-alpr/models/postprocess"
)

var testSamples = []Sample{
	{Filename: "ccpd_base/a.jpg", Plate: "皖AY339S", PredictedPlate: "皖A·Y339S", PredictionTimeMS: 12.5, IoU: 0.8},
	{Filename: "ccpd_base/b,c.jpg", Plate: "沪CDEFGH", PredictionTimeMS: 7, Error: `read "b": no such file`},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testSamples))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "filename,plate,predicted_plate,prediction_time_ms,iou,error", lines[0])
	assert.Equal(t, "ccpd_base/a.jpg,皖AY339S,皖A·Y339S,12.5,0.8,", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], `"ccpd_base/b,c.jpg",沪CDEFGH,,7,0,`))
}

func TestReadCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testSamples))

	got, err := ReadCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, testSamples, got)
}

func TestReadCSVOriginalColumns(t *testing.T) {
	// The four columns of the plain results file, in another order.
	in := "plate,filename,prediction_time_ms,predicted_plate\n皖AY339S,a.jpg,101.25,皖AY339S\n"

	got, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Sample{{Filename: "a.jpg", Plate: "皖AY339S", PredictedPlate: "皖AY339S", PredictionTimeMS: 101.25}}, got)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("filename,plate,predicted_plate\n"))
	assert.ErrorContains(t, err, "prediction_time_ms")

	_, err = ReadCSV(strings.NewReader("filename,plate,predicted_plate,prediction_time_ms\na,b,c,fast\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestSaveAndLoadFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	csvPath := filepath.Join(dir, "benchmark_results.csv")
	require.NoError(t, SaveCSV(csvPath, testSamples))
	got, err := LoadCSV(csvPath)
	require.NoError(t, err)
	assert.Equal(t, testSamples, got)

	report := &Report{
		RunID:     "run-1",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Decode:    postprocess.DefaultConfig(),
		Summary:   Analyze(testSamples),
		Samples:   testSamples,
	}
	jsonPath := filepath.Join(dir, "benchmark_report.json")
	require.NoError(t, SaveReport(jsonPath, report))

	loaded, err := LoadReport(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, report, loaded)

	_, err = LoadCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
