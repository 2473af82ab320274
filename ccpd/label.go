// Package ccpd decodes the ground truth that CCPD embeds in its filenames.
//
// A CCPD filename has seven hyphen separated fields:
//
//	area-tilt-bbox-vertices-plate-brightness-blur.jpg
//	025-95_113-154&383_386&473-386&473_177&454_154&383_363&402-0_0_22_27_27_33_16-37-15.jpg
//
// Malformed names never produce an error. A name with too few fields decodes
// to nil and any bad sub-field is reported through a sentinel string on the
// Label.
package ccpd

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/images"
)

// Sentinel values stored in a Label when a sub-field cannot be parsed.
const (
	ErrorDecoding    = "Error decoding"
	ErrorParseBBox   = "Error parsing bbox"
	ErrorParseVertex = "Error parsing vertex"
)

// Extension is stripped from the filename before it is split.
const Extension = ".jpg"

const (
	fieldCount = 7
	plateLen   = 7
)

var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the logger used for malformed filename warnings. It is
// meant to be called once at startup.
func SetLogger(l logrus.FieldLogger) {
	log = l
}

// BBox is the axis aligned plate box in image pixels.
type BBox = images.Rect

// Vertex is one of the four plate corners. Error is set instead of the
// coordinates when the pair could not be parsed.
type Vertex struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Error string `json:"error,omitempty"`
}

// Valid reports whether the vertex parsed.
func (v Vertex) Valid() bool {
	return v.Error == ""
}

// Label is the decoded ground truth of one CCPD image.
type Label struct {
	AreaRatio      string `json:"area_ratio"`
	TiltHorizontal string `json:"tilt_horizontal"`
	TiltVertical   string `json:"tilt_vertical"`

	// BBox is nil when the field does not hold exactly two corners or when
	// BBoxError is set.
	BBox      *BBox  `json:"bbox,omitempty"`
	BBoxError string `json:"bbox_error,omitempty"`

	Vertices []Vertex `json:"vertices"`

	// LicensePlate is the decoded text, "" when the index count is not 7, or
	// ErrorDecoding when any index is bad.
	LicensePlate string   `json:"license_plate"`
	LPNumbersRaw []string `json:"lp_numbers_raw"`

	Brightness string `json:"brightness"`
	Blurriness string `json:"blurriness"`
}

// HasPlate reports whether the plate text decoded successfully.
func (l *Label) HasPlate() bool {
	return l != nil && l.LicensePlate != "" && l.LicensePlate != ErrorDecoding
}

// Decode parses a CCPD filename (base name, with or without the .jpg
// extension).
//
// Arguments:
//   - filename: The base name to decode.
//
// Returns:
//   - *Label: The decoded label, or nil when fewer than seven fields exist.
func Decode(filename string) *Label {
	parts := strings.Split(strings.TrimSuffix(filename, Extension), "-")
	if len(parts) < fieldCount {
		log.WithField("filename", filename).Warn("filename does not match the CCPD format")
		return nil
	}

	label := &Label{
		AreaRatio:  parts[0],
		Brightness: parts[5],
		Blurriness: parts[6],
	}

	tilt := strings.Split(parts[1], "_")
	label.TiltHorizontal = tilt[0]
	if len(tilt) > 1 {
		label.TiltVertical = tilt[1]
	}

	if corners := strings.Split(parts[2], "_"); len(corners) == 2 {
		x1, y1, err1 := parsePair(corners[0])
		x2, y2, err2 := parsePair(corners[1])
		if err1 != nil || err2 != nil {
			label.BBoxError = ErrorParseBBox
		} else {
			label.BBox = &BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
		}
	}

	vertices := strings.Split(parts[3], "_")
	label.Vertices = make([]Vertex, len(vertices))
	for i, v := range vertices {
		x, y, err := parsePair(v)
		if err != nil {
			label.Vertices[i] = Vertex{Error: ErrorParseVertex}
			continue
		}
		label.Vertices[i] = Vertex{X: x, Y: y}
	}

	label.LPNumbersRaw = strings.Split(parts[4], "_")
	if len(label.LPNumbersRaw) == plateLen {
		label.LicensePlate = decodePlate(label.LPNumbersRaw)
	}

	return label
}

// DecodePath decodes the base name of a dataset path.
func DecodePath(path string) *Label {
	return Decode(filepath.Base(path))
}

// decodePlate maps seven raw indices to plate text. Any bad index fails the
// whole plate.
func decodePlate(raw []string) string {
	var b strings.Builder
	for i, token := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return ErrorDecoding
		}

		var table []string
		switch i {
		case 0:
			table = Provinces[:]
		case 1:
			table = Alphabets[:]
		default:
			table = Ads[:]
		}

		s, ok := lookup(table, idx)
		if !ok {
			return ErrorDecoding
		}
		b.WriteString(s)
	}
	return b.String()
}

// parsePair reads "x&y" (the dataset's separator) or "x,y".
func parsePair(s string) (int, int, error) {
	sep := "&"
	if !strings.Contains(s, sep) {
		sep = ","
	}

	fields := strings.Split(s, sep)
	if len(fields) != 2 {
		return 0, 0, strconv.ErrSyntax
	}

	x, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
