package postprocess

import "image"

// DeduplicateCorners greedily drops detections whose corners all sit close to
// the corners of an already kept detection.
//
// Detections are walked in the given order (confidence-descending from
// TopDetections). A detection B is rejected against a kept F when all four of
//
//	|x1B-x1F| < tol*W, |y1B-y1F| < tol*H, |x2B-x2F| < tol*W, |y2B-y2F| < tol*H
//
// hold, W and H being the original image size. This is a corner proximity
// filter, not IoU suppression: differently sized boxes sharing corners merge,
// while heavily overlapping boxes with offset corners are both kept. With a
// tolerance of zero no strict comparison can hold, so nothing is rejected.
//
// Arguments:
//   - detections: The detections, most confident first.
//   - original: The original image size.
//   - tolerance: Fraction of the image width/height.
//
// Returns:
//   - []Detection: The kept detections in their input order.
func DeduplicateCorners(detections []Detection, original image.Point, tolerance float64) []Detection {
	tolX := tolerance * float64(original.X)
	tolY := tolerance * float64(original.Y)

	kept := make([]Detection, 0, len(detections))
	for _, candidate := range detections {
		duplicate := false
		for _, existing := range kept {
			if cornersNear(candidate, existing, tolX, tolY) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}

	return kept
}

func cornersNear(a, b Detection, tolX, tolY float64) bool {
	return float64(absInt(a.Box.X1-b.Box.X1)) < tolX &&
		float64(absInt(a.Box.Y1-b.Box.Y1)) < tolY &&
		float64(absInt(a.Box.X2-b.Box.X2)) < tolX &&
		float64(absInt(a.Box.Y2-b.Box.Y2)) < tolY
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
