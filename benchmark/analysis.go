package benchmark

import "strings"

// Separator is the dot some readers place between the region code and the
// serial of a plate, e.g. "皖A·Y339S".
const Separator = "·"

// NormalizePlate strips the separator so predictions compare against the
// CCPD ground truth.
func NormalizePlate(s string) string {
	return strings.ReplaceAll(s, Separator, "")
}

// LevenshteinRatio returns the normalized indel similarity of a and b in
// [0, 1], computed over runes:
//
//	ratio = 1 - indel(a, b) / (len(a) + len(b)) = 2*LCS(a, b) / (len(a) + len(b))
//
// Two empty strings are identical and score 1.
func LevenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(lcs(ra, rb)) / float64(total)
}

// lcs is the length of the longest common subsequence, in O(len(b)) space.
func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Analyze aggregates samples. Failed samples count as wrong predictions.
func Analyze(samples []Sample) Summary {
	s := Summary{Samples: len(samples)}
	if len(samples) == 0 {
		return s
	}

	var timeSum, ratioSum, iouSum float64
	correct := 0
	for _, sample := range samples {
		if sample.Error != "" {
			s.Errors++
		}
		predicted := NormalizePlate(sample.PredictedPlate)
		if predicted == sample.Plate {
			correct++
		}
		timeSum += sample.PredictionTimeMS
		ratioSum += LevenshteinRatio(predicted, sample.Plate)
		iouSum += sample.IoU
	}

	n := float64(len(samples))
	s.MeanPredictionTimeMS = timeSum / n
	s.Accuracy = float64(correct) / n
	s.MeanLevenshteinRatio = ratioSum / n
	s.MeanIoU = iouSum / n
	return s
}
