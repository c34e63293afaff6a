// Package eval computes the evaluation metrics of the BBBP classifier:
// ROC-AUC over predicted probabilities and running loss/accuracy means.
package eval

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"
)

// AUC returns the area under the ROC curve for the predicted probabilities
// against the binary labels (0 or 1). It is computed from the rank statistic
// of the positive examples, with tied scores receiving their average rank, so
// the result is exact for any score distribution.
//
// It panics if the slices disagree in length. AUC is undefined without both
// classes present; that returns NaN, so a degenerate (tiny) evaluation set
// does not abort a training run.
func AUC(probabilities, labels []float32) float32 {
	if len(probabilities) != len(labels) {
		exceptions.Panicf("eval.AUC: %d probabilities for %d labels", len(probabilities), len(labels))
	}
	order := make([]int, len(probabilities))
	for ii := range order {
		order[ii] = ii
	}
	sort.Slice(order, func(i, j int) bool {
		return probabilities[order[i]] < probabilities[order[j]]
	})

	// Walk groups of tied scores, assigning each the group's average rank
	// (1-based), and accumulate the ranks of the positives.
	var rankSumPos float64
	var numPos, numNeg int
	for start := 0; start < len(order); {
		end := start + 1
		for end < len(order) && probabilities[order[end]] == probabilities[order[start]] {
			end++
		}
		avgRank := float64(start+end+1) / 2
		for _, idx := range order[start:end] {
			if labels[idx] > 0 {
				rankSumPos += avgRank
				numPos++
			} else {
				numNeg++
			}
		}
		start = end
	}
	if numPos == 0 || numNeg == 0 {
		return math32.NaN()
	}
	return float32((rankSumPos - float64(numPos)*float64(numPos+1)/2) /
		(float64(numPos) * float64(numNeg)))
}

// Accuracy returns the fraction of predictions on the right side of the 0.5
// threshold.
func Accuracy(probabilities, labels []float32) float32 {
	if len(probabilities) != len(labels) {
		exceptions.Panicf("eval.Accuracy: %d probabilities for %d labels", len(probabilities), len(labels))
	}
	if len(probabilities) == 0 {
		return math32.NaN()
	}
	var correct int
	for ii, prob := range probabilities {
		if (prob >= 0.5) == (labels[ii] > 0) {
			correct++
		}
	}
	return float32(correct) / float32(len(probabilities))
}

// Mean accumulates a weighted running mean, used for the mean training loss
// over the variable-sized batches of an epoch.
type Mean struct {
	sum, weight float32
}

// Add accumulates one observation with the given weight (the batch size).
func (m *Mean) Add(value float32, weight int) {
	m.sum += value * float32(weight)
	m.weight += float32(weight)
}

// Value returns the mean so far, or NaN if nothing was accumulated.
func (m *Mean) Value() float32 {
	if m.weight == 0 {
		return math32.NaN()
	}
	return m.sum / m.weight
}

// Reset clears the accumulator for the next epoch.
func (m *Mean) Reset() {
	m.sum, m.weight = 0, 0
}
