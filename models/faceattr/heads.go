// Package faceattr decodes the outputs of the per-face attribute models:
// landmarks, head pose, eye state, liveness, expression, gender and identity features.
package faceattr

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-face/models/model"
)

// PoseBins is the number of classification bins per pose angle.
const PoseBins = model.PoseBins

// Pose angles are recovered as bin*poseBinDegrees - poseOffsetDegrees.
const (
	poseBinDegrees    = 3
	poseOffsetDegrees = 99
)

// Pose holds head rotation angles in degrees.
type Pose struct {
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
	Roll  float32 `json:"roll"`
}

// Softmax converts logits to probabilities. The maximum is subtracted before
// exponentiation.
//
// Arguments:
//   - logits: The raw model scores.
//
// Returns:
//   - []float32: A new slice of probabilities summing to one. Empty for empty input.
func Softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}

	peak := logits[0]
	for _, v := range logits[1:] {
		peak = math32.Max(peak, v)
	}

	var sum float32
	for i, v := range logits {
		out[i] = math32.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}

// ArgMax returns the index of the largest value, the first one on ties, or -1
// for an empty slice.
func ArgMax(values []float32) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// poseAngle is the softmax expectation of the bin index, in degrees.
func poseAngle(logits []float32) float32 {
	var expected float32
	for i, p := range Softmax(logits) {
		expected += p * float32(i)
	}
	return expected*poseBinDegrees - poseOffsetDegrees
}

// DecodePose converts the three pose classifier outputs into angles.
//
// Arguments:
//   - yaw: The yaw logits, normally PoseBins values.
//   - pitch: The pitch logits.
//   - roll: The roll logits.
//
// Returns:
//   - Pose: The expected angle of each axis in degrees.
func DecodePose(yaw, pitch, roll []float32) Pose {
	return Pose{
		Yaw:   poseAngle(yaw),
		Pitch: poseAngle(pitch),
		Roll:  poseAngle(roll),
	}
}

// EyesOpen reports, per eye, whether the open class outscores the closed class.
func EyesOpen(left, right []float32) (bool, bool) {
	return eyeOpen(left), eyeOpen(right)
}

func eyeOpen(logits []float32) bool {
	if len(logits) < 2 {
		return false
	}
	p := Softmax(logits)
	return p[0] > p[1]
}

// LivenessScore returns the probability of the live class.
func LivenessScore(logits []float32) float32 {
	if len(logits) == 0 {
		return 0
	}
	return Softmax(logits)[0]
}

// ExpressionIndex returns the most probable expression class, or -1 for empty logits.
func ExpressionIndex(logits []float32) int {
	return ArgMax(Softmax(logits))
}

// MatchFeatures scores the similarity of two identity features.
//
// Each vector is centred on its own mean and the cosine of the centred
// vectors is returned. The inputs are not modified.
//
// Arguments:
//   - a: The first feature.
//   - b: The second feature, of the same length.
//
// Returns:
//   - float32: The similarity in [-1, 1].
//   - error: An error if the lengths differ, the vectors are empty, or a vector is constant.
//
// @example
// score, err := faceattr.MatchFeatures(query, enrolled)
//
//	if err == nil && score > 0.5 {
//	    fmt.Println("same person")
//	}
func MatchFeatures(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("feature lengths differ: %d and %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New("features are empty")
	}

	meanA, meanB := mean(a), mean(b)

	var dot, normA, normB float32
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		dot += da * db
		normA += da * da
		normB += db * db
	}
	if normA == 0 || normB == 0 {
		return 0, errors.New("feature has zero variance")
	}

	return dot / (math32.Sqrt(normA) * math32.Sqrt(normB)), nil
}

// GenderStages holds the bin count of each stage of the gender regression.
var GenderStages = [3]int{model.GenderStageBins, model.GenderStageBins, model.GenderStageBins}

// MergeGender combines the three-stage soft regression outputs of the gender
// model into one score.
//
// The values of x are laid out as the stage probabilities (stages[0] +
// stages[1] + stages[2] values), then one width delta per stage, then the
// per-bin index offsets of every stage. Each stage contributes the
// probability-weighted shifted bin index, divided by the widths of that stage
// and all previous ones, where a stage width is its bin count times
// (1 + lambdaD*delta).
//
// Arguments:
//   - x: The concatenated model outputs.
//   - stages: The bin count per stage.
//   - lambdaLocal: The weight of the index offsets.
//   - lambdaD: The weight of the width deltas.
//
// Returns:
//   - float32: The merged score.
//   - error: An error if x is shorter than the layout requires.
func MergeGender(x []float32, stages [3]int, lambdaLocal, lambdaD float32) (float32, error) {
	bins := 0
	for _, s := range stages {
		if s <= 0 {
			return 0, errors.Errorf("stage sizes must be positive, got %v", stages)
		}
		bins += s
	}
	deltas := bins
	offsets := deltas + len(stages)
	if len(x) < offsets+bins {
		return 0, errors.Errorf("gender output has %d values, want %d", len(x), offsets+bins)
	}

	var score float32
	width := float32(1)
	start := 0
	for k, s := range stages {
		width *= float32(s) * (1 + lambdaD*x[deltas+k])

		var stage float32
		for i := 0; i < s; i++ {
			stage += (float32(i) + lambdaLocal*x[offsets+start+i]) * x[start+i]
		}
		score += stage / width
		start += s
	}

	return score, nil
}

// GenderScore merges the gender model outputs with unit weights.
func GenderScore(x []float32) (float32, error) {
	return MergeGender(x, GenderStages, 1, 1)
}

func mean(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x
	}
	return sum / float32(len(v))
}
