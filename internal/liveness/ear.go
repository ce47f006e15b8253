// Package liveness decides whether a verified face came from a live subject
// rather than a held-up photo. The signal is the eye-aspect-ratio over the
// six eye-contour landmarks; a frame counts as live only when both eyes are
// closed (blinking) below the threshold at the same instant.
//
// This is a single-frame static check, not a temporal open-closed-open blink
// sequence. A multi-frame check is a known product followup; until then the
// documented single-frame behavior is preserved exactly.
package liveness

import "math"

// Point is one 2D landmark coordinate.
type Point struct {
	X float64
	Y float64
}

// EyePoints is the number of contour landmarks per eye, ordered around the
// eye: outer corner, two upper-lid points, inner corner, two lower-lid
// points.
const EyePoints = 6

// Result of a liveness evaluation. Known is false when no eligible eye
// landmarks were available; an unknown result is treated as not live.
type Result struct {
	Live     bool
	Known    bool
	LeftEAR  float64
	RightEAR float64
}

// Evaluator applies a static EAR threshold.
type Evaluator struct {
	threshold float64
}

// NewEvaluator returns an evaluator declaring an eye closed when its EAR is
// strictly below threshold.
func NewEvaluator(threshold float64) *Evaluator {
	return &Evaluator{threshold: threshold}
}

// Evaluate decides liveness from the left and right eye contours of one
// frame. Both eyes must be simultaneously below the threshold. A contour
// with coincident eye corners carries no openness signal at all, so it
// leaves the result unknown rather than counting as a closed eye.
func (e *Evaluator) Evaluate(left, right []Point) Result {
	if len(left) != EyePoints || len(right) != EyePoints {
		return Result{}
	}
	if dist(left[0], left[3]) == 0 || dist(right[0], right[3]) == 0 {
		return Result{}
	}

	leftEAR := EAR(left)
	rightEAR := EAR(right)

	return Result{
		Live:     leftEAR < e.threshold && rightEAR < e.threshold,
		Known:    true,
		LeftEAR:  leftEAR,
		RightEAR: rightEAR,
	}
}

// EAR computes the eye-aspect-ratio: the average of the two vertical
// point-pair distances divided by twice the horizontal distance. It falls
// toward zero as the eye closes. Malformed input yields 0.
func EAR(eye []Point) float64 {
	if len(eye) != EyePoints {
		return 0
	}

	a := dist(eye[1], eye[5])
	b := dist(eye[2], eye[4])
	c := dist(eye[0], eye[3])
	if c == 0 {
		return 0
	}

	return (a + b) / (2.0 * c)
}

func dist(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}
