// Package verify runs the per-submission verification pipeline: detect
// faces, resolve identity against the gallery, then check liveness. Every
// submitted frame ends in exactly one terminal outcome.
package verify

import (
	"context"

	"github.com/your-org/attend/internal/gallery"
	"github.com/your-org/attend/internal/liveness"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/vision"
)

// Outcome is the terminal state of one verification.
type Outcome string

const (
	// OutcomeAccepted: a detected face matched a known identity and
	// passed the liveness check. The only outcome that creates state.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeSpoofed: a face matched but failed liveness. Carries the
	// matched identity for display; nothing is recorded.
	OutcomeSpoofed Outcome = "spoofed"
	// OutcomeNoFace: no face was detected in the frame.
	OutcomeNoFace Outcome = "no_face"
	// OutcomeNoMatch: faces were detected but none matched the gallery.
	OutcomeNoMatch Outcome = "no_match"
)

// Result of one verification run. UserID is set for Accepted and Spoofed.
type Result struct {
	Outcome  Outcome
	UserID   string
	Distance float64
	Liveness liveness.Result
}

// Analyzer extracts faces (embedding + eye landmarks) from image bytes.
// Satisfied by *vision.Analyzer.
type Analyzer interface {
	Analyze(imageData []byte) ([]vision.Face, error)
}

// Matcher resolves an embedding to the nearest known identity.
// Satisfied by *gallery.Gallery.
type Matcher interface {
	Match(query []float32) gallery.MatchResult
}

// Pipeline wires the analyzer, the gallery and the liveness evaluator.
type Pipeline struct {
	analyzer  Analyzer
	matcher   Matcher
	evaluator *liveness.Evaluator
}

func NewPipeline(analyzer Analyzer, matcher Matcher, evaluator *liveness.Evaluator) *Pipeline {
	return &Pipeline{analyzer: analyzer, matcher: matcher, evaluator: evaluator}
}

// Verify runs one submission through the pipeline. Faces are considered in
// detection order and the first matched face decides the outcome: live is
// Accepted, not-live is Spoofed. Later faces are never evaluated once a
// match is found; the first acceptable subject wins. An error means the
// submission could not be analyzed at all, not a pipeline outcome.
func (p *Pipeline) Verify(ctx context.Context, imageData []byte) (Result, error) {
	faces, err := p.analyzer.Analyze(imageData)
	if err != nil {
		return Result{}, err
	}

	res := p.run(faces)
	observability.VerificationsTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func (p *Pipeline) run(faces []vision.Face) Result {
	if len(faces) == 0 {
		return Result{Outcome: OutcomeNoFace}
	}

	for _, face := range faces {
		match := p.matcher.Match(face.Embedding)
		if !match.Matched {
			continue
		}

		// Missing eye landmarks leave liveness Unknown, which is
		// treated as not live.
		var lv liveness.Result
		if face.Eyes != nil {
			lv = p.evaluator.Evaluate(face.Eyes.Left, face.Eyes.Right)
		}

		outcome := OutcomeSpoofed
		if lv.Live {
			outcome = OutcomeAccepted
		}

		return Result{
			Outcome:  outcome,
			UserID:   match.UserID,
			Distance: match.Distance,
			Liveness: lv,
		}
	}

	return Result{Outcome: OutcomeNoMatch}
}
