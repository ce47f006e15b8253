package vision

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/observability"
)

// Face is everything the verification pipeline needs to know about one
// detected face: its region, an identity embedding, and the eye contours
// for the liveness check. Eyes holds nil when landmark extraction failed
// for this face; liveness then evaluates to Unknown.
type Face struct {
	BBox       [4]float32
	Confidence float32
	Embedding  []float32
	Eyes       *EyeLandmarks
}

// Analyzer turns a submitted image into detected faces with embeddings and
// eye landmarks. It owns the three ONNX sessions.
type Analyzer struct {
	detector   *Detector
	embedder   *Embedder
	landmarker *Landmarker

	// ORT sessions bind fixed input/output tensors, so concurrent runs
	// would race on the tensor buffers. One inference at a time.
	mu sync.Mutex
}

// NewAnalyzer loads all ONNX models from the configured models directory.
func NewAnalyzer(cfg config.VisionConfig) (*Analyzer, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")
	lmkPath := filepath.Join(cfg.ModelsDir, "landmark_68.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("loading landmark model", "path", lmkPath)
	lmk, err := NewLandmarker(lmkPath)
	if err != nil {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("load landmarker: %w", err)
	}

	slog.Info("vision analyzer ready")

	return &Analyzer{detector: det, embedder: emb, landmarker: lmk}, nil
}

// Analyze decodes the submitted image and returns every detected face in
// detection order, each with its embedding and eye landmarks. An image with
// no faces yields an empty slice and no error. A face whose embedding fails
// is dropped; a face whose landmarks fail keeps Eyes == nil.
func (a *Analyzer) Analyze(imageData []byte) ([]Face, error) {
	img, err := decodeImage(imageData)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	detInput := preprocessForDetection(img, a.detector.inputW, a.detector.inputH)
	detections, err := a.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		crop := cropFace(img, det.BBox)
		if crop == nil {
			continue
		}
		cropBounds := crop.Bounds()

		start = time.Now()
		embedding, err := a.embedder.Extract(
			preprocessForEmbedding(crop, a.embedder.inputW, a.embedder.inputH))
		if err != nil {
			slog.Warn("embed face", "error", err)
			continue
		}
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

		face := Face{BBox: det.BBox, Confidence: det.Confidence, Embedding: embedding}

		start = time.Now()
		eyes, err := a.landmarker.Predict(
			preprocessForLandmarks(crop, a.landmarker.inputW, a.landmarker.inputH),
			cropBounds.Dx(), cropBounds.Dy())
		if err != nil {
			slog.Warn("eye landmarks", "error", err)
		} else {
			face.Eyes = &eyes
		}
		observability.InferenceDuration.WithLabelValues("landmarks").Observe(time.Since(start).Seconds())

		faces = append(faces, face)
	}

	return faces, nil
}

// Embed extracts a reference embedding from an enrollment sample: the
// highest-confidence face wins. Used at gallery build and by cmd/enroll.
func (a *Analyzer) Embed(imageData []byte) ([]float32, error) {
	faces, err := a.Analyze(imageData)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("no face detected in sample")
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.Confidence > best.Confidence {
			best = f
		}
	}
	return best.Embedding, nil
}

// Close releases all ONNX sessions.
func (a *Analyzer) Close() {
	if a.detector != nil {
		a.detector.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.landmarker != nil {
		a.landmarker.Close()
	}
}
