package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attend/internal/liveness"
)

// landmarkCount is the 68-point facial landmark layout. Points 36-41 trace
// the left eye contour and 42-47 the right eye, six points each, ordered
// around the eye, in the order the EAR computation expects.
const landmarkCount = 68

const (
	leftEyeStart  = 36
	rightEyeStart = 42
)

// EyeLandmarks holds the two eye contours of one face, in face-crop pixel
// coordinates. EAR is scale-invariant, so the coordinate space does not
// matter as long as both contours share it.
type EyeLandmarks struct {
	Left  []liveness.Point
	Right []liveness.Point
}

// Landmarker predicts 68 facial landmarks on a face crop using ONNX Runtime.
type Landmarker struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

// NewLandmarker loads the 68-point landmark ONNX model (112x112 input, one
// output of 136 coordinates normalized to [0,1] over the crop).
func NewLandmarker(modelPath string) (*Landmarker, error) {
	inputW, inputH := 112, 112

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(landmarkCount*2))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create landmarker session: %w", err)
	}

	return &Landmarker{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Predict runs landmark extraction on a face crop.
// faceData must be CHW [3, 112, 112], normalized.
// cropW/cropH scale the normalized outputs back to crop pixels.
func (l *Landmarker) Predict(faceData []float32, cropW, cropH int) (EyeLandmarks, error) {
	copy(l.inputTensor.GetData(), faceData)

	if err := l.session.Run(); err != nil {
		return EyeLandmarks{}, fmt.Errorf("run landmarks: %w", err)
	}

	out := l.outputTensor.GetData()

	return EyeLandmarks{
		Left:  eyeContour(out, leftEyeStart, cropW, cropH),
		Right: eyeContour(out, rightEyeStart, cropW, cropH),
	}, nil
}

func eyeContour(out []float32, start, cropW, cropH int) []liveness.Point {
	pts := make([]liveness.Point, liveness.EyePoints)
	for i := 0; i < liveness.EyePoints; i++ {
		j := (start + i) * 2
		pts[i] = liveness.Point{
			X: float64(out[j]) * float64(cropW),
			Y: float64(out[j+1]) * float64(cropH),
		}
	}
	return pts
}

// InputSize returns the expected face crop dimensions.
func (l *Landmarker) InputSize() (int, int) {
	return l.inputW, l.inputH
}

func (l *Landmarker) Close() {
	if l.session != nil {
		l.session.Destroy()
	}
	if l.inputTensor != nil {
		l.inputTensor.Destroy()
	}
	if l.outputTensor != nil {
		l.outputTensor.Destroy()
	}
}
