package classify

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortInitOnce ensures ONNX Runtime is initialized only once
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXModel classifies with an ONNX Runtime session.
type ONNXModel struct {
	session *ort.DynamicAdvancedSession
}

// LoadONNXModel opens the ONNX model at path. Input and output names are
// read from the model.
func LoadONNXModel(path string) (*ONNXModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model not found at %s: %w", path, err)
	}

	ortInitOnce.Do(func() {
		ort.SetSharedLibraryPath(onnxLibPath())
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("%w: initialize ONNX Runtime: %v", ErrModelUnavailable, ortInitErr)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("get model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("%w: model has %d inputs and %d outputs", ErrBadModel, len(inputs), len(outputs))
	}

	session, err := ort.NewDynamicAdvancedSession(
		path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &ONNXModel{session: session}, nil
}

// onnxLibPath returns the path to the ONNX Runtime shared library.
func onnxLibPath() string {
	if path := os.Getenv("ONNXRUNTIME_LIB_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "onnxruntime"
}

// Close releases the session.
func (m *ONNXModel) Close() error {
	if m.session != nil {
		return m.session.Destroy()
	}
	return nil
}

// Classify runs v through the session.
func (m *ONNXModel) Classify(ctx context.Context, v Vector) (int, []float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, VectorSize), v.Float32())
	if err != nil {
		return 0, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	// nil output is allocated by the runtime
	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{input}, outputs); err != nil {
		return 0, nil, fmt.Errorf("inference failed: %w", err)
	}
	if outputs[0] == nil {
		return 0, nil, fmt.Errorf("%w: output was nil", ErrBadModel)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, nil, fmt.Errorf("%w: unexpected output tensor type", ErrBadModel)
	}
	return argmax32(out.GetData())
}

// argmax32 converts raw probabilities and picks the winning category.
func argmax32(raw []float32) (int, []float64, error) {
	if len(raw) != len(Genres) {
		return 0, nil, fmt.Errorf("%w: %d outputs, want %d", ErrBadModel, len(raw), len(Genres))
	}
	probs := make([]float64, len(raw))
	best := 0
	for i, p := range raw {
		probs[i] = float64(p)
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best, probs, nil
}
