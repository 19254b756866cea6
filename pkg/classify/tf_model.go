//go:build tensorflow

package classify

import (
	"context"
	"fmt"
	"os"

	tf "github.com/wamuir/graft/tensorflow"
)

// TF SavedModel signature names of an exported Keras classifier.
const (
	tfInputOp  = "serving_default_input"
	tfOutputOp = "StatefulPartitionedCall"
)

// TFModel classifies with a TensorFlow SavedModel.
type TFModel struct {
	model    *tf.SavedModel
	inputOp  string
	outputOp string
}

// LoadTFModel loads the SavedModel directory at path.
func LoadTFModel(path string) (*TFModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model not found at %s: %w", path, err)
	}

	model, err := tf.LoadSavedModel(path, []string{"serve"}, nil)
	if err != nil {
		return nil, fmt.Errorf("load SavedModel: %w", err)
	}

	return &TFModel{
		model:    model,
		inputOp:  tfInputOp,
		outputOp: tfOutputOp,
	}, nil
}

// Close releases the TensorFlow session.
func (m *TFModel) Close() error {
	if m.model != nil && m.model.Session != nil {
		return m.model.Session.Close()
	}
	return nil
}

// Classify runs v through the SavedModel.
func (m *TFModel) Classify(ctx context.Context, v Vector) (int, []float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	// Input tensor [1, VectorSize]
	input, err := tf.NewTensor([][]float32{v.Float32()})
	if err != nil {
		return 0, nil, fmt.Errorf("create input tensor: %w", err)
	}

	inputOp := m.model.Graph.Operation(m.inputOp)
	if inputOp == nil {
		return 0, nil, fmt.Errorf("%w: input operation %q not found", ErrBadModel, m.inputOp)
	}
	outputOp := m.model.Graph.Operation(m.outputOp)
	if outputOp == nil {
		return 0, nil, fmt.Errorf("%w: output operation %q not found", ErrBadModel, m.outputOp)
	}

	outputs, err := m.model.Session.Run(
		map[tf.Output]*tf.Tensor{inputOp.Output(0): input},
		[]tf.Output{outputOp.Output(0)},
		nil,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("inference failed: %w", err)
	}

	var raw []float32
	switch out := outputs[0].Value().(type) {
	case [][]float32:
		if len(out) == 0 {
			return 0, nil, fmt.Errorf("%w: empty output", ErrBadModel)
		}
		raw = out[0]
	case []float32:
		raw = out
	default:
		return 0, nil, fmt.Errorf("%w: unexpected output type %T", ErrBadModel, out)
	}
	return argmax32(raw)
}
