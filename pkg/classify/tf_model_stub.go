//go:build !tensorflow

package classify

import (
	"context"
	"fmt"
)

// TFModel is a stub when TensorFlow is not available.
type TFModel struct{}

// LoadTFModel returns an error when TensorFlow is not available.
func LoadTFModel(path string) (*TFModel, error) {
	return nil, fmt.Errorf("%w: TensorFlow support not compiled (build with -tags=tensorflow)", ErrModelUnavailable)
}

// Close is a no-op for the stub.
func (m *TFModel) Close() error {
	return nil
}

// Classify returns an error when TensorFlow is not available.
func (m *TFModel) Classify(ctx context.Context, v Vector) (int, []float64, error) {
	return 0, nil, fmt.Errorf("%w: TensorFlow support not compiled (build with -tags=tensorflow)", ErrModelUnavailable)
}
