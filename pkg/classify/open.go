package classify

import (
	"fmt"
	"io"
)

// Model backends selectable by name.
const (
	KindFeedForward = "feedforward"
	KindTensorFlow  = "tensorflow"
	KindONNX        = "onnx"
)

// Open loads the model of the given kind from path. An empty path returns a
// nil Model, which selects the rule based fallback. Close the model with
// CloseModel when done.
func Open(kind, path string) (Model, error) {
	if path == "" {
		return nil, nil
	}
	var (
		m   Model
		err error
	)
	switch kind {
	case "", KindFeedForward:
		m, err = LoadFeedForward(path)
	case KindTensorFlow:
		m, err = LoadTFModel(path)
	case KindONNX:
		m, err = LoadONNXModel(path)
	default:
		return nil, fmt.Errorf("%w: unknown model kind %q", ErrBadModel, kind)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CloseModel releases m if it holds resources.
func CloseModel(m Model) error {
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
