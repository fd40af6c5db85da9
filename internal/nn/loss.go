package nn

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// crossEntropyBackend is implemented by backends with a fused
// softmax cross-entropy kernel (CPU and autodiff).
type crossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor, ignoreIndex int) *tensor.RawTensor
}

// CrossEntropyLoss computes the mean softmax cross-entropy between logits
// and integer class targets.
//
// Mathematical Formulation:
//
//	Loss = mean over non-ignored i of -log_softmax(logits[i])[target[i]]
//
// Gradient (Backward):
//
//	∂L/∂logits[i] = (softmax(logits[i]) - one_hot(target[i])) / count
//
// Positions whose target equals the ignore index (the pad token) contribute
// neither to the loss nor to the gradient. When every position is ignored
// the loss is 0.
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss(backend, 0)
//	logits, _ := model.Forward(src, tgtIn, nn.Train) // [b, t, V]
//	loss := criterion.Forward(logits, tgtOut)        // scalar
type CrossEntropyLoss[B tensor.Backend] struct {
	backend     B
	ignoreIndex int
}

// NewCrossEntropyLoss creates a loss that ignores ignoreIndex targets.
// Panics if the backend has no cross-entropy kernel.
func NewCrossEntropyLoss[B tensor.Backend](backend B, ignoreIndex int) *CrossEntropyLoss[B] {
	if _, ok := any(backend).(crossEntropyBackend); !ok {
		panic(fmt.Sprintf("CrossEntropyLoss: backend %s has no cross-entropy kernel", backend.Name()))
	}
	return &CrossEntropyLoss[B]{
		backend:     backend,
		ignoreIndex: ignoreIndex,
	}
}

// Forward computes the loss.
//
// Accepts logits [N, C] with targets [N], or logits [b, t, C] with
// targets [b, t]. Returns a scalar tensor.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	lShape := logits.Shape()
	if len(lShape) == 3 {
		logits = logits.Reshape(-1, lShape[2])
		targets = targets.Reshape(-1)
	}

	ce := any(c.backend).(crossEntropyBackend)
	return tensor.New[float32](ce.CrossEntropy(logits.Raw(), targets.Raw(), c.ignoreIndex), c.backend)
}

// IgnoreIndex returns the target index excluded from the loss.
func (c *CrossEntropyLoss[B]) IgnoreIndex() int {
	return c.ignoreIndex
}

// Parameters returns nil: losses have no trainable parameters.
func (c *CrossEntropyLoss[B]) Parameters() []*Parameter[B] {
	return nil
}
